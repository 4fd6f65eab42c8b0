// Package export builds the active-catalog extract consumed by the web
// catalog and the spreadsheet publisher.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

// Build reads the active catalog from the store. A non-zero activity
// window keeps only products touched within it, mirroring the "recently
// maintained items only" extract the store publishes.
func Build(ctx context.Context, store service.CatalogStore, activityWindow time.Duration) ([]model.CatalogRow, error) {
	var cutoff time.Time
	if activityWindow > 0 {
		cutoff = time.Now().UTC().Add(-activityWindow)
	}

	rows, err := store.ActiveCatalog(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog export: %w", err)
	}
	return rows, nil
}

// WriteCSV writes the catalog rows with a header row.
func WriteCSV(w io.Writer, rows []model.CatalogRow) error {
	cw := csv.NewWriter(w)

	header := []string{
		"merkey", "description", "name", "brand", "size", "department",
		"category", "barcode", "price_retail", "price_pack", "price_case",
		"last_modified",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.Key, r.Description, r.Name, r.Brand, r.Size, r.Department,
			r.Category, r.Barcode,
			formatPrice(r.PriceRetail), formatPrice(r.PricePack), formatPrice(r.PriceCase),
			r.LastModified.UTC().Format("2006-01-02"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", r.Key, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatPrice(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *p)
}
