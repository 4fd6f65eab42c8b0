package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

// ApplyEnrichment upserts descriptive data from an enrichment spreadsheet
// export onto existing products. Rows for unknown keys are counted, not
// created; the price master remains the sole source of product existence.
// The whole batch applies in one transaction.
func (s *SQLiteStorage) ApplyEnrichment(ctx context.Context, enrichRows []model.EnrichmentRow) (model.EnrichmentStats, error) {
	var stats model.EnrichmentStats

	if err := validateContext(ctx); err != nil {
		return stats, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for i := range enrichRows {
		row := &enrichRows[i]
		stats.Processed++

		if row.Key == "" {
			stats.Skipped++
			continue
		}

		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE key = ?)`, row.Key).Scan(&exists)
		if err != nil {
			return model.EnrichmentStats{}, fmt.Errorf("failed to look up %s: %w", row.Key, err)
		}
		if !exists {
			stats.NotFound++
			continue
		}

		if err := s.enrichProduct(ctx, tx, row, now); err != nil {
			return model.EnrichmentStats{}, err
		}
		stats.Updated++

		added, err := s.insertBarcodes(ctx, tx, row.Key, row.Barcodes, primaryOf(row.Barcodes), now)
		if err != nil {
			return model.EnrichmentStats{}, err
		}
		stats.BarcodesAdded += added
	}

	if err := tx.Commit(); err != nil {
		return model.EnrichmentStats{}, fmt.Errorf("failed to commit enrichment: %w", err)
	}
	return stats, nil
}

// enrichProduct overwrites descriptive columns with the row's non-empty
// values and recomputes the quality state. Blank cells never erase data
// someone already entered.
func (s *SQLiteStorage) enrichProduct(ctx context.Context, tx *sql.Tx, row *model.EnrichmentRow, now time.Time) error {
	quality, needsMore := row.ComputeQuality()

	var packQuantity sql.NullInt64
	if row.PackQuantity > 0 {
		packQuantity = sql.NullInt64{Int64: int64(row.PackQuantity), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = COALESCE(NULLIF(?, ''), name),
		    brand = COALESCE(NULLIF(?, ''), brand),
		    size = COALESCE(NULLIF(?, ''), size),
		    unit = COALESCE(NULLIF(?, ''), unit),
		    department = COALESCE(NULLIF(?, ''), department),
		    category = COALESCE(NULLIF(?, ''), category),
		    pack_quantity = COALESCE(?, pack_quantity),
		    data_quality = ?,
		    needs_enrichment = ?,
		    updated_at = ?
		WHERE key = ?`,
		row.Name, row.Brand, row.Size, row.Unit, row.Department, row.Category,
		packQuantity, string(quality), needsMore, now, row.Key)
	if err != nil {
		return fmt.Errorf("failed to enrich %s: %w", row.Key, err)
	}
	return nil
}

func primaryOf(codes []string) string {
	if len(codes) == 0 {
		return ""
	}
	return codes[0]
}
