// Package enrich reads the enrichment spreadsheet export, the manually
// maintained CSV that carries descriptive data the price master lacks.
package enrich

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

// Column headers recognized in the export, matched case-insensitively.
const (
	colKey          = "MERKEY"
	colDescription  = "DESCRIPTION"
	colName         = "NAME"
	colBrand        = "BRAND"
	colSize         = "SIZE"
	colUnit         = "UNIT"
	colPackQuantity = "PACK_QTY"
	colDepartment   = "DEPARTMENT"
	colCategory     = "CATEGORY"
)

var barcodeColumns = []string{"BARCD1", "BARCD2", "BARCD3", "BARCD4", "BARCD5"}

// Read parses an enrichment CSV. The first row is the header; columns may
// appear in any order, and unknown columns are ignored so the spreadsheet
// can grow without breaking the import.
func Read(r io.Reader) ([]model.EnrichmentRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	if _, ok := cols[colKey]; !ok {
		return nil, fmt.Errorf("header row has no %s column", colKey)
	}

	var enrichRows []model.EnrichmentRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row := model.EnrichmentRow{
			Key:         cell(colKey),
			Description: cell(colDescription),
			Name:        cell(colName),
			Brand:       cell(colBrand),
			Size:        cell(colSize),
			Unit:        cell(colUnit),
			Department:  cell(colDepartment),
			Category:    cell(colCategory),
		}

		if qty := cell(colPackQuantity); qty != "" {
			n, err := strconv.Atoi(qty)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad pack quantity %q", line, qty)
			}
			row.PackQuantity = n
		}

		for _, col := range barcodeColumns {
			if code := cell(col); code != "" {
				row.Barcodes = append(row.Barcodes, code)
			}
		}

		enrichRows = append(enrichRows, row)
	}
	return enrichRows, nil
}
