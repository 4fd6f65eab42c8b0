package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

// Stats gathers the health-check summary: row counts, quality breakdown,
// last finalized sync, and the invariant probes a healthy store keeps at
// zero.
func (s *SQLiteStorage) Stats(ctx context.Context) (*model.CatalogStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	stats := &model.CatalogStats{
		QualityBreakdown: make(map[model.DataQuality]int),
	}

	counts := []struct {
		dest  *int
		query string
	}{
		{&stats.Products, `SELECT COUNT(*) FROM products`},
		{&stats.ActiveProducts, `SELECT COUNT(*) FROM products WHERE active = 1`},
		{&stats.PriceRecords, `SELECT COUNT(*) FROM prices`},
		{&stats.CurrentPrices, `SELECT COUNT(*) FROM prices WHERE is_current = 1`},
		{&stats.Barcodes, `SELECT COUNT(*) FROM barcodes`},
		{&stats.ProductsNoPrice, `
			SELECT COUNT(*) FROM products p
			WHERE NOT EXISTS (
				SELECT 1 FROM prices pr WHERE pr.product_key = p.key AND pr.is_current = 1
			)`},
		{&stats.DuplicateCurrent, `
			SELECT COUNT(*) FROM (
				SELECT product_key FROM prices WHERE is_current = 1
				GROUP BY product_key HAVING COUNT(*) > 1
			)`},
		{&stats.OrphanPriceRecords, `
			SELECT COUNT(*) FROM prices pr
			LEFT JOIN products p ON p.key = pr.product_key
			WHERE p.key IS NULL`},
		{&stats.OrphanBarcodes, `
			SELECT COUNT(*) FROM barcodes b
			LEFT JOIN products p ON p.key = b.product_key
			WHERE p.key IS NULL`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to gather stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data_quality, COUNT(*) FROM products GROUP BY data_quality`)
	if err != nil {
		return nil, fmt.Errorf("failed to gather quality breakdown: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var quality string
		var n int
		if err := rows.Scan(&quality, &n); err != nil {
			return nil, fmt.Errorf("failed to scan quality breakdown: %w", err)
		}
		stats.QualityBreakdown[model.DataQuality(quality)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var status string
	var completed sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT status, completed_at FROM sync_log
		WHERE status != ?
		ORDER BY started_at DESC, id DESC LIMIT 1`,
		string(model.RunInProgress)).Scan(&status, &completed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No finalized runs yet.
	case err != nil:
		return nil, fmt.Errorf("failed to read last sync: %w", err)
	default:
		stats.LastSyncStatus = model.RunStatus(status)
		stats.LastSyncAt = completed.Time
	}

	return stats, nil
}
