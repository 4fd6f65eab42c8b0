package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

// Snapshot returns a point-in-time read of every product, its current
// price record and its barcode set. All three reads run inside one
// read transaction so the view is internally consistent.
func (s *SQLiteStorage) Snapshot(ctx context.Context) (*service.CatalogSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snap := &service.CatalogSnapshot{
		TakenAt:  time.Now().UTC(),
		Products: make(map[string]service.SnapshotEntry),
	}

	if err := s.snapshotProducts(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := s.snapshotCurrentPrices(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := s.snapshotBarcodes(ctx, tx, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *SQLiteStorage) snapshotProducts(ctx context.Context, tx *sql.Tx, snap *service.CatalogSnapshot) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT key, description, COALESCE(supplier_code, ''), active,
		       needs_enrichment, data_quality, created_at, updated_at
		FROM products`)
	if err != nil {
		return fmt.Errorf("failed to query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p model.Product
		var quality string
		if err := rows.Scan(&p.Key, &p.Description, &p.SupplierCode, &p.Active,
			&p.NeedsEnrichment, &quality, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan product: %w", err)
		}
		p.DataQuality = model.DataQuality(quality)
		snap.Products[p.Key] = service.SnapshotEntry{
			Product:  p,
			Barcodes: make(map[string]bool),
		}
	}
	return rows.Err()
}

func (s *SQLiteStorage) snapshotCurrentPrices(ctx context.Context, tx *sql.Tx, snap *service.CatalogSnapshot) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, product_key, price_case, price_pack, price_retail, cost,
		       effective_date, created_at
		FROM prices WHERE is_current = 1`)
	if err != nil {
		return fmt.Errorf("failed to query current prices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var pr model.PriceRecord
		var priceCase, pricePack, priceRetail, cost sql.NullFloat64
		var effective sql.NullTime
		if err := rows.Scan(&pr.ID, &pr.ProductKey, &priceCase, &pricePack,
			&priceRetail, &cost, &effective, &pr.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan price record: %w", err)
		}
		pr.PriceCase = floatPtr(priceCase)
		pr.PricePack = floatPtr(pricePack)
		pr.PriceRetail = floatPtr(priceRetail)
		pr.Cost = floatPtr(cost)
		pr.EffectiveDate = effective.Time
		pr.IsCurrent = true

		entry, ok := snap.Products[pr.ProductKey]
		if !ok {
			continue
		}
		record := pr
		entry.CurrentPrice = &record
		snap.Products[pr.ProductKey] = entry
	}
	return rows.Err()
}

func (s *SQLiteStorage) snapshotBarcodes(ctx context.Context, tx *sql.Tx, snap *service.CatalogSnapshot) error {
	rows, err := tx.QueryContext(ctx, `SELECT product_key, code FROM barcodes`)
	if err != nil {
		return fmt.Errorf("failed to query barcodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, code string
		if err := rows.Scan(&key, &code); err != nil {
			return fmt.Errorf("failed to scan barcode: %w", err)
		}
		if entry, ok := snap.Products[key]; ok {
			entry.Barcodes[code] = true
		}
	}
	return rows.Err()
}
