package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/axgtan77/anson-catalog-automation/internal/common"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

// GetProduct returns one product by key, or common.ErrNotFound.
func (s *SQLiteStorage) GetProduct(ctx context.Context, key string) (*model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT key, description, COALESCE(name, ''), COALESCE(brand, ''),
		       COALESCE(size, ''), COALESCE(unit, ''), COALESCE(department, ''),
		       COALESCE(category, ''), COALESCE(supplier_code, ''),
		       COALESCE(pack_quantity, 0), data_quality,
		       COALESCE(enrichment_notes, ''), active, needs_enrichment,
		       created_at, updated_at
		FROM products WHERE key = ?`, key)

	var p model.Product
	var quality string
	err := row.Scan(&p.Key, &p.Description, &p.Name, &p.Brand, &p.Size, &p.Unit,
		&p.Department, &p.Category, &p.SupplierCode, &p.PackQuantity, &quality,
		&p.EnrichmentNotes, &p.Active, &p.NeedsEnrichment, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", common.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read product: %w", err)
	}
	p.DataQuality = model.DataQuality(quality)
	return &p, nil
}

// GetPriceHistory returns every price record for a product, newest first.
func (s *SQLiteStorage) GetPriceHistory(ctx context.Context, key string) ([]model.PriceRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_key, price_case, price_pack, price_retail, cost,
		       effective_date, is_current, created_at
		FROM prices
		WHERE product_key = ?
		ORDER BY created_at DESC, id DESC`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []model.PriceRecord
	for rows.Next() {
		var pr model.PriceRecord
		var priceCase, pricePack, priceRetail, cost sql.NullFloat64
		var effective sql.NullTime
		if err := rows.Scan(&pr.ID, &pr.ProductKey, &priceCase, &pricePack,
			&priceRetail, &cost, &effective, &pr.IsCurrent, &pr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price record: %w", err)
		}
		pr.PriceCase = floatPtr(priceCase)
		pr.PricePack = floatPtr(pricePack)
		pr.PriceRetail = floatPtr(priceRetail)
		pr.Cost = floatPtr(cost)
		pr.EffectiveDate = effective.Time
		history = append(history, pr)
	}
	return history, rows.Err()
}

// GetBarcodes returns a product's barcodes, primary first.
func (s *SQLiteStorage) GetBarcodes(ctx context.Context, key string) ([]model.Barcode, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_key, code, is_primary, created_at
		FROM barcodes
		WHERE product_key = ?
		ORDER BY is_primary DESC, code`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query barcodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var codes []model.Barcode
	for rows.Next() {
		var b model.Barcode
		if err := rows.Scan(&b.ProductKey, &b.Code, &b.IsPrimary, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan barcode: %w", err)
		}
		codes = append(codes, b)
	}
	return codes, rows.Err()
}

// ActiveCatalog returns every active product joined with its current price
// and primary barcode. A non-zero cutoff restricts the result to products
// updated at or after it.
func (s *SQLiteStorage) ActiveCatalog(ctx context.Context, cutoff time.Time) ([]model.CatalogRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.key, p.description, COALESCE(p.name, ''), COALESCE(p.brand, ''),
		       COALESCE(p.size, ''), COALESCE(p.department, ''),
		       COALESCE(p.category, ''), COALESCE(b.code, ''),
		       pr.price_retail, pr.price_pack, pr.price_case, p.updated_at
		FROM products p
		LEFT JOIN prices pr ON pr.product_key = p.key AND pr.is_current = 1
		LEFT JOIN barcodes b ON b.product_key = p.key AND b.is_primary = 1
		WHERE p.active = 1 AND (? OR p.updated_at >= ?)
		ORDER BY p.key`,
		cutoff.IsZero(), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query active catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var catalog []model.CatalogRow
	for rows.Next() {
		var r model.CatalogRow
		var retail, pack, cs sql.NullFloat64
		if err := rows.Scan(&r.Key, &r.Description, &r.Name, &r.Brand, &r.Size,
			&r.Department, &r.Category, &r.Barcode, &retail, &pack, &cs,
			&r.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		r.PriceRetail = floatPtr(retail)
		r.PricePack = floatPtr(pack)
		r.PriceCase = floatPtr(cs)
		catalog = append(catalog, r)
	}
	return catalog, rows.Err()
}
