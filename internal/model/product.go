// Package model defines the core domain types shared across the application.
package model

import "time"

// DataQuality describes how complete a product's descriptive data is.
// Values match the enrichment workflow states used by the catalog team.
type DataQuality string

// Data quality states, ordered roughly by what is missing.
const (
	QualityNeedsDescription DataQuality = "NEEDS_DESCRIPTION"
	QualityNeedsName        DataQuality = "NEEDS_NAME"
	QualityNeedsBrand       DataQuality = "NEEDS_BRAND"
	QualityNeedsCategory    DataQuality = "NEEDS_CATEGORY"
	QualityNeedsSize        DataQuality = "NEEDS_SIZE"
	QualityNeedsReview      DataQuality = "NEEDS_REVIEW"
	QualityComplete         DataQuality = "COMPLETE"
)

// Product is a persisted catalog item. Products are never deleted; presence
// or absence in the daily price-master extract toggles the Active flag.
type Product struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Key             string
	Description     string
	Name            string
	Brand           string
	Size            string
	Unit            string
	Department      string
	Category        string
	SupplierCode    string
	DataQuality     DataQuality
	EnrichmentNotes string
	PackQuantity    int
	Active          bool
	NeedsEnrichment bool
}

// PriceRecord is one entry in a product's price history. History is
// append-only; only the is_current flag is ever flipped, and at most one
// record per product carries it at any committed state.
type PriceRecord struct {
	EffectiveDate time.Time
	CreatedAt     time.Time
	ProductKey    string
	PriceCase     *float64
	PricePack     *float64
	PriceRetail   *float64
	Cost          *float64
	ID            int64
	IsCurrent     bool
}

// Barcode links a scannable code to a product. At most one barcode per
// product is marked primary.
type Barcode struct {
	CreatedAt  time.Time
	ProductKey string
	Code       string
	IsPrimary  bool
}
