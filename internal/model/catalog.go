package model

import "time"

// CatalogRow is one product in the exported active catalog: the product's
// descriptive data joined with its current price and primary barcode.
type CatalogRow struct {
	LastModified time.Time
	Key          string
	Description  string
	Name         string
	Brand        string
	Size         string
	Department   string
	Category     string
	Barcode      string
	PriceRetail  *float64
	PricePack    *float64
	PriceCase    *float64
}

// CatalogStats is the health-check summary of the persisted catalog.
type CatalogStats struct {
	LastSyncAt         time.Time
	LastSyncStatus     RunStatus
	QualityBreakdown   map[DataQuality]int
	Products           int
	ActiveProducts     int
	PriceRecords       int
	CurrentPrices      int
	Barcodes           int
	ProductsNoPrice    int
	DuplicateCurrent   int
	OrphanPriceRecords int
	OrphanBarcodes     int
}
