package model

import "time"

// ProductCandidate is one row of the daily price-master extract after
// domain mapping. Candidates live only for the duration of a sync pass.
type ProductCandidate struct {
	LastModified time.Time
	Key          string
	Description  string
	SupplierCode string
	Barcodes     []string
	PriceCase    *float64
	PricePack    *float64
	PriceRetail  *float64
	Cost         *float64
}

// PrimaryBarcode returns the candidate's primary barcode, or "" when the
// source row carried none.
func (c *ProductCandidate) PrimaryBarcode() string {
	if len(c.Barcodes) == 0 {
		return ""
	}
	return c.Barcodes[0]
}
