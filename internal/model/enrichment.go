package model

// EnrichmentRow is one row of the manually maintained enrichment
// spreadsheet export. It carries descriptive data the price master does not
// have; prices are never enriched from this source.
type EnrichmentRow struct {
	Key          string
	Description  string
	Name         string
	Brand        string
	Size         string
	Unit         string
	Department   string
	Category     string
	Barcodes     []string
	PackQuantity int
	Active       bool
}

// ComputeQuality derives the data-quality state for an enrichment row, in
// the same order the encoding form checks it.
func (r *EnrichmentRow) ComputeQuality() (DataQuality, bool) {
	switch {
	case r.Description == "":
		return QualityNeedsDescription, true
	case r.Name == "":
		return QualityNeedsName, true
	case r.Brand == "":
		return QualityNeedsBrand, true
	case r.Category == "":
		return QualityNeedsCategory, true
	case r.Size == "":
		return QualityNeedsSize, true
	}
	return QualityComplete, false
}

// EnrichmentStats summarizes one enrichment import.
type EnrichmentStats struct {
	Processed     int
	Updated       int
	NotFound      int
	BarcodesAdded int
	Skipped       int
}
