// Package mapper interprets decoded price-master records as product
// candidates, applying the source system's field contract and validity
// rules.
package mapper

import (
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/axgtan77/anson-catalog-automation/internal/dbf"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

// Field names from the merchandising export. These are the external
// contract with the data source, not names this system chose.
const (
	fieldKey          = "MERKEY"
	fieldDescription  = "MEDESC"
	fieldPriceCase    = "MEWHOP"
	fieldPricePack    = "MERET2"
	fieldPriceRetail  = "MERETP"
	fieldCost         = "MECOS0"
	fieldBarcode      = "MEAN13"
	fieldSupplierCode = "SURKEY"
	fieldModified     = "USRDAT"
)

var supplementaryBarcodes = []string{"BARCD1", "BARCD2", "BARCD3", "BARCD4", "BARCD5"}

// Drop reasons, reported in aggregate by the engine.
const (
	ReasonMissingKey   = "missing key"
	ReasonInvalidPrice = "invalid price"
	ReasonInvalidDate  = "invalid date"
)

// maxRetailPrice rejects values that indicate a corrupt numeric field.
// Nothing in the store sells for five figures.
const maxRetailPrice = 10000.0

var barcodePattern = regexp.MustCompile(`^[0-9]{8,14}$`)

// Mapper accumulates per-reason drop counters across Map calls. Counters
// only; dropped rows are not retained.
type Mapper struct {
	logger   *slog.Logger
	dropped  map[string]int
	warnings int
	mapped   int
}

// New creates a mapper. A nil logger disables drop logging.
func New(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mapper{
		logger:  logger,
		dropped: make(map[string]int),
	}
}

// Map converts one decoded record to a candidate. A nil result means the
// row was dropped and counted.
func (m *Mapper) Map(rec *dbf.Record) *model.ProductCandidate {
	if rec.Warning {
		m.warnings++
	}

	key := strings.TrimSpace(rec.Text(fieldKey))
	if key == "" {
		m.drop(rec, ReasonMissingKey, "")
		return nil
	}

	candidate := &model.ProductCandidate{
		Key:          key,
		Description:  strings.TrimSpace(rec.Text(fieldDescription)),
		SupplierCode: strings.TrimSpace(rec.Text(fieldSupplierCode)),
		PriceCase:    numericField(rec, fieldPriceCase),
		PricePack:    numericField(rec, fieldPricePack),
		PriceRetail:  numericField(rec, fieldPriceRetail),
		Cost:         numericField(rec, fieldCost),
	}

	if !m.validPrices(candidate) {
		m.drop(rec, ReasonInvalidPrice, key)
		return nil
	}

	if v, ok := rec.Field(fieldModified); ok && v.Invalid {
		m.drop(rec, ReasonInvalidDate, key)
		return nil
	}
	if d, ok := rec.Date(fieldModified); ok {
		candidate.LastModified = d
	}

	candidate.Barcodes = collectBarcodes(rec)
	m.mapped++
	return candidate
}

// validPrices requires at least one tier present and, when the retail tier
// is present, a positive value under the sanity ceiling. Negative values
// on any tier indicate a corrupt field.
func (m *Mapper) validPrices(c *model.ProductCandidate) bool {
	if c.PriceCase == nil && c.PricePack == nil && c.PriceRetail == nil {
		return false
	}
	for _, p := range []*float64{c.PriceCase, c.PricePack, c.PriceRetail, c.Cost} {
		if p != nil && *p < 0 {
			return false
		}
	}
	if c.PriceRetail != nil && (*c.PriceRetail <= 0 || *c.PriceRetail > maxRetailPrice) {
		return false
	}
	return true
}

func (m *Mapper) drop(rec *dbf.Record, reason, key string) {
	m.dropped[reason]++
	m.logger.Debug("dropped record",
		slog.Int("record", rec.RecNo),
		slog.String("reason", reason),
		slog.String("key", key))
}

// Dropped returns the per-reason drop counters accumulated so far.
func (m *Mapper) Dropped() map[string]int {
	out := make(map[string]int, len(m.dropped))
	for reason, n := range m.dropped {
		out[reason] = n
	}
	return out
}

// DroppedTotal returns the total number of dropped rows.
func (m *Mapper) DroppedTotal() int {
	total := 0
	for _, n := range m.dropped {
		total += n
	}
	return total
}

// Mapped returns how many rows mapped successfully.
func (m *Mapper) Mapped() int {
	return m.mapped
}

// DecodeWarnings returns how many records carried a decode warning.
func (m *Mapper) DecodeWarnings() int {
	return m.warnings
}

func numericField(rec *dbf.Record, name string) *float64 {
	n, ok := rec.Number(name)
	if !ok {
		return nil
	}
	return &n
}

// collectBarcodes gathers the primary and supplementary barcode fields,
// keeping the primary first and silently skipping malformed or duplicate
// codes. Barcodes are advisory data; a bad one never drops the row.
func collectBarcodes(rec *dbf.Record) []string {
	var codes []string
	seen := make(map[string]bool)

	appendCode := func(raw string) {
		code := strings.TrimSpace(raw)
		if code == "" || seen[code] || !barcodePattern.MatchString(code) {
			return
		}
		seen[code] = true
		codes = append(codes, code)
	}

	appendCode(rec.Text(fieldBarcode))
	for _, name := range supplementaryBarcodes {
		appendCode(rec.Text(name))
	}
	return codes
}
