// Package detect classifies an incoming batch of product candidates
// against a snapshot of the persisted catalog.
package detect

import (
	"log/slog"
	"math"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

// PriceTolerance is the absolute difference below which two prices are
// considered equal. Tier values in the export are rounded to cents.
const PriceTolerance = 0.01

// Detector compares candidates against a catalog snapshot. It never
// touches the store; the resulting changeset drives the apply stage.
type Detector struct {
	logger *slog.Logger
}

// New creates a detector. The logger may be nil.
func New(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Decide classifies every candidate and collects the active products whose
// keys never appeared in the batch. Classification is order-independent:
// decisions are keyed by product key, so re-running an unchanged batch
// yields a changeset with no mutations.
func (d *Detector) Decide(candidates []*model.ProductCandidate, snapshot *service.CatalogSnapshot) *model.Changeset {
	cs := model.NewChangeset()

	for _, c := range candidates {
		cs.Decisions[c.Key] = d.classify(c, snapshot)
	}

	for key, entry := range snapshot.Products {
		if _, seen := cs.Decisions[key]; seen {
			continue
		}
		if entry.Product.Active {
			cs.Deactivate = append(cs.Deactivate, key)
		}
	}

	return cs
}

func (d *Detector) classify(c *model.ProductCandidate, snapshot *service.CatalogSnapshot) model.Decision {
	decision := model.Decision{Key: c.Key, Candidate: c}

	entry, exists := snapshot.Products[c.Key]
	if !exists {
		decision.New = true
		decision.NewBarcodes = c.Barcodes
		return decision
	}

	if !entry.Product.Active {
		decision.Reactivated = true
	}

	if priceDiffers(c, entry.CurrentPrice) {
		decision.PriceChanged = true
		decision.OldPrice = entry.CurrentPrice
	}

	if c.Description != entry.Product.Description {
		decision.DescriptionChanged = true
		decision.OldDescription = entry.Product.Description
		d.logger.Debug("description change flagged",
			slog.String("key", c.Key),
			slog.String("old", entry.Product.Description),
			slog.String("new", c.Description))
	}

	for _, code := range c.Barcodes {
		if !entry.Barcodes[code] {
			decision.NewBarcodes = append(decision.NewBarcodes, code)
		}
	}

	return decision
}

// priceDiffers reports whether any tier or the cost moved by more than the
// tolerance. A product that has never had a price record gains one as a
// price change.
func priceDiffers(c *model.ProductCandidate, current *model.PriceRecord) bool {
	if current == nil {
		return c.PriceCase != nil || c.PricePack != nil || c.PriceRetail != nil || c.Cost != nil
	}

	pairs := [][2]*float64{
		{c.PriceCase, current.PriceCase},
		{c.PricePack, current.PricePack},
		{c.PriceRetail, current.PriceRetail},
		{c.Cost, current.Cost},
	}
	for _, p := range pairs {
		if tierDiffers(p[0], p[1]) {
			return true
		}
	}
	return false
}

func tierDiffers(incoming, persisted *float64) bool {
	switch {
	case incoming == nil && persisted == nil:
		return false
	case incoming == nil || persisted == nil:
		return true
	}
	return math.Abs(*incoming-*persisted) > PriceTolerance
}
