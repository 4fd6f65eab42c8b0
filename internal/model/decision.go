package model

// Decision is the classification of a single candidate key against the
// persisted catalog. PriceChanged and DescriptionChanged are independent
// and may co-occur on the same key.
type Decision struct {
	Candidate          *ProductCandidate
	OldPrice           *PriceRecord
	OldDescription     string
	NewBarcodes        []string
	Key                string
	New                bool
	Reactivated        bool
	PriceChanged       bool
	DescriptionChanged bool
}

// Unchanged reports whether applying this decision would not mutate the
// store at all.
func (d *Decision) Unchanged() bool {
	return !d.New && !d.Reactivated && !d.PriceChanged &&
		!d.DescriptionChanged && len(d.NewBarcodes) == 0
}

// Changeset is the complete output of one change-detection pass. Decisions
// are keyed by product key; ordering within the source file does not affect
// the result beyond the per-file last-wins rule applied during mapping.
type Changeset struct {
	Decisions  map[string]Decision
	Deactivate []string
}

// NewChangeset returns an empty changeset.
func NewChangeset() *Changeset {
	return &Changeset{Decisions: make(map[string]Decision)}
}
