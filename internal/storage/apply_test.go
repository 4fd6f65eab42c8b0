package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axgtan77/anson-catalog-automation/internal/common"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

func TestApplyNewProduct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := newCandidate("1000001", "BREAD WHITE 600G", 45.00)
	c.Barcodes = []string{"9556001234567", "9556007654321"}

	summary, err := store.Apply(ctx, newDecisionSet(newProductDecision(c)), service.Commit)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 2, summary.BarcodesAdded)

	p, err := store.GetProduct(ctx, "1000001")
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.True(t, p.NeedsEnrichment)
	assert.Equal(t, "BREAD WHITE 600G", p.Description)

	history, err := store.GetPriceHistory(ctx, "1000001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsCurrent)
	assert.InDelta(t, 45.00, *history[0].PriceRetail, 0.001)

	barcodes, err := store.GetBarcodes(ctx, "1000001")
	require.NoError(t, err)
	require.Len(t, barcodes, 2)
	assert.True(t, barcodes[0].IsPrimary)
	assert.Equal(t, "9556001234567", barcodes[0].Code)
	assert.False(t, barcodes[1].IsPrimary)
}

func TestApplyDryRunParity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	changeset := newDecisionSet(
		newProductDecision(newCandidate("1000001", "BREAD WHITE 600G", 45.00)),
		newProductDecision(newCandidate("1000002", "OYSTER SAUCE 510G", 12.80)),
	)

	dry, err := store.Apply(ctx, changeset, service.DryRun)
	require.NoError(t, err)

	_, err = store.GetProduct(ctx, "1000001")
	assert.ErrorIs(t, err, common.ErrNotFound, "dry run must not persist anything")

	committed, err := store.Apply(ctx, changeset, service.Commit)
	require.NoError(t, err)
	assert.Equal(t, committed, dry, "dry-run and commit counts must match")

	_, err = store.GetProduct(ctx, "1000001")
	require.NoError(t, err)
}

func TestApplyPriceChangeFlipsCurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := newCandidate("1000001", "BREAD WHITE 600G", 45.00)
	_, err := store.Apply(ctx, newDecisionSet(newProductDecision(first)), service.Commit)
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	old := snap.Products["1000001"].CurrentPrice
	require.NotNil(t, old)

	second := newCandidate("1000001", "BREAD WHITE 600G", 48.00)
	summary, err := store.Apply(ctx, newDecisionSet(model.Decision{
		Key:          "1000001",
		Candidate:    second,
		PriceChanged: true,
		OldPrice:     old,
	}), service.Commit)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PriceChanged)

	history, err := store.GetPriceHistory(ctx, "1000001")
	require.NoError(t, err)
	require.Len(t, history, 2)

	currents := 0
	for _, pr := range history {
		if pr.IsCurrent {
			currents++
			assert.InDelta(t, 48.00, *pr.PriceRetail, 0.001)
		}
	}
	assert.Equal(t, 1, currents, "exactly one current price record")
}

func TestApplyDescriptionChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Apply(ctx,
		newDecisionSet(newProductDecision(newCandidate("1000001", "BREAD WHITE 600G", 45.00))),
		service.Commit)
	require.NoError(t, err)

	c := newCandidate("1000001", "BREAD WHITE 650G", 45.00)
	summary, err := store.Apply(ctx, newDecisionSet(model.Decision{
		Key:                "1000001",
		Candidate:          c,
		DescriptionChanged: true,
		OldDescription:     "BREAD WHITE 600G",
	}), service.Commit)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DescriptionFlagged)

	p, err := store.GetProduct(ctx, "1000001")
	require.NoError(t, err)
	assert.Equal(t, "BREAD WHITE 650G", p.Description)
	assert.Equal(t, model.QualityNeedsReview, p.DataQuality)
	assert.True(t, p.NeedsEnrichment)

	history, err := store.GetPriceHistory(ctx, "1000001")
	require.NoError(t, err)
	assert.Len(t, history, 1, "description change alone adds no price record")
}

func TestApplyDeactivateAndReactivatePreservesHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Apply(ctx,
		newDecisionSet(newProductDecision(newCandidate("1000001", "BREAD WHITE 600G", 45.00))),
		service.Commit)
	require.NoError(t, err)

	cs := model.NewChangeset()
	cs.Deactivate = []string{"1000001"}
	summary, err := store.Apply(ctx, cs, service.Commit)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deactivated)

	p, err := store.GetProduct(ctx, "1000001")
	require.NoError(t, err)
	assert.False(t, p.Active)

	history, err := store.GetPriceHistory(ctx, "1000001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsCurrent, "deactivation leaves price history untouched")

	summary, err = store.Apply(ctx, newDecisionSet(model.Decision{
		Key:         "1000001",
		Candidate:   newCandidate("1000001", "BREAD WHITE 600G", 45.00),
		Reactivated: true,
	}), service.Commit)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Reactivated)

	p, err = store.GetProduct(ctx, "1000001")
	require.NoError(t, err)
	assert.True(t, p.Active)

	history, err = store.GetPriceHistory(ctx, "1000001")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApplyDeactivatingMissingKeyCountsNothing(t *testing.T) {
	store := newTestStore(t)

	cs := model.NewChangeset()
	cs.Deactivate = []string{"9999999"}
	summary, err := store.Apply(context.Background(), cs, service.Commit)
	require.NoError(t, err)
	assert.Zero(t, summary.Deactivated)
}

func TestApplyAtomicityOnConstraintViolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Apply(ctx,
		newDecisionSet(newProductDecision(newCandidate("1000001", "BREAD WHITE 600G", 45.00))),
		service.Commit)
	require.NoError(t, err)

	before, err := store.Stats(ctx)
	require.NoError(t, err)

	// Re-inserting an existing key violates the primary key; the whole
	// batch, including the valid second product, must roll back.
	_, err = store.Apply(ctx, newDecisionSet(
		newProductDecision(newCandidate("1000001", "BREAD WHITE 600G", 45.00)),
		newProductDecision(newCandidate("1000002", "OYSTER SAUCE 510G", 12.80)),
	), service.Commit)
	require.Error(t, err)

	after, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Products, after.Products)
	assert.Equal(t, before.PriceRecords, after.PriceRecords)

	_, err = store.GetProduct(ctx, "1000002")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestApplyLeaseContention(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(
		`INSERT INTO sync_lock (id, run_id, acquired_at) VALUES (1, 'other-run', ?)`,
		time.Now().UTC())
	require.NoError(t, err)

	_, err = store.Apply(ctx,
		newDecisionSet(newProductDecision(newCandidate("1000001", "BREAD WHITE 600G", 45.00))),
		service.Commit)
	assert.ErrorIs(t, err, common.ErrSyncInProgress)
}

func TestApplyStealsStaleLease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(
		`INSERT INTO sync_lock (id, run_id, acquired_at) VALUES (1, 'crashed-run', ?)`,
		time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	_, err = store.Apply(ctx,
		newDecisionSet(newProductDecision(newCandidate("1000001", "BREAD WHITE 600G", 45.00))),
		service.Commit)
	require.NoError(t, err)

	var leases int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM sync_lock`).Scan(&leases))
	assert.Zero(t, leases, "lease released after apply")
}

func TestApplyStatsInvariantsHoldAfterScenario(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Apply(ctx, newDecisionSet(
		newProductDecision(newCandidate("1000001", "BREAD WHITE 600G", 45.00)),
		newProductDecision(newCandidate("1000002", "OYSTER SAUCE 510G", 12.80)),
	), service.Commit)
	require.NoError(t, err)

	_, err = store.Apply(ctx, newDecisionSet(model.Decision{
		Key:          "1000001",
		Candidate:    newCandidate("1000001", "BREAD WHITE 600G", 48.00),
		PriceChanged: true,
	}), service.Commit)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Products)
	assert.Equal(t, 3, stats.PriceRecords)
	assert.Equal(t, 2, stats.CurrentPrices)
	assert.Zero(t, stats.DuplicateCurrent)
	assert.Zero(t, stats.OrphanPriceRecords)
	assert.Zero(t, stats.OrphanBarcodes)
	assert.Zero(t, stats.ProductsNoPrice)
}
