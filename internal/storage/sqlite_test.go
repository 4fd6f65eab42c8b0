package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func ptr(v float64) *float64 { return &v }

func newCandidate(key, desc string, retail float64) *model.ProductCandidate {
	return &model.ProductCandidate{
		Key:          key,
		Description:  desc,
		PriceRetail:  ptr(retail),
		LastModified: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
	}
}

func newDecisionSet(decisions ...model.Decision) *model.Changeset {
	cs := model.NewChangeset()
	for _, d := range decisions {
		cs.Decisions[d.Key] = d
	}
	return cs
}

func newProductDecision(c *model.ProductCandidate) model.Decision {
	return model.Decision{
		Key:         c.Key,
		Candidate:   c,
		New:         true,
		NewBarcodes: c.Barcodes,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
}
