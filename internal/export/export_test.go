package export

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
	"github.com/axgtan77/anson-catalog-automation/internal/storage"
)

func seedStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	retail := 45.00
	cs := model.NewChangeset()
	c := &model.ProductCandidate{
		Key:         "1000001",
		Description: "BREAD WHITE 600G",
		PriceRetail: &retail,
		Barcodes:    []string{"9556001234567"},
	}
	cs.Decisions[c.Key] = model.Decision{Key: c.Key, Candidate: c, New: true, NewBarcodes: c.Barcodes}
	_, err = store.Apply(ctx, cs, service.Commit)
	require.NoError(t, err)
	return store
}

func TestBuildAndWriteCSV(t *testing.T) {
	store := seedStore(t)

	rows, err := Build(context.Background(), store, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1000001", rows[0].Key)
	assert.Equal(t, "9556001234567", rows[0].Barcode)

	var out strings.Builder
	require.NoError(t, WriteCSV(&out, rows))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "merkey,description"))
	assert.Contains(t, lines[1], "1000001")
	assert.Contains(t, lines[1], "45.00")
}

func TestWriteCSVAbsentPricesAreEmpty(t *testing.T) {
	var out strings.Builder
	require.NoError(t, WriteCSV(&out, []model.CatalogRow{{
		Key:         "1000002",
		Description: "NO PRICE YET",
	}}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], ",,,")
}
