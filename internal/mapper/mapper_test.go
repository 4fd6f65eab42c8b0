package mapper

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axgtan77/anson-catalog-automation/internal/dbf"
)

var exportFields = []dbf.FieldDescriptor{
	{Name: "MERKEY", Type: dbf.TypeCharacter, Length: 7},
	{Name: "MEDESC", Type: dbf.TypeCharacter, Length: 30},
	{Name: "MEWHOP", Type: dbf.TypeNumeric, Length: 10, Decimals: 2},
	{Name: "MERET2", Type: dbf.TypeNumeric, Length: 10, Decimals: 2},
	{Name: "MERETP", Type: dbf.TypeNumeric, Length: 10, Decimals: 2},
	{Name: "MECOS0", Type: dbf.TypeNumeric, Length: 10, Decimals: 2},
	{Name: "MEAN13", Type: dbf.TypeCharacter, Length: 13},
	{Name: "BARCD1", Type: dbf.TypeCharacter, Length: 14},
	{Name: "BARCD2", Type: dbf.TypeCharacter, Length: 14},
	{Name: "SURKEY", Type: dbf.TypeCharacter, Length: 4},
	{Name: "USRDAT", Type: dbf.TypeDate, Length: 6},
}

func decodeRecords(t *testing.T, rows []map[string]any) []*dbf.Record {
	t.Helper()

	w, err := dbf.NewWriter(exportFields)
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, w.Append(row))
	}

	r, err := dbf.NewReader(bytes.NewReader(w.Bytes()))
	require.NoError(t, err)

	var records []*dbf.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

func TestMapCompleteRow(t *testing.T) {
	records := decodeRecords(t, []map[string]any{{
		"MERKEY": "1000001",
		"MEDESC": "BREAD WHITE 600G",
		"MEWHOP": 38.50,
		"MERET2": 42.00,
		"MERETP": 45.00,
		"MECOS0": 31.20,
		"MEAN13": "9556001234567",
		"BARCD1": "9556007654321",
		"SURKEY": "S012",
		"USRDAT": time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
	}})

	m := New(nil)
	c := m.Map(records[0])
	require.NotNil(t, c)

	assert.Equal(t, "1000001", c.Key)
	assert.Equal(t, "BREAD WHITE 600G", c.Description)
	assert.Equal(t, "S012", c.SupplierCode)
	require.NotNil(t, c.PriceRetail)
	assert.InDelta(t, 45.00, *c.PriceRetail, 0.001)
	require.NotNil(t, c.Cost)
	assert.InDelta(t, 31.20, *c.Cost, 0.001)
	assert.Equal(t, []string{"9556001234567", "9556007654321"}, c.Barcodes)
	assert.Equal(t, "9556001234567", c.PrimaryBarcode())
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), c.LastModified)

	assert.Equal(t, 1, m.Mapped())
	assert.Zero(t, m.DroppedTotal())
}

func TestMapDropReasons(t *testing.T) {
	tests := []struct {
		row    map[string]any
		name   string
		reason string
	}{
		{
			name:   "blank key",
			row:    map[string]any{"MEDESC": "NO KEY", "MERETP": 5.00},
			reason: ReasonMissingKey,
		},
		{
			name:   "whitespace key",
			row:    map[string]any{"MERKEY": "       ", "MERETP": 5.00},
			reason: ReasonMissingKey,
		},
		{
			name:   "all price tiers absent",
			row:    map[string]any{"MERKEY": "1000001", "MEDESC": "FREE?"},
			reason: ReasonInvalidPrice,
		},
		{
			name:   "zero retail price",
			row:    map[string]any{"MERKEY": "1000001", "MERETP": 0.0},
			reason: ReasonInvalidPrice,
		},
		{
			name:   "absurd retail price",
			row:    map[string]any{"MERKEY": "1000001", "MERETP": 99999.99},
			reason: ReasonInvalidPrice,
		},
		{
			name:   "negative tier",
			row:    map[string]any{"MERKEY": "1000001", "MERETP": 5.00, "MEWHOP": -1.0},
			reason: ReasonInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := decodeRecords(t, []map[string]any{tt.row})
			m := New(nil)
			c := m.Map(records[0])
			assert.Nil(t, c)
			assert.Equal(t, map[string]int{tt.reason: 1}, m.Dropped())
		})
	}
}

func TestMapInvalidDateDropsRow(t *testing.T) {
	w, err := dbf.NewWriter(exportFields)
	require.NoError(t, err)
	require.NoError(t, w.Append(map[string]any{"MERKEY": "1000001", "MERETP": 5.00}))
	data := w.Bytes()

	// USRDAT is the trailing field of the record.
	copy(data[len(data)-6:], "991599")

	r, err := dbf.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)

	m := New(nil)
	assert.Nil(t, m.Map(rec))
	assert.Equal(t, map[string]int{ReasonInvalidDate: 1}, m.Dropped())
	assert.Equal(t, 1, m.DecodeWarnings())
}

func TestMapAbsentDateIsNotAnError(t *testing.T) {
	records := decodeRecords(t, []map[string]any{
		{"MERKEY": "1000001", "MERETP": 5.00},
	})

	m := New(nil)
	c := m.Map(records[0])
	require.NotNil(t, c)
	assert.True(t, c.LastModified.IsZero())
}

func TestMapOnlyCaseTierIsValid(t *testing.T) {
	records := decodeRecords(t, []map[string]any{
		{"MERKEY": "1000001", "MEWHOP": 120.00},
	})

	m := New(nil)
	c := m.Map(records[0])
	require.NotNil(t, c)
	require.NotNil(t, c.PriceCase)
	assert.Nil(t, c.PriceRetail)
}

func TestMapBarcodeValidation(t *testing.T) {
	records := decodeRecords(t, []map[string]any{{
		"MERKEY": "1000001",
		"MERETP": 5.00,
		"MEAN13": "955600123456X", // non-numeric, skipped
		"BARCD1": "12345",         // too short, skipped
		"BARCD2": "9556001234567",
	}})

	m := New(nil)
	c := m.Map(records[0])
	require.NotNil(t, c)
	assert.Equal(t, []string{"9556001234567"}, c.Barcodes)
	assert.Zero(t, m.DroppedTotal(), "bad barcodes never drop the row")
}

func TestMapDeduplicatesBarcodes(t *testing.T) {
	records := decodeRecords(t, []map[string]any{{
		"MERKEY": "1000001",
		"MERETP": 5.00,
		"MEAN13": "9556001234567",
		"BARCD1": "9556001234567",
	}})

	c := New(nil).Map(records[0])
	require.NotNil(t, c)
	assert.Equal(t, []string{"9556001234567"}, c.Barcodes)
}
