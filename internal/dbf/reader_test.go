package dbf

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = []FieldDescriptor{
	{Name: "MERKEY", Type: TypeCharacter, Length: 7},
	{Name: "MEDESC", Type: TypeCharacter, Length: 30},
	{Name: "MERETP", Type: TypeNumeric, Length: 10, Decimals: 2},
	{Name: "USRDAT", Type: TypeDate, Length: 6},
	{Name: "ACTIVE", Type: TypeLogical, Length: 1},
}

func buildFixture(t *testing.T, records []map[string]any, deleted []map[string]any) []byte {
	t.Helper()

	w, err := NewWriter(testFields)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, w.Append(rec))
	}
	for _, rec := range deleted {
		require.NoError(t, w.AppendDeleted(rec))
	}
	return w.Bytes()
}

func fixedClock(year int) func() time.Time {
	return func() time.Time {
		return time.Date(year, time.June, 15, 0, 0, 0, 0, time.UTC)
	}
}

func readAll(t *testing.T, r *Reader) []*Record {
	t.Helper()

	var records []*Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

func TestReaderRoundTrip(t *testing.T) {
	data := buildFixture(t, []map[string]any{
		{
			"MERKEY": "1000001",
			"MEDESC": "TOMATO PASTE 170G",
			"MERETP": 3.25,
			"USRDAT": time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
			"ACTIVE": true,
		},
		{
			"MERKEY": "1000002",
			"MEDESC": "OYSTER SAUCE 510G",
			"MERETP": 12.80,
		},
	}, nil)

	r, err := newReader(bytes.NewReader(data), fixedClock(2026))
	require.NoError(t, err)
	assert.Equal(t, 2, r.RecordCount())
	assert.Len(t, r.Fields(), 5)

	records := readAll(t, r)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, 1, first.RecNo)
	assert.False(t, first.Warning)
	assert.Equal(t, "1000001", first.Text("MERKEY"))
	assert.Equal(t, "TOMATO PASTE 170G", first.Text("MEDESC"))

	n, ok := first.Number("MERETP")
	require.True(t, ok)
	assert.InDelta(t, 3.25, n, 0.001)

	d, ok := first.Date("USRDAT")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), d)

	flag, ok := first.Field("ACTIVE")
	require.True(t, ok)
	assert.True(t, flag.Present)
	assert.True(t, flag.Bool)

	second := records[1]
	_, ok = second.Date("USRDAT")
	assert.False(t, ok, "blank date should be absent")
	flag, _ = second.Field("ACTIVE")
	assert.False(t, flag.Present)
}

func TestReaderSkipsDeletedRecords(t *testing.T) {
	data := buildFixture(t,
		[]map[string]any{
			{"MERKEY": "1000001", "MEDESC": "KEPT ONE"},
			{"MERKEY": "1000003", "MEDESC": "KEPT TWO"},
		},
		[]map[string]any{
			{"MERKEY": "1000002", "MEDESC": "REMOVED"},
		},
	)

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 3, r.RecordCount())

	records := readAll(t, r)
	require.Len(t, records, 2)
	assert.Equal(t, "1000001", records[0].Text("MERKEY"))
	assert.Equal(t, "1000003", records[1].Text("MERKEY"))
	assert.Equal(t, 1, r.DeletedCount())
}

func TestReaderBlankNumericIsAbsent(t *testing.T) {
	data := buildFixture(t, []map[string]any{
		{"MERKEY": "1000001"},
		{"MERKEY": "1000002", "MERETP": 0.0},
	}, nil)

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	records := readAll(t, r)
	require.Len(t, records, 2)

	_, ok := records[0].Number("MERETP")
	assert.False(t, ok, "blank numeric must not decode to zero")

	n, ok := records[1].Number("MERETP")
	require.True(t, ok, "explicit zero is a present value")
	assert.Zero(t, n)
}

func TestReaderMalformedNumericFlagsRecord(t *testing.T) {
	w, err := NewWriter(testFields)
	require.NoError(t, err)
	require.NoError(t, w.Append(map[string]any{"MERKEY": "1000001"}))
	data := w.Bytes()

	// Corrupt the numeric field bytes of the only record in place.
	recStart := len(data) - w.recLen
	numOffset := recStart + 1 + 7 + 30
	copy(data[numOffset:], "bad value ")

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	records := readAll(t, r)
	require.Len(t, records, 1)

	assert.True(t, records[0].Warning)
	v, ok := records[0].Field("MERETP")
	require.True(t, ok)
	assert.True(t, v.Invalid)
	_, ok = records[0].Number("MERETP")
	assert.False(t, ok)
}

func TestReaderDateHandling(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantDate time.Time
		absent   bool
		invalid  bool
	}{
		{name: "current century", raw: "031526", wantDate: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{name: "previous century", raw: "123199", wantDate: time.Date(1999, time.December, 31, 0, 0, 0, 0, time.UTC)},
		{name: "pivot year stays current", raw: "010100", wantDate: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{name: "all zeros absent", raw: "000000", absent: true},
		{name: "all blanks absent", raw: "      ", absent: true},
		{name: "impossible month", raw: "139901", invalid: true},
		{name: "impossible day", raw: "023226", invalid: true},
		{name: "non-digit bytes", raw: "03xx26", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWriter(testFields)
			require.NoError(t, err)
			require.NoError(t, w.Append(map[string]any{"MERKEY": "1000001"}))
			data := w.Bytes()

			recStart := len(data) - w.recLen
			dateOffset := recStart + 1 + 7 + 30 + 10
			copy(data[dateOffset:], tt.raw)

			r, err := newReader(bytes.NewReader(data), fixedClock(2026))
			require.NoError(t, err)
			records := readAll(t, r)
			require.Len(t, records, 1)

			v, ok := records[0].Field("USRDAT")
			require.True(t, ok)
			switch {
			case tt.absent:
				assert.False(t, v.Present)
				assert.False(t, v.Invalid)
			case tt.invalid:
				assert.True(t, v.Invalid)
				assert.True(t, records[0].Warning)
			default:
				d, ok := records[0].Date("USRDAT")
				require.True(t, ok)
				assert.Equal(t, tt.wantDate, d)
			}
		})
	}
}

func TestInferCentury(t *testing.T) {
	now := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2000, inferCentury(0, now))
	assert.Equal(t, 2026, inferCentury(26, now))
	assert.Equal(t, 1927, inferCentury(27, now))
	assert.Equal(t, 1999, inferCentury(99, now))
}

func TestReaderStrayBytesWarnButKeepRecord(t *testing.T) {
	w, err := NewWriter(testFields)
	require.NoError(t, err)
	require.NoError(t, w.Append(map[string]any{"MERKEY": "1000001", "MEDESC": "PLAIN"}))
	data := w.Bytes()

	// 0x81 has no assignment in the source code page.
	recStart := len(data) - w.recLen
	data[recStart+1+7] = 0x81

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	records := readAll(t, r)
	require.Len(t, records, 1)

	assert.True(t, records[0].Warning)
	assert.Equal(t, "1000001", records[0].Text("MERKEY"))
	assert.NotEmpty(t, records[0].Text("MEDESC"))
}

func TestReaderTruncatedRecordAborts(t *testing.T) {
	data := buildFixture(t, []map[string]any{
		{"MERKEY": "1000001"},
		{"MERKEY": "1000002"},
	}, nil)

	r, err := NewReader(bytes.NewReader(data[:len(data)-10]))
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, ErrTruncatedRecord)
}

func TestReaderCorruptHeader(t *testing.T) {
	t.Run("file shorter than header", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader([]byte{0x03, 0x01}))
		assert.ErrorIs(t, err, ErrCorruptHeader)
	})

	t.Run("record length disagrees with descriptors", func(t *testing.T) {
		data := buildFixture(t, []map[string]any{{"MERKEY": "1000001"}}, nil)
		binary.LittleEndian.PutUint16(data[10:12], 9999)
		_, err := NewReader(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrCorruptHeader)
	})

	t.Run("descriptor block never terminates", func(t *testing.T) {
		data := buildFixture(t, []map[string]any{{"MERKEY": "1000001"}}, nil)
		termOffset := headerSize + len(testFields)*descriptorSize
		data[termOffset] = 'C'
		_, err := NewReader(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrCorruptHeader)
	})
}

func TestReaderUnknownFieldType(t *testing.T) {
	data := buildFixture(t, []map[string]any{{"MERKEY": "1000001"}}, nil)
	data[headerSize+11] = 'M'

	_, err := NewReader(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrUnknownFieldType)
}
