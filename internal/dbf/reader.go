// Package dbf reads and writes FoxPro fixed-record table files, the export
// format of the store's legacy merchandising system.
//
// The layout is a 32-byte header (version byte, little-endian record count,
// header length and record length), a block of 32-byte field descriptors
// terminated by 0x0D, and then recordCount fixed-length records starting at
// the header-length offset. Byte 0 of every record is the deletion marker;
// field bytes start at offset 1.
package dbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Format errors. All three abort the decode pass entirely; partial results
// from a damaged file must not reach synchronization.
var (
	ErrCorruptHeader    = errors.New("dbf: corrupt header")
	ErrTruncatedRecord  = errors.New("dbf: truncated record")
	ErrUnknownFieldType = errors.New("dbf: unknown field type")
)

const (
	headerSize           = 32
	descriptorSize       = 32
	descriptorTerminator = 0x0D
	deletedMarker        = 0x2A // '*'
	activeMarker         = 0x20 // ' '
)

// FieldType is the single-byte type tag from a field descriptor.
type FieldType byte

// Field types supported by the source system.
const (
	TypeCharacter FieldType = 'C'
	TypeNumeric   FieldType = 'N'
	TypeDate      FieldType = 'D' // MMDDYY text
	TypeLogical   FieldType = 'L'
)

// FieldDescriptor describes one column: its name, type, declared byte
// length and byte offset within a record (deletion marker included).
// Descriptors are derived once from the file header and shared read-only.
type FieldDescriptor struct {
	Name     string
	Type     FieldType
	Length   int
	Decimals int
	Offset   int
}

// Value is a decoded field value. Present is false for blank fields;
// Invalid marks a non-blank field whose bytes did not parse for its type.
type Value struct {
	Date    time.Time
	Text    string
	Number  float64
	Type    FieldType
	Bool    bool
	Present bool
	Invalid bool
}

// Record is one non-deleted physical record. Records are owned by the
// reader's consumer only until the next call to Next.
type Record struct {
	values  map[string]Value
	RecNo   int
	Warning bool
}

// Field returns the decoded value for a field name.
func (r *Record) Field(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Text returns the text of a character field, or "" when absent.
func (r *Record) Text(name string) string {
	v, ok := r.values[name]
	if !ok || !v.Present {
		return ""
	}
	return v.Text
}

// Number returns the value of a numeric field and whether it was present
// and well-formed.
func (r *Record) Number(name string) (float64, bool) {
	v, ok := r.values[name]
	if !ok || !v.Present || v.Invalid {
		return 0, false
	}
	return v.Number, true
}

// Date returns the value of a date field and whether it was present and
// well-formed.
func (r *Record) Date(name string) (time.Time, bool) {
	v, ok := r.values[name]
	if !ok || !v.Present || v.Invalid {
		return time.Time{}, false
	}
	return v.Date, true
}

// Reader decodes a table file as a lazy, finite, non-restartable sequence
// of records. Reopen the source to decode again.
type Reader struct {
	src          io.Reader
	now          func() time.Time
	decoder      *charmap.Charmap
	fields       []FieldDescriptor
	buf          []byte
	recordCount  int
	recordLength int
	read         int
	deleted      int
}

// NewReader parses the header and field descriptor block and positions the
// reader at the first record. The clock is only consulted for the
// two-digit-year century rule; it is fixed at construction so one decode
// pass resolves every date identically.
func NewReader(src io.Reader) (*Reader, error) {
	return newReader(src, time.Now)
}

func newReader(src io.Reader, now func() time.Time) (*Reader, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(src, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}

	recordCount := int(binary.LittleEndian.Uint32(header[4:8]))
	headerLength := int(binary.LittleEndian.Uint16(header[8:10]))
	recordLength := int(binary.LittleEndian.Uint16(header[10:12]))

	if headerLength < headerSize+1 || recordLength < 1 {
		return nil, fmt.Errorf("%w: header length %d, record length %d",
			ErrCorruptHeader, headerLength, recordLength)
	}

	fields, consumed, err := readDescriptors(src, headerLength)
	if err != nil {
		return nil, err
	}

	// The record region begins exactly at headerLength; skip any padding
	// between the descriptor terminator and that offset.
	if pad := headerLength - consumed; pad > 0 {
		if _, err := io.CopyN(io.Discard, src, int64(pad)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
		}
	}

	fieldBytes := 0
	for _, f := range fields {
		fieldBytes += f.Length
	}
	if fieldBytes+1 != recordLength {
		return nil, fmt.Errorf("%w: descriptors cover %d bytes but record length is %d",
			ErrCorruptHeader, fieldBytes+1, recordLength)
	}

	return &Reader{
		src:          src,
		now:          now,
		decoder:      charmap.Windows1252,
		fields:       fields,
		buf:          make([]byte, recordLength),
		recordCount:  recordCount,
		recordLength: recordLength,
	}, nil
}

func readDescriptors(src io.Reader, headerLength int) ([]FieldDescriptor, int, error) {
	var fields []FieldDescriptor
	consumed := headerSize
	offset := 1 // field bytes start after the deletion marker

	first := make([]byte, 1)
	rest := make([]byte, descriptorSize-1)

	for {
		if _, err := io.ReadFull(src, first); err != nil {
			return nil, 0, fmt.Errorf("%w: descriptor block: %v", ErrCorruptHeader, err)
		}
		consumed++
		if first[0] == descriptorTerminator {
			break
		}

		if consumed+descriptorSize-1 > headerLength {
			return nil, 0, fmt.Errorf("%w: descriptors overrun header length %d",
				ErrCorruptHeader, headerLength)
		}
		if _, err := io.ReadFull(src, rest); err != nil {
			return nil, 0, fmt.Errorf("%w: descriptor block: %v", ErrCorruptHeader, err)
		}
		consumed += descriptorSize - 1

		raw := append(first[:1:1], rest...)
		name := strings.TrimRight(string(raw[0:11]), "\x00 ")
		ftype := FieldType(raw[11])
		switch ftype {
		case TypeCharacter, TypeNumeric, TypeDate, TypeLogical:
		default:
			return nil, 0, fmt.Errorf("%w: field %q has type %q",
				ErrUnknownFieldType, name, string(rune(ftype)))
		}

		length := int(raw[16])
		fields = append(fields, FieldDescriptor{
			Name:     name,
			Type:     ftype,
			Length:   length,
			Decimals: int(raw[17]),
			Offset:   offset,
		})
		offset += length
	}

	if len(fields) == 0 {
		return nil, 0, fmt.Errorf("%w: no field descriptors", ErrCorruptHeader)
	}
	return fields, consumed, nil
}

// Fields returns the descriptors parsed from the header.
func (r *Reader) Fields() []FieldDescriptor {
	return r.fields
}

// RecordCount returns the record count declared in the header, deleted
// records included.
func (r *Reader) RecordCount() int {
	return r.recordCount
}

// DeletedCount returns how many deleted records have been skipped so far.
func (r *Reader) DeletedCount() int {
	return r.deleted
}

// Next returns the next non-deleted record, or io.EOF after the last one.
// A short read inside the record region returns ErrTruncatedRecord.
func (r *Reader) Next() (*Record, error) {
	for r.read < r.recordCount {
		n, err := io.ReadFull(r.src, r.buf)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: read %d of %d bytes",
				ErrTruncatedRecord, r.read+1, n, r.recordLength)
		}
		r.read++

		if r.buf[0] == deletedMarker {
			r.deleted++
			continue
		}

		return r.decodeRecord(r.buf, r.read), nil
	}
	return nil, io.EOF
}

func (r *Reader) decodeRecord(data []byte, recNo int) *Record {
	rec := &Record{
		values: make(map[string]Value, len(r.fields)),
		RecNo:  recNo,
	}

	for _, f := range r.fields {
		raw := data[f.Offset : f.Offset+f.Length]
		v, warn := r.decodeField(f, raw)
		rec.values[f.Name] = v
		if warn {
			rec.Warning = true
		}
	}
	return rec
}

func (r *Reader) decodeField(f FieldDescriptor, raw []byte) (Value, bool) {
	switch f.Type {
	case TypeCharacter:
		text, warn := r.decodeText(raw)
		text = strings.TrimRight(text, " \x00")
		return Value{Type: f.Type, Text: text, Present: text != ""}, warn

	case TypeNumeric:
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return Value{Type: f.Type}, false
		}
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{Type: f.Type, Text: text, Present: true, Invalid: true}, true
		}
		return Value{Type: f.Type, Text: text, Number: n, Present: true}, false

	case TypeDate:
		return r.decodeDate(f, raw)

	case TypeLogical:
		switch {
		case len(raw) == 0:
			return Value{Type: f.Type}, false
		default:
			switch raw[0] {
			case 'T', 't', 'Y', 'y':
				return Value{Type: f.Type, Bool: true, Present: true}, false
			case 'F', 'f', 'N', 'n':
				return Value{Type: f.Type, Present: true}, false
			case ' ', '?', 0:
				return Value{Type: f.Type}, false
			}
			return Value{Type: f.Type, Present: true, Invalid: true}, true
		}
	}

	// Unknown types are rejected while parsing descriptors.
	return Value{Type: f.Type, Invalid: true}, true
}

// decodeText converts raw field bytes from the source code page. Exports
// occasionally carry stray bytes in free-text fields; those decode to the
// replacement rune and flag the record rather than aborting the file.
func (r *Reader) decodeText(raw []byte) (string, bool) {
	decoded, err := r.decoder.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw), true
	}
	text := string(decoded)
	warn := strings.ContainsRune(text, '�')
	return text, warn
}

// decodeDate parses a 6-digit MMDDYY field. All-blank and all-zero render
// as absent; anything else that does not form a calendar date is invalid.
func (r *Reader) decodeDate(f FieldDescriptor, raw []byte) (Value, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || strings.Trim(text, "0") == "" {
		return Value{Type: f.Type}, false
	}
	if len(text) != 6 {
		return Value{Type: f.Type, Text: text, Present: true, Invalid: true}, true
	}

	month, err1 := strconv.Atoi(text[0:2])
	day, err2 := strconv.Atoi(text[2:4])
	yy, err3 := strconv.Atoi(text[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return Value{Type: f.Type, Text: text, Present: true, Invalid: true}, true
	}

	year := inferCentury(yy, r.now())
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return Value{Type: f.Type, Text: text, Present: true, Invalid: true}, true
	}
	return Value{Type: f.Type, Text: text, Date: date, Present: true}, false
}

// inferCentury resolves a two-digit year: values up to the current year's
// last two digits belong to the current century, everything above it to the
// previous one. The rule must hold identically across runs, so it depends
// only on the wall-clock year.
func inferCentury(yy int, now time.Time) int {
	pivot := now.Year()%100 + 1
	century := now.Year() / 100 * 100
	if yy < pivot {
		return century + yy
	}
	return century - 100 + yy
}
