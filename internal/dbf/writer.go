package dbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Writer assembles a table file in memory. It exists for fixture
// generation and round-trip verification; production syncs only read.
type Writer struct {
	fields  []FieldDescriptor
	records [][]byte
	recLen  int
}

// NewWriter validates the field layout and computes record offsets.
func NewWriter(fields []FieldDescriptor) (*Writer, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("dbf: writer needs at least one field")
	}

	laid := make([]FieldDescriptor, len(fields))
	offset := 1
	for i, f := range fields {
		switch f.Type {
		case TypeCharacter, TypeNumeric, TypeDate, TypeLogical:
		default:
			return nil, fmt.Errorf("%w: field %q", ErrUnknownFieldType, f.Name)
		}
		if len(f.Name) == 0 || len(f.Name) > 11 {
			return nil, fmt.Errorf("dbf: field name %q must be 1-11 bytes", f.Name)
		}
		if f.Length < 1 || f.Length > 254 {
			return nil, fmt.Errorf("dbf: field %q length %d out of range", f.Name, f.Length)
		}
		laid[i] = f
		laid[i].Offset = offset
		offset += f.Length
	}

	return &Writer{fields: laid, recLen: offset}, nil
}

// Append formats and adds one record. Supported value types are string,
// float64, int, time.Time, bool and nil; a missing or nil value renders
// the field blank.
func (w *Writer) Append(values map[string]any) error {
	return w.append(values, activeMarker)
}

// AppendDeleted adds a record flagged with the deletion marker.
func (w *Writer) AppendDeleted(values map[string]any) error {
	return w.append(values, deletedMarker)
}

// AppendRaw adds a record from pre-encoded bytes, marker included. Used to
// build deliberately malformed fixtures.
func (w *Writer) AppendRaw(record []byte) error {
	if len(record) != w.recLen {
		return fmt.Errorf("dbf: raw record is %d bytes, want %d", len(record), w.recLen)
	}
	w.records = append(w.records, append([]byte(nil), record...))
	return nil
}

func (w *Writer) append(values map[string]any, marker byte) error {
	rec := bytes.Repeat([]byte{' '}, w.recLen)
	rec[0] = marker

	for _, f := range w.fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		encoded, err := encodeFieldValue(f, v)
		if err != nil {
			return err
		}
		copy(rec[f.Offset:f.Offset+f.Length], encoded)
	}

	w.records = append(w.records, rec)
	return nil
}

func encodeFieldValue(f FieldDescriptor, v any) ([]byte, error) {
	switch f.Type {
	case TypeCharacter:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("dbf: field %q wants a string, got %T", f.Name, v)
		}
		encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("dbf: field %q: %w", f.Name, err)
		}
		return padRight(encoded, f.Length, f.Name)

	case TypeNumeric:
		var n float64
		switch t := v.(type) {
		case float64:
			n = t
		case int:
			n = float64(t)
		default:
			return nil, fmt.Errorf("dbf: field %q wants a number, got %T", f.Name, v)
		}
		s := []byte(fmt.Sprintf("%*.*f", f.Length, f.Decimals, n))
		if len(s) > f.Length {
			return nil, fmt.Errorf("dbf: value %v overflows field %q (%d bytes)", n, f.Name, f.Length)
		}
		return s, nil

	case TypeDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("dbf: field %q wants a time.Time, got %T", f.Name, v)
		}
		s := []byte(fmt.Sprintf("%02d%02d%02d", int(t.Month()), t.Day(), t.Year()%100))
		return padRight(s, f.Length, f.Name)

	case TypeLogical:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("dbf: field %q wants a bool, got %T", f.Name, v)
		}
		if b {
			return []byte{'T'}, nil
		}
		return []byte{'F'}, nil
	}

	return nil, fmt.Errorf("%w: field %q", ErrUnknownFieldType, f.Name)
}

func padRight(b []byte, length int, name string) ([]byte, error) {
	if len(b) > length {
		return nil, fmt.Errorf("dbf: value %q overflows field %q (%d bytes)", b, name, length)
	}
	out := bytes.Repeat([]byte{' '}, length)
	copy(out, b)
	return out, nil
}

// Bytes assembles the complete file image.
func (w *Writer) Bytes() []byte {
	headerLength := headerSize + len(w.fields)*descriptorSize + 1

	var buf bytes.Buffer
	header := make([]byte, headerSize)
	header[0] = 0x03
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(w.records)))
	binary.LittleEndian.PutUint16(header[8:10], uint16(headerLength))
	binary.LittleEndian.PutUint16(header[10:12], uint16(w.recLen))
	buf.Write(header)

	for _, f := range w.fields {
		desc := make([]byte, descriptorSize)
		copy(desc[0:11], f.Name)
		desc[11] = byte(f.Type)
		desc[16] = byte(f.Length)
		desc[17] = byte(f.Decimals)
		buf.Write(desc)
	}
	buf.WriteByte(descriptorTerminator)

	for _, rec := range w.records {
		buf.Write(rec)
	}
	return buf.Bytes()
}
