package scoring

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Supported upload formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// FormatOf returns the lowercased extension of filename without the dot.
func FormatOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Supported reports whether filename has an accepted extension.
func Supported(filename string) bool {
	switch FormatOf(filename) {
	case FormatCSV, FormatJSON:
		return true
	default:
		return false
	}
}

// ParseFile decodes a bulk upload into input records in source order. The
// whole batch is rejected on the first record that fails coercion.
func ParseFile(filename string, r io.Reader) ([]InputRecord, error) {
	switch FormatOf(filename) {
	case FormatCSV:
		return ParseCSV(r)
	case FormatJSON:
		return ParseJSON(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// ParseCSV reads a header row followed by one record per row.
func ParseCSV(r io.Reader) ([]InputRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty CSV file", ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read CSV header: %v", ErrInvalidInput, err)
	}
	for i, h := range header {
		header[i] = strings.TrimPrefix(h, "\ufeff")
	}

	var records []InputRecord
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read CSV row %d: %v", ErrInvalidInput, row, err)
		}

		m := make(map[string]any, len(header))
		for i, h := range header {
			m[h] = fields[i]
		}
		in, err := FromMap(m)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", row, err)
		}
		records = append(records, in)
	}
	return records, nil
}

// ParseJSON accepts a single object or an array of objects.
func ParseJSON(r io.Reader) ([]InputRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read JSON: %v", ErrInvalidInput, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %v", ErrInvalidInput, err)
	}
	if err := EnsureEOF(dec); err != nil {
		return nil, err
	}

	switch v := doc.(type) {
	case map[string]any:
		in, err := FromMap(v)
		if err != nil {
			return nil, fmt.Errorf("record 1: %w", err)
		}
		return []InputRecord{in}, nil
	case []any:
		records := make([]InputRecord, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %d: %w: expected an object, got %T", i+1, ErrInvalidInput, item)
			}
			in, err := FromMap(obj)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i+1, err)
			}
			records = append(records, in)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: JSON must be an object or an array of objects", ErrInvalidInput)
	}
}

// EnsureEOF rejects anything but whitespace after the first JSON value.
func EnsureEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON document", ErrInvalidInput)
	}
	return nil
}
