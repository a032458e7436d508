// Package iso639 looks up natural language information by ISO 639 codes.
//
// The reference data is embedded from ISO-639.tsv, taken from
// https://en.wikipedia.org/wiki/List_of_ISO_639-1_codes. A Table indexes the
// records by one column of that file, so the same data can map three-letter
// 639-2/T codes to two-letter 639-1 codes, English names to codes, and so on:
//
//	t, _ := iso639.Build(iso639.Field6392T)
//	rec, _ := t.Lookup("deu")
//	rec.Get(iso639.Field6391) // "de"
package iso639

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Column names of the reference dataset's header row.
const (
	FieldFamily = "Language family"
	FieldName   = "Language name"
	FieldNative = "Native name"
	Field6391   = "639-1"
	Field6392T  = "639-2/T"
	Field6392B  = "639-2/B"
	Field6393   = "639-3"
	Field6396   = "639-6"
	FieldNotes  = "Notes"

	// DefaultKey is the three-letter code standard most lookups are keyed by.
	DefaultKey = Field6392T
)

//go:embed ISO-639.tsv
var embedded []byte

var (
	defaultOnce    sync.Once
	defaultDataset *Dataset
	defaultErr     error
)

// ConfigError is returned when a table is requested for a column the dataset
// does not have.
type ConfigError struct {
	Field string
	Valid []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("iso639: key must be one of %q, got %q", e.Valid, e.Field)
}

// Record is one row of the reference dataset. Empty cells read as "".
type Record struct {
	fields map[string]string
}

// Get returns the value of the named column, or "" when the cell is empty or
// the column does not exist.
func (r Record) Get(field string) string {
	return r.fields[field]
}

// Fields returns a copy of the record's column values.
func (r Record) Fields() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// MarshalJSON renders empty cells as null.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]*string, len(r.fields))
	for k, v := range r.fields {
		if v == "" {
			out[k] = nil
			continue
		}
		v := v
		out[k] = &v
	}
	return json.Marshal(out)
}

// Dataset holds every row of a tab-separated reference file along with its
// header. It is never mutated after Load returns.
type Dataset struct {
	fields  []string
	records []Record
}

// Load parses a tab-separated file whose first row names the columns.
func Load(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	fields := make([]string, len(header))
	for i, h := range header {
		fields[i] = strings.TrimSpace(h)
	}

	ds := &Dataset{fields: fields}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(ds.records)+2, err)
		}
		rec := Record{fields: make(map[string]string, len(fields))}
		for i, name := range fields {
			// Short rows leave trailing columns absent.
			if i < len(row) {
				rec.fields[name] = strings.TrimSpace(row[i])
			} else {
				rec.fields[name] = ""
			}
		}
		ds.records = append(ds.records, rec)
	}
	return ds, nil
}

// Default returns the embedded dataset, parsing it on first use.
func Default() (*Dataset, error) {
	defaultOnce.Do(func() {
		defaultDataset, defaultErr = Load(bytes.NewReader(embedded))
	})
	return defaultDataset, defaultErr
}

// Fields returns the column names in header order.
func (d *Dataset) Fields() []string {
	return append([]string(nil), d.fields...)
}

// Records returns every row, including rows that no table can index.
func (d *Dataset) Records() []Record {
	return append([]Record(nil), d.records...)
}

// Index builds a Table keyed by the given column. Rows whose key cell is empty
// are left out; when two rows share a key the later row wins.
func (d *Dataset) Index(key string) (*Table, error) {
	if !d.hasField(key) {
		return nil, &ConfigError{Field: key, Valid: d.Fields()}
	}
	byKey := make(map[string]Record, len(d.records))
	for _, rec := range d.records {
		k := rec.Get(key)
		if k == "" {
			continue
		}
		byKey[k] = rec
	}
	return &Table{key: key, byKey: byKey}, nil
}

func (d *Dataset) hasField(name string) bool {
	for _, f := range d.fields {
		if f == name {
			return true
		}
	}
	return false
}

// Table maps the values of one column to their full records. It is read-only.
type Table struct {
	key   string
	byKey map[string]Record
}

// Build returns a Table over the embedded dataset keyed by the given column.
func Build(key string) (*Table, error) {
	ds, err := Default()
	if err != nil {
		return nil, fmt.Errorf("load embedded dataset: %w", err)
	}
	return ds.Index(key)
}

// Lookup returns the record whose key column equals k.
func (t *Table) Lookup(k string) (Record, bool) {
	rec, ok := t.byKey[k]
	return rec, ok
}

// KeyField returns the column the table is keyed by.
func (t *Table) KeyField() string { return t.key }

// Len returns the number of indexed keys.
func (t *Table) Len() int { return len(t.byKey) }

// Keys returns the indexed keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
