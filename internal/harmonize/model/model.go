package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type DataKind string

const (
	SampleInfo DataKind = "sampleinfo"
	Feature    DataKind = "feature"
)

// ParseDataKind accepts any case-insensitive prefix of a valid kind ("feat", "sample").
func ParseDataKind(s string) (DataKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Feature, nil
	}
	for _, k := range []DataKind{SampleInfo, Feature} {
		if strings.HasPrefix(string(k), s) {
			return k, nil
		}
	}
	return "", NewConfigError("datatype", fmt.Sprintf("invalid data kind %q, must be sampleinfo or feature", s))
}

// FeatureEntry is one observed column (wide) or one feature series (stacked).
type FeatureEntry struct {
	Key       string   // column identity, unique within a table
	Name      string   // raw feature name
	Unit      string   // raw unit string
	Kind      DataKind // sampleinfo | feature
	Values    []string // raw cell values, in reading order
	SampleIDs []string // stacked only: sample id per value
	AliasN    string   // alias name after mapping
	AliasU    string   // alias unit after mapping / conversion
	UStr      string   // unit grammar string handed to conversion
}

// NewFeatureEntry validates the field set and seeds the aliases with the raw
// name and unit so that an alias is always defined.
func NewFeatureEntry(key, name, unit string, kind DataKind, values, sampleIDs []string) (*FeatureEntry, error) {
	if strings.TrimSpace(key) == "" {
		return nil, NewConfigError("key", "feature entry needs a non-empty key")
	}
	if kind != SampleInfo && kind != Feature {
		return nil, NewConfigError("datatype", fmt.Sprintf("invalid data kind %q for %s", kind, key))
	}
	if len(sampleIDs) > 0 && len(sampleIDs) != len(values) {
		return nil, NewConfigError("sampleids", fmt.Sprintf("%s: %d sample ids for %d values", key, len(sampleIDs), len(values)))
	}
	return &FeatureEntry{
		Key:       key,
		Name:      name,
		Unit:      unit,
		Kind:      kind,
		Values:    values,
		SampleIDs: sampleIDs,
		AliasN:    name,
		AliasU:    unit,
	}, nil
}

// Stacked reports whether values are keyed by explicit sample ids.
func (e *FeatureEntry) Stacked() bool { return len(e.SampleIDs) > 0 }

// FeatureTable keeps entries in reading order.
type FeatureTable struct {
	entries []*FeatureEntry
	byKey   map[string]int
}

func NewFeatureTable() *FeatureTable {
	return &FeatureTable{byKey: make(map[string]int)}
}

// Add fails when the key is already taken.
func (t *FeatureTable) Add(e *FeatureEntry) error {
	if _, ok := t.byKey[e.Key]; ok {
		return NewConfigError("key", fmt.Sprintf("duplicate feature key %q", e.Key))
	}
	t.byKey[e.Key] = len(t.entries)
	t.entries = append(t.entries, e)
	return nil
}

func (t *FeatureTable) Len() int                 { return len(t.entries) }
func (t *FeatureTable) Entries() []*FeatureEntry { return t.entries }

func (t *FeatureTable) Get(key string) (*FeatureEntry, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return nil, false
	}
	return t.entries[i], true
}

func (t *FeatureTable) Keys() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Key
	}
	return out
}

func (t *FeatureTable) Names() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Name
	}
	return out
}

func (t *FeatureTable) Units() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Unit
	}
	return out
}

// Summary lists imported entries grouped by data kind.
func (t *FeatureTable) Summary() string {
	var b strings.Builder
	for _, kind := range []DataKind{SampleInfo, Feature} {
		fmt.Fprintf(&b, "The following %s data were imported:\n", kind)
		n := 0
		for _, e := range t.entries {
			if e.Kind != kind {
				continue
			}
			fmt.Fprintf(&b, "  * name: %s, unit: %s\n", e.Key, e.Unit)
			n++
		}
		if n == 0 {
			b.WriteString("None\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Value is a single harmonized cell: a number or a text such as "< 0.5".
type Value struct {
	Num     float64
	Text    string
	Numeric bool
}

func Number(f float64) Value { return Value{Num: f, Numeric: true} }
func Text(s string) Value    { return Value{Text: s} }

func (v Value) String() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Text
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Numeric {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Text)
}

// Column is one harmonized output column.
type Column struct {
	Key    string           `json:"key"`
	Name   string           `json:"name"`
	Unit   string           `json:"unit"`
	Values map[string]Value `json:"values"`
}

// Table is the harmonized output: a unique sample index and a two-level
// (alias name, alias unit) header per column.
type Table struct {
	Index   []string  `json:"index"`
	Columns []*Column `json:"columns"`
}

func (t *Table) Column(key string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return nil, false
}

// Header returns the two header rows (names, units).
func (t *Table) Header() (names, units []string) {
	names = make([]string, len(t.Columns))
	units = make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
		units[i] = c.Unit
	}
	return names, units
}
