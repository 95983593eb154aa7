package service

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"hydro-harmonizer/internal/harmonize/model"
)

// MapperDict maps reference-vocabulary keys to aliases. Keys are unique and
// keep their insertion order, which fixes tie-breaks and last-write-wins.
type MapperDict struct {
	keys []string
	m    map[string]string
}

func NewMapperDict() *MapperDict {
	return &MapperDict{m: make(map[string]string)}
}

// DictFromMap sorts keys so the result does not depend on map iteration.
func DictFromMap(m map[string]string) *MapperDict {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := NewMapperDict()
	for _, k := range keys {
		d.Set(k, m[k])
	}
	return d
}

// IdentityDict maps every string to itself.
func IdentityDict(in []string) *MapperDict {
	d := NewMapperDict()
	for _, s := range in {
		d.Set(s, s)
	}
	return d
}

// Set overwrites the value of an existing key in place.
func (d *MapperDict) Set(key, alias string) {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = alias
}

func (d *MapperDict) Get(key string) (string, bool) {
	v, ok := d.m[key]
	return v, ok
}

func (d *MapperDict) Len() int { return len(d.keys) }

func (d *MapperDict) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *MapperDict) Map() map[string]string {
	out := make(map[string]string, len(d.m))
	for k, v := range d.m {
		out[k] = v
	}
	return out
}

// tidied rewrites keys with the mapper's normalization plus Tidy. Keys that
// collapse onto the same string keep the last value.
func (d *MapperDict) tidied(replace []Rule, remove []string) *MapperDict {
	keys := StringList(d.keys).Replace(replace).Remove(remove).Tidy()
	out := NewMapperDict()
	for i, k := range keys {
		out.Set(k, d.m[d.keys[i]])
	}
	return out
}

// LoadDictFile reads a flat key→alias mapping from .json, .yaml or .yml.
func LoadDictFile(path string) (*MapperDict, error) {
	var decode func([]byte, any) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decode = json.Unmarshal
	case ".yaml", ".yml":
		decode = yaml.Unmarshal
	default:
		return nil, model.NewConfigError("dict", fmt.Sprintf("unsupported dictionary file %s", path))
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dict %s: %w", path, err)
	}
	m := map[string]string{}
	if err := decode(b, &m); err != nil {
		return nil, fmt.Errorf("parse dict %s: %w", path, err)
	}
	return DictFromMap(m), nil
}

// Save writes the dictionary as indented JSON in key order.
func (d *MapperDict) Save(path string) error {
	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range d.keys {
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(d.m[k])
		fmt.Fprintf(&b, "  %s: %s", kb, vb)
		if i < len(d.keys)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

//go:embed reference/features.yaml
var referenceFS embed.FS

// ReferenceFeature is one curated entry: the names it is known by, its alias
// and, optionally, the unit it should be reported in.
type ReferenceFeature struct {
	Alias      string   `yaml:"alias"`
	Names      []string `yaml:"names"`
	TargetUnit string   `yaml:"target_unit"`
	CAS        string   `yaml:"cas"`
}

func loadReference() ([]ReferenceFeature, error) {
	b, err := referenceFS.ReadFile("reference/features.yaml")
	if err != nil {
		return nil, err
	}
	var doc struct {
		Features []ReferenceFeature `yaml:"features"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse reference table: %w", err)
	}
	return doc.Features, nil
}

// DefaultNameDict maps every curated name (and the alias itself) to the alias.
func DefaultNameDict() (*MapperDict, error) {
	feats, err := loadReference()
	if err != nil {
		return nil, err
	}
	d := NewMapperDict()
	for _, f := range feats {
		d.Set(f.Alias, f.Alias)
		for _, n := range f.Names {
			d.Set(n, f.Alias)
		}
	}
	return d, nil
}

// DefaultUnitTargets maps aliases to their curated reporting unit.
func DefaultUnitTargets() (map[string]string, error) {
	feats, err := loadReference()
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, f := range feats {
		if f.TargetUnit != "" {
			out[f.Alias] = f.TargetUnit
		}
	}
	return out, nil
}

// VocabularyClient is the part of the vocabulary collaborator the dictionary
// builders need.
type VocabularyClient interface {
	CASNumber(ctx context.Context, name string) (string, error)
	CID(ctx context.Context, name string) (int, error)
}

// CASDict maps names to CAS numbers; failed lookups map to "".
func CASDict(ctx context.Context, c VocabularyClient, names []string) *MapperDict {
	d := NewMapperDict()
	for _, n := range names {
		cas, err := c.CASNumber(ctx, n)
		if err != nil {
			cas = ""
		}
		d.Set(n, cas)
	}
	return d
}

// CIDDict maps names to PubChem compound ids; failed lookups map to "".
func CIDDict(ctx context.Context, c VocabularyClient, names []string) *MapperDict {
	d := NewMapperDict()
	for _, n := range names {
		v := ""
		if cid, err := c.CID(ctx, n); err == nil && cid > 0 {
			v = fmt.Sprint(cid)
		}
		d.Set(n, v)
	}
	return d
}

// TranslateFunc translates a batch; the vocab package supplies one with retries.
type TranslateFunc func(ctx context.Context, texts []string) ([]string, error)

// TranslationDict maps each name to its translation.
func TranslationDict(ctx context.Context, translate TranslateFunc, names []string) (*MapperDict, error) {
	out, err := translate(ctx, names)
	if err != nil {
		return nil, err
	}
	if len(out) != len(names) {
		return nil, fmt.Errorf("translation returned %d strings for %d names", len(out), len(names))
	}
	d := NewMapperDict()
	for i, n := range names {
		d.Set(n, out[i])
	}
	return d, nil
}
