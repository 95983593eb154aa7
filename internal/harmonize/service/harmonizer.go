package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"hydro-harmonizer/internal/harmonize/model"
	"hydro-harmonizer/internal/units"
)

// UnitConverter is the conversion collaborator; *units.Engine implements it.
type UnitConverter interface {
	Convert(ctx context.Context, source, target, formula string) (units.Conversion, error)
}

// Options configure one Harmonizer. Maps and slices are copied when the
// Harmonizer is built and never shared with the caller afterwards.
type Options struct {
	ConvertUnits bool
	TargetUnits  string            // global target, "mg/l" by default
	AliasTargets map[string]string // alias name → target unit
	Overrides    map[string]string // feature key → target unit, wins over everything
	Drop         []string          // feature keys
	Merge        [][]string        // [target, source...]: fill target gaps from sources
	LimitSymbols []string
	Decimal      string
}

func DefaultOptions() Options {
	return Options{
		TargetUnits:  "mg/l",
		LimitSymbols: []string{"<", ">"},
		Decimal:      ",",
	}
}

// Validate checks the option shapes; it does not look at any data.
func (o Options) Validate() error {
	for i, g := range o.Merge {
		if len(g) < 2 {
			return model.NewConfigError("merge", fmt.Sprintf("merge group %d needs a target and at least one source", i))
		}
		for _, k := range g {
			if strings.TrimSpace(k) == "" {
				return model.NewConfigError("merge", fmt.Sprintf("merge group %d has an empty key", i))
			}
		}
	}
	for k, u := range o.Overrides {
		if strings.TrimSpace(u) == "" {
			return model.NewConfigError("override_units", fmt.Sprintf("empty target unit for %s", k))
		}
	}
	if len(o.Decimal) > 1 {
		return model.NewConfigError("decimal", fmt.Sprintf("decimal separator must be one character, got %q", o.Decimal))
	}
	return nil
}

func (o Options) clone() Options {
	out := o
	out.AliasTargets = maps.Clone(o.AliasTargets)
	out.Overrides = maps.Clone(o.Overrides)
	out.Drop = slices.Clone(o.Drop)
	out.LimitSymbols = slices.Clone(o.LimitSymbols)
	out.Merge = make([][]string, len(o.Merge))
	for i, g := range o.Merge {
		out.Merge[i] = slices.Clone(g)
	}
	if out.TargetUnits == "" {
		out.TargetUnits = "mg/l"
	}
	if out.Decimal == "" {
		out.Decimal = ","
	}
	return out
}

// Result is the harmonized table plus every warning raised on the way.
type Result struct {
	Table    *model.Table
	Warnings []string
}

type Harmonizer struct {
	opts   Options
	conv   UnitConverter
	values valueConverter
	log    zerolog.Logger
}

func NewHarmonizer(opts Options, conv UnitConverter, log zerolog.Logger) (*Harmonizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.clone()
	if opts.ConvertUnits && conv == nil {
		return nil, model.NewConfigError("convert_units", "unit conversion requested without a converter")
	}
	return &Harmonizer{
		opts:   opts,
		conv:   conv,
		values: valueConverter{limits: newLimitSplitter(opts.LimitSymbols), decimal: opts.Decimal},
		log:    log,
	}, nil
}

func (h *Harmonizer) Options() Options { return h.opts.clone() }

type run struct {
	*Harmonizer
	res *Result
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.res.Warnings = append(r.res.Warnings, msg)
	r.log.Warn().Msg(msg)
}

// Harmonize builds the output table. Entries are not modified.
func (h *Harmonizer) Harmonize(ctx context.Context, t *model.FeatureTable) (*Result, error) {
	if t == nil {
		return nil, model.NewConfigError("table", "nil feature table")
	}
	r := &run{Harmonizer: h, res: &Result{Table: &model.Table{}}}
	h.log.Info().Int("entries", t.Len()).Bool("convert_units", h.opts.ConvertUnits).Msg("harmonizing")

	index := make([]string, 0)
	inIndex := map[string]bool{}

	for _, e := range t.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if slices.Contains(h.opts.Drop, e.Key) {
			h.log.Info().Str("key", e.Key).Str("name", e.Name).Msg("dropping column")
			continue
		}

		ids := e.SampleIDs
		if !e.Stacked() {
			ids = positionalIDs(len(e.Values))
		}
		for _, id := range ids {
			if !inIndex[id] {
				inIndex[id] = true
				index = append(index, id)
			}
		}

		col := &model.Column{Key: e.Key, Name: e.AliasN, Unit: e.AliasU, Values: map[string]model.Value{}}
		factor, convert := 1.0, h.opts.ConvertUnits && e.Kind == model.Feature
		if convert {
			factor, col.Unit = r.conversion(ctx, e)
		}

		seen := make(map[string]bool, len(ids))
		dup := false
		for i, raw := range e.Values {
			id := ids[i]
			if seen[id] {
				dup = true
				continue
			}
			seen[id] = true
			if strings.TrimSpace(raw) == "" {
				continue
			}
			if convert {
				col.Values[id] = h.values.convert(raw, factor)
			} else {
				col.Values[id] = h.values.parse(raw)
			}
		}
		if dup {
			r.warn("Duplicate sampleids found for %s. Keeping only first occurrence.", e.Key)
		}
		r.res.Table.Columns = append(r.res.Table.Columns, col)
	}
	r.res.Table.Index = index

	for _, g := range h.opts.Merge {
		r.merge(g)
	}
	h.log.Info().Int("columns", len(r.res.Table.Columns)).Int("samples", len(index)).Int("warnings", len(r.res.Warnings)).Msg("harmonized")
	return r.res, nil
}

func positionalIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

// target picks the per-key override, then the curated unit for the alias,
// then the global target.
func (h *Harmonizer) target(e *model.FeatureEntry) string {
	if u, ok := h.opts.Overrides[e.Key]; ok {
		return u
	}
	if u, ok := h.opts.AliasTargets[e.AliasN]; ok {
		return u
	}
	return h.opts.TargetUnits
}

// conversion returns the factor and the output unit for e. Failures fall
// back to factor 1 and the unit alias.
func (r *run) conversion(ctx context.Context, e *model.FeatureEntry) (float64, string) {
	if e.UStr == "" {
		r.warn("Could not parse unit %q for %s, values are not converted.", e.Unit, e.Key)
		return 1, e.AliasU
	}
	target := r.target(e)
	c, err := r.conv.Convert(ctx, e.UStr, target, e.AliasN)
	if err != nil {
		r.warn("Could not convert from %s to %s for %s: %v", e.UStr, target, e.Key, err)
		return 1, e.AliasU
	}
	r.log.Info().Str("key", e.Key).Str("from", e.Unit).Str("to", c.Label).Float64("factor", c.Factor).Msg("converting units")
	return c.Factor, c.Label
}

// merge fills gaps in the first column of g from the others, in order, and
// drops the sources it merged. A missing target skips the group; a missing
// source or one with a different unit is skipped on its own.
func (r *run) merge(g []string) {
	tbl := r.res.Table
	target, ok := tbl.Column(g[0])
	if !ok {
		r.warn("Cannot merge %s: column %s not found.", strings.Join(g, ", "), g[0])
		return
	}
	var merged []string
	for _, k := range g[1:] {
		c, ok := tbl.Column(k)
		if !ok {
			r.warn("Cannot merge %s into %s: column %s not found.", k, target.Key, k)
			continue
		}
		if c.Unit != target.Unit {
			r.warn("Cannot merge %s into %s: units differ (%s vs %s).", k, target.Key, target.Unit, c.Unit)
			continue
		}
		for id, v := range c.Values {
			if _, ok := target.Values[id]; !ok {
				target.Values[id] = v
			}
		}
		merged = append(merged, k)
	}
	if len(merged) == 0 {
		return
	}
	r.log.Info().Str("target", target.Key).Strs("sources", merged).Msg("merged columns")
	tbl.Columns = slices.DeleteFunc(tbl.Columns, func(c *model.Column) bool {
		return c != target && slices.Contains(merged, c.Key)
	})
}
