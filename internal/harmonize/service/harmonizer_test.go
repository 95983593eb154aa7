package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-harmonizer/internal/harmonize/model"
	"hydro-harmonizer/internal/units"
)

type stubConverter struct {
	factor  float64
	fail    map[string]bool
	targets []string
}

func (s *stubConverter) Convert(_ context.Context, source, target, formula string) (units.Conversion, error) {
	s.targets = append(s.targets, target)
	if s.fail[target] {
		return units.Conversion{}, units.ErrDimensionality
	}
	return units.Conversion{Label: target, Factor: s.factor}, nil
}

func newEntry(t *testing.T, key, unit string, kind model.DataKind, values, ids []string) *model.FeatureEntry {
	t.Helper()
	e, err := model.NewFeatureEntry(key, key, unit, kind, values, ids)
	require.NoError(t, err)
	return e
}

func newTable(t *testing.T, entries ...*model.FeatureEntry) *model.FeatureTable {
	t.Helper()
	tbl := model.NewFeatureTable()
	for _, e := range entries {
		require.NoError(t, tbl.Add(e))
	}
	return tbl
}

func harmonize(t *testing.T, opts Options, conv UnitConverter, tbl *model.FeatureTable) *Result {
	t.Helper()
	h, err := NewHarmonizer(opts, conv, zerolog.Nop())
	require.NoError(t, err)
	res, err := h.Harmonize(context.Background(), tbl)
	require.NoError(t, err)
	return res
}

func column(t *testing.T, res *Result, key string) *model.Column {
	t.Helper()
	c, ok := res.Table.Column(key)
	require.True(t, ok, key)
	return c
}

func TestHarmonizeConvertsStackedValues(t *testing.T) {
	cl := newEntry(t, "Cl", "mg/l", model.Feature, []string{"120", "<0,5", "99"}, []string{"s1", "s2", "s1"})
	cl.UStr = "mg / (1l)"

	opts := DefaultOptions()
	opts.ConvertUnits = true
	opts.AliasTargets = map[string]string{"Cl": "mmol/l"}
	conv := &stubConverter{factor: 0.5}

	res := harmonize(t, opts, conv, newTable(t, cl))

	assert.Equal(t, []string{"s1", "s2"}, res.Table.Index)
	col := column(t, res, "Cl")
	assert.Equal(t, "mmol/l", col.Unit)
	assert.Equal(t, model.Number(60), col.Values["s1"])
	assert.Equal(t, model.Text("< 0.25"), col.Values["s2"])
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Duplicate sampleids found for Cl")
}

func TestHarmonizeFirstOccurrenceWinsEvenWhenEmpty(t *testing.T) {
	e := newEntry(t, "Na", "mg/l", model.Feature, []string{"", "5", "7"}, []string{"a", "a", "b"})
	res := harmonize(t, DefaultOptions(), nil, newTable(t, e))

	col := column(t, res, "Na")
	_, ok := col.Values["a"]
	assert.False(t, ok)
	assert.Equal(t, model.Number(7), col.Values["b"])
	assert.Len(t, res.Warnings, 1)
}

func TestHarmonizeTargetPriority(t *testing.T) {
	a := newEntry(t, "A", "mg/l", model.Feature, []string{"1"}, nil)
	b := newEntry(t, "B", "mg/l", model.Feature, []string{"1"}, nil)
	c := newEntry(t, "C", "mg/l", model.Feature, []string{"1"}, nil)
	for _, e := range []*model.FeatureEntry{a, b, c} {
		e.UStr = "mg / (1l)"
		e.AliasN = "Cl"
	}
	c.AliasN = "Unknown"

	opts := DefaultOptions()
	opts.ConvertUnits = true
	opts.TargetUnits = "ug/l"
	opts.AliasTargets = map[string]string{"Cl": "mmol/l"}
	opts.Overrides = map[string]string{"A": "mol/l"}
	conv := &stubConverter{factor: 1}

	harmonize(t, opts, conv, newTable(t, a, b, c))
	assert.Equal(t, []string{"mol/l", "mmol/l", "ug/l"}, conv.targets)
}

func TestHarmonizeConversionFailureKeepsValues(t *testing.T) {
	ec := newEntry(t, "EC", "uS/cm", model.Feature, []string{"450"}, nil)
	ec.UStr = "uS / (1cm)"
	temp := newEntry(t, "T", "°C", model.Feature, []string{"11,5"}, nil)

	opts := DefaultOptions()
	opts.ConvertUnits = true
	conv := &stubConverter{factor: 2, fail: map[string]bool{"mg/l": true}}

	res := harmonize(t, opts, conv, newTable(t, ec, temp))

	col := column(t, res, "EC")
	assert.Equal(t, "uS/cm", col.Unit)
	assert.Equal(t, model.Number(450), col.Values["0"])
	tc := column(t, res, "T")
	assert.Equal(t, "°C", tc.Unit)
	assert.Equal(t, model.Number(11.5), tc.Values["0"])

	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "Could not convert")
	assert.Contains(t, res.Warnings[1], "Could not parse unit")
}

func TestHarmonizeSampleInfoIsNotConverted(t *testing.T) {
	well := newEntry(t, "Well", "", model.SampleInfo, []string{"P1", "P2"}, nil)
	cl := newEntry(t, "Cl", "mg/l", model.Feature, []string{"1", "2"}, nil)
	cl.UStr = "mg / (1l)"

	opts := DefaultOptions()
	opts.ConvertUnits = true
	conv := &stubConverter{factor: 10}
	res := harmonize(t, opts, conv, newTable(t, well, cl))

	assert.Equal(t, []string{"0", "1"}, res.Table.Index)
	assert.Equal(t, model.Text("P2"), column(t, res, "Well").Values["1"])
	assert.Equal(t, model.Number(20), column(t, res, "Cl").Values["1"])
	assert.Equal(t, []string{"mg/l"}, conv.targets)
}

func TestHarmonizeWithoutConversionParsesValues(t *testing.T) {
	e := newEntry(t, "K", "mg/l", model.Feature, []string{"1,25", "<0,1"}, nil)
	e.AliasU = "mg/l K"

	res := harmonize(t, DefaultOptions(), nil, newTable(t, e))
	col := column(t, res, "K")
	assert.Equal(t, "mg/l K", col.Unit)
	assert.Equal(t, model.Number(1.25), col.Values["0"])
	assert.Equal(t, model.Text("<0,1"), col.Values["1"])
	assert.Empty(t, res.Warnings)
}

func TestHarmonizeMergeAndDrop(t *testing.T) {
	ids := []string{"a", "b", "c"}
	fe1 := newEntry(t, "Fe", "mg/l", model.Feature, []string{"1", "", ""}, ids)
	fe2 := newEntry(t, "Fe.1", "mg/l", model.Feature, []string{"9", "2", ""}, ids)
	fe3 := newEntry(t, "Fe.2", "mg/l", model.Feature, []string{"9", "8", "3"}, ids)
	mn := newEntry(t, "Mn", "mg/l", model.Feature, []string{"1", "1", "1"}, ids)
	mn2 := newEntry(t, "Mn.1", "ug/l", model.Feature, []string{"", "", "4"}, ids)
	junk := newEntry(t, "Opmerking", "", model.SampleInfo, []string{"x", "y", "z"}, ids)

	opts := DefaultOptions()
	opts.Merge = [][]string{{"Fe", "Fe.1", "Fe.2"}, {"Mn", "Mn.1"}, {"Ca", "Ca.1"}}
	opts.Drop = []string{"Opmerking"}

	res := harmonize(t, opts, nil, newTable(t, fe1, fe2, fe3, mn, mn2, junk))

	var keys []string
	for _, c := range res.Table.Columns {
		keys = append(keys, c.Key)
	}
	assert.Equal(t, []string{"Fe", "Mn", "Mn.1"}, keys)

	fe := column(t, res, "Fe")
	assert.Equal(t, model.Number(1), fe.Values["a"])
	assert.Equal(t, model.Number(2), fe.Values["b"])
	assert.Equal(t, model.Number(3), fe.Values["c"])

	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "units differ")
	assert.Contains(t, res.Warnings[1], "column Ca not found")
}

func TestHarmonizeMergeSkipsOnlyMismatchedSource(t *testing.T) {
	ids := []string{"a", "b"}
	a := newEntry(t, "A", "mg/l", model.Feature, []string{"1", ""}, ids)
	b := newEntry(t, "B", "mmol/l", model.Feature, []string{"7", "7"}, ids)
	c := newEntry(t, "C", "mg/l", model.Feature, []string{"9", "5"}, ids)

	opts := DefaultOptions()
	opts.Merge = [][]string{{"A", "B", "X", "C"}}
	res := harmonize(t, opts, nil, newTable(t, a, b, c))

	var keys []string
	for _, col := range res.Table.Columns {
		keys = append(keys, col.Key)
	}
	assert.Equal(t, []string{"A", "B"}, keys)

	col := column(t, res, "A")
	assert.Equal(t, model.Number(1), col.Values["a"])
	assert.Equal(t, model.Number(5), col.Values["b"])
	assert.Equal(t, model.Number(7), column(t, res, "B").Values["b"])

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "Cannot merge B into A: units differ (mg/l vs mmol/l).", res.Warnings[0])
	assert.Equal(t, "Cannot merge X into A: column X not found.", res.Warnings[1])
}

func TestNewHarmonizerValidation(t *testing.T) {
	opts := DefaultOptions()
	opts.Merge = [][]string{{"Fe"}}
	_, err := NewHarmonizer(opts, nil, zerolog.Nop())
	assert.ErrorIs(t, err, model.ErrConfig)

	opts = DefaultOptions()
	opts.ConvertUnits = true
	_, err = NewHarmonizer(opts, nil, zerolog.Nop())
	assert.ErrorIs(t, err, model.ErrConfig)

	opts = DefaultOptions()
	opts.Overrides = map[string]string{"Cl": " "}
	_, err = NewHarmonizer(opts, nil, zerolog.Nop())
	assert.ErrorIs(t, err, model.ErrConfig)

	opts = DefaultOptions()
	opts.Decimal = ",,"
	_, err = NewHarmonizer(opts, nil, zerolog.Nop())
	assert.ErrorIs(t, err, model.ErrConfig)

	_, err = mustHarmonizer(t).Harmonize(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrConfig)
}

func mustHarmonizer(t *testing.T) *Harmonizer {
	t.Helper()
	h, err := NewHarmonizer(DefaultOptions(), nil, zerolog.Nop())
	require.NoError(t, err)
	return h
}

func TestHarmonizerOptionsAreCopied(t *testing.T) {
	targets := map[string]string{"Cl": "mmol/l"}
	opts := DefaultOptions()
	opts.ConvertUnits = true
	opts.AliasTargets = targets
	conv := &stubConverter{factor: 1}
	h, err := NewHarmonizer(opts, conv, zerolog.Nop())
	require.NoError(t, err)

	targets["Cl"] = "ug/l"
	assert.Equal(t, "mmol/l", h.Options().AliasTargets["Cl"])

	got := h.Options()
	got.AliasTargets["Cl"] = "g/l"
	assert.Equal(t, "mmol/l", h.Options().AliasTargets["Cl"])
}

func TestHarmonizeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEntry(t, "Cl", "mg/l", model.Feature, []string{"1"}, nil)
	_, err := mustHarmonizer(t).Harmonize(ctx, newTable(t, e))
	assert.ErrorIs(t, err, context.Canceled)
}
