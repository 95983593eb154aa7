package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-harmonizer/internal/harmonize/model"
)

func mapNames(t *testing.T, m *Mapper, inputs ...string) *model.MatchReport {
	t.Helper()
	headers := make([]string, len(inputs))
	for i := range inputs {
		headers[i] = "col" + string(rune('A'+i))
	}
	rep, err := m.Map(context.Background(), headers, inputs)
	require.NoError(t, err)
	require.Len(t, rep.Records, len(inputs))
	return rep
}

func TestMapperExactWithFallback(t *testing.T) {
	dict, err := DefaultNameDict()
	require.NoError(t, err)
	m := NewNameMapper(zerolog.Nop())
	m.Dict = dict

	rep := mapNames(t, m, "Chloride", "Natrium icp", "Onbekend")

	assert.Equal(t, "Cl", rep.Records[0].Alias)
	assert.Equal(t, model.MethodExact, rep.Records[0].Method)
	assert.Equal(t, "Natrium", rep.Records[1].Modified)
	assert.Equal(t, "Na", rep.Records[1].Alias)
	assert.False(t, rep.Records[2].Matched())
	assert.Equal(t, "Onbekend", rep.Records[2].Alias)
	assert.Empty(t, rep.Records[2].Found)
	assert.False(t, rep.HasTidied)
}

func TestMapperAllowEmptyAliases(t *testing.T) {
	m := NewNameMapper(zerolog.Nop())
	m.AllowEmptyAliases = true
	m.Dict = DictFromMap(map[string]string{"Chloride": "Cl"})

	rep := mapNames(t, m, "Chloride", "Onbekend")
	assert.Equal(t, "Cl", rep.Records[0].Alias)
	assert.Empty(t, rep.Records[1].Alias)
}

func TestMapperNilDictMatchesNothing(t *testing.T) {
	m := NewNameMapper(zerolog.Nop())
	rep := mapNames(t, m, "Chloride")
	assert.False(t, rep.Records[0].Matched())
	assert.Equal(t, "Chloride", rep.Records[0].Alias)
}

func TestMapperEarlierMethodWins(t *testing.T) {
	d := NewMapperDict()
	d.Set("chloride", "Cl")
	d.Set("sulfaat", "SO4")

	m := NewNameMapper(zerolog.Nop())
	m.Dict = d
	require.NoError(t, m.SetMethods("ex", "fu"))
	assert.Equal(t, []model.Method{model.MethodExact, model.MethodFuzzy}, m.Methods)

	rep := mapNames(t, m, "chloride", "sulfaatt")
	require.True(t, rep.HasTidied)

	assert.Equal(t, model.MethodExact, rep.Records[0].Method)
	assert.Equal(t, "chloride", rep.Records[0].Searched)
	assert.Zero(t, rep.Records[0].Score)

	assert.Equal(t, model.MethodFuzzy, rep.Records[1].Method)
	assert.Equal(t, "sulfaat", rep.Records[1].Found)
	assert.Equal(t, "SO4", rep.Records[1].Alias)
	assert.Equal(t, 93.0, rep.Records[1].Score)
}

func TestMapperMethodOrderDecidesAlias(t *testing.T) {
	// both keys tidy to "chloride"; the tidied dictionary keeps the last one
	dict := DictFromMap(map[string]string{"Chloride": "Cl", "chloride": "chl"})

	m := NewNameMapper(zerolog.Nop())
	m.Dict = dict
	require.NoError(t, m.SetMethods("exact", "fuzzy"))
	rep := mapNames(t, m, "Chloride")
	assert.Equal(t, model.MethodExact, rep.Records[0].Method)
	assert.Equal(t, "Cl", rep.Records[0].Alias)

	m = NewNameMapper(zerolog.Nop())
	m.Dict = dict
	require.NoError(t, m.SetMethods("fuzzy"))
	rep = mapNames(t, m, "Chloride")
	assert.Equal(t, model.MethodFuzzy, rep.Records[0].Method)
	assert.Equal(t, "chl", rep.Records[0].Alias)
	assert.Equal(t, 100.0, rep.Records[0].Score)
}

func TestMapperFuzzyRespectsMinScore(t *testing.T) {
	m := NewNameMapper(zerolog.Nop())
	m.Dict = DictFromMap(map[string]string{"NH4": "NH4"})
	require.NoError(t, m.SetMethods("fuzzy"))

	// "Na" scores 40 against "nh4" and needs 100 at this length
	rep := mapNames(t, m, "Na")
	assert.False(t, rep.Records[0].Matched())
	assert.Equal(t, "na", rep.Records[0].Tidied)
}

func TestMapperASCII(t *testing.T) {
	m := NewNameMapper(zerolog.Nop())
	m.Dict = DictFromMap(map[string]string{"Nitraat-N": "NO3"})
	require.NoError(t, m.SetMethods("exact", "ascii"))

	rep := mapNames(t, m, "NITRAAT-N")
	assert.Equal(t, model.MethodASCII, rep.Records[0].Method)
	assert.Equal(t, "nitraatn", rep.Records[0].Found)
	assert.Equal(t, "NO3", rep.Records[0].Alias)
}

func TestMapperEmptyAliasHitIsMiss(t *testing.T) {
	m := NewNameMapper(zerolog.Nop())
	m.Dict = DictFromMap(map[string]string{"x": ""})

	rep := mapNames(t, m, "x")
	assert.False(t, rep.Records[0].Matched())
	assert.Equal(t, "x", rep.Records[0].Alias)
}

func TestMapperStripParentheses(t *testing.T) {
	m := NewNameMapper(zerolog.Nop())
	m.Dict = DictFromMap(map[string]string{"Calcium": "Ca"})
	m.StripParentheses = true

	rep := mapNames(t, m, "Calcium (opgelost)")
	assert.Equal(t, "Calcium", rep.Records[0].Modified)
	assert.Equal(t, "Ca", rep.Records[0].Alias)
}

type stubLookup map[string][2]string

func (s stubLookup) LookupByName(_ context.Context, name string) (string, string, error) {
	v, ok := s[name]
	if !ok {
		return "", "", errors.New("no compound")
	}
	return v[0], v[1], nil
}

func TestMapperLookup(t *testing.T) {
	m := NewNameMapper(zerolog.Nop())
	m.Lookup = stubLookup{"Chloride": {"chloride", "Cl-"}, "Natrium": {"sodium", ""}}
	require.NoError(t, m.SetMethods("pubchem"))

	rep := mapNames(t, m, "Chloride", "Natrium", "Onbekend")
	assert.Equal(t, "Cl-", rep.Records[0].Alias)
	assert.Equal(t, "chloride", rep.Records[0].Found)
	assert.Equal(t, "sodium", rep.Records[1].Alias)
	assert.False(t, rep.Records[2].Matched())
}

func TestMapperErrors(t *testing.T) {
	m := NewNameMapper(zerolog.Nop())
	assert.ErrorIs(t, m.SetMethods("bogus"), model.ErrConfig)
	assert.Equal(t, []model.Method{model.MethodExact}, m.Methods)

	_, err := m.Map(context.Background(), []string{"a"}, []string{"a", "b"})
	assert.ErrorIs(t, err, model.ErrConfig)

	m.Methods = []model.Method{"levenshtein"}
	_, err = m.Map(context.Background(), []string{"a"}, []string{"a"})
	assert.ErrorIs(t, err, model.ErrConfig)

	rep, err := NewNameMapper(zerolog.Nop()).Map(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Records)
}

func TestUnitMapperAndApply(t *testing.T) {
	tbl := model.NewFeatureTable()
	for _, e := range []struct{ key, unit string }{{"Cl", "mg/l"}, {"NO3", "mg N/l"}, {"T", "°C"}} {
		fe, err := model.NewFeatureEntry(e.key, e.key, e.unit, model.Feature, nil, nil)
		require.NoError(t, err)
		require.NoError(t, tbl.Add(fe))
	}

	m := NewUnitMapper(zerolog.Nop())
	rep, err := m.Map(context.Background(), tbl.Keys(), tbl.Units())
	require.NoError(t, err)
	assert.Equal(t, model.FieldUnit, rep.Field)
	assert.Equal(t, "Units", rep.SheetName())

	assert.Equal(t, model.MethodRegex, rep.Records[0].Method)
	assert.Equal(t, "mg / (1l)", rep.Records[0].Alias)
	assert.Equal(t, "mg / (1l)|N", rep.Records[1].Alias)
	assert.False(t, rep.Records[2].Matched())

	ApplyUnitReport(tbl, rep, m.Grammar)
	cl, _ := tbl.Get("Cl")
	assert.Equal(t, "mg/l", cl.AliasU)
	assert.Equal(t, "mg / (1l)", cl.UStr)
	temp, _ := tbl.Get("T")
	assert.Equal(t, "°C", temp.AliasU)
	assert.Empty(t, temp.UStr)
}

func TestApplyUnitReportDictionaryHit(t *testing.T) {
	tbl := model.NewFeatureTable()
	fe, err := model.NewFeatureEntry("EC", "EC", "microS/cm", model.Feature, nil, nil)
	require.NoError(t, err)
	require.NoError(t, tbl.Add(fe))

	m := NewUnitMapper(zerolog.Nop())
	m.Dict = DictFromMap(map[string]string{"microS/cm": "uS/cm"})
	require.NoError(t, m.SetMethods("exact"))
	rep, err := m.Map(context.Background(), tbl.Keys(), tbl.Units())
	require.NoError(t, err)

	ApplyUnitReport(tbl, rep, nil)
	assert.Equal(t, "uS/cm", fe.AliasU)
	assert.Equal(t, "uS / (1cm)", fe.UStr)
}

func TestApplyNameReportKeepsRawNameForEmptyAlias(t *testing.T) {
	tbl := model.NewFeatureTable()
	for _, n := range []string{"Chloride", "Onbekend"} {
		fe, err := model.NewFeatureEntry(n, n, "", model.Feature, nil, nil)
		require.NoError(t, err)
		require.NoError(t, tbl.Add(fe))
	}
	m := NewNameMapper(zerolog.Nop())
	m.Dict = DictFromMap(map[string]string{"Chloride": "Cl"})
	m.AllowEmptyAliases = true
	rep, err := m.Map(context.Background(), tbl.Keys(), tbl.Names())
	require.NoError(t, err)

	ApplyNameReport(tbl, rep)
	cl, _ := tbl.Get("Chloride")
	un, _ := tbl.Get("Onbekend")
	assert.Equal(t, "Cl", cl.AliasN)
	assert.Equal(t, "Onbekend", un.AliasN)
}
