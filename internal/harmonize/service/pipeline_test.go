package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-harmonizer/internal/fileio"
	"hydro-harmonizer/internal/harmonize/model"
	"hydro-harmonizer/internal/units"
)

func TestPipelineStackedToMillimoles(t *testing.T) {
	sheet := &fileio.Sheet{Rows: [][]string{
		{"SampleId", "Features", "Values", "Units"},
		{"s1", "Chloride", "120", "mg/l"},
		{"s1", "Natrium", "23", "mg/l"},
		{"s2", "Chloride", "<0,5", "mg/l"},
		{"s2", "pH", "7,1", ""},
	}}
	tbl, err := ReadEntries(sheet, DefaultStackedLayout())
	require.NoError(t, err)

	dict, err := DefaultNameDict()
	require.NoError(t, err)
	targets, err := DefaultUnitTargets()
	require.NoError(t, err)

	log := zerolog.Nop()
	names := NewNameMapper(log)
	names.Dict = dict

	opts := DefaultOptions()
	opts.ConvertUnits = true
	opts.AliasTargets = targets
	h, err := NewHarmonizer(opts, units.NewEngine(nil, log), log)
	require.NoError(t, err)

	p := &Pipeline{Names: names, Units: NewUnitMapper(log), Harmonizer: h, Log: log}
	out, err := p.Run(context.Background(), tbl)
	require.NoError(t, err)

	assert.Contains(t, out.ImportNotes, "name: Chloride, unit: mg/l")
	assert.Equal(t, []string{"s1", "s2"}, out.Table.Index)

	cl := column(t, &Result{Table: out.Table}, "Chloride")
	assert.Equal(t, "Cl", cl.Name)
	assert.Equal(t, "mmol/l", cl.Unit)
	require.True(t, cl.Values["s1"].Numeric)
	assert.InDelta(t, 3.3848, cl.Values["s1"].Num, 1e-4)
	assert.Contains(t, cl.Values["s2"].Text, "< 0.0141")

	na := column(t, &Result{Table: out.Table}, "Natrium")
	assert.Equal(t, "Na", na.Name)
	assert.InDelta(t, 1.0004, na.Values["s1"].Num, 1e-4)

	// pH has no unit: not converted, a warning explains why
	ph := column(t, &Result{Table: out.Table}, "pH")
	assert.Equal(t, model.Number(7.1), ph.Values["s2"])
	require.NotEmpty(t, out.Warnings)
	assert.Contains(t, out.Warnings[0], "pH")

	require.NotNil(t, out.NameReport)
	require.NotNil(t, out.UnitReport)
	assert.Equal(t, model.MethodExact, out.NameReport.Records[0].Method)
	assert.Equal(t, model.MethodRegex, out.UnitReport.Records[0].Method)
}

func TestPipelineWithoutMappers(t *testing.T) {
	e, err := model.NewFeatureEntry("Cl", "Cl", "mg/l", model.Feature, []string{"35,453"}, nil)
	require.NoError(t, err)
	tbl := model.NewFeatureTable()
	require.NoError(t, tbl.Add(e))

	log := zerolog.Nop()
	opts := DefaultOptions()
	opts.ConvertUnits = true
	opts.TargetUnits = "mmol/l"
	h, err := NewHarmonizer(opts, units.NewEngine(nil, log), log)
	require.NoError(t, err)

	out, err := (&Pipeline{Harmonizer: h, Log: log}).Run(context.Background(), tbl)
	require.NoError(t, err)
	assert.Nil(t, out.NameReport)
	assert.Equal(t, "mg / (1l)", e.UStr)
	assert.InDelta(t, 1.0, out.Table.Columns[0].Values["0"].Num, 1e-9)

	_, err = (&Pipeline{}).Run(context.Background(), tbl)
	assert.ErrorIs(t, err, model.ErrConfig)
}
