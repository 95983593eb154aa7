package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-harmonizer/internal/fileio"
	"hydro-harmonizer/internal/harmonize/model"
)

func TestReadStacked(t *testing.T) {
	sheet := &fileio.Sheet{Rows: [][]string{
		{"SampleId", "Features", "Values", "Units", "LOD", "Use"},
		{"s1", "Chloride", "120", "mg/l", "", "ja"},
		{"s1", "Chloride", "0,12", "g/l", "", "1"},
		{"s2", "Chloride", "0,5", "mg/l", "<", "true"},
		{"", "", "", "", "", ""},
		{"s3", "Natrium", "NaN", "mg/l", "", "x"},
		{"s4", "Natrium", "5", "mg/l", "", "nee"},
	}}
	l := DefaultStackedLayout()
	l.LODColumn = "LOD"
	l.Mask = "Use"

	tbl, err := ReadEntries(sheet, l)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chloride", "Chloride [g/l]", "Natrium"}, tbl.Keys())

	cl, _ := tbl.Get("Chloride")
	assert.Equal(t, []string{"120", "<0,5"}, cl.Values)
	assert.Equal(t, []string{"s1", "s2"}, cl.SampleIDs)
	assert.Equal(t, "mg/l", cl.Unit)
	assert.True(t, cl.Stacked())

	clg, _ := tbl.Get("Chloride [g/l]")
	assert.Equal(t, "Chloride", clg.Name)
	assert.Equal(t, "g/l", clg.Unit)

	na, _ := tbl.Get("Natrium")
	assert.Equal(t, []string{""}, na.Values)
	assert.Equal(t, []string{"s3"}, na.SampleIDs)
}

func TestReadStackedCompositeIDAndUnitsFromName(t *testing.T) {
	sheet := &fileio.Sheet{Rows: [][]string{
		{"Well", "Date", "Parameter", "Result"},
		{"P1", "2020-01-01", "Na (mg/l)", "12"},
		{"P1", "2020-02-01", "Na (mg/l)", "13"},
	}}
	l := StackedLayout{
		SampleID:      []string{"Well", "date"},
		Feature:       "Parameter",
		Value:         "Result",
		UnitsFromName: true,
	}
	tbl, err := ReadEntries(sheet, &l)
	require.NoError(t, err)

	na, ok := tbl.Get("Na")
	require.True(t, ok)
	assert.Equal(t, "mg/l", na.Unit)
	assert.Equal(t, []string{"P1 | 2020-01-01", "P1 | 2020-02-01"}, na.SampleIDs)
}

func TestReadStackedMissingColumn(t *testing.T) {
	sheet := &fileio.Sheet{Rows: [][]string{{"SampleId", "Features", "Values"}}}
	_, err := ReadEntries(sheet, DefaultStackedLayout())
	assert.ErrorIs(t, err, model.ErrConfig)

	l := DefaultStackedLayout()
	l.SampleID = nil
	_, err = ReadEntries(sheet, l)
	assert.ErrorIs(t, err, model.ErrConfig)

	_, err = ReadEntries(nil, l)
	assert.ErrorIs(t, err, model.ErrConfig)
}

func TestReadWideBlocks(t *testing.T) {
	sheet := &fileio.Sheet{Rows: [][]string{
		{"Well", "Cl", "Cl", "Na (mg/l)", "Fe.1"},
		{"", "mg/l", "mmol/l", "", "ug/l"},
		{"P1", "10", "0,3", "5", "1"},
		{"", "", "", "", ""},
		{"P2", "#N/A", "0,2", "6", "2"},
	}}
	l := WideLayout{
		HeaderRow: 1,
		Blocks: []WideBlock{
			{Columns: []string{"Well"}, Kind: model.SampleInfo},
			{Columns: []string{"Cl", "Cl", "Fe.1"}, UnitsRow: 2, Kind: model.Feature},
			{Columns: []string{"Na (mg/l)"}, UnitsFromName: true},
		},
	}
	tbl, err := ReadEntries(sheet, l)
	require.NoError(t, err)
	assert.Equal(t, []string{"Well", "Cl", "Cl.1", "Fe.1", "Na (mg/l)"}, tbl.Keys())

	well, _ := tbl.Get("Well")
	assert.Equal(t, model.SampleInfo, well.Kind)
	assert.Equal(t, []string{"P1", "P2"}, well.Values)
	assert.False(t, well.Stacked())

	cl, _ := tbl.Get("Cl")
	assert.Equal(t, []string{"10", ""}, cl.Values)
	assert.Equal(t, "mg/l", cl.Unit)

	cl1, _ := tbl.Get("Cl.1")
	assert.Equal(t, "Cl", cl1.Name)
	assert.Equal(t, "mmol/l", cl1.Unit)

	fe, _ := tbl.Get("Fe.1")
	assert.Equal(t, "Fe", fe.Name)

	na, _ := tbl.Get("Na (mg/l)")
	assert.Equal(t, "Na", na.Name)
	assert.Equal(t, "mg/l", na.Unit)
	assert.Equal(t, model.Feature, na.Kind)
}

func TestReadWideDefaultsAndErrors(t *testing.T) {
	sheet := &fileio.Sheet{Rows: [][]string{
		{"Cl", ""},
		{"1", "2"},
	}}
	tbl, err := ReadEntries(sheet, WideLayout{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cl", "Column 2"}, tbl.Keys())

	_, err = ReadEntries(sheet, WideLayout{Blocks: []WideBlock{{Columns: []string{"Na"}}}})
	assert.ErrorIs(t, err, model.ErrConfig)
}
