package service

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"hydro-harmonizer/internal/fileio"
	"hydro-harmonizer/internal/harmonize/model"
)

// DefaultNAValues are the cell texts read as missing. "NA" is not one of
// them: it is too easily confused with Na (sodium).
var DefaultNAValues = []string{
	"", "-1.#IND", "1.#QNAN", "1.#IND", "-1.#QNAN", "#N/A", "N/A",
	"#NA", "NULL", "NaN", "-NaN", "nan", "-nan",
}

// Layout describes how a sheet holds its data. The set is closed:
// StackedLayout and WideLayout.
type Layout interface {
	isLayout()
}

// StackedLayout: one row per measurement with sample id, feature, value and
// unit columns.
type StackedLayout struct {
	HeaderRow     int      // 1-based, default 1
	SampleID      []string // several columns are joined with " | "
	Feature       string
	Value         string
	Unit          string
	LODColumn     string // optional, prefixed to the value ("<" + "0,5")
	Mask          string // optional, rows whose mask is false are skipped
	UnitsFromName bool   // "Na (mg/l)" in the feature column carries the unit
	NAValues      []string
}

// WideLayout: one column per feature, one row per sample, possibly in
// several side-by-side blocks.
type WideLayout struct {
	HeaderRow int // 1-based, default 1
	Blocks    []WideBlock
	NAValues  []string
}

// WideBlock is a set of columns sharing a data kind and units row.
type WideBlock struct {
	Columns       []string // header names; empty selects every column
	UnitsRow      int      // 1-based row holding the units, 0 for none
	Kind          model.DataKind
	UnitsFromName bool
}

func (StackedLayout) isLayout() {}
func (WideLayout) isLayout()    {}

// DefaultStackedLayout uses the SampleId/Features/Values/Units headers.
func DefaultStackedLayout() StackedLayout {
	return StackedLayout{HeaderRow: 1, SampleID: []string{"SampleId"}, Feature: "Features", Value: "Values", Unit: "Units"}
}

// ReadEntries turns a sheet into feature entries according to layout.
func ReadEntries(sheet *fileio.Sheet, layout Layout) (*model.FeatureTable, error) {
	if sheet == nil {
		return nil, model.NewConfigError("sheet", "nil sheet")
	}
	switch l := layout.(type) {
	case StackedLayout:
		return readStacked(sheet, l)
	case *StackedLayout:
		return readStacked(sheet, *l)
	case WideLayout:
		return readWide(sheet, l)
	case *WideLayout:
		return readWide(sheet, *l)
	default:
		return nil, model.NewConfigError("format", fmt.Sprintf("unsupported layout %T", layout))
	}
}

type naSet map[string]bool

func newNASet(values []string) naSet {
	if values == nil {
		values = DefaultNAValues
	}
	s := naSet{}
	for _, v := range values {
		s[v] = true
	}
	return s
}

func (s naSet) clean(v string) string {
	if s[strings.TrimSpace(v)] {
		return ""
	}
	return v
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, model.NewConfigError("columns", fmt.Sprintf("required column %q missing", name))
}

func truthy(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err == nil {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ja", "yes", "y", "j", "waar", "x":
		return true
	}
	return false
}

type stackedSeries struct {
	key, name, unit string
	values, ids     []string
}

func readStacked(sheet *fileio.Sheet, l StackedLayout) (*model.FeatureTable, error) {
	if l.HeaderRow < 1 {
		l.HeaderRow = 1
	}
	if len(l.SampleID) == 0 {
		return nil, model.NewConfigError("columns", "at least one sample id column is required")
	}
	header := sheet.Header(l.HeaderRow)
	idIdx := make([]int, len(l.SampleID))
	for i, c := range l.SampleID {
		j, err := columnIndex(header, c)
		if err != nil {
			return nil, err
		}
		idIdx[i] = j
	}
	fIdx, err := columnIndex(header, l.Feature)
	if err != nil {
		return nil, err
	}
	vIdx, err := columnIndex(header, l.Value)
	if err != nil {
		return nil, err
	}
	uIdx := -1
	if !l.UnitsFromName {
		if uIdx, err = columnIndex(header, l.Unit); err != nil {
			return nil, err
		}
	}
	lodIdx, maskIdx := -1, -1
	if l.LODColumn != "" {
		if lodIdx, err = columnIndex(header, l.LODColumn); err != nil {
			return nil, err
		}
	}
	if l.Mask != "" {
		if maskIdx, err = columnIndex(header, l.Mask); err != nil {
			return nil, err
		}
	}

	na := newNASet(l.NAValues)
	var order []string
	series := map[string]*stackedSeries{}
	firstUnit := map[string]string{}

	for _, row := range sheet.DataRows(l.HeaderRow) {
		if maskIdx >= 0 && !truthy(row[maskIdx]) {
			continue
		}
		name := strings.TrimSpace(row[fIdx])
		if name == "" {
			continue
		}
		var unit string
		if l.UnitsFromName {
			name, unit = ParseNameAndUnit(name)
		} else {
			unit = strings.TrimSpace(row[uIdx])
		}

		parts := make([]string, len(idIdx))
		for i, j := range idIdx {
			parts[i] = strings.TrimSpace(row[j])
		}
		id := strings.Join(parts, " | ")

		value := na.clean(row[vIdx])
		if lodIdx >= 0 && value != "" {
			value = strings.TrimSpace(row[lodIdx]) + strings.TrimSpace(value)
		}

		// a feature reported in two units becomes two entries
		fu := name + "\x00" + unit
		s, ok := series[fu]
		if !ok {
			key := name
			if u, seen := firstUnit[name]; seen && u != unit {
				key = name + " [" + unit + "]"
			} else {
				firstUnit[name] = unit
			}
			s = &stackedSeries{key: key, name: name, unit: unit}
			series[fu] = s
			order = append(order, fu)
		}
		s.values = append(s.values, value)
		s.ids = append(s.ids, id)
	}

	t := model.NewFeatureTable()
	for _, fu := range order {
		s := series[fu]
		e, err := model.NewFeatureEntry(s.key, s.name, s.unit, model.Feature, s.values, s.ids)
		if err != nil {
			return nil, err
		}
		if err := t.Add(e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

var reDupSuffix = regexp.MustCompile(`\.\d+$`)

func readWide(sheet *fileio.Sheet, l WideLayout) (*model.FeatureTable, error) {
	if l.HeaderRow < 1 {
		l.HeaderRow = 1
	}
	blocks := l.Blocks
	if len(blocks) == 0 {
		blocks = []WideBlock{{Kind: model.Feature}}
	}
	header := sheet.Header(l.HeaderRow)
	na := newNASet(l.NAValues)

	// rows below the header, minus units rows that sit below it
	skip := map[int]bool{}
	for _, b := range blocks {
		if b.UnitsRow > l.HeaderRow {
			skip[b.UnitsRow-1] = true
		}
	}
	var data [][]string
	for r := l.HeaderRow; r < len(sheet.Rows); r++ {
		if skip[r] {
			continue
		}
		row := sheet.Row(r)
		if isBlank(row) {
			continue
		}
		data = append(data, row)
	}

	t := model.NewFeatureTable()
	used := map[string]int{}
	taken := map[int]bool{}
	for bi, b := range blocks {
		kind := b.Kind
		if kind == "" {
			kind = model.Feature
		}
		cols, err := blockColumns(header, b, taken)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", bi, err)
		}
		var units []string
		if b.UnitsRow > 0 {
			units = sheet.Row(b.UnitsRow - 1)
		}
		for _, c := range cols {
			taken[c] = true
			name := reDupSuffix.ReplaceAllString(header[c], "")
			unit := ""
			if units != nil {
				unit = strings.TrimSpace(units[c])
			}
			if b.UnitsFromName {
				name, unit = ParseNameAndUnit(name)
			}

			key := header[c]
			if n := used[key]; n > 0 {
				key = fmt.Sprintf("%s.%d", key, n)
			}
			used[header[c]]++

			values := make([]string, len(data))
			for i, row := range data {
				values[i] = na.clean(row[c])
			}
			e, err := model.NewFeatureEntry(key, name, unit, kind, values, nil)
			if err != nil {
				return nil, err
			}
			if err := t.Add(e); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func blockColumns(header []string, b WideBlock, taken map[int]bool) ([]int, error) {
	if len(b.Columns) == 0 {
		var out []int
		for i := range header {
			if !taken[i] {
				out = append(out, i)
			}
		}
		return out, nil
	}
	out := make([]int, 0, len(b.Columns))
	for _, name := range b.Columns {
		j := -1
		for i, h := range header {
			if strings.EqualFold(h, name) && !taken[i] && !slices.Contains(out, i) {
				j = i
				break
			}
		}
		if j < 0 {
			return nil, model.NewConfigError("columns", fmt.Sprintf("column %q missing", name))
		}
		out = append(out, j)
	}
	return out, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
