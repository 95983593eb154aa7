package fileio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	excelize "github.com/xuri/excelize/v2"

	"hydro-harmonizer/internal/harmonize/model"
)

// WriteMappingSheet writes the report to its own sheet ("Names" or "Units").
// An existing workbook keeps its other sheets; the report sheet is replaced.
func WriteMappingSheet(path string, r *model.MatchReport) error {
	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		if f, err = excelize.OpenFile(path); err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
	} else {
		return err
	}
	defer f.Close()

	if err := fillMappingSheet(f, r); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// MappingWorkbook renders one or more reports into a new workbook.
func MappingWorkbook(w io.Writer, reports ...*model.MatchReport) error {
	f := excelize.NewFile()
	defer f.Close()
	for _, r := range reports {
		if r == nil {
			continue
		}
		if err := fillMappingSheet(f, r); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func fillMappingSheet(f *excelize.File, r *model.MatchReport) error {
	name := r.SheetName()
	if idx, _ := f.GetSheetIndex(name); idx >= 0 {
		// a workbook keeps at least one sheet: build the replacement first
		const tmp = "_replacement"
		if _, err := f.NewSheet(tmp); err != nil {
			return err
		}
		if err := f.DeleteSheet(name); err != nil {
			return err
		}
		if err := f.SetSheetName(tmp, name); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return err
	}
	if err := setRow(f, name, 1, r.Columns()); err != nil {
		return err
	}
	for i := range r.Records {
		if err := setRow(f, name, i+2, r.Row(i)); err != nil {
			return err
		}
	}
	dropDefaultSheet(f, name)
	idx, _ := f.GetSheetIndex(name)
	f.SetActiveSheet(idx)
	return nil
}

// dropDefaultSheet removes the empty "Sheet1" of a fresh workbook.
func dropDefaultSheet(f *excelize.File, keep string) {
	const def = "Sheet1"
	if keep == def {
		return
	}
	if rows, err := f.GetRows(def); err == nil && len(rows) == 0 && len(f.GetSheetList()) > 1 {
		_ = f.DeleteSheet(def)
	}
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheet, cell, &vals)
}

// WriteTableXLSX writes the harmonized table: alias names in row 1, units
// in row 2, then one row per sample id. Numbers stay numeric cells.
func WriteTableXLSX(w io.Writer, t *model.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Harmonized"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	_ = f.DeleteSheet("Sheet1")
	idx, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(idx)

	names, units := t.Header()
	if err := setRow(f, sheet, 1, append([]string{""}, names...)); err != nil {
		return err
	}
	if err := setRow(f, sheet, 2, append([]string{"SampleId"}, units...)); err != nil {
		return err
	}
	for i, id := range t.Index {
		row := make([]any, 0, len(t.Columns)+1)
		row = append(row, id)
		for _, c := range t.Columns {
			v, ok := c.Values[id]
			switch {
			case !ok:
				row = append(row, nil)
			case v.Numeric:
				row = append(row, v.Num)
			default:
				row = append(row, v.Text)
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// WriteTableCSV writes the same two-row header layout as WriteTableXLSX.
func WriteTableCSV(w io.Writer, t *model.Table) error {
	cw := csv.NewWriter(w)
	names, units := t.Header()
	if err := cw.Write(append([]string{""}, names...)); err != nil {
		return err
	}
	if err := cw.Write(append([]string{"SampleId"}, units...)); err != nil {
		return err
	}
	for _, id := range t.Index {
		rec := make([]string, 0, len(t.Columns)+1)
		rec = append(rec, id)
		for _, c := range t.Columns {
			rec = append(rec, c.Values[id].String())
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
