package fileio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	xls "github.com/extrame/xls"
)

// computeMaxCols probes a reasonable number of columns for non-empty cells;
// Row.LastCol() is unreliable for files written by lab systems.
func computeMaxCols(sheet *xls.WorkSheet) int {
	const probeMax = 512
	maxCols := 0
	for i := 0; i <= int(sheet.MaxRow); i++ {
		r := sheet.Row(i)
		if r == nil {
			continue
		}
		for j := maxCols; j < probeMax; j++ {
			if normalizeCell(r.Col(j)) != "" {
				maxCols = j + 1
			}
		}
	}
	if maxCols == 0 {
		maxCols = 1
	}
	return maxCols
}

// readXLS reads a legacy .xls sheet. The table width is fixed up front and
// every cell up to it is read.
func readXLS(r io.Reader, sheetName string) (*Sheet, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// Dutch lab exports are cp1252 unless written by a recent system
	var wb *xls.WorkBook
	var lastErr error
	for _, ch := range []string{"windows-1252", "utf-8"} {
		wb, err = xls.OpenReader(bytes.NewReader(b), ch)
		if err == nil && wb != nil {
			lastErr = nil
			break
		}
		lastErr = err
	}
	if wb == nil {
		if lastErr == nil {
			lastErr = errors.New("xls: failed to open workbook")
		}
		return nil, lastErr
	}

	var sheet *xls.WorkSheet
	for i := 0; i < wb.NumSheets(); i++ {
		s := wb.GetSheet(i)
		if s != nil && (sheetName == "" || s.Name == sheetName) {
			sheet = s
			break
		}
	}
	if sheet == nil {
		if sheetName != "" {
			return nil, fmt.Errorf("sheet %q not found", sheetName)
		}
		return &Sheet{}, nil
	}

	maxCols := computeMaxCols(sheet)
	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		cols := make([]string, maxCols)
		if row != nil {
			for j := 0; j < maxCols; j++ {
				cols[j] = normalizeCell(row.Col(j))
			}
		}
		rows = append(rows, cols)
	}
	return &Sheet{Name: sheet.Name, Rows: rows}, nil
}
