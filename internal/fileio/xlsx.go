package fileio

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	excelize "github.com/xuri/excelize/v2"
)

func readXLSX(r io.Reader, sheet string) (*Sheet, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	} else if !slices.Contains(f.GetSheetList(), sheet) {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		for j := range row {
			row[j] = normalizeCell(row[j])
		}
	}
	return &Sheet{Name: sheet, Rows: rows}, nil
}
