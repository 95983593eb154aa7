package fileio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var ErrUnsupported = errors.New("unsupported file")

// Sheet is the raw cell grid of one worksheet or CSV file.
type Sheet struct {
	Name string
	Rows [][]string
}

// ReadSheet picks the parser by extension. sheet selects a worksheet by name
// in spreadsheets; empty means the first one. CSV files ignore it.
func ReadSheet(r io.Reader, filename, sheet string) (*Sheet, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xlsx", ".xlsm":
		return readXLSX(r, sheet)
	case ".xls":
		return readXLS(r, sheet)
	case ".csv", ".txt":
		return readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
	}
}

// Width is the length of the longest row.
func (s *Sheet) Width() int {
	w := 0
	for _, r := range s.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Row returns row i (0-based) padded to the sheet width; out of range rows are empty.
func (s *Sheet) Row(i int) []string {
	out := make([]string, s.Width())
	if i >= 0 && i < len(s.Rows) {
		copy(out, s.Rows[i])
	}
	return out
}

// Header returns the 1-based header row with "Column N" for empty cells.
func (s *Sheet) Header(headerRow int) []string {
	idx := headerRow - 1
	if idx < 0 || idx >= len(s.Rows) {
		idx = 0
	}
	out := s.Row(idx)
	for i, v := range out {
		v = strings.TrimSpace(v)
		if v == "" {
			v = fmt.Sprintf("Column %d", i+1)
		}
		out[i] = v
	}
	return out
}

// DataRows returns the rows below headerRow, skipping rows with only empty cells.
func (s *Sheet) DataRows(headerRow int) [][]string {
	if headerRow < 1 {
		headerRow = 1
	}
	var out [][]string
	for r := headerRow; r < len(s.Rows); r++ {
		row := s.Row(r)
		if isEmptyRow(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var cellCleaner = strings.NewReplacer("\u00A0", " ", "\u202F", " ", "\r", "")

func normalizeCell(s string) string {
	return strings.TrimSpace(cellCleaner.Replace(s))
}
