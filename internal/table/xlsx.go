package table

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"litreview/internal/util"
)

const DefaultSheet = "Sheet1"

var plainInt = regexp.MustCompile(`^-?(0|[1-9][0-9]{0,14})$`)

// ReadXLSX loads one sheet. An empty sheet name selects the first sheet.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", path, missingInput(err))
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("open xlsx %s: %w: workbook has no sheets", path, util.ErrInvalidInput)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	if len(rows) == 0 {
		return New(), nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	t := New(header...)
	for _, row := range rows[1:] {
		if isEmptyRecord(row) {
			continue
		}
		t.Append(row)
	}
	return t, nil
}

// WriteXLSX writes t into a single-sheet workbook. Plain integers are stored as numbers.
func WriteXLSX(path, sheet string, t *Table) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	defer f.Close()
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return fmt.Errorf("name sheet %q: %w", sheet, err)
		}
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if err := util.WriteToAtomic(path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	}); err != nil {
		return fmt.Errorf("write xlsx %s: %w", filepath.Base(path), err)
	}
	return nil
}

func cellValue(v string) any {
	if plainInt.MatchString(v) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return v
}

// Read dispatches on the file extension.
func Read(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, "")
	default:
		return nil, fmt.Errorf("read %s: %w: unsupported extension", path, util.ErrInvalidInput)
	}
}

// Write dispatches on the file extension.
func Write(path, sheet string, t *Table) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(path, t)
	case ".xlsx":
		return WriteXLSX(path, sheet, t)
	default:
		return fmt.Errorf("write %s: %w: unsupported extension", path, util.ErrInvalidInput)
	}
}
