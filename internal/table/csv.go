package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"litreview/internal/util"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV loads a CSV whose first record is the header. A leading UTF-8 BOM is dropped.
func ReadCSV(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, missingInput(err))
	}
	t, err := DecodeCSV(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", path, err)
	}
	return t, nil
}

func DecodeCSV(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, utf8BOM)
	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return New(), nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	t := New(header...)
	for _, rec := range records[1:] {
		// A row of empty cells such as ",,," is kept. Only blank lines are skipped.
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.Append(rec)
	}
	return t, nil
}

// WriteCSV writes t with a UTF-8 BOM so spreadsheet apps pick the right encoding.
func WriteCSV(path string, t *Table) error {
	if err := util.WriteToAtomic(path, func(w io.Writer) error {
		return EncodeCSV(w, t)
	}); err != nil {
		return fmt.Errorf("write csv %s: %w", filepath.Base(path), err)
	}
	return nil
}

func EncodeCSV(w io.Writer, t *Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// missingInput marks a not-found error as util.ErrNoInput and keeps the cause.
func missingInput(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", util.ErrNoInput, err)
	}
	return err
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
