// Package extraction merges per-study data extraction files and selects the
// studies that make it into the final synthesis.
package extraction

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"litreview/internal/jsondoc"
	"litreview/internal/table"
	"litreview/internal/util"
)

const (
	MergedFile   = "data_extraction_table.xlsx"
	FinalFile    = "final_included_literature.xlsx"
	InputSubdir  = "data_extraction_texts"
	RowSeparator = "----------------------------------------------------------------------"
)

// Build flattens extraction files into a wide table. "No." comes from the file
// stem; rows sort numerically when every No. is an integer and lexically
// otherwise. Columns are No. followed by the rest in name order.
func Build(files []jsondoc.File, log *zap.Logger) *table.Table {
	if log == nil {
		log = zap.NewNop()
	}
	t := table.New(table.NoColumn)
	for _, f := range files {
		rec := map[string]string{table.NoColumn: f.Stem}
		order := []string{table.NoColumn}
		for _, fld := range jsondoc.Flatten(f.Object, false) {
			if _, seen := rec[fld.Key]; !seen {
				order = append(order, fld.Key)
			}
			rec[fld.Key] = fld.Value
		}
		t.AppendRecord(rec, order)
	}

	nos := t.Column(table.NoColumn)
	keys := make([]int, len(nos))
	numeric := true
	for i, no := range nos {
		n, err := strconv.Atoi(strings.TrimSpace(no))
		if err != nil {
			numeric = false
			break
		}
		keys[i] = n
	}
	if !numeric {
		log.Warn("non-numeric No. values, sorting by string order")
	}
	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if numeric {
			return keys[idx[a]] < keys[idx[b]]
		}
		return nos[idx[a]] < nos[idx[b]]
	})
	rows := make([][]string, len(idx))
	for i, j := range idx {
		rows[i] = t.Rows[j]
		if numeric {
			rows[i][0] = strconv.Itoa(keys[j])
		}
	}
	t.Rows = rows

	rest := make([]string, 0, len(t.Columns)-1)
	for _, c := range t.Columns {
		if c != table.NoColumn {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return t.Select(append([]string{table.NoColumn}, rest...)...)
}

// MergeDir reads every *.txt file in dir and writes data_extraction_table.xlsx to outDir.
func MergeDir(dir, outDir string, log *zap.Logger) (*table.Table, string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	files, skips, err := jsondoc.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("merge extraction texts: %w", err)
	}
	for _, s := range skips {
		log.Warn("skipped extraction file", zap.String("file", s.Path), zap.String("reason", s.Reason))
	}
	if len(files) == 0 {
		return nil, "", fmt.Errorf("merge extraction texts: %w in %s", util.ErrNoInput, dir)
	}
	t := Build(files, log)
	out := filepath.Join(outDir, MergedFile)
	if err := table.WriteXLSX(out, "", t); err != nil {
		return nil, "", fmt.Errorf("merge extraction texts: %w", err)
	}
	log.Info("data extraction table written", zap.String("path", out), zap.Int("rows", t.Len()), zap.Int("columns", len(t.Columns)))
	return t, out, nil
}

// WriteRowsJSON prints every row as an indented JSON object between separator
// lines, headed by its 1-based row number and No. when present.
func WriteRowsJSON(w io.Writer, t *table.Table, offset int) error {
	if offset < 0 {
		offset = 0
	}
	hasNo := t.Has(table.NoColumn)
	for r := offset; r < t.Len(); r++ {
		if _, err := fmt.Fprintln(w, RowSeparator); err != nil {
			return err
		}
		header := fmt.Sprintf("Row %d", r+1)
		if hasNo {
			header += " | No. = " + t.Get(r, table.NoColumn)
		}
		obj := jsondoc.NewObject()
		for i, c := range t.Columns {
			obj.Set(c, cellJSON(t.Rows[r][i]))
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", header, jsondoc.Indent(obj, "    ")); err != nil {
			return err
		}
	}
	if t.Len() > offset {
		if _, err := fmt.Fprintln(w, RowSeparator); err != nil {
			return err
		}
	}
	return nil
}

func cellJSON(v string) any {
	if v == "" {
		return nil
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil && (v == "0" || !strings.HasPrefix(v, "0")) {
		return json.Number(v)
	}
	return v
}
