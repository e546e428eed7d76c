package quality

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"litreview/internal/jsondoc"
	"litreview/internal/table"
	"litreview/internal/util"
)

// MergeResult describes a merged quality assessment table.
type MergeResult struct {
	Table      *table.Table
	Files      int
	Skipped    []jsondoc.Skip
	OutputPath string
}

// Merger builds the quality assessment table from one JSON-in-text file per study.
type Merger struct {
	Log *zap.Logger
}

func NewMerger(log *zap.Logger) *Merger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Merger{Log: log}
}

// Build flattens the files into one row each. The file stem becomes "no" and
// must be numeric; a "no" field inside the file is kept as no_raw. Score
// columns are coerced to integers and rows are sorted by no.
func (m *Merger) Build(files []jsondoc.File) (*table.Table, error) {
	t := table.New(ColNo)
	for _, f := range files {
		rec := map[string]string{ColNo: f.Stem}
		order := []string{ColNo}
		for _, fld := range jsondoc.Flatten(f.Object, true) {
			key := fld.Key
			if key == ColNo {
				if _, seen := rec[ColNoRaw]; seen {
					continue
				}
				key = ColNoRaw
			}
			if _, seen := rec[key]; !seen {
				order = append(order, key)
			}
			rec[key] = fld.Value
		}
		t.AppendRecord(rec, order)
	}

	var bad []string
	nos := make([]int, t.Len())
	for i := range t.Rows {
		n, ok := toInt(t.Get(i, ColNo))
		if !ok {
			bad = append(bad, t.Get(i, ColNo))
			continue
		}
		nos[i] = n
		t.Set(i, ColNo, strconv.Itoa(n))
	}
	if len(bad) > 0 {
		m.Log.Error("non-integer values in column no", zap.Strings("values", bad))
		return nil, fmt.Errorf("build quality table: %w: non-numeric file names %s", util.ErrInvalidInput, strings.Join(bad, ", "))
	}

	for _, col := range t.Columns {
		if !IsScoreColumn(col) {
			continue
		}
		for i := range t.Rows {
			raw := t.Get(i, col)
			n, ok := toInt(raw)
			if !ok {
				if !table.IsBlank(raw) {
					m.Log.Warn("score is not an integer", zap.String("column", col), zap.String("no", t.Get(i, ColNo)), zap.String("value", raw))
				}
				t.Set(i, col, "")
				continue
			}
			t.Set(i, col, strconv.Itoa(n))
		}
	}

	ordered := t.Select(OrderColumns(t.Columns)...)
	idx := make([]int, ordered.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return nos[idx[a]] < nos[idx[b]] })
	rows := make([][]string, len(idx))
	for i, j := range idx {
		rows[i] = ordered.Rows[j]
	}
	ordered.Rows = rows
	return ordered, nil
}

// MergeDir reads every *.txt file in dir and writes quality_assessment_table.xlsx to outDir.
func (m *Merger) MergeDir(dir, outDir string) (MergeResult, error) {
	var res MergeResult
	files, skips, err := jsondoc.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("merge quality texts: %w", err)
	}
	for _, s := range skips {
		m.Log.Warn("skipped assessment file", zap.String("file", s.Path), zap.String("reason", s.Reason))
	}
	res.Files, res.Skipped = len(files), skips
	if len(files) == 0 {
		return res, fmt.Errorf("merge quality texts: %w in %s", util.ErrNoInput, dir)
	}
	m.Log.Info("parsed assessment files", zap.Int("valid", len(files)), zap.Int("skipped", len(skips)))

	t, err := m.Build(files)
	if err != nil {
		return res, err
	}
	res.Table = t
	for _, ms := range Missingness(t, false) {
		m.Log.Info("column missingness", zap.String("column", ms.Column), zap.Int("missing", ms.Missing), zap.String("ratio", fmt.Sprintf("%.2f%%", ms.Percent)))
	}

	res.OutputPath = filepath.Join(outDir, MergedFile)
	if err := table.WriteXLSX(res.OutputPath, SheetName, t); err != nil {
		return res, fmt.Errorf("merge quality texts: %w", err)
	}
	m.Log.Info("quality assessment table written", zap.String("path", res.OutputPath), zap.Int("rows", t.Len()), zap.Int("columns", len(t.Columns)))
	return res, nil
}

// toInt accepts integers and integral decimals such as "7.0".
func toInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
