package quality

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"litreview/internal/table"
	"litreview/internal/util"
)

// KeyColumns are the verdict fields whose value distribution is reported.
var KeyColumns = []string{ColTotalScore, ColCategory, ColIncludeMainSynthesis, ColIncludeMetaAnalysis}

// ColumnMissing is the missingness of one column.
type ColumnMissing struct {
	Column  string   `json:"column"`
	Missing int      `json:"missing"`
	Percent float64  `json:"percent"`
	NRNA    int      `json:"nr_na"`
	NRNANos []string `json:"nr_na_nos,omitempty"`
}

// ValueStat is one distinct value of a key column.
type ValueStat struct {
	Value   string   `json:"value"`
	Count   int      `json:"count"`
	Percent float64  `json:"percent"`
	Nos     []string `json:"nos"`
}

// AnalysisReport is the quality assessment summary.
type AnalysisReport struct {
	Rows          int                    `json:"rows"`
	Missing       []ColumnMissing        `json:"missing"`
	Distributions map[string][]ValueStat `json:"distributions"`
	Absent        []string               `json:"absent,omitempty"`
}

// idColumn prefers the screening "No." column and falls back to "no".
func idColumn(t *table.Table) string {
	if t.Has(table.NoColumn) {
		return table.NoColumn
	}
	return ColNo
}

func isNRNA(s string) bool { return s == "NR" || s == "NA" }

// Missingness counts blank cells per column. With nrna set, the literal
// markers NR and NA also count as missing and their rows are listed.
func Missingness(t *table.Table, nrna bool) []ColumnMissing {
	id := idColumn(t)
	out := make([]ColumnMissing, 0, len(t.Columns))
	for _, col := range t.Columns {
		cm := ColumnMissing{Column: col}
		for i, v := range t.Column(col) {
			switch {
			case strings.TrimSpace(v) == "":
				cm.Missing++
			case nrna && isNRNA(v):
				cm.Missing++
				cm.NRNA++
				cm.NRNANos = append(cm.NRNANos, t.Get(i, id))
			}
		}
		if t.Len() > 0 {
			cm.Percent = float64(cm.Missing) / float64(t.Len()) * 100
		}
		out = append(out, cm)
	}
	return out
}

// Distribution counts each distinct value of col, most frequent first and
// then by value.
func Distribution(t *table.Table, col string) []ValueStat {
	id := idColumn(t)
	idx := map[string]int{}
	var out []ValueStat
	for i, v := range t.Column(col) {
		j, ok := idx[v]
		if !ok {
			j = len(out)
			idx[v] = j
			out = append(out, ValueStat{Value: v})
		}
		out[j].Count++
		out[j].Nos = append(out[j].Nos, t.Get(i, id))
	}
	for i := range out {
		if t.Len() > 0 {
			out[i].Percent = float64(out[i].Count) / float64(t.Len()) * 100
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return sortKey(out[a].Value) < sortKey(out[b].Value)
	})
	return out
}

// Analyze builds the missingness and key-field report for a merged table.
func Analyze(t *table.Table) *AnalysisReport {
	rep := &AnalysisReport{
		Rows:          t.Len(),
		Missing:       Missingness(t, true),
		Distributions: map[string][]ValueStat{},
	}
	for _, col := range KeyColumns {
		if !t.Has(col) {
			rep.Absent = append(rep.Absent, col)
			continue
		}
		rep.Distributions[col] = Distribution(t, col)
	}
	return rep
}

// Text renders the summary report.
func (r *AnalysisReport) Text() string {
	heavy := strings.Repeat("=", 70)
	light := strings.Repeat("-", 70)
	var b strings.Builder
	fmt.Fprintln(&b, heavy)
	fmt.Fprintln(&b, "Quality Assessment Summary Report")
	fmt.Fprintln(&b, heavy)
	fmt.Fprintf(&b, "\nTotal records (rows): %d\n\n", r.Rows)
	fmt.Fprintln(&b, "1. Column-wise Missingness Overview")
	fmt.Fprintln(&b, light)
	for _, cm := range r.Missing {
		fmt.Fprintf(&b, "- %s: missing %d / %d (%.2f%%)", cm.Column, cm.Missing, r.Rows, cm.Percent)
		if cm.NRNA > 0 {
			fmt.Fprintf(&b, " | 'NR'/'NA' rows: %d", cm.NRNA)
		}
		fmt.Fprintln(&b)
		if len(cm.NRNANos) > 0 {
			fmt.Fprintf(&b, "    NR/NA No.: %s\n", reprList(cm.NRNANos))
		}
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "2. Value Distribution for Key Quality Fields")
	fmt.Fprintln(&b, light)
	for _, col := range KeyColumns {
		fmt.Fprintf(&b, "- %s:\n", col)
		for _, vs := range r.Distributions[col] {
			fmt.Fprintf(&b, "    %s: count=%d (%.2f%%) | No.: %s\n", reprValue(vs.Value), vs.Count, vs.Percent, reprList(vs.Nos))
		}
		fmt.Fprintln(&b)
	}
	b.WriteString(heavy)
	return b.String()
}

// sortKey orders tied values by their plain text, with blanks as nan.
func sortKey(v string) string {
	if strings.TrimSpace(v) == "" {
		return "nan"
	}
	return v
}

// reprValue shows integers bare, blanks as nan and text quoted.
func reprValue(v string) string {
	if strings.TrimSpace(v) == "" {
		return "nan"
	}
	if _, err := strconv.Atoi(v); err == nil {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
}

func reprList(vs []string) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = reprValue(v)
	}
	return "[" + strings.Join(out, ", ") + "]"
}

// Analyzer reads a merged table and writes its summary.
type Analyzer struct {
	Log *zap.Logger
}

func NewAnalyzer(log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{Log: log}
}

// AnalyzeFile reads the Quality_Assessment_Data sheet (or the first sheet when
// it is absent) and writes quality_assessment_summary.txt to outDir.
func (a *Analyzer) AnalyzeFile(path, outDir string) (*AnalysisReport, string, error) {
	t, err := table.ReadXLSX(path, SheetName)
	if err != nil {
		a.Log.Debug("sheet not found, using first sheet", zap.String("sheet", SheetName), zap.Error(err))
		t, err = table.Read(path)
		if err != nil {
			return nil, "", fmt.Errorf("analyze quality table: %w", err)
		}
	}
	a.Log.Info("quality table loaded", zap.String("path", path), zap.Int("rows", t.Len()), zap.Int("columns", len(t.Columns)))
	rep := Analyze(t)
	for _, col := range rep.Absent {
		a.Log.Warn("column not found; skipping value distribution", zap.String("column", col))
	}
	out := filepath.Join(outDir, SummaryFile)
	if err := util.WriteTextAtomic(out, rep.Text()); err != nil {
		return nil, "", fmt.Errorf("write quality summary: %w", err)
	}
	a.Log.Info("quality summary written", zap.String("path", out))
	return rep, out, nil
}
