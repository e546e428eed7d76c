// Package search prepares database search exports for screening: it merges
// and deduplicates the exports, normalizes document types and reports
// missing bibliographic fields.
package search

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

const (
	ColAuthors          = "Authors"
	ColArticleTitle     = "Article Title"
	ColPublicationTitle = "Publication Title"
	ColPublicationYear  = "Publication Year"
	ColAbstract         = "Abstract"
	ColDOI              = "DOI"
	ColDocumentType     = "Document Type"
	ColOpenAccess       = "Open Access"
	ColLink             = "Link"

	MergedFile        = "merged_and_deduplicated_data.xlsx"
	MissingReportFile = "missing_values_report.txt"

	DefaultMinYear = 2017
)

// DefaultExports are the database exports read when no inputs are named.
var DefaultExports = []string{"ieee_xplore.xlsx", "eric.xlsx", "scopus.xlsx", "web_of_science.xlsx"}

// PreferredColumns leads the merged table; other columns follow in first-seen order.
var PreferredColumns = []string{
	table.NoColumn, ColAuthors, ColArticleTitle, ColPublicationTitle, ColPublicationYear,
	ColAbstract, ColDOI, ColDocumentType, ColOpenAccess, ColLink,
}

// Source is one database export.
type Source struct {
	Name  string
	Table *table.Table
}

type SourceCount struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

type MergeResult struct {
	Table       *table.Table
	Sources     []SourceCount
	Skipped     []string
	Merged      int
	AfterYear   int
	AfterDedupe int
	OutputPath  string
}

// Merger merges database exports into one deduplicated record table.
type Merger struct {
	MinYear    int
	SmallWords SmallWords
	Log        *zap.Logger
}

func NewMerger(minYear int, small SmallWords, log *zap.Logger) *Merger {
	if log == nil {
		log = zap.NewNop()
	}
	if minYear <= 0 {
		minYear = DefaultMinYear
	}
	if small == nil {
		small = DefaultSmallWords()
	}
	return &Merger{MinYear: minYear, SmallWords: small, Log: log}
}

// Merge normalizes titles and years of every source, keeps records published
// in or after MinYear, and deduplicates on (Article Title, Publication Year).
// The first record of a duplicate group wins; its blank cells are filled from
// the later duplicates. Rows are sorted by year, newest first, and renumbered.
func (m *Merger) Merge(sources []Source) (*MergeResult, error) {
	res := &MergeResult{}
	var parts []*table.Table
	for _, src := range sources {
		t := src.Table
		if t == nil || !t.Has(ColArticleTitle) {
			m.Log.Warn("export has no article title column, skipped", zap.String("source", src.Name))
			res.Skipped = append(res.Skipped, src.Name)
			continue
		}
		if t.Len() == 0 {
			continue
		}
		t = t.Clone()
		m.normalize(t)
		res.Sources = append(res.Sources, SourceCount{Name: src.Name, Rows: t.Len()})
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("merge search exports: %w: no export with records", util.ErrNoInput)
	}
	merged := table.Concat(parts...)
	res.Merged = merged.Len()
	for _, s := range res.Sources {
		m.Log.Info("export rows", zap.String("source", s.Name), zap.Int("rows", s.Rows))
	}

	if !merged.Has(ColPublicationYear) {
		merged.InsertColumn(len(merged.Columns), ColPublicationYear, nil)
	}
	recent := merged.Filter(func(r int) bool {
		y, err := strconv.Atoi(merged.Get(r, ColPublicationYear))
		return err == nil && y >= m.MinYear
	})
	res.AfterYear = recent.Len()
	m.Log.Info("filtered by publication year",
		zap.Int("min_year", m.MinYear), zap.Int("before", res.Merged), zap.Int("after", res.AfterYear))
	m.logMissing("before deduplication", recent)

	out := dedupe(recent)
	res.AfterDedupe = out.Len()
	m.Log.Info("deduplicated records", zap.Int("before", res.AfterYear), zap.Int("after", res.AfterDedupe))

	years := out.Column(ColPublicationYear)
	idx := make([]int, out.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return years[idx[a]] > years[idx[b]] })
	rows := make([][]string, len(idx))
	for i, j := range idx {
		rows[i] = out.Rows[j]
	}
	out.Rows = rows
	out.Renumber()
	out = out.Select(orderColumns(out.Columns)...)
	m.logMissing("after deduplication", out)

	res.Table = out
	return res, nil
}

// MergeFiles reads the export files, merges them and writes merged_and_deduplicated_data.xlsx to outDir.
// Missing files are skipped with a warning.
func (m *Merger) MergeFiles(paths []string, outDir string) (*MergeResult, error) {
	var sources []Source
	for _, p := range paths {
		if !util.FileExists(p) {
			m.Log.Warn("export not found, skipped", zap.String("path", p))
			continue
		}
		t, err := table.Read(p)
		if err != nil {
			return nil, fmt.Errorf("read export %s: %w", p, err)
		}
		sources = append(sources, Source{Name: filepath.Base(p), Table: t})
	}
	res, err := m.Merge(sources)
	if err != nil {
		return nil, err
	}
	res.OutputPath = filepath.Join(outDir, MergedFile)
	if err := table.WriteXLSX(res.OutputPath, "", res.Table); err != nil {
		return nil, fmt.Errorf("write merged exports: %w", err)
	}
	m.Log.Info("merged exports written", zap.String("path", res.OutputPath), zap.Int("rows", res.Table.Len()))
	return res, nil
}

func (m *Merger) normalize(t *table.Table) {
	for r := range t.Rows {
		t.Set(r, ColArticleTitle, m.SmallWords.TitleCase(t.Get(r, ColArticleTitle)))
		if t.Has(ColPublicationTitle) {
			t.Set(r, ColPublicationTitle, m.SmallWords.TitleCase(t.Get(r, ColPublicationTitle)))
		}
		if t.Has(ColPublicationYear) {
			t.Set(r, ColPublicationYear, NormalizeYear(t.Get(r, ColPublicationYear)))
		}
	}
}

func (m *Merger) logMissing(stage string, t *table.Table) {
	for _, c := range t.Columns {
		var rows []int
		for r := range t.Rows {
			if table.IsBlank(t.Rows[r][t.Index(c)]) {
				rows = append(rows, r+1)
			}
		}
		if len(rows) > 0 {
			m.Log.Debug("missing values", zap.String("stage", stage), zap.String("column", c),
				zap.Int("count", len(rows)), zap.Ints("rows", rows))
		}
	}
}

// NormalizeYear reduces a year cell to YYYY. Values like 20210315 keep their
// first four digits; anything unrecognized becomes empty.
func NormalizeYear(v string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return ""
	}
	s := strconv.FormatInt(int64(f), 10)
	switch len(s) {
	case 8:
		return s[:4]
	case 4:
		return s
	}
	return ""
}

func dedupe(t *table.Table) *table.Table {
	type key struct{ title, year string }
	first := map[key]int{}
	out := table.New(t.Columns...)
	for r, row := range t.Rows {
		k := key{t.Get(r, ColArticleTitle), t.Get(r, ColPublicationYear)}
		at, seen := first[k]
		if !seen {
			first[k] = out.Len()
			out.Append(row)
			continue
		}
		kept := out.Rows[at]
		for i, v := range kept {
			if table.IsBlank(v) && !table.IsBlank(row[i]) {
				kept[i] = row[i]
			}
		}
	}
	return out
}

func orderColumns(cols []string) []string {
	present := map[string]bool{}
	for _, c := range cols {
		present[c] = true
	}
	out := make([]string, 0, len(cols))
	lead := map[string]bool{}
	for _, c := range PreferredColumns {
		if present[c] {
			out = append(out, c)
			lead[c] = true
		}
	}
	for _, c := range cols {
		if !lead[c] {
			out = append(out, c)
		}
	}
	return out
}
