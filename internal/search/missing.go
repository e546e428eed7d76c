package search

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"litreview/internal/table"
	"litreview/internal/util"
)

// NoAbstract is the placeholder some databases export instead of an abstract.
const NoAbstract = "[No abstract available]"

// ReportColumns are checked by MissingValues when no columns are named.
var ReportColumns = []string{
	ColAuthors, ColArticleTitle, ColPublicationTitle, ColPublicationYear,
	ColAbstract, ColDOI, ColLink, ColDocumentType, ColOpenAccess,
}

// ColumnGap lists the No. values of the rows missing one column.
type ColumnGap struct {
	Column string   `json:"column"`
	Nos    []string `json:"nos"`
}

type FileGaps struct {
	File string      `json:"file"`
	Gaps []ColumnGap `json:"gaps"`
}

// MissingValues reports, per column, the No. of each row with a blank cell.
// Columns absent from t are ignored, as are tables without a No. column.
func MissingValues(t *table.Table, cols ...string) []ColumnGap {
	if len(cols) == 0 {
		cols = ReportColumns
	}
	if !t.Has(table.NoColumn) {
		return nil
	}
	var out []ColumnGap
	for _, c := range cols {
		if !t.Has(c) {
			continue
		}
		var nos []string
		for r := range t.Rows {
			v := t.Get(r, c)
			if table.IsBlank(v) || (c == ColAbstract && strings.TrimSpace(v) == NoAbstract) {
				nos = append(nos, t.Get(r, table.NoColumn))
			}
		}
		if len(nos) > 0 {
			out = append(out, ColumnGap{Column: c, Nos: nos})
		}
	}
	return out
}

// MissingReport renders the per-file gaps as the plain-text report.
func MissingReport(files []FileGaps) string {
	rule := strings.Repeat("-", 50) + "\n"
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "Report for file: %s\n", f.File)
		b.WriteString(rule)
		if len(f.Gaps) == 0 {
			b.WriteString("No missing values in any of the columns.\n")
			b.WriteString(rule)
		}
		for _, g := range f.Gaps {
			fmt.Fprintf(&b, "Column: %s\n", g.Column)
			fmt.Fprintf(&b, "Missing rows (based on 'No.' column): %s\n", strings.Join(g.Nos, ", "))
			b.WriteString(rule)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// ReportFiles checks every existing file and writes the report to outPath.
// Files without a No. column are left out of the report.
func ReportFiles(paths []string, outPath string, log *zap.Logger) ([]FileGaps, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var files []FileGaps
	for _, p := range paths {
		if !util.FileExists(p) {
			log.Warn("file not found, skipped", zap.String("path", p))
			continue
		}
		t, err := table.Read(p)
		if err != nil {
			return nil, fmt.Errorf("report missing values: %w", err)
		}
		if !t.Has(table.NoColumn) {
			log.Warn("no No. column, skipped", zap.String("path", p))
			continue
		}
		files = append(files, FileGaps{File: filepath.Base(p), Gaps: MissingValues(t)})
	}
	if err := util.WriteTextAtomic(outPath, MissingReport(files)); err != nil {
		return nil, fmt.Errorf("write missing values report: %w", err)
	}
	log.Info("missing values report written", zap.String("path", outPath), zap.Int("files", len(files)))
	return files, nil
}
