package extraction

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"litreview/internal/quality"
	"litreview/internal/table"
)

// FilterFinal keeps the extraction rows whose No. matches a quality
// assessment rated "high". No. values are compared numerically. The study
// title from the assessment table is placed in the second column when the
// assessment table has one.
func FilterFinal(qa, ext *table.Table, log *zap.Logger) (*table.Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	qaNo := table.NoColumn
	if !qa.Has(qaNo) {
		qaNo = quality.ColNo
	}
	if err := qa.Require("quality assessment", qaNo, quality.ColCategory); err != nil {
		return nil, fmt.Errorf("filter final studies: %w", err)
	}
	if err := ext.Require("data extraction", table.NoColumn); err != nil {
		return nil, fmt.Errorf("filter final studies: %w", err)
	}
	titleCol := ""
	for _, c := range []string{"Title", "title_short"} {
		if qa.Has(c) {
			titleCol = c
			break
		}
	}

	high := map[float64]string{}
	rows := 0
	for i := range qa.Rows {
		if table.Norm(qa.Get(i, quality.ColCategory)) != "high" {
			continue
		}
		rows++
		n, ok := numericNo(qa.Get(i, qaNo))
		if !ok {
			continue
		}
		if _, dup := high[n]; !dup {
			high[n] = qa.Get(i, titleCol)
		}
	}
	if rows == 0 {
		log.Warn("no quality assessments rated high")
	}
	log.Info("selected high quality studies", zap.Int("rows", rows), zap.Int("unique_no", len(high)))

	titles := []string{}
	out := ext.Filter(func(r int) bool {
		n, ok := numericNo(ext.Get(r, table.NoColumn))
		if !ok {
			return false
		}
		title, hit := high[n]
		if hit {
			titles = append(titles, title)
		}
		return hit
	})
	if titleCol != "" {
		out.DropColumn("Title")
		out.InsertColumn(1, "Title", titles)
	} else {
		log.Warn("quality assessment table has no title column; keeping extraction titles")
	}
	pct := 0.0
	if ext.Len() > 0 {
		pct = float64(out.Len()) / float64(ext.Len()) * 100
	}
	log.Info("filtered data extraction table", zap.Int("retained", out.Len()), zap.String("proportion", fmt.Sprintf("%.2f%%", pct)))
	return out, nil
}

// FilterFinalFiles reads both tables, filters and writes final_included_literature.xlsx to outDir.
func FilterFinalFiles(qaPath, extPath, outDir string, log *zap.Logger) (*table.Table, string, error) {
	qa, err := table.ReadXLSX(qaPath, quality.SheetName)
	if err != nil {
		if qa, err = table.Read(qaPath); err != nil {
			return nil, "", fmt.Errorf("load quality assessment table: %w", err)
		}
	}
	ext, err := table.Read(extPath)
	if err != nil {
		return nil, "", fmt.Errorf("load data extraction table: %w", err)
	}
	out, err := FilterFinal(qa, ext, log)
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(outDir, FinalFile)
	if err := table.WriteXLSX(path, "", out); err != nil {
		return nil, "", fmt.Errorf("write final included literature: %w", err)
	}
	return out, path, nil
}

func numericNo(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
