package screener

import (
	"fmt"

	"litreview/internal/search"
	"litreview/internal/table"
	"litreview/internal/util"
)

// Record is one study offered to the screener.
type Record struct {
	No       string `json:"no,omitempty"`
	Title    string `json:"title"`
	Year     string `json:"year"`
	Abstract string `json:"abstract"`
	FullText string `json:"full_text,omitempty"`
}

// LoadRecords reads records from a merged search export, or from a reviewer
// table with Title and Year columns.
func LoadRecords(t *table.Table) ([]Record, error) {
	titleCol := pick(t, search.ColArticleTitle, "Title")
	yearCol := pick(t, search.ColPublicationYear, "Year")
	if titleCol == "" || yearCol == "" {
		return nil, fmt.Errorf("load screening records: %w", &util.MissingColumnsError{
			Source:  "screening records",
			Columns: []string{search.ColArticleTitle + " or Title", search.ColPublicationYear + " or Year"},
		})
	}
	out := make([]Record, 0, t.Len())
	for r := range t.Rows {
		abstract := t.Get(r, search.ColAbstract)
		if table.IsBlank(abstract) {
			abstract = ""
		}
		out = append(out, Record{
			No:       t.Get(r, table.NoColumn),
			Title:    t.Get(r, titleCol),
			Year:     t.Get(r, yearCol),
			Abstract: abstract,
		})
	}
	return out, nil
}

// LoadRecordsFile reads records from a CSV or XLSX file.
func LoadRecordsFile(path string) ([]Record, error) {
	t, err := table.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load screening records: %w", err)
	}
	return LoadRecords(t)
}

func pick(t *table.Table, cols ...string) string {
	for _, c := range cols {
		if t.Has(c) {
			return c
		}
	}
	return ""
}
