package search

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"litreview/internal/table"
)

var documentTypes = map[string]string{
	"IEEE Conferences":               "Conference Paper",
	"Conference paper":               "Conference Paper",
	"Proceedings Paper":              "Conference Paper",
	"Conference review":              "Conference Paper",
	"IEEE Journals":                  "Journal Article",
	"IEEE Early Access Articles":     "Early Access",
	"Article":                        "Journal Article",
	"Article; Early Access":          "Early Access",
	"Article; Retracted Publication": "Retracted",
	"Retracted":                      "Retracted",
	"Review":                         "Review",
	"Book chapter":                   "Book Chapter",
	"Book":                           "Book",
	"Editorial Material":             "Editorial",
	"Note":                           "Note",
	"Erratum":                        "Erratum",
	"Letter":                         "Letter",
	"Article; Book Chapter":          "Book Chapter",
}

// KeptDocumentTypes survive FilterDocumentTypes, along with any ERIC type
// containing EricResearchReport.
var KeptDocumentTypes = []string{"Journal Article", "Conference Paper", "Early Access"}

const EricResearchReport = "Journal Articles : Information Analyses : Reports - Research"

// StandardDocumentType maps a source-specific label onto the shared labels.
// ERIC labels starting with "Journal Articles" are journal articles; unknown
// labels are kept trimmed.
func StandardDocumentType(raw string) string {
	if table.IsBlank(raw) {
		return raw
	}
	if strings.HasPrefix(raw, "Journal Articles") {
		return "Journal Article"
	}
	v := strings.TrimSpace(raw)
	if std, ok := documentTypes[v]; ok {
		return std
	}
	return v
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// DocumentTypes counts the Document Type column, most frequent first.
func DocumentTypes(t *table.Table) []TypeCount {
	counts := map[string]int{}
	var order []string
	for _, v := range t.Column(ColDocumentType) {
		if table.IsBlank(v) {
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	out := make([]TypeCount, 0, len(order))
	for _, v := range order {
		out = append(out, TypeCount{Type: v, Count: counts[v]})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	return out
}

// FilterDocumentTypes standardizes Document Type, keeps journal articles,
// conference papers and early access records, and renumbers No.
func FilterDocumentTypes(t *table.Table, log *zap.Logger) (*table.Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := t.Require("search records", ColDocumentType); err != nil {
		return nil, fmt.Errorf("filter document types: %w", err)
	}
	std := t.Clone()
	for r := range std.Rows {
		std.Set(r, ColDocumentType, StandardDocumentType(std.Get(r, ColDocumentType)))
	}
	keep := map[string]bool{}
	for _, k := range KeptDocumentTypes {
		keep[k] = true
	}
	out := std.Filter(func(r int) bool {
		v := std.Get(r, ColDocumentType)
		return keep[v] || strings.Contains(v, EricResearchReport)
	})
	out.Renumber()
	log.Info("filtered document types", zap.Int("before", t.Len()), zap.Int("after", out.Len()))
	for _, c := range DocumentTypes(out) {
		log.Info("document type", zap.String("type", c.Type), zap.Int("count", c.Count))
	}
	return out, nil
}

// FilterDocumentTypesFile filters the merged export in place.
func FilterDocumentTypesFile(path string, log *zap.Logger) (*table.Table, error) {
	t, err := table.Read(path)
	if err != nil {
		return nil, fmt.Errorf("filter document types: %w", err)
	}
	out, err := FilterDocumentTypes(t, log)
	if err != nil {
		return nil, err
	}
	if err := table.Write(path, "", out); err != nil {
		return nil, fmt.Errorf("filter document types: %w", err)
	}
	return out, nil
}
