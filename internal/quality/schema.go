// Package quality merges per-study quality assessments into one table and
// summarizes it against the ten fixed appraisal standards.
package quality

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Standard is one of the ten appraisal items a reviewer scores per study.
type Standard struct {
	ID    string `yaml:"id" json:"id"`
	Field string `yaml:"field" json:"field"`
	Title string `yaml:"title" json:"title"`
}

func (s Standard) ScoreColumn() string { return s.ID + "_" + s.Field + "_score" }
func (s Standard) NotesColumn() string { return s.ID + "_" + s.Field + "_notes" }

var standards = []Standard{
	{ID: "q1", Field: "research_aims_clarity", Title: "Research aims and questions are clearly stated"},
	{ID: "q2", Field: "participant_info", Title: "Participant characteristics are reported"},
	{ID: "q3", Field: "sampling_and_power", Title: "Sampling is described and sample size is justified"},
	{ID: "q4", Field: "group_allocation_and_bias", Title: "Group allocation limits selection bias"},
	{ID: "q5", Field: "longitudinal_design", Title: "Design includes delayed or repeated measurement"},
	{ID: "q6", Field: "measurement_reliability_validity", Title: "Writing measures are reliable and valid"},
	{ID: "q7", Field: "intervention_procedure_and_duration", Title: "LLM intervention procedure and duration are described"},
	{ID: "q8", Field: "statistical_method_appropriateness", Title: "Statistical methods suit the design"},
	{ID: "q9", Field: "assumption_and_effect_size", Title: "Assumptions are checked and effect sizes reported"},
	{ID: "q10", Field: "outliers_and_interpretation", Title: "Outliers are handled and results interpreted cautiously"},
}

// Standards returns a copy of the ten appraisal standards in order.
func Standards() []Standard {
	out := make([]Standard, len(standards))
	copy(out, standards)
	return out
}

// Metadata and verdict columns that lead the merged table.
const (
	ColNo                   = "no"
	ColNoRaw                = "no_raw"
	ColTotalScore           = "total_quality_score"
	ColCategory             = "quality_category"
	ColIncludeMainSynthesis = "include_in_main_synthesis"
	ColIncludeMetaAnalysis  = "include_in_meta_analysis"
	SheetName               = "Quality_Assessment_Data"
	MergedFile              = "quality_assessment_table.xlsx"
	SummaryFile             = "quality_assessment_summary.txt"
	InputSubdir             = "quality_assessment_texts"
)

var leadingColumns = []string{
	ColNo,
	"study_id",
	"first_author_year",
	"year",
	"title_short",
	"country_region",
	"llm_type_brief",
	"design_note_llm_specific",
	ColTotalScore,
	ColCategory,
	"key_quality_concerns",
	ColIncludeMainSynthesis,
	ColIncludeMetaAnalysis,
}

// ColumnOrder is the preferred layout: metadata and verdicts, the score/notes
// pair of every standard, then no_raw.
func ColumnOrder() []string {
	out := append([]string{}, leadingColumns...)
	for _, s := range standards {
		out = append(out, s.ScoreColumn(), s.NotesColumn())
	}
	return append(out, ColNoRaw)
}

// OrderColumns places known columns in ColumnOrder and appends the rest sorted.
func OrderColumns(cols []string) []string {
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c] = true
	}
	out := make([]string, 0, len(cols))
	for _, c := range ColumnOrder() {
		if present[c] {
			out = append(out, c)
			delete(present, c)
		}
	}
	extra := make([]string, 0, len(present))
	for c := range present {
		extra = append(extra, c)
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// IsScoreColumn reports whether col holds an integer score.
func IsScoreColumn(col string) bool {
	return strings.HasSuffix(col, "_score") || col == ColTotalScore
}

// SchemaYAML renders the field mapping reviewers fill in, one entry per column.
func SchemaYAML() ([]byte, error) {
	type entry struct {
		Standard Standard `yaml:"standard"`
		Score    string   `yaml:"score_column"`
		Notes    string   `yaml:"notes_column"`
	}
	doc := struct {
		Metadata  []string `yaml:"metadata"`
		Standards []entry  `yaml:"standards"`
	}{Metadata: leadingColumns}
	for _, s := range standards {
		doc.Standards = append(doc.Standards, entry{Standard: s, Score: s.ScoreColumn(), Notes: s.NotesColumn()})
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal quality schema: %w", err)
	}
	return b, nil
}
