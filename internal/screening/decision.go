// Package screening merges reviewer rounds, checks double-blind agreement and
// tabulates adjudicated inclusion decisions.
package screening

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"litreview/internal/table"
	"litreview/internal/util"
)

const (
	Include = "include"
	Exclude = "exclude"
	Unsure  = "unsure"
)

// Column names shared by reviewer exports.
const (
	ColTitle    = "Title"
	ColYear     = "Year"
	ColDecision = "Decision"
	ColNotes    = "Notes"
	ColNeedR3   = "Need_R3"
	ColR1       = "R1_Decision"
	ColR2       = "R2_Decision"
	ColR3       = "R3_Decision"
	ColR1Notes  = "R1_Notes"
	ColR2Notes  = "R2_Notes"
	ColR3Notes  = "R3_Notes"
	ColRemark   = "Remark"
)

// Output and input file names used across a review stage directory.
const (
	BatchPattern           = "%s_analysis_batch_*.csv"
	BatchFile              = "%s_analysis_batch_%03d.csv"
	ResultsBase            = "%s_analysis_results"
	ConsistencyReportFile  = "double_blind_consistency_report.txt"
	ConsistencyExportFile  = "R1_R2_analysis_results.xlsx"
	SummaryFile            = "double_blind_decision_summary.txt"
	AdjudicationInputFile  = "R1_R2_R3_analysis_results.xlsx"
	AdjudicationReportFile = "triple_blind_consistency_report.txt"
	FinalIncludedFile      = "R1_R2_R3_final_included_studies.xlsx"
	FinalSummaryFile       = "R1_R2_R3_final_included_summary.txt"
)

// NormalizeDecision trims and lowercases a decision cell. Blank cells map to "nan"
// so that two blank decisions still compare equal.
func NormalizeDecision(s string) string {
	if table.IsBlank(s) {
		return "nan"
	}
	return table.Norm(s)
}

// ResultsPath finds a reviewer's merged results in dir, preferring a reviewed
// .xlsx copy over the merged .csv.
func ResultsPath(dir, reviewer string) string {
	base := fmt.Sprintf(ResultsBase, reviewer)
	xlsx := filepath.Join(dir, base+".xlsx")
	if util.FileExists(xlsx) {
		return xlsx
	}
	return filepath.Join(dir, base+".csv")
}

// formatNo renders a No. cell the way reviewers number studies: "3.0" is "3".
func formatNo(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// noList collects the formatted No. values, skipping blanks.
func noList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if table.IsBlank(v) {
			continue
		}
		out = append(out, formatNo(v))
	}
	return out
}

func bracketList(nos []string) string {
	return "[" + strings.Join(nos, ", ") + "]"
}

// quotedList renders nos as ['1', '2'].
func quotedList(nos []string) string {
	q := make([]string, len(nos))
	for i, n := range nos {
		q[i] = "'" + n + "'"
	}
	return "[" + strings.Join(q, ", ") + "]"
}

// ValueCount is one label of a frequency table.
type ValueCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// countValues counts labels by frequency, ties in first-seen order.
func countValues(labels []string) []ValueCount {
	idx := map[string]int{}
	var out []ValueCount
	for _, l := range labels {
		if i, ok := idx[l]; ok {
			out[i].Count++
			continue
		}
		idx[l] = len(out)
		out = append(out, ValueCount{Label: l, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

const banner = "======================================================"
