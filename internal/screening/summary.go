package screening

import (
	"fmt"
	"sort"
	"strings"

	"litreview/internal/table"
	"litreview/internal/util"
)

// RoundFile names one reviewer round and the table holding its decisions.
type RoundFile struct {
	Label string
	Path  string
}

// SummarizeRound renders the decision distribution of one round and the No.
// lists of every record not excluded. Read failures and missing columns are
// reported inline.
func SummarizeRound(rf RoundFile) string {
	var b strings.Builder
	fmt.Fprintln(&b, "------------------------------------------------------")
	fmt.Fprintf(&b, "Round: %s\n", rf.Label)
	fmt.Fprintf(&b, "Result file: %s\n", rf.Path)
	fmt.Fprintln(&b)
	if !util.FileExists(rf.Path) {
		fmt.Fprintf(&b, "[ERROR] File not found: %s\n", rf.Path)
		return b.String()
	}
	t, err := table.Read(rf.Path)
	if err != nil {
		fmt.Fprintf(&b, "[ERROR] Failed to read result file: %v\n", err)
		return b.String()
	}

	fmt.Fprintln(&b, "[1] Distribution of values in 'Decision' column")
	b.WriteString(decisionCounts(t))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "[2] Records with Decision != 'exclude' (grouped by Decision)")
	b.WriteString(nonExcludeByDecision(t))
	return b.String()
}

func decisionCounts(t *table.Table) string {
	if !t.Has(ColDecision) {
		return "  [ERROR] 'Decision' column is missing; cannot compute statistics.\n"
	}
	if t.Len() == 0 {
		return "  [INFO] 'Decision' column is empty; nothing to summarize.\n"
	}
	labels := make([]string, 0, t.Len())
	for _, v := range t.Column(ColDecision) {
		if v == "" {
			v = "NaN"
		}
		labels = append(labels, v)
	}
	var b strings.Builder
	for _, vc := range countValues(labels) {
		fmt.Fprintf(&b, "  '%s': %d records\n", vc.Label, vc.Count)
	}
	return b.String()
}

func nonExcludeByDecision(t *table.Table) string {
	if err := t.Require("", ColDecision, table.NoColumn); err != nil {
		return fmt.Sprintf("  [ERROR] %v; cannot list non-'exclude' records.\n", err)
	}
	groups := map[string][]string{}
	total := 0
	for i := range t.Rows {
		d := strings.TrimSpace(t.Get(i, ColDecision))
		if d == "" {
			d = "nan"
		}
		if strings.EqualFold(d, Exclude) {
			continue
		}
		total++
		groups[d] = append(groups[d], t.Get(i, table.NoColumn))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  Total %d records with Decision != 'exclude'.\n", total)
	if total == 0 {
		fmt.Fprintln(&b, "  No records requiring further attention.")
		return b.String()
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		label := k
		if strings.EqualFold(k, "nan") {
			label = "NaN"
		}
		fmt.Fprintf(&b, "  %s: %s\n", label, bracketList(noList(groups[k])))
	}
	return b.String()
}

// Summarize renders the decision summary across rounds.
func Summarize(resultDir, outputPath string, rounds []RoundFile) string {
	sections := []string{strings.Join([]string{
		banner,
		"Double-blind screening decision summary",
		"Result directory: " + resultDir,
		"Output file: " + outputPath,
		banner,
		"",
	}, "\n")}
	for _, rf := range rounds {
		sections = append(sections, SummarizeRound(rf))
	}
	return strings.TrimRight(strings.Join(sections, "\n\n"), "\n ") + "\n"
}
