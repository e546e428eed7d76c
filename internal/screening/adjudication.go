package screening

import (
	"fmt"
	"strings"

	"litreview/internal/table"
)

// R3 remarks that are tallied separately in the adjudication report.
var RestrictionNotes = []string{
	"Access restrictions.",
	"Payment restrictions.",
	"Non-English literature",
}

// RuleStat is a count plus the No. values that met one final-decision rule.
type RuleStat struct {
	Label string   `json:"label"`
	Count int      `json:"count"`
	Nos   []string `json:"nos"`
}

// AdjudicationReport summarizes a three-reviewer worksheet.
type AdjudicationReport struct {
	Source       string         `json:"source"`
	Total        int            `json:"total"`
	NeedR3       int            `json:"need_r3"`
	R3Decisions  []ValueCount   `json:"r3_decisions"`
	Restrictions map[string]int `json:"restrictions"`
	Included     []RuleStat     `json:"included"`
	Excluded     []RuleStat     `json:"excluded"`
}

func (r *AdjudicationReport) IncludedTotal() int { return sumRules(r.Included) }
func (r *AdjudicationReport) ExcludedTotal() int { return sumRules(r.Excluded) }

// R3Distribution maps each R3 decision among Need_R3 rows to its count.
func (r *AdjudicationReport) R3Distribution() map[string]int {
	out := make(map[string]int, len(r.R3Decisions))
	for _, vc := range r.R3Decisions {
		out[vc.Label] = vc.Count
	}
	return out
}

func sumRules(rs []RuleStat) int {
	n := 0
	for _, r := range rs {
		n += r.Count
	}
	return n
}

type adjRow struct {
	no, r1, r2, r3, need, notes string
}

// CheckAdjudication classifies every study of an R1/R2/R3 worksheet. A study is
// finally included when both reviewers included it, or when R3 included it
// after a flagged (Need_R3 = yes) double unsure or disagreement. Exclusion
// mirrors the same three rules.
func CheckAdjudication(t *table.Table) (*AdjudicationReport, error) {
	if err := t.Require("adjudication", table.NoColumn, ColTitle, ColYear, ColR1, ColR2, ColR3, ColR3Notes, ColNeedR3); err != nil {
		return nil, fmt.Errorf("check adjudication: %w", err)
	}
	rows := make([]adjRow, t.Len())
	for i := range t.Rows {
		rows[i] = adjRow{
			no:    t.Get(i, table.NoColumn),
			r1:    NormalizeDecision(t.Get(i, ColR1)),
			r2:    NormalizeDecision(t.Get(i, ColR2)),
			r3:    NormalizeDecision(t.Get(i, ColR3)),
			need:  NormalizeDecision(t.Get(i, ColNeedR3)),
			notes: t.Get(i, ColR3Notes),
		}
	}

	rep := &AdjudicationReport{Total: len(rows), Restrictions: map[string]int{}}
	var r3 []string
	for _, n := range RestrictionNotes {
		rep.Restrictions[n] = 0
	}
	for _, row := range rows {
		if row.need != "yes" {
			continue
		}
		rep.NeedR3++
		r3 = append(r3, row.r3)
		if _, ok := rep.Restrictions[row.notes]; ok {
			rep.Restrictions[row.notes]++
		}
	}
	rep.R3Decisions = countValues(r3)

	rules := func(final string) []RuleStat {
		stats := []RuleStat{
			{Label: fmt.Sprintf("R1 = R2 = '%s'", final), Nos: []string{}},
			{Label: fmt.Sprintf("R1 = R2 = 'unsure' and R3 = '%s'", final), Nos: []string{}},
			{Label: fmt.Sprintf("R1 ≠ R2 and R3 = '%s'", final), Nos: []string{}},
		}
		for _, row := range rows {
			rule := -1
			switch {
			case row.r1 == final && row.r2 == final:
				rule = 0
			case row.r1 == Unsure && row.r2 == Unsure && row.r3 == final && row.need == "yes":
				rule = 1
			case row.r1 != row.r2 && row.r3 == final && row.need == "yes":
				rule = 2
			}
			if rule < 0 {
				continue
			}
			stats[rule].Count++
			if !table.IsBlank(row.no) {
				stats[rule].Nos = append(stats[rule].Nos, formatNo(row.no))
			}
		}
		return stats
	}
	rep.Included = rules(Include)
	rep.Excluded = rules(Exclude)
	return rep, nil
}

// Text renders the plain-text adjudication report.
func (r *AdjudicationReport) Text() string {
	var b strings.Builder
	fmt.Fprintln(&b, banner)
	fmt.Fprintln(&b, "Three-round (R1/R2/R3) screening consistency summary")
	fmt.Fprintf(&b, "Data file: %s\n", r.Source)
	fmt.Fprintf(&b, "Total records: %d\n", r.Total)
	fmt.Fprintln(&b, banner)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[R3_Decision distribution where Need_R3 = 'yes']")
	fmt.Fprintf(&b, "  Total records with Need_R3 = 'yes': %d\n", r.NeedR3)
	if r.NeedR3 == 0 {
		fmt.Fprintln(&b, "  No records require R3 decisions.")
	}
	for _, vc := range r.R3Decisions {
		fmt.Fprintf(&b, "  '%s': %d records\n", vc.Label, vc.Count)
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[R3_Notes summary for specific restriction-related values where Need_R3 = 'yes']")
	for _, n := range RestrictionNotes {
		fmt.Fprintf(&b, "  '%s': %d records\n", n, r.Restrictions[n])
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[Final included studies]")
	fmt.Fprintf(&b, "  Total: %d\n", r.IncludedTotal())
	for i, s := range r.Included {
		fmt.Fprintf(&b, "  (%d) %s: %d studies, No.: %s\n", i+1, s.Label, s.Count, bracketList(s.Nos))
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[Final excluded studies]")
	fmt.Fprintf(&b, "  Total: %d\n", r.ExcludedTotal())
	for i, s := range r.Excluded {
		fmt.Fprintf(&b, "  (%d) %s: %d studies\n", i+1, s.Label, s.Count)
	}
	return b.String()
}
