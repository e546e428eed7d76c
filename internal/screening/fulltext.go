package screening

import (
	"fmt"
	"strings"

	"litreview/internal/table"
)

const accessRestrictions = "access restrictions"

// FullTextResult is the stage-2 final inclusion tally.
type FullTextResult struct {
	Total    int        `json:"total"`
	Included []RuleStat `json:"included"`
	Excluded int        `json:"excluded"`

	UnsureMissingR3   RuleStat `json:"unsure_missing_r3"`
	MismatchMissingR3 RuleStat `json:"mismatch_missing_r3"`

	AccessRestricted         RuleStat `json:"access_restricted"`
	AccessRestrictedExcluded RuleStat `json:"access_restricted_excluded"`

	// IncludedRows holds the finally included rows with their original columns.
	IncludedRows *table.Table `json:"-"`
}

func (r *FullTextResult) IncludedTotal() int { return sumRules(r.Included) }

// FinalizeFullText applies the stage-2 inclusion rules. A study is included when
// both reviewers included it, or when R3 included it after a double unsure or a
// disagreement; Need_R3 is not consulted at this stage. Every other row is
// excluded. Rows that needed R3 but have no R3 decision are listed separately.
func FinalizeFullText(t *table.Table) (*FullTextResult, error) {
	if err := t.Require("full-text", ColR1, ColR2, ColR3); err != nil {
		return nil, fmt.Errorf("finalize full text: %w", err)
	}
	res := &FullTextResult{
		Total: t.Len(),
		Included: []RuleStat{
			{Label: "R1 = R2 = include", Nos: []string{}},
			{Label: "R1 = R2 = unsure, R3 = include", Nos: []string{}},
			{Label: "R1 ≠ R2, R3 = include", Nos: []string{}},
		},
		UnsureMissingR3:          RuleStat{Label: "R1 = R2 = unsure, R3 missing", Nos: []string{}},
		MismatchMissingR3:        RuleStat{Label: "R1 ≠ R2, R3 missing", Nos: []string{}},
		AccessRestricted:         RuleStat{Label: "All Access restrictions", Nos: []string{}},
		AccessRestrictedExcluded: RuleStat{Label: "Excluded Access restrictions", Nos: []string{}},
	}
	hasNo := t.Has(table.NoColumn)
	hasRemark := t.Has(ColRemark)
	mark := func(s *RuleStat, row int) {
		s.Count++
		if no := t.Get(row, table.NoColumn); hasNo && !table.IsBlank(no) {
			s.Nos = append(s.Nos, formatNo(no))
		}
	}

	included := make([]bool, t.Len())
	for i := range t.Rows {
		r1 := NormalizeDecision(t.Get(i, ColR1))
		r2 := NormalizeDecision(t.Get(i, ColR2))
		r3raw := t.Get(i, ColR3)
		r3 := NormalizeDecision(r3raw)

		rule := -1
		switch {
		case r1 == Include && r2 == Include:
			rule = 0
		case r1 == Unsure && r2 == Unsure && r3 == Include:
			rule = 1
		case r1 != r2 && r3 == Include:
			rule = 2
		}
		if rule >= 0 {
			included[i] = true
			mark(&res.Included[rule], i)
		} else {
			res.Excluded++
		}

		if table.IsBlank(r3raw) {
			switch {
			case r1 == Unsure && r2 == Unsure:
				mark(&res.UnsureMissingR3, i)
			case r1 != r2:
				mark(&res.MismatchMissingR3, i)
			}
		}

		if hasRemark && normalizeRemark(t.Get(i, ColRemark)) == accessRestrictions {
			mark(&res.AccessRestricted, i)
			if !included[i] {
				mark(&res.AccessRestrictedExcluded, i)
			}
		}
	}
	res.IncludedRows = t.Filter(func(row int) bool { return included[row] })
	return res, nil
}

func normalizeRemark(s string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(s), "."))
}

// Text renders the stage-2 summary in five numbered sections.
func (r *FullTextResult) Text() string {
	rule := strings.Repeat("=", 58)
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "Stage 2 Full-text – Final Inclusion Summary")
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "1. Overall counts")
	fmt.Fprintf(&b, "- Total records                   : %d\n", r.Total)
	fmt.Fprintf(&b, "- Final included (any category)   : %d\n", r.IncludedTotal())
	fmt.Fprintf(&b, "- Final excluded                  : %d\n", r.Excluded)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "2. Final inclusion categories")
	for i, s := range r.Included {
		fmt.Fprintf(&b, "- (%d) %-33s: %d\n", i+1, s.Label, s.Count)
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "3. R3 missing checks")
	fmt.Fprintf(&b, "- %-29s: %d\n", r.UnsureMissingR3.Label, r.UnsureMissingR3.Count)
	fmt.Fprintf(&b, "- %-29s: %d\n", r.MismatchMissingR3.Label, r.MismatchMissingR3.Count)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "4. Access restrictions (Remark)")
	fmt.Fprintf(&b, "- All records with Remark = 'Access restrictions'     : %d\n", r.AccessRestricted.Count)
	fmt.Fprintf(&b, "- Excluded records with Remark = 'Access restrictions': %d\n", r.AccessRestrictedExcluded.Count)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "5. No. lists (if available)")
	lists := []RuleStat{}
	for i, s := range r.Included {
		lists = append(lists, RuleStat{Label: fmt.Sprintf("Final included (%d) %s", i+1, s.Label), Nos: s.Nos})
	}
	lists = append(lists, r.UnsureMissingR3, r.MismatchMissingR3, r.AccessRestricted, r.AccessRestrictedExcluded)
	printed := false
	for _, s := range lists {
		if len(s.Nos) == 0 {
			continue
		}
		printed = true
		fmt.Fprintf(&b, "- %-49s: %s\n", s.Label, quotedList(s.Nos))
	}
	if !printed {
		fmt.Fprintln(&b, "- Column 'No.' is missing or empty; No. lists not printed.")
	}
	fmt.Fprintln(&b)
	b.WriteString(rule)
	return b.String()
}
