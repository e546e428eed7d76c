package screening

import (
	"fmt"
	"strconv"
	"strings"

	"litreview/internal/models"
	"litreview/internal/table"
)

// Pair is one study both reviewers screened, aligned on Title and Year.
type Pair struct {
	Title      string `json:"title"`
	Year       string `json:"year"`
	NoR1       string `json:"no_r1"`
	NoR2       string `json:"no_r2"`
	DecisionR1 string `json:"decision_r1"`
	DecisionR2 string `json:"decision_r2"`
	NotesR1    string `json:"notes_r1"`
	NotesR2    string `json:"notes_r2"`
}

// NeedsR3 reports whether the pair goes to a third reviewer.
func (p Pair) NeedsR3() bool {
	return (p.DecisionR1 == Unsure && p.DecisionR2 == Unsure) || p.DecisionR1 != p.DecisionR2
}

// Category names in report order.
const (
	BothInclude      = "both_include"
	BothExclude      = "both_exclude"
	BothUnsure       = "both_unsure"
	DecisionMismatch = "decision_mismatch"
)

var categoryOrder = []string{BothInclude, BothExclude, BothUnsure, DecisionMismatch}

var categoryText = map[string]string{
	BothInclude:      "R1 = R2 = 'include'",
	BothExclude:      "R1 = R2 = 'exclude'",
	BothUnsure:       "R1 = R2 = 'unsure'",
	DecisionMismatch: "R1 ≠ R2 (Decision mismatch)",
}

// ConsistencyReport is the aligned double-blind result.
type ConsistencyReport struct {
	R1Source string
	R2Source string
	Pairs    []Pair
}

// CategoryStat holds the R1 and R2 No. lists of one agreement category.
type CategoryStat struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	NoR1  []string `json:"no_r1"`
	NoR2  []string `json:"no_r2"`
}

// CheckConsistency inner-joins two reviewer tables on (Title, Year). Year is
// trimmed and Decision is trimmed and lowercased before comparison. Join order
// follows r1; a key repeated on both sides yields every combination.
func CheckConsistency(r1, r2 *table.Table) (*ConsistencyReport, error) {
	required := []string{ColTitle, ColYear, ColDecision, table.NoColumn}
	if err := r1.Require("R1", required...); err != nil {
		return nil, fmt.Errorf("check consistency: %w", err)
	}
	if err := r2.Require("R2", required...); err != nil {
		return nil, fmt.Errorf("check consistency: %w", err)
	}

	type key struct{ title, year string }
	right := map[key][]int{}
	for i := range r2.Rows {
		k := key{r2.Get(i, ColTitle), strings.TrimSpace(r2.Get(i, ColYear))}
		right[k] = append(right[k], i)
	}

	rep := &ConsistencyReport{}
	for i := range r1.Rows {
		k := key{r1.Get(i, ColTitle), strings.TrimSpace(r1.Get(i, ColYear))}
		for _, j := range right[k] {
			rep.Pairs = append(rep.Pairs, Pair{
				Title:      k.title,
				Year:       k.year,
				NoR1:       r1.Get(i, table.NoColumn),
				NoR2:       r2.Get(j, table.NoColumn),
				DecisionR1: NormalizeDecision(r1.Get(i, ColDecision)),
				DecisionR2: NormalizeDecision(r2.Get(j, ColDecision)),
				NotesR1:    r1.Get(i, ColNotes),
				NotesR2:    r2.Get(j, ColNotes),
			})
		}
	}
	return rep, nil
}

// NoMismatches lists the aligned pairs whose No. differs between reviewers.
func (r *ConsistencyReport) NoMismatches() []Pair {
	var out []Pair
	for _, p := range r.Pairs {
		if formatNo(p.NoR1) != formatNo(p.NoR2) {
			out = append(out, p)
		}
	}
	return out
}

// Categories splits the aligned pairs by agreement.
func (r *ConsistencyReport) Categories() []CategoryStat {
	stats := make([]CategoryStat, len(categoryOrder))
	index := map[string]int{}
	for i, name := range categoryOrder {
		stats[i] = CategoryStat{Name: name, NoR1: []string{}, NoR2: []string{}}
		index[name] = i
	}
	add := func(name string, p Pair) {
		s := &stats[index[name]]
		s.Count++
		if !table.IsBlank(p.NoR1) {
			s.NoR1 = append(s.NoR1, formatNo(p.NoR1))
		}
		if !table.IsBlank(p.NoR2) {
			s.NoR2 = append(s.NoR2, formatNo(p.NoR2))
		}
	}
	for _, p := range r.Pairs {
		switch {
		case p.DecisionR1 != p.DecisionR2:
			add(DecisionMismatch, p)
		case p.DecisionR1 == Include:
			add(BothInclude, p)
		case p.DecisionR1 == Exclude:
			add(BothExclude, p)
		case p.DecisionR1 == Unsure:
			add(BothUnsure, p)
		}
	}
	return stats
}

// NeedR3Count is the number of pairs flagged for adjudication.
func (r *ConsistencyReport) NeedR3Count() int {
	n := 0
	for _, p := range r.Pairs {
		if p.NeedsR3() {
			n++
		}
	}
	return n
}

// Text renders the plain-text consistency report.
func (r *ConsistencyReport) Text() string {
	var b strings.Builder
	fmt.Fprintln(&b, banner)
	fmt.Fprintln(&b, "Double-blind screening consistency analysis (aligned by Title + Year)")
	fmt.Fprintf(&b, "R1 file: %s\n", r.R1Source)
	fmt.Fprintf(&b, "R2 file: %s\n", r.R2Source)
	fmt.Fprintf(&b, "Aligned sample size: %d\n", len(r.Pairs))
	fmt.Fprintln(&b, banner)
	fmt.Fprintln(&b)

	mismatches := r.NoMismatches()
	fmt.Fprintln(&b, "[No. consistency check (aligned by Title + Year)]")
	fmt.Fprintf(&b, "  Total aligned samples: %d\n", len(r.Pairs))
	fmt.Fprintf(&b, "  Count of records with No._R1 = No._R2: %d\n", len(r.Pairs)-len(mismatches))
	fmt.Fprintf(&b, "  Count of records with No._R1 ≠ No._R2: %d\n", len(mismatches))
	if len(mismatches) == 0 {
		fmt.Fprintln(&b, "  All aligned records have consistent No. values.")
	} else {
		fmt.Fprintln(&b, "  No. mismatch pairs (No._R1 → No._R2):")
		for _, p := range mismatches {
			fmt.Fprintf(&b, "    - %s → %s\n", formatNo(p.NoR1), formatNo(p.NoR2))
		}
	}

	for _, s := range r.Categories() {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "  Count (%s): %d\n", categoryText[s.Name], s.Count)
		fmt.Fprintf(&b, "  R1 No.: %s\n", bracketList(s.NoR1))
		fmt.Fprintf(&b, "  R2 No.: %s\n", bracketList(s.NoR2))
	}
	return b.String()
}

// ExportColumns is the column layout of R1_R2_analysis_results.
var ExportColumns = []string{
	table.NoColumn, ColTitle, ColYear, ColR1, ColR1Notes, ColR2, ColR2Notes, ColNeedR3,
}

// Export builds the adjudication worksheet: one row per aligned pair, renumbered
// from 1, with Need_R3 = Yes when both reviewers are unsure or disagree.
func (r *ConsistencyReport) Export() *table.Table {
	t := table.New(ExportColumns...)
	for i, p := range r.Pairs {
		need := "No"
		if p.NeedsR3() {
			need = "Yes"
		}
		t.Append([]string{
			strconv.Itoa(i + 1), p.Title, p.Year,
			p.DecisionR1, p.NotesR1, p.DecisionR2, p.NotesR2, need,
		})
	}
	return t
}

// Decisions converts the aligned pairs to ledger rows, numbered like Export.
func Decisions(runID string, r *ConsistencyReport) []models.Decision {
	out := make([]models.Decision, len(r.Pairs))
	for i, p := range r.Pairs {
		out[i] = models.Decision{
			RunID:      runID,
			No:         strconv.Itoa(i + 1),
			Title:      p.Title,
			Year:       p.Year,
			R1Decision: p.DecisionR1,
			R2Decision: p.DecisionR2,
			NeedR3:     p.NeedsR3(),
		}
	}
	return out
}
