package screening

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"litreview/internal/models"
	"litreview/internal/table"
	"litreview/internal/util"
)

func round(rows ...[]string) *table.Table {
	t := table.New("No.", "Title", "Year", "Decision", "Notes")
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func sampleRounds() (*table.Table, *table.Table) {
	r1 := round(
		[]string{"1", "Alpha", "2021", "Include", "n1"},
		[]string{"2", "Beta", "2022", "exclude", ""},
		[]string{"3", "Gamma", "2023 ", "unsure", ""},
		[]string{"4", "Delta", "2024", "include", ""},
		[]string{"5", "Only R1", "2020", "include", ""},
	)
	r2 := round(
		[]string{"1", "Alpha", "2021", "include", "n2"},
		[]string{"2", "Beta", "2022", " EXCLUDE", ""},
		[]string{"4", "Gamma", "2023", "unsure", ""},
		[]string{"3", "Delta", "2024", "exclude", ""},
	)
	return r1, r2
}

func TestCheckConsistencyCategories(t *testing.T) {
	r1, r2 := sampleRounds()
	rep, err := CheckConsistency(r1, r2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Pairs) != 4 {
		t.Fatalf("expected 4 aligned pairs, got %d", len(rep.Pairs))
	}
	want := []CategoryStat{
		{Name: BothInclude, Count: 1, NoR1: []string{"1"}, NoR2: []string{"1"}},
		{Name: BothExclude, Count: 1, NoR1: []string{"2"}, NoR2: []string{"2"}},
		{Name: BothUnsure, Count: 1, NoR1: []string{"3"}, NoR2: []string{"4"}},
		{Name: DecisionMismatch, Count: 1, NoR1: []string{"4"}, NoR2: []string{"3"}},
	}
	if diff := cmp.Diff(want, rep.Categories()); diff != "" {
		t.Fatalf("categories mismatch (-want +got):\n%s", diff)
	}
	if n := len(rep.NoMismatches()); n != 2 {
		t.Fatalf("expected 2 No. mismatches, got %d", n)
	}
	if rep.NeedR3Count() != 2 {
		t.Fatalf("expected 2 rows needing R3, got %d", rep.NeedR3Count())
	}
}

func TestConsistencyExportFlagsNeedR3(t *testing.T) {
	r1, r2 := sampleRounds()
	rep, err := CheckConsistency(r1, r2)
	if err != nil {
		t.Fatal(err)
	}
	got := rep.Export()
	want := &table.Table{
		Columns: ExportColumns,
		Rows: [][]string{
			{"1", "Alpha", "2021", "include", "n1", "include", "n2", "No"},
			{"2", "Beta", "2022", "exclude", "", "exclude", "", "No"},
			{"3", "Gamma", "2023", "unsure", "", "unsure", "", "Yes"},
			{"4", "Delta", "2024", "include", "", "exclude", "", "Yes"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}
}

func TestConsistencyTextReport(t *testing.T) {
	r1, r2 := sampleRounds()
	rep, _ := CheckConsistency(r1, r2)
	rep.R1Source, rep.R2Source = "r1.xlsx", "r2.xlsx"
	text := rep.Text()
	for _, want := range []string{
		"Double-blind screening consistency analysis (aligned by Title + Year)",
		"Aligned sample size: 4",
		"Count of records with No._R1 ≠ No._R2: 2",
		"    - 3 → 4",
		"  Count (R1 ≠ R2 (Decision mismatch)): 1",
		"  R1 No.: [4]",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}
}

func TestCheckConsistencyDuplicateKeysPairEveryMatch(t *testing.T) {
	r1 := round([]string{"1", "Dup", "2021", "include", ""})
	r2 := round(
		[]string{"1", "Dup", "2021", "include", ""},
		[]string{"2", "Dup", "2021", "exclude", ""},
	)
	rep, err := CheckConsistency(r1, r2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(rep.Pairs))
	}
}

func TestCheckConsistencyMissingColumns(t *testing.T) {
	r2 := table.New("Title", "Year")
	_, err := CheckConsistency(round(), r2)
	if !errors.Is(err, util.ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
}

func TestDecisionsMirrorExport(t *testing.T) {
	r1, r2 := sampleRounds()
	rep, err := CheckConsistency(r1, r2)
	if err != nil {
		t.Fatal(err)
	}
	got := Decisions("run-1", rep)
	want := []models.Decision{
		{RunID: "run-1", No: "1", Title: "Alpha", Year: "2021", R1Decision: "include", R2Decision: "include"},
		{RunID: "run-1", No: "2", Title: "Beta", Year: "2022", R1Decision: "exclude", R2Decision: "exclude"},
		{RunID: "run-1", No: "3", Title: "Gamma", Year: "2023", R1Decision: "unsure", R2Decision: "unsure", NeedR3: true},
		{RunID: "run-1", No: "4", Title: "Delta", Year: "2024", R1Decision: "include", R2Decision: "exclude", NeedR3: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decisions mismatch (-want +got):\n%s", diff)
	}
}
