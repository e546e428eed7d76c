package quality

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"litreview/internal/table"
	"litreview/internal/util"
)

func writeText(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestColumnOrderCoversTenStandards(t *testing.T) {
	order := ColumnOrder()
	require.Len(t, Standards(), 10)
	require.Equal(t, "no", order[0])
	require.Equal(t, "no_raw", order[len(order)-1])
	require.Contains(t, order, "q10_outliers_and_interpretation_notes")
	require.Equal(t, len(leadingColumns)+20+1, len(order))
}

func TestOrderColumnsAppendsExtrasSorted(t *testing.T) {
	got := OrderColumns([]string{"zeta", "q1_research_aims_clarity_score", "alpha", "no", "quality_category"})
	want := []string{"no", "quality_category", "q1_research_aims_clarity_score", "alpha", "zeta"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeDirFlattensCoercesAndSorts(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeText(t, in, "10.txt", `{
		"no": "S10",
		"study_id (研究编号)": "Lee2024",
		"quality_category": "High",
		"total_quality_score": "9.0",
		"Appraisal": {"q1_research_aims_clarity_score (目标)": 1, "q1_research_aims_clarity_notes": "clear"}
	}`)
	writeText(t, in, "2.txt", `{"study_id": "Kim2023", "total_quality_score": "n/a", "extra_field": true}`)
	writeText(t, in, "3.txt", "   ")
	writeText(t, in, "4.txt", "{not json")

	res, err := NewMerger(nil).MergeDir(in, out)
	require.NoError(t, err)
	require.Equal(t, 2, res.Files)
	require.Len(t, res.Skipped, 2)

	tb := res.Table
	require.Equal(t, []string{"2", "10"}, tb.Column("no"))
	require.Equal(t, []string{"", "9"}, tb.Column("total_quality_score"))
	require.Equal(t, "S10", tb.Get(1, "no_raw"))
	require.Equal(t, "1", tb.Get(1, "Appraisal.q1_research_aims_clarity_score"))
	require.Equal(t, []string{"no", "study_id", "total_quality_score", "quality_category", "no_raw",
		"Appraisal.q1_research_aims_clarity_notes", "Appraisal.q1_research_aims_clarity_score", "extra_field"}, tb.Columns)

	back, err := table.ReadXLSX(res.OutputPath, SheetName)
	require.NoError(t, err)
	require.Equal(t, 2, back.Len())
}

func TestMergeRejectsNonNumericFileNames(t *testing.T) {
	in := t.TempDir()
	writeText(t, in, "abc.txt", `{"study_id": "x"}`)
	_, err := NewMerger(nil).MergeDir(in, t.TempDir())
	require.True(t, errors.Is(err, util.ErrInvalidInput), "got %v", err)
}

func TestMergeEmptyDir(t *testing.T) {
	_, err := NewMerger(nil).MergeDir(t.TempDir(), t.TempDir())
	require.True(t, errors.Is(err, util.ErrNoInput), "got %v", err)
}

func qaTable() *table.Table {
	tb := table.New("no", "total_quality_score", "quality_category", "include_in_main_synthesis", "key_quality_concerns")
	for _, r := range [][]string{
		{"1", "9", "High", "Yes", "NR"},
		{"2", "6", "Moderate", "Yes", ""},
		{"3", "9", "High", "No", "small sample"},
		{"4", "", "Low", "No", "NA"},
	} {
		tb.Append(r)
	}
	return tb
}

func TestAnalyzeMissingness(t *testing.T) {
	rep := Analyze(qaTable())
	var concerns ColumnMissing
	for _, m := range rep.Missing {
		if m.Column == "key_quality_concerns" {
			concerns = m
		}
	}
	require.Equal(t, 3, concerns.Missing)
	require.Equal(t, 2, concerns.NRNA)
	require.Equal(t, []string{"1", "4"}, concerns.NRNANos)
	require.InDelta(t, 75.0, concerns.Percent, 0.001)
	require.Equal(t, []string{"include_in_meta_analysis"}, rep.Absent)
}

func TestAnalyzeDistributionOrder(t *testing.T) {
	rep := Analyze(qaTable())
	got := rep.Distributions["total_quality_score"]
	require.Len(t, got, 3)
	require.Equal(t, "9", got[0].Value)
	require.Equal(t, []string{"1", "3"}, got[0].Nos)
	require.Equal(t, "6", got[1].Value)
	require.Equal(t, "", got[2].Value)

	text := rep.Text()
	require.Contains(t, text, "    9: count=2 (50.00%) | No.: [1, 3]")
	require.Contains(t, text, "    'High': count=2 (50.00%) | No.: [1, 3]")
	require.Contains(t, text, "- key_quality_concerns: missing 3 / 4 (75.00%) | 'NR'/'NA' rows: 2")
	require.Contains(t, text, "    NR/NA No.: [1, 4]")
	require.True(t, strings.HasSuffix(text, strings.Repeat("=", 70)))
}

func TestDistributionBreaksTiesOnPlainText(t *testing.T) {
	tb := table.New("no", "quality_category")
	for i, v := range []string{"high", "5", "", "high", "5", ""} {
		tb.Append([]string{strconv.Itoa(i + 1), v})
	}
	got := Distribution(tb, "quality_category")
	values := make([]string, len(got))
	for i, vs := range got {
		values[i] = vs.Value
	}
	require.Equal(t, []string{"5", "high", ""}, values)
}

func TestAnalyzeFileWritesSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MergedFile)
	require.NoError(t, table.WriteXLSX(path, SheetName, qaTable()))
	rep, out, err := NewAnalyzer(nil).AnalyzeFile(path, dir)
	require.NoError(t, err)
	require.Equal(t, 4, rep.Rows)
	require.FileExists(t, out)
}

func TestSchemaYAML(t *testing.T) {
	b, err := SchemaYAML()
	require.NoError(t, err)
	var doc struct {
		Metadata  []string `yaml:"metadata"`
		Standards []struct {
			Score string `yaml:"score_column"`
		} `yaml:"standards"`
	}
	require.NoError(t, yaml.Unmarshal(b, &doc))
	require.Len(t, doc.Standards, 10)
	require.Equal(t, "q6_measurement_reliability_validity_score", doc.Standards[5].Score)
}
