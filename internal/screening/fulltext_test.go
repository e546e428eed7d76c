package screening

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"litreview/internal/table"
)

func fullTextSheet() *table.Table {
	t := table.New("No.", "Title", "R1_Decision", "R2_Decision", "R3_Decision", "Remark")
	for _, r := range [][]string{
		{"1", "A", "include", "include", "", ""},
		{"2", "B", "unsure", "unsure", "include", ""},
		{"3", "C", "include", "exclude", "include", ""},
		{"4", "D", "unsure", "unsure", "", "Access restrictions"},
		{"5", "E", "include", "exclude", "nan", "access restrictions.."},
		{"6", "F", "exclude", "exclude", "", " Access Restrictions. "},
		{"7", "G", "include", "include", "", "Access restrictions."},
	} {
		t.Append(r)
	}
	return t
}

func TestFinalizeFullText(t *testing.T) {
	res, err := FinalizeFullText(fullTextSheet())
	require.NoError(t, err)
	require.Equal(t, 7, res.Total)
	require.Equal(t, 4, res.IncludedTotal())
	require.Equal(t, 3, res.Excluded)
	require.Equal(t, []string{"1", "7"}, res.Included[0].Nos)
	require.Equal(t, []string{"2"}, res.Included[1].Nos)
	require.Equal(t, []string{"3"}, res.Included[2].Nos)
	require.Equal(t, []string{"4"}, res.UnsureMissingR3.Nos)
	require.Equal(t, []string{"5"}, res.MismatchMissingR3.Nos)
	require.Equal(t, []string{"4", "5", "6", "7"}, res.AccessRestricted.Nos)
	require.Equal(t, []string{"4", "5", "6"}, res.AccessRestrictedExcluded.Nos)
	require.Equal(t, []string{"1", "2", "3", "7"}, res.IncludedRows.Column("No."))
	require.Equal(t, fullTextSheet().Columns, res.IncludedRows.Columns)
}

func TestFullTextSummaryText(t *testing.T) {
	res, err := FinalizeFullText(fullTextSheet())
	require.NoError(t, err)
	text := res.Text()
	require.True(t, strings.HasPrefix(text, strings.Repeat("=", 58)+"\nStage 2 Full-text – Final Inclusion Summary\n"))
	require.Contains(t, text, "- Final included (any category)   : 4")
	require.Contains(t, text, "['1', '7']")
	require.NotContains(t, text, "No. lists not printed")
}

func TestFinalizeFullTextWithoutNoColumn(t *testing.T) {
	sheet := table.New("R1_Decision", "R2_Decision", "R3_Decision")
	sheet.Append([]string{"include", "include", ""})
	res, err := FinalizeFullText(sheet)
	require.NoError(t, err)
	require.Equal(t, 1, res.IncludedTotal())
	require.Contains(t, res.Text(), "- Column 'No.' is missing or empty; No. lists not printed.")
}

func TestStageFinalizeFullTextWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, AdjudicationInputFile)
	require.NoError(t, table.WriteXLSX(in, "", fullTextSheet()))

	out, err := NewStage(dir, nil).FinalizeFullText("")
	require.NoError(t, err)
	require.FileExists(t, out.SummaryPath)
	got, err := table.ReadXLSX(out.IncludedPath, "")
	require.NoError(t, err)
	require.Equal(t, 4, got.Len())
}
