package extraction

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"litreview/internal/quality"
	"litreview/internal/table"
)

func TestMergeDirSortsNumericallyAndOrdersColumns(t *testing.T) {
	in := t.TempDir()
	files := map[string]string{
		"10.txt": `{"Basic Identification": {"author (作者)": "Lee", "year": 2024}, "Methodology": {"sample_size_and_effect": "n=40"}}`,
		"9.txt":  `{"Basic Identification": {"author": "Kim"}, "note (备注)": "pilot"}`,
		"8.txt":  ``,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(in, name), []byte(body), 0o644))
	}
	got, out, err := MergeDir(in, t.TempDir(), nil)
	require.NoError(t, err)
	require.FileExists(t, out)

	want := &table.Table{
		Columns: []string{"No.", "Basic Identification.author", "Basic Identification.year", "Methodology.sample_size_and_effect", "note (备注)"},
		Rows: [][]string{
			{"9", "Kim", "", "", "pilot"},
			{"10", "Lee", "2024", "n=40", ""},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged table mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFallsBackToStringOrder(t *testing.T) {
	in := t.TempDir()
	for _, name := range []string{"b2.txt", "a10.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(in, name), []byte(`{"x": 1}`), 0o644))
	}
	got, _, err := MergeDir(in, t.TempDir(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a10", "b2"}, got.Column("No."))
}

func TestWriteRowsJSON(t *testing.T) {
	tb := table.New("No.", "Methodology.design", "Outcome.effect")
	tb.Append([]string{"1", "quasi-experimental", ""})
	tb.Append([]string{"2", "RCT", "0.45"})

	var buf bytes.Buffer
	require.NoError(t, WriteRowsJSON(&buf, tb, 0))
	want := RowSeparator + "\n" +
		"Row 1 | No. = 1\n" +
		"{\n    \"No.\": 1,\n    \"Methodology.design\": \"quasi-experimental\",\n    \"Outcome.effect\": null\n}\n" +
		RowSeparator + "\n" +
		"Row 2 | No. = 2\n" +
		"{\n    \"No.\": 2,\n    \"Methodology.design\": \"RCT\",\n    \"Outcome.effect\": \"0.45\"\n}\n" +
		RowSeparator + "\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("rows json mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	require.NoError(t, WriteRowsJSON(&buf, tb, 1))
	require.True(t, strings.HasPrefix(buf.String(), RowSeparator+"\nRow 2 | No. = 2\n"))
}

func TestFilterFinalKeepsHighQualityStudies(t *testing.T) {
	qa := table.New(quality.ColNo, "Title", quality.ColCategory)
	qa.Append([]string{"1", "ChatGPT feedback on EFL essays", "High"})
	qa.Append([]string{"2", "Grammar checker study", "Low"})
	qa.Append([]string{"3.0", "GPT-4 peer review", " high "})

	ext := table.New("No.", "Methodology.design")
	ext.Append([]string{"1", "quasi"})
	ext.Append([]string{"2", "survey"})
	ext.Append([]string{"3", "RCT"})
	ext.Append([]string{"x", "broken"})

	got, err := FilterFinal(qa, ext, nil)
	require.NoError(t, err)
	want := &table.Table{
		Columns: []string{"No.", "Title", "Methodology.design"},
		Rows: [][]string{
			{"1", "ChatGPT feedback on EFL essays", "quasi"},
			{"3", "GPT-4 peer review", "RCT"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("final studies mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterFinalKeepsExtractionTitleWithoutAssessmentTitle(t *testing.T) {
	qa := table.New(quality.ColNo, quality.ColCategory)
	qa.Append([]string{"1", "High"})
	qa.Append([]string{"2", "Low"})

	ext := table.New("No.", "Methodology.design", "Title")
	ext.Append([]string{"1", "quasi", "ChatGPT feedback on EFL essays"})
	ext.Append([]string{"2", "survey", "Grammar checker study"})

	got, err := FilterFinal(qa, ext, nil)
	require.NoError(t, err)
	want := &table.Table{
		Columns: []string{"No.", "Methodology.design", "Title"},
		Rows:    [][]string{{"1", "quasi", "ChatGPT feedback on EFL essays"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("final studies mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterFinalRequiresCategory(t *testing.T) {
	_, err := FilterFinal(table.New("no"), table.New("No."), nil)
	require.Error(t, err)
}
