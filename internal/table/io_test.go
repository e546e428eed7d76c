package table

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"litreview/internal/util"
)

func TestCSVRoundTripKeepsBOMAndQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "R1_analysis_results.csv")
	tb := New("No.", "Title", "Notes")
	tb.Append([]string{"1", "LLM feedback, revisited", "{\n    \"c1\": \"pass\"\n}"})
	require.NoError(t, WriteCSV(path, tb))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, utf8BOM), "missing BOM")

	got, err := ReadCSV(path)
	require.NoError(t, err)
	if diff := cmp.Diff(tb, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeCSVPadsShortRowsAndSkipsBlankLines(t *testing.T) {
	in := "\ufeffTitle,Year,Decision\nA,2020\n\n   \n,,\nB,2021,exclude\n"
	got, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	want := &Table{
		Columns: []string{"Title", "Year", "Decision"},
		Rows:    [][]string{{"A", "2020", ""}, {"", "", ""}, {"B", "2021", "exclude"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decode mismatch (-want +got):\n%s", diff)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.xlsx")
	tb := New("no", "quality_category", "total_quality_score")
	tb.Append([]string{"1", "High", "9"})
	tb.Append([]string{"2", "Low", ""})
	require.NoError(t, WriteXLSX(path, "Quality_Assessment_Data", tb))

	got, err := ReadXLSX(path, "Quality_Assessment_Data")
	require.NoError(t, err)
	if diff := cmp.Diff(tb, got); diff != "" {
		t.Fatalf("xlsx mismatch (-want +got):\n%s", diff)
	}

	first, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 2, first.Len())
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	_, err := Read("notes.txt")
	require.Error(t, err)
}

func TestReadMissingFileIsNoInput(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"R1_analysis_results.csv", "R1_R2_R3_analysis_results.xlsx"} {
		_, err := Read(filepath.Join(dir, name))
		require.ErrorIs(t, err, util.ErrNoInput, name)
		require.ErrorIs(t, err, fs.ErrNotExist, name)
	}
}
