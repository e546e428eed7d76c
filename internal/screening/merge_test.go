package screening

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"litreview/internal/table"
	"litreview/internal/util"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMergeRoundConcatenatesInNameOrderAndRenumbers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "R1_analysis_batch_002.csv"),
		"No.,Title,Year,Decision,Notes\n7,Gamma,2023,exclude,plain note\n")
	writeFile(t, filepath.Join(dir, "R1_analysis_batch_001.csv"),
		"\ufeffTitle,Year,Decision,Notes\nAlpha,2021,include,\"{\"\"c1\"\":\"\"pass\"\"}\"\nBeta,2022,unsure,\n")
	writeFile(t, filepath.Join(dir, "R2_analysis_batch_001.csv"), "Title,Year,Decision\nOther,2020,include\n")

	res, err := NewMerger(nil).MergeRound(dir, "R1")
	require.NoError(t, err)
	require.Equal(t, 3, res.Rows)
	require.Equal(t, []string{"R1_analysis_batch_001.csv", "R1_analysis_batch_002.csv"}, res.Batches)
	require.Equal(t, filepath.Join(dir, "R1_analysis_results.csv"), res.OutputPath)

	got, err := table.ReadCSV(res.OutputPath)
	require.NoError(t, err)
	require.Equal(t, []string{"No.", "Title", "Year", "Decision", "Notes"}, got.Columns)
	require.Equal(t, []string{"1", "2", "3"}, got.Column("No."))
	require.Equal(t, []string{"Alpha", "Beta", "Gamma"}, got.Column("Title"))
	require.Equal(t, "{\n    \"c1\": \"pass\"\n}", got.Get(0, "Notes"))
	require.Equal(t, "", got.Get(1, "Notes"))
	require.Equal(t, "plain note", got.Get(2, "Notes"))
}

func TestMergeRoundWithoutBatches(t *testing.T) {
	_, err := NewMerger(nil).MergeRound(t.TempDir(), "R2")
	if !errors.Is(err, util.ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
}

func TestMergeAllContinuesPastFailingReviewer(t *testing.T) {
	stage := t.TempDir()
	writeFile(t, filepath.Join(stage, "R1", "R1_analysis_batch_001.csv"), "Title,Year,Decision\nAlpha,2021,include\n")
	require.NoError(t, os.MkdirAll(filepath.Join(stage, "R2"), 0o755))

	results, err := NewMerger(nil).MergeAll(context.Background(), stage, "R1", "R2")
	require.Error(t, err)
	require.True(t, errors.Is(err, util.ErrNoInput))
	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Rows)
	require.FileExists(t, filepath.Join(stage, "R1", "R1_analysis_results.csv"))
	require.NoFileExists(t, filepath.Join(stage, "R2", "R2_analysis_results.csv"))
}

func TestMergeRoundKeepsRowsOfEmptyCells(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "R1_analysis_batch_001.csv"), "Title,Year,Decision\nA,2020,include\n,,\n\nB,2021,exclude\n")

	res, err := NewMerger(nil).MergeRound(dir, "R1")
	require.NoError(t, err)
	require.Equal(t, 3, res.Rows)

	got, err := table.ReadCSV(res.OutputPath)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3"}, got.Column("No."))
	require.Equal(t, []string{"A", "", "B"}, got.Column("Title"))
}
