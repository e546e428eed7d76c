package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"litreview/internal/config"
	"litreview/internal/models"
	"litreview/internal/storage"
)

// setup points the command globals at a temp workspace backed by a SQLite ledger.
func setup(t *testing.T) (string, *bytes.Buffer, *cobra.Command) {
	t.Helper()
	ws := t.TempDir()
	logger = zap.NewNop()
	cfg = config.Default()
	cfg.DataInRoot = filepath.Join(ws, "in")
	cfg.DataOutRoot = filepath.Join(ws, "out")
	cfg.SQLitePath = filepath.Join(ws, "ledger.db")
	cfg.LLMProviders = "mock"
	cfg.TokensPerMinute = 0

	s, err := storage.NewSQLiteStore(context.Background(), cfg.SQLitePath)
	require.NoError(t, err)
	store = s
	t.Cleanup(func() {
		_ = s.Close()
		store = nil
	})

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	return ws, &out, cmd
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMergeThenConsistency(t *testing.T) {
	ws, out, cmd := setup(t)
	stage := filepath.Join(ws, "stage1")
	writeFile(t, filepath.Join(stage, "R1", "R1_analysis_batch_001.csv"),
		"No.,Title,Year,Decision,Notes\n1,Alpha,2021,include,\n2,Beta,2022,exclude,\n")
	writeFile(t, filepath.Join(stage, "R2", "R2_analysis_batch_001.csv"),
		"No.,Title,Year,Decision,Notes\n1,Alpha,2021,include,\n2,Beta,2022,include,\n")

	require.NoError(t, runMerge(cmd, stage, []string{"R1", "R2"}))
	require.Contains(t, out.String(), "R1: 2 rows from 1 batches")
	require.FileExists(t, filepath.Join(stage, "R1", "R1_analysis_results.csv"))

	out.Reset()
	require.NoError(t, runConsistency(cmd, stage, "", ""))
	require.FileExists(t, filepath.Join(stage, "double_blind_consistency_report.txt"))
	require.FileExists(t, filepath.Join(stage, "R1_R2_analysis_results.xlsx"))

	runs, err := store.ListRuns(context.Background(), models.RunKindScreening, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		require.Equal(t, models.RunCompleted, r.Status)
	}
	// ListRuns is newest first, so the consistency run leads.
	decisions, err := store.ListDecisions(context.Background(), runs[0].RunID)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	require.Equal(t, 1, countNeedR3(decisions))
}

func TestConsistencyFailureIsRecorded(t *testing.T) {
	ws, _, cmd := setup(t)
	err := runConsistency(cmd, filepath.Join(ws, "empty"), "", "")
	require.Error(t, err)

	runs, lerr := store.ListRuns(context.Background(), "", 10)
	require.NoError(t, lerr)
	require.Len(t, runs, 1)
	require.Equal(t, models.RunFailed, runs[0].Status)
	require.NotEmpty(t, runs[0].Error)
}

func TestSummaryWithRounds(t *testing.T) {
	ws, out, cmd := setup(t)
	r1 := filepath.Join(ws, "r1.csv")
	writeFile(t, r1, "No.,Title,Year,Decision\n1,Alpha,2021,include\n2,Beta,2022,exclude\n")

	require.NoError(t, runSummary(cmd, ws, []string{"R1=" + r1}))
	require.Contains(t, out.String(), "Double-blind screening decision summary")
	require.FileExists(t, filepath.Join(ws, "double_blind_decision_summary.txt"))

	require.Error(t, runSummary(cmd, ws, []string{"R1"}))
}

func TestScreenWritesBatches(t *testing.T) {
	ws, out, cmd := setup(t)
	in := filepath.Join(ws, "records.csv")
	writeFile(t, in, "No.,Title,Year,Abstract\n"+
		"1,ChatGPT for academic writing,2023,LLM writing support\n"+
		"2,Soil chemistry,2021,Nitrogen cycles\n"+
		"3,GPT in classrooms,2024,Large language model tutoring\n")
	batches := filepath.Join(ws, "stage1", "R1")

	err := runScreen(cmd, screenFlags{
		in: in, reviewer: "R1", out: batches, batchSize: 2, workers: 1,
		skipExisting: true, merge: true,
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(batches, "R1_analysis_batch_001.csv"))
	require.FileExists(t, filepath.Join(batches, "R1_analysis_batch_002.csv"))
	require.FileExists(t, filepath.Join(batches, "R1_analysis_results.csv"))
	require.Contains(t, out.String(), "R1 screened 3 records in 2 batches")

	runs, err := store.ListRuns(context.Background(), models.RunKindLLM, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	usage, err := store.LLMUsage(context.Background(), runs[0].RunID)
	require.NoError(t, err)
	require.Equal(t, 3, usage.Calls)
}

func TestScreenRejectsReviewerPath(t *testing.T) {
	_, _, cmd := setup(t)
	err := runScreen(cmd, screenFlags{in: "x.csv", reviewer: "../R1", out: t.TempDir()})
	require.ErrorContains(t, err, "invalid reviewer")
}

func TestParseRounds(t *testing.T) {
	got, err := parseRounds([]string{"R1=a.csv", "R3=dir/b.xlsx"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "R3", got[1].Label)
	require.Equal(t, "dir/b.xlsx", got[1].Path)

	_, err = parseRounds([]string{"=a.csv"})
	require.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"merge"}, {"consistency"}, {"summary"}, {"adjudicate"},
		{"fulltext", "finalize"}, {"fulltext", "extract"},
		{"quality", "merge"}, {"quality", "analyze"}, {"quality", "schema"},
		{"extraction", "merge"}, {"extraction", "rows"}, {"extraction", "filter"},
		{"search", "merge"}, {"search", "doctypes"}, {"search", "missing"},
		{"screen"}, {"runs", "list"}, {"runs", "show"},
	} {
		c, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], c.Name())
	}
}
