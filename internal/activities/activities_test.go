package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"litreview/internal/config"
	"litreview/internal/models"
	"litreview/internal/screening"
	"litreview/internal/storage"
	"litreview/internal/table"
	"litreview/internal/util"
)

func newTestActivities(t *testing.T) (*Activities, *storage.SQLiteStore, config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.DataInRoot = t.TempDir()
	cfg.DataOutRoot = t.TempDir()
	cfg.LLMProviders = "mock"
	cfg.TokensPerMinute = 0
	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	a, err := New(cfg, store, nil)
	require.NoError(t, err)
	return a, store, cfg
}

func writeRecords(t *testing.T, path string, n int) {
	t.Helper()
	tb := table.New(table.NoColumn, "Article Title", "Publication Year", "Abstract")
	for i := 1; i <= n; i++ {
		title := "Soil moisture study"
		if i%2 == 1 {
			title = "ChatGPT feedback on EFL writing"
		}
		tb.Append([]string{fmt.Sprint(i), title, "2024", ""})
	}
	require.NoError(t, table.WriteCSV(path, tb))
}

func TestScreenBatchActivity(t *testing.T) {
	a, store, cfg := newTestActivities(t)
	writeRecords(t, filepath.Join(cfg.DataInRoot, "records.csv"), 5)
	run, err := store.CreateRun(context.Background(), models.Run{Kind: models.RunKindLLM})
	require.NoError(t, err)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a)

	in := ScreenBatchInput{RunID: run.RunID, InputPath: "records.csv", Reviewer: "R3", OutDir: "stage1/R3", Batch: 3, BatchSize: 2}
	val, err := env.ExecuteActivity(a.ScreenBatchActivity, in)
	require.NoError(t, err)
	var out ScreenBatchOutput
	require.NoError(t, val.Get(&out))
	require.Equal(t, filepath.Join(cfg.DataInRoot, "stage1", "R3", "R3_analysis_batch_003.csv"), out.Path)
	require.False(t, out.Skipped)
	require.Equal(t, 1, out.Records)
	require.Equal(t, map[string]int{screening.Include: 1}, out.Decisions)

	usage, err := store.LLMUsage(context.Background(), run.RunID)
	require.NoError(t, err)
	require.Equal(t, 1, usage.Calls)

	val, err = env.ExecuteActivity(a.ScreenBatchActivity, in)
	require.NoError(t, err)
	require.NoError(t, val.Get(&out))
	require.True(t, out.Skipped)

	in.Batch = 4
	_, err = env.ExecuteActivity(a.ScreenBatchActivity, in)
	require.Error(t, err)
}

func TestCountRecordsActivity(t *testing.T) {
	a, _, cfg := newTestActivities(t)
	writeRecords(t, filepath.Join(cfg.DataInRoot, "records.csv"), 3)
	out, err := a.CountRecordsActivity(context.Background(), CountRecordsInput{InputPath: "records.csv"})
	require.NoError(t, err)
	require.Equal(t, 3, out.Records)
}

func TestConsistencyActivitySavesDecisions(t *testing.T) {
	a, store, cfg := newTestActivities(t)
	stage := filepath.Join(cfg.DataInRoot, "stage1")
	require.NoError(t, util.EnsureDir(stage))
	for _, reviewer := range []string{"R1", "R2"} {
		tb := table.New(table.NoColumn, "Title", "Year", "Decision", "Notes")
		tb.Append([]string{"1", "Alpha", "2021", "include", ""})
		decision := "exclude"
		if reviewer == "R2" {
			decision = "include"
		}
		tb.Append([]string{"2", "Beta", "2022", decision, ""})
		require.NoError(t, table.WriteCSV(screening.ResultsPath(stage, reviewer), tb))
	}
	run, err := store.CreateRun(context.Background(), models.Run{Kind: models.RunKindScreening})
	require.NoError(t, err)

	out, err := a.ConsistencyActivity(context.Background(), ConsistencyInput{RunID: run.RunID, StageDir: "stage1"})
	require.NoError(t, err)
	require.Equal(t, 2, out.Aligned)
	require.Equal(t, 1, out.NeedR3)
	require.FileExists(t, out.ReportPath)

	rows, err := store.ListDecisions(context.Background(), run.RunID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[1].NeedR3)
}

func TestMissingStageInputsAreNotRetried(t *testing.T) {
	a, _, cfg := newTestActivities(t)
	require.NoError(t, util.EnsureDir(filepath.Join(cfg.DataInRoot, "stage1")))
	var appErr *temporal.ApplicationError

	_, err := a.ConsistencyActivity(context.Background(), ConsistencyInput{StageDir: "stage1"})
	require.ErrorIs(t, err, util.ErrNoInput)
	require.True(t, errors.As(err, &appErr))
	require.True(t, appErr.NonRetryable())

	_, err = a.AdjudicationActivity(context.Background(), AdjudicationInput{StageDir: "stage1"})
	require.ErrorIs(t, err, util.ErrNoInput)
	require.True(t, errors.As(err, &appErr))
	require.True(t, appErr.NonRetryable())
}

func TestUpdateRunActivity(t *testing.T) {
	a, store, _ := newTestActivities(t)
	run, err := store.CreateRun(context.Background(), models.Run{Kind: models.RunKindQuality})
	require.NoError(t, err)
	require.NoError(t, a.UpdateRunActivity(context.Background(), UpdateRunInput{RunID: run.RunID, Status: models.RunCompleted, Summary: "ok"}))
	got, err := store.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)
	require.Equal(t, models.RunCompleted, got.Status)
	require.NoError(t, a.UpdateRunActivity(context.Background(), UpdateRunInput{}))
}

func TestWriteRunManifestActivity(t *testing.T) {
	a, _, cfg := newTestActivities(t)
	in := filepath.Join(cfg.DataInRoot, "records.csv")
	writeRecords(t, in, 2)

	err := a.WriteRunManifestActivity(context.Background(), WriteRunManifestInput{
		Path:     filepath.Join("runs", "run-9.json"),
		Manifest: map[string]any{"run_id": "run-9"},
		Files:    []string{"records.csv", "missing.csv", ""},
	})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(cfg.DataOutRoot, "runs", "run-9.json"))
	require.NoError(t, err)
	var got struct {
		RunID string            `json:"run_id"`
		Files map[string]string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, "run-9", got.RunID)
	sum, err := util.SHA256File(in)
	require.NoError(t, err)
	require.Equal(t, map[string]string{in: sum}, got.Files)
}

func TestPermanent(t *testing.T) {
	var appErr *temporal.ApplicationError
	err := permanent(fmt.Errorf("merge: %w", util.ErrNoInput))
	require.True(t, errors.As(err, &appErr))
	require.True(t, appErr.NonRetryable())
	require.ErrorIs(t, err, util.ErrNoInput)

	err = permanent(&util.MissingColumnsError{Columns: []string{"Title"}})
	require.True(t, errors.As(err, &appErr))

	plain := errors.New("disk full")
	require.Equal(t, plain, permanent(plain))
	require.NoError(t, permanent(nil))
}
