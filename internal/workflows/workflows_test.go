package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"litreview/internal/activities"
	"litreview/internal/models"
	"litreview/internal/screener"
	"litreview/internal/screening"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerPipelineActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "MergeRoundsActivity", func(context.Context, activities.MergeRoundsInput) (activities.MergeRoundsOutput, error) {
		return activities.MergeRoundsOutput{}, nil
	})
	registerActivityName(env, "ConsistencyActivity", func(context.Context, activities.ConsistencyInput) (activities.ConsistencyOutput, error) {
		return activities.ConsistencyOutput{}, nil
	})
	registerActivityName(env, "SummaryActivity", func(context.Context, activities.SummaryInput) (activities.SummaryOutput, error) {
		return activities.SummaryOutput{}, nil
	})
	registerActivityName(env, "AdjudicationActivity", func(context.Context, activities.AdjudicationInput) (activities.AdjudicationOutput, error) {
		return activities.AdjudicationOutput{}, nil
	})
	registerActivityName(env, "FullTextFinalizeActivity", func(context.Context, activities.FullTextFinalizeInput) (activities.FullTextFinalizeOutput, error) {
		return activities.FullTextFinalizeOutput{}, nil
	})
	registerActivityName(env, "UpdateRunActivity", func(context.Context, activities.UpdateRunInput) error { return nil })
	registerActivityName(env, "WriteRunManifestActivity", func(context.Context, activities.WriteRunManifestInput) error { return nil })
}

func TestScreeningPipelineWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ScreeningPipelineWorkflow)
	registerPipelineActivities(env)

	env.OnActivity("MergeRoundsActivity", mock.Anything, activities.MergeRoundsInput{StageDir: "stage1", Reviewers: []string{"R1", "R2"}}).
		Return(activities.MergeRoundsOutput{Results: []screening.MergeResult{{Reviewer: "R1", Rows: 4}, {Reviewer: "R2", Rows: 4}}}, nil)
	env.OnActivity("ConsistencyActivity", mock.Anything, activities.ConsistencyInput{RunID: "run-1", StageDir: "stage1"}).
		Return(activities.ConsistencyOutput{Aligned: 4, NeedR3: 2}, nil)
	env.OnActivity("SummaryActivity", mock.Anything, mock.Anything).Return(activities.SummaryOutput{Path: "stage1/decision_summary.txt"}, nil)
	env.OnActivity("AdjudicationActivity", mock.Anything, activities.AdjudicationInput{StageDir: "stage1"}).
		Return(activities.AdjudicationOutput{Records: 4, Included: 1}, nil)
	var statuses []string
	env.OnActivity("UpdateRunActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.UpdateRunInput) error {
		statuses = append(statuses, in.Status)
		return nil
	})

	env.ExecuteWorkflow(ScreeningPipelineWorkflow, ScreeningPipelineInput{RunID: "run-1", StageDir: "stage1", Adjudicate: true})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out ScreeningPipelineResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 2, out.Consistency.NeedR3)
	require.Equal(t, "stage1/decision_summary.txt", out.SummaryPath)
	require.NotNil(t, out.Adjudication)
	require.Equal(t, 1, out.Adjudication.Included)
	require.Nil(t, out.FullText)
	require.Equal(t, []string{models.RunRunning, models.RunCompleted}, statuses)

	val, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress PipelineProgress
	require.NoError(t, val.Get(&progress))
	require.Equal(t, models.RunCompleted, progress.Status)
	require.Equal(t, map[string]string{StepMerge: "done", StepConsistency: "done", StepSummary: "done", StepAdjudication: "done"}, progress.Steps)
}

func TestScreeningPipelineWorkflowMarksRunFailed(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ScreeningPipelineWorkflow)
	registerPipelineActivities(env)

	env.OnActivity("ConsistencyActivity", mock.Anything, mock.Anything).
		Return(activities.ConsistencyOutput{}, temporal.NewNonRetryableApplicationError("missing required columns: Decision", "InvalidInput", nil))
	var last activities.UpdateRunInput
	env.OnActivity("UpdateRunActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.UpdateRunInput) error {
		last = in
		return nil
	})

	env.ExecuteWorkflow(ScreeningPipelineWorkflow, ScreeningPipelineInput{RunID: "run-2", StageDir: "stage1", SkipMerge: true})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	require.Equal(t, models.RunFailed, last.Status)
	require.Contains(t, last.Error, "consistency")
}

func registerLLMActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "CountRecordsActivity", func(context.Context, activities.CountRecordsInput) (activities.CountRecordsOutput, error) {
		return activities.CountRecordsOutput{}, nil
	})
	registerActivityName(env, "ScreenBatchActivity", func(context.Context, activities.ScreenBatchInput) (activities.ScreenBatchOutput, error) {
		return activities.ScreenBatchOutput{}, nil
	})
	registerActivityName(env, "MergeRoundsActivity", func(context.Context, activities.MergeRoundsInput) (activities.MergeRoundsOutput, error) {
		return activities.MergeRoundsOutput{}, nil
	})
	registerActivityName(env, "UpdateRunActivity", func(context.Context, activities.UpdateRunInput) error { return nil })
	registerActivityName(env, "WriteRunManifestActivity", func(context.Context, activities.WriteRunManifestInput) error { return nil })
	env.OnActivity("UpdateRunActivity", mock.Anything, mock.Anything).Return(nil)
}

func TestLLMScreeningWorkflowBatchesAndMerges(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(LLMScreeningWorkflow)
	registerLLMActivities(env)

	env.OnActivity("CountRecordsActivity", mock.Anything, activities.CountRecordsInput{InputPath: "merged.xlsx"}).
		Return(activities.CountRecordsOutput{Records: 5}, nil)
	env.OnActivity("ScreenBatchActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.ScreenBatchInput) (activities.ScreenBatchOutput, error) {
		if in.OutDir != "stage1/R3" || in.BatchSize != 2 {
			return activities.ScreenBatchOutput{}, errors.New("unexpected batch input")
		}
		if in.Batch == 1 {
			return activities.ScreenBatchOutput{Skipped: true}, nil
		}
		return activities.ScreenBatchOutput{
			Records:   2,
			Decisions: map[string]int{"include": 1, "exclude": 1},
			Totals:    screener.Totals{Calls: 2, Tokens: 100},
		}, nil
	})
	env.OnActivity("MergeRoundsActivity", mock.Anything, activities.MergeRoundsInput{StageDir: "stage1", Reviewers: []string{"R3"}}).
		Return(activities.MergeRoundsOutput{Results: []screening.MergeResult{{Reviewer: "R3", OutputPath: "stage1/R3/R3_analysis_results.csv"}}}, nil)

	env.ExecuteWorkflow(LLMScreeningWorkflow, LLMScreeningInput{
		RunID: "run-3", InputPath: "merged.xlsx", StageDir: "stage1", Reviewer: "R3", BatchSize: 2, Merge: true,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out LLMScreeningResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 3, out.Batches)
	require.Equal(t, 1, out.Skipped)
	require.Equal(t, map[string]int{"include": 2, "exclude": 2}, out.Decisions)
	require.Equal(t, 4, out.Totals.Calls)
	require.Equal(t, "stage1/R3/R3_analysis_results.csv", out.MergedPath)

	val, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress LLMScreeningProgress
	require.NoError(t, val.Get(&progress))
	require.Equal(t, 3, progress.Done)
	require.Equal(t, map[string]string{"1": "skipped", "2": "done", "3": "done"}, progress.PerBatch)
}

func TestLLMScreeningWorkflowReportsFailedBatches(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(LLMScreeningWorkflow)
	registerLLMActivities(env)

	env.OnActivity("CountRecordsActivity", mock.Anything, mock.Anything).Return(activities.CountRecordsOutput{Records: 3}, nil)
	env.OnActivity("ScreenBatchActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.ScreenBatchInput) (activities.ScreenBatchOutput, error) {
		if in.Batch == 2 {
			return activities.ScreenBatchOutput{}, temporal.NewNonRetryableApplicationError("all providers exhausted", "Provider", nil)
		}
		return activities.ScreenBatchOutput{Records: 2, Decisions: map[string]int{"unsure": 2}}, nil
	})

	env.ExecuteWorkflow(LLMScreeningWorkflow, LLMScreeningInput{InputPath: "merged.xlsx", StageDir: "stage1", Reviewer: "R3", BatchSize: 2, Merge: true})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	require.Contains(t, env.GetWorkflowError().Error(), "1 of 2 batches failed")
}

func TestQualityWorkflowWithExtraction(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(QualityWorkflow)
	registerActivityName(env, "QualityMergeActivity", func(context.Context, activities.QualityMergeInput) (activities.QualityMergeOutput, error) {
		return activities.QualityMergeOutput{}, nil
	})
	registerActivityName(env, "QualityAnalyzeActivity", func(context.Context, activities.QualityAnalyzeInput) (activities.QualityAnalyzeOutput, error) {
		return activities.QualityAnalyzeOutput{}, nil
	})
	registerActivityName(env, "ExtractionMergeActivity", func(context.Context, activities.ExtractionMergeInput) (activities.ExtractionMergeOutput, error) {
		return activities.ExtractionMergeOutput{}, nil
	})
	registerActivityName(env, "FinalFilterActivity", func(context.Context, activities.FinalFilterInput) (activities.FinalFilterOutput, error) {
		return activities.FinalFilterOutput{}, nil
	})
	registerActivityName(env, "UpdateRunActivity", func(context.Context, activities.UpdateRunInput) error { return nil })
	registerActivityName(env, "WriteRunManifestActivity", func(context.Context, activities.WriteRunManifestInput) error { return nil })

	env.OnActivity("QualityMergeActivity", mock.Anything, activities.QualityMergeInput{Dir: "qa", OutDir: "out"}).
		Return(activities.QualityMergeOutput{OutputPath: "out/quality_assessment_table.xlsx", Rows: 12}, nil)
	env.OnActivity("QualityAnalyzeActivity", mock.Anything, activities.QualityAnalyzeInput{Path: "out/quality_assessment_table.xlsx", OutDir: "out"}).
		Return(activities.QualityAnalyzeOutput{SummaryPath: "out/quality_assessment_summary.txt", Rows: 12}, nil)
	env.OnActivity("ExtractionMergeActivity", mock.Anything, activities.ExtractionMergeInput{Dir: "ext", OutDir: "out"}).
		Return(activities.ExtractionMergeOutput{OutputPath: "out/data_extraction_table.xlsx", Rows: 12}, nil)
	env.OnActivity("FinalFilterActivity", mock.Anything, activities.FinalFilterInput{
		QualityPath: "out/quality_assessment_table.xlsx", ExtractionPath: "out/data_extraction_table.xlsx", OutDir: "out",
	}).Return(activities.FinalFilterOutput{OutputPath: "out/final_included_literature.xlsx", Rows: 7}, nil)
	env.OnActivity("UpdateRunActivity", mock.Anything, mock.Anything).Return(nil)
	var manifest activities.WriteRunManifestInput
	env.OnActivity("WriteRunManifestActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.WriteRunManifestInput) error {
		manifest = in
		return nil
	})

	env.ExecuteWorkflow(QualityWorkflow, QualityInput{RunID: "run-4", QualityDir: "qa", ExtractionDir: "ext", OutDir: "out"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out QualityResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, 12, out.Analysis.Rows)
	require.NotNil(t, out.Final)
	require.Equal(t, 7, out.Final.Rows)

	require.Equal(t, "runs/run-4.json", manifest.Path)
	require.Equal(t, "run-4", manifest.Manifest["run_id"])
	require.Equal(t, []string{
		"out/quality_assessment_table.xlsx",
		"out/quality_assessment_summary.txt",
		"out/data_extraction_table.xlsx",
		"out/final_included_literature.xlsx",
	}, manifest.Files)
}
