package workflows

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"litreview/internal/activities"
	"litreview/internal/models"
)

const (
	QueryGetProgress = "GetProgress"

	StepMerge        = "merge"
	StepConsistency  = "consistency"
	StepSummary      = "summary"
	StepAdjudication = "adjudication"
	StepFullText     = "full_text"
)

var defaultReviewers = []string{"R1", "R2"}

// fileActivityOptions covers the table steps: quick, local and safe to retry.
func fileActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
}

// screenActivityOptions covers one LLM batch. Provider failover happens inside
// the activity, so Temporal retries only what the failover gave up on.
func screenActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    4,
		},
	}
}

// ScreeningPipelineWorkflow merges the R1 and R2 rounds of a stage directory,
// checks their consistency and writes the decision summary. Adjudication and
// the stage-2 finalize run when requested.
func ScreeningPipelineWorkflow(ctx workflow.Context, input ScreeningPipelineInput) (ScreeningPipelineResult, error) {
	var result ScreeningPipelineResult
	progress := PipelineProgress{RunID: input.RunID, Status: models.RunRunning, Steps: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (PipelineProgress, error) {
		return progress, nil
	}); err != nil {
		return result, err
	}
	ctx = workflow.WithActivityOptions(ctx, fileActivityOptions())
	reviewers := input.Reviewers
	if len(reviewers) == 0 {
		reviewers = defaultReviewers
	}
	markRun(ctx, input.RunID, models.RunRunning, "", "")

	step := func(name string, run func() error) error {
		progress.CurrentStep = name
		progress.Steps[name] = "processing"
		if err := run(); err != nil {
			progress.Steps[name] = "failed"
			progress.Status = models.RunFailed
			progress.Error = err.Error()
			markRun(ctx, input.RunID, models.RunFailed, "", fmt.Sprintf("%s: %v", name, err))
			return err
		}
		progress.Steps[name] = "done"
		return nil
	}

	if !input.SkipMerge {
		if err := step(StepMerge, func() error {
			return workflow.ExecuteActivity(ctx, "MergeRoundsActivity", activities.MergeRoundsInput{StageDir: input.StageDir, Reviewers: reviewers}).Get(ctx, &result.Merge)
		}); err != nil {
			return result, err
		}
	}
	if err := step(StepConsistency, func() error {
		return workflow.ExecuteActivity(ctx, "ConsistencyActivity", activities.ConsistencyInput{RunID: input.RunID, StageDir: input.StageDir}).Get(ctx, &result.Consistency)
	}); err != nil {
		return result, err
	}
	if err := step(StepSummary, func() error {
		var out activities.SummaryOutput
		err := workflow.ExecuteActivity(ctx, "SummaryActivity", activities.SummaryInput{StageDir: input.StageDir, Reviewers: reviewers}).Get(ctx, &out)
		result.SummaryPath = out.Path
		return err
	}); err != nil {
		return result, err
	}
	if input.Adjudicate {
		if err := step(StepAdjudication, func() error {
			var out activities.AdjudicationOutput
			err := workflow.ExecuteActivity(ctx, "AdjudicationActivity", activities.AdjudicationInput{StageDir: input.StageDir, InputPath: input.AdjudicationPath}).Get(ctx, &out)
			result.Adjudication = &out
			return err
		}); err != nil {
			return result, err
		}
	}
	if input.FinalizeFullText {
		if err := step(StepFullText, func() error {
			var out activities.FullTextFinalizeOutput
			err := workflow.ExecuteActivity(ctx, "FullTextFinalizeActivity", activities.FullTextFinalizeInput{StageDir: input.StageDir, InputPath: input.FullTextPath}).Get(ctx, &out)
			result.FullText = &out
			return err
		}); err != nil {
			return result, err
		}
	}

	progress.CurrentStep = "done"
	progress.Status = models.RunCompleted
	files := []string{result.Consistency.ExportPath, result.SummaryPath}
	for _, m := range result.Merge.Results {
		files = append(files, m.OutputPath)
	}
	writeManifest(ctx, input.RunID, result, files)
	markRun(ctx, input.RunID, models.RunCompleted, summaryJSON(result), "")
	return result, nil
}

// LLMScreeningWorkflow screens InputPath as reviewer round input.Reviewer and
// writes its batch files into StageDir/<Reviewer>. A failed batch is reported
// and left for a re-run; existing batch files are never screened again.
func LLMScreeningWorkflow(ctx workflow.Context, input LLMScreeningInput) (LLMScreeningResult, error) {
	result := LLMScreeningResult{Decisions: map[string]int{}}
	progress := LLMScreeningProgress{RunID: input.RunID, Reviewer: input.Reviewer, Status: models.RunRunning, PerBatch: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (LLMScreeningProgress, error) {
		return progress, nil
	}); err != nil {
		return result, err
	}
	fileCtx := workflow.WithActivityOptions(ctx, fileActivityOptions())
	markRun(fileCtx, input.RunID, models.RunRunning, "", "")

	var count activities.CountRecordsOutput
	if err := workflow.ExecuteActivity(fileCtx, "CountRecordsActivity", activities.CountRecordsInput{InputPath: input.InputPath}).Get(fileCtx, &count); err != nil {
		progress.Status = models.RunFailed
		markRun(fileCtx, input.RunID, models.RunFailed, "", err.Error())
		return result, err
	}
	size := input.BatchSize
	if size <= 0 {
		size = 20
	}
	maxBatches := input.MaxConcurrentBatches
	if maxBatches <= 0 {
		maxBatches = 2
	}
	total := (count.Records + size - 1) / size
	result.Records, result.Batches = count.Records, total
	progress.Records, progress.TotalBatches = count.Records, total

	outDir := filepath.Join(input.StageDir, input.Reviewer)
	screenCtx := workflow.WithActivityOptions(ctx, screenActivityOptions())
	for first := 1; first <= total; first += maxBatches {
		last := min(first+maxBatches-1, total)
		futures := make([]workflow.Future, 0, last-first+1)
		for b := first; b <= last; b++ {
			progress.PerBatch[strconv.Itoa(b)] = "processing"
			futures = append(futures, workflow.ExecuteActivity(screenCtx, "ScreenBatchActivity", activities.ScreenBatchInput{
				RunID:     input.RunID,
				InputPath: input.InputPath,
				PDFDir:    input.PDFDir,
				Reviewer:  input.Reviewer,
				OutDir:    outDir,
				Batch:     b,
				BatchSize: size,
				Model:     input.Model,
			}))
		}
		for i, f := range futures {
			key := strconv.Itoa(first + i)
			var out activities.ScreenBatchOutput
			if err := f.Get(ctx, &out); err != nil {
				workflow.GetLogger(ctx).Error("batch failed", "batch", key, "error", err)
				progress.PerBatch[key] = "failed"
				progress.Failed++
				result.Failed++
				continue
			}
			progress.Done++
			if out.Skipped {
				progress.PerBatch[key] = "skipped"
				result.Skipped++
				continue
			}
			progress.PerBatch[key] = "done"
			for d, n := range out.Decisions {
				result.Decisions[d] += n
			}
			result.Totals.Calls += out.Totals.Calls
			result.Totals.Failed += out.Totals.Failed
			result.Totals.Tokens += out.Totals.Tokens
			result.Totals.CostUSD += out.Totals.CostUSD
		}
	}

	if result.Failed > 0 {
		err := fmt.Errorf("%d of %d batches failed", result.Failed, total)
		progress.Status = models.RunFailed
		markRun(fileCtx, input.RunID, models.RunFailed, summaryJSON(result), err.Error())
		return result, err
	}
	if input.Merge {
		var merged activities.MergeRoundsOutput
		if err := workflow.ExecuteActivity(fileCtx, "MergeRoundsActivity", activities.MergeRoundsInput{StageDir: input.StageDir, Reviewers: []string{input.Reviewer}}).Get(fileCtx, &merged); err != nil {
			progress.Status = models.RunFailed
			markRun(fileCtx, input.RunID, models.RunFailed, summaryJSON(result), err.Error())
			return result, err
		}
		if len(merged.Results) > 0 {
			result.MergedPath = merged.Results[0].OutputPath
		}
	}
	progress.Status = models.RunCompleted
	writeManifest(fileCtx, input.RunID, result, []string{input.InputPath, result.MergedPath})
	markRun(fileCtx, input.RunID, models.RunCompleted, summaryJSON(result), "")
	return result, nil
}

// QualityWorkflow merges and analyzes the quality assessment texts. With an
// extraction directory it also merges the extraction texts and writes the
// final included literature.
func QualityWorkflow(ctx workflow.Context, input QualityInput) (QualityResult, error) {
	var result QualityResult
	progress := PipelineProgress{RunID: input.RunID, Status: models.RunRunning, Steps: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (PipelineProgress, error) {
		return progress, nil
	}); err != nil {
		return result, err
	}
	ctx = workflow.WithActivityOptions(ctx, fileActivityOptions())
	markRun(ctx, input.RunID, models.RunRunning, "", "")

	fail := func(step string, err error) (QualityResult, error) {
		progress.Steps[step] = "failed"
		progress.Status = models.RunFailed
		progress.Error = err.Error()
		markRun(ctx, input.RunID, models.RunFailed, "", fmt.Sprintf("%s: %v", step, err))
		return result, err
	}

	progress.CurrentStep = "quality_merge"
	if err := workflow.ExecuteActivity(ctx, "QualityMergeActivity", activities.QualityMergeInput{Dir: input.QualityDir, OutDir: input.OutDir}).Get(ctx, &result.Merge); err != nil {
		return fail(progress.CurrentStep, err)
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "quality_analysis"
	if err := workflow.ExecuteActivity(ctx, "QualityAnalyzeActivity", activities.QualityAnalyzeInput{Path: result.Merge.OutputPath, OutDir: input.OutDir}).Get(ctx, &result.Analysis); err != nil {
		return fail(progress.CurrentStep, err)
	}
	progress.Steps[progress.CurrentStep] = "done"

	if input.ExtractionDir != "" {
		progress.CurrentStep = "extraction_merge"
		var ext activities.ExtractionMergeOutput
		if err := workflow.ExecuteActivity(ctx, "ExtractionMergeActivity", activities.ExtractionMergeInput{Dir: input.ExtractionDir, OutDir: input.OutDir}).Get(ctx, &ext); err != nil {
			return fail(progress.CurrentStep, err)
		}
		result.Extraction = &ext
		progress.Steps[progress.CurrentStep] = "done"

		progress.CurrentStep = "final_filter"
		var final activities.FinalFilterOutput
		if err := workflow.ExecuteActivity(ctx, "FinalFilterActivity", activities.FinalFilterInput{
			QualityPath:    result.Merge.OutputPath,
			ExtractionPath: ext.OutputPath,
			OutDir:         input.OutDir,
		}).Get(ctx, &final); err != nil {
			return fail(progress.CurrentStep, err)
		}
		result.Final = &final
		progress.Steps[progress.CurrentStep] = "done"
	}

	progress.CurrentStep = "done"
	progress.Status = models.RunCompleted
	files := []string{result.Merge.OutputPath, result.Analysis.SummaryPath}
	if result.Extraction != nil {
		files = append(files, result.Extraction.OutputPath, result.Final.OutputPath)
	}
	writeManifest(ctx, input.RunID, result, files)
	markRun(ctx, input.RunID, models.RunCompleted, summaryJSON(result), "")
	return result, nil
}

// markRun updates the run ledger. Ledger failures are logged and never fail the workflow.
func markRun(ctx workflow.Context, runID, status, summary, errText string) {
	if runID == "" {
		return
	}
	err := workflow.ExecuteActivity(ctx, "UpdateRunActivity", activities.UpdateRunInput{
		RunID:   runID,
		Status:  status,
		Summary: summary,
		Error:   errText,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("run ledger update failed", "run_id", runID, "status", status, "error", err)
	}
}

// writeManifest records a completed run under runs/<run id>.json in the output
// root, with checksums of the files it read or produced.
func writeManifest(ctx workflow.Context, runID string, result any, files []string) {
	if runID == "" {
		return
	}
	info := workflow.GetInfo(ctx)
	err := workflow.ExecuteActivity(ctx, "WriteRunManifestActivity", activities.WriteRunManifestInput{
		Path: filepath.Join("runs", runID+".json"),
		Manifest: map[string]any{
			"run_id":        runID,
			"workflow_id":   info.WorkflowExecution.ID,
			"workflow_type": info.WorkflowType.Name,
			"finished_at":   workflow.Now(ctx).UTC(),
			"result":        result,
		},
		Files: files,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("run manifest not written", "run_id", runID, "error", err)
	}
}

func summaryJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
