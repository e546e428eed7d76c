package workflows

import (
	"litreview/internal/activities"
	"litreview/internal/screener"
)

type ScreeningPipelineInput struct {
	RunID     string   `json:"run_id"`
	StageDir  string   `json:"stage_dir"`
	Reviewers []string `json:"reviewers,omitempty"`
	SkipMerge bool     `json:"skip_merge,omitempty"`
	// Adjudicate checks the three-reviewer worksheet at AdjudicationPath, or
	// R1_R2_R3_analysis_results.xlsx in the stage directory.
	Adjudicate       bool   `json:"adjudicate,omitempty"`
	AdjudicationPath string `json:"adjudication_path,omitempty"`
	FinalizeFullText bool   `json:"finalize_full_text,omitempty"`
	FullTextPath     string `json:"full_text_path,omitempty"`
}

type ScreeningPipelineResult struct {
	Merge        activities.MergeRoundsOutput       `json:"merge"`
	Consistency  activities.ConsistencyOutput       `json:"consistency"`
	SummaryPath  string                             `json:"summary_path"`
	Adjudication *activities.AdjudicationOutput     `json:"adjudication,omitempty"`
	FullText     *activities.FullTextFinalizeOutput `json:"full_text,omitempty"`
}

// PipelineProgress is returned by the GetProgress query.
type PipelineProgress struct {
	RunID       string            `json:"run_id"`
	Status      string            `json:"status"`
	CurrentStep string            `json:"current_step"`
	Steps       map[string]string `json:"steps"`
	Error       string            `json:"error,omitempty"`
}

type LLMScreeningInput struct {
	RunID     string `json:"run_id"`
	InputPath string `json:"input_path"`
	// PDFDir switches the round to full-text screening over <No>.pdf files.
	PDFDir               string `json:"pdf_dir,omitempty"`
	StageDir             string `json:"stage_dir"`
	Reviewer             string `json:"reviewer"`
	Model                string `json:"model,omitempty"`
	BatchSize            int    `json:"batch_size,omitempty"`
	MaxConcurrentBatches int    `json:"max_concurrent_batches,omitempty"`
	Merge                bool   `json:"merge,omitempty"`
}

type LLMScreeningResult struct {
	Records    int             `json:"records"`
	Batches    int             `json:"batches"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Decisions  map[string]int  `json:"decisions"`
	Totals     screener.Totals `json:"totals"`
	MergedPath string          `json:"merged_path,omitempty"`
}

type LLMScreeningProgress struct {
	RunID        string            `json:"run_id"`
	Reviewer     string            `json:"reviewer"`
	Status       string            `json:"status"`
	Records      int               `json:"records"`
	TotalBatches int               `json:"total_batches"`
	Done         int               `json:"done"`
	Failed       int               `json:"failed"`
	PerBatch     map[string]string `json:"per_batch"`
}

type QualityInput struct {
	RunID         string `json:"run_id"`
	QualityDir    string `json:"quality_dir"`
	ExtractionDir string `json:"extraction_dir,omitempty"`
	OutDir        string `json:"out_dir,omitempty"`
}

type QualityResult struct {
	Merge      activities.QualityMergeOutput     `json:"merge"`
	Analysis   activities.QualityAnalyzeOutput   `json:"analysis"`
	Extraction *activities.ExtractionMergeOutput `json:"extraction,omitempty"`
	Final      *activities.FinalFilterOutput     `json:"final,omitempty"`
}
