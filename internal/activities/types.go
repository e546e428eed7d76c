package activities

import (
	"litreview/internal/screener"
	"litreview/internal/screening"
)

type MergeRoundsInput struct {
	StageDir  string   `json:"stage_dir"`
	Reviewers []string `json:"reviewers"`
}

type MergeRoundsOutput struct {
	Results []screening.MergeResult `json:"results"`
	Failed  []string                `json:"failed,omitempty"`
}

type ConsistencyInput struct {
	RunID    string `json:"run_id"`
	StageDir string `json:"stage_dir"`
	R1Path   string `json:"r1_path,omitempty"`
	R2Path   string `json:"r2_path,omitempty"`
}

type ConsistencyOutput struct {
	ReportPath   string                   `json:"report_path"`
	ExportPath   string                   `json:"export_path"`
	Aligned      int                      `json:"aligned"`
	NeedR3       int                      `json:"need_r3"`
	NoMismatches int                      `json:"no_mismatches"`
	Categories   []screening.CategoryStat `json:"categories"`
}

type SummaryInput struct {
	StageDir  string   `json:"stage_dir"`
	Reviewers []string `json:"reviewers"`
}

type SummaryOutput struct {
	Path string `json:"path"`
}

type AdjudicationInput struct {
	StageDir  string `json:"stage_dir"`
	InputPath string `json:"input_path,omitempty"`
}

type AdjudicationOutput struct {
	ReportPath  string         `json:"report_path"`
	Records     int            `json:"records"`
	NeedR3      int            `json:"need_r3"`
	R3Decisions map[string]int `json:"r3_decisions,omitempty"`
	Included    int            `json:"included"`
	Excluded    int            `json:"excluded"`
}

type FullTextFinalizeInput struct {
	StageDir  string `json:"stage_dir"`
	InputPath string `json:"input_path,omitempty"`
}

type FullTextFinalizeOutput struct {
	IncludedPath string `json:"included_path"`
	SummaryPath  string `json:"summary_path"`
	Records      int    `json:"records"`
	Included     int    `json:"included"`
}

type CountRecordsInput struct {
	InputPath string `json:"input_path"`
}

type CountRecordsOutput struct {
	Records int `json:"records"`
}

// ScreenBatchInput names one batch of an LLM reviewer round. Records are read
// from InputPath by the activity so workflow history stays small. OutDir is
// the reviewer directory inside a stage directory, relative to the input root.
type ScreenBatchInput struct {
	RunID     string `json:"run_id"`
	InputPath string `json:"input_path"`
	PDFDir    string `json:"pdf_dir,omitempty"`
	Reviewer  string `json:"reviewer"`
	OutDir    string `json:"out_dir"`
	Batch     int    `json:"batch"`
	BatchSize int    `json:"batch_size"`
	Model     string `json:"model,omitempty"`
}

type ScreenBatchOutput struct {
	Path      string          `json:"path"`
	Skipped   bool            `json:"skipped"`
	Records   int             `json:"records"`
	Decisions map[string]int  `json:"decisions,omitempty"`
	Totals    screener.Totals `json:"totals"`
}

type QualityMergeInput struct {
	Dir    string `json:"dir"`
	OutDir string `json:"out_dir"`
}

type QualityMergeOutput struct {
	OutputPath string `json:"output_path"`
	Rows       int    `json:"rows"`
	Skipped    int    `json:"skipped"`
}

type QualityAnalyzeInput struct {
	Path   string `json:"path"`
	OutDir string `json:"out_dir"`
}

type QualityAnalyzeOutput struct {
	SummaryPath string `json:"summary_path"`
	Rows        int    `json:"rows"`
}

type ExtractionMergeInput struct {
	Dir    string `json:"dir"`
	OutDir string `json:"out_dir"`
}

type ExtractionMergeOutput struct {
	OutputPath string `json:"output_path"`
	Rows       int    `json:"rows"`
}

type FinalFilterInput struct {
	QualityPath    string `json:"quality_path"`
	ExtractionPath string `json:"extraction_path"`
	OutDir         string `json:"out_dir"`
}

type FinalFilterOutput struct {
	OutputPath string `json:"output_path"`
	Rows       int    `json:"rows"`
}

type UpdateRunInput struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteRunManifestInput names the manifest file under the output root. Every
// readable file in Files is recorded with its SHA-256.
type WriteRunManifestInput struct {
	Path     string         `json:"path"`
	Manifest map[string]any `json:"manifest"`
	Files    []string       `json:"files,omitempty"`
}
