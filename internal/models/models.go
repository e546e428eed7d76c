package models

import "time"

const (
	RunKindScreening = "screening"
	RunKindLLM       = "llm_screening"
	RunKindQuality   = "quality"
	RunKindSearch    = "search"

	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one entry in the run ledger: a CLI invocation or workflow execution.
type Run struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	InputDir   string    `json:"input_dir,omitempty"`
	OutputDir  string    `json:"output_dir,omitempty"`
	Params     string    `json:"params,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Decision is one reviewed record as exported by the consistency check.
type Decision struct {
	RunID      string `json:"run_id"`
	No         string `json:"no"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	R1Decision string `json:"r1_decision"`
	R2Decision string `json:"r2_decision"`
	R3Decision string `json:"r3_decision,omitempty"`
	NeedR3     bool   `json:"need_r3"`
}

// LLMCall is the audit row written for every provider call.
type LLMCall struct {
	CallID           string    `json:"call_id"`
	RunID            string    `json:"run_id,omitempty"`
	Operation        string    `json:"operation"`
	Reviewer         string    `json:"reviewer,omitempty"`
	RecordKey        string    `json:"record_key,omitempty"`
	ProviderName     string    `json:"provider_name"`
	Model            string    `json:"model"`
	Status           string    `json:"status"`
	ErrorType        string    `json:"error_type,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	LatencyMS        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Usage aggregates the audited LLM calls of one run.
type Usage struct {
	Calls            int     `json:"calls"`
	Failed           int     `json:"failed"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}
