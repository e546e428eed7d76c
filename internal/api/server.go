package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"litreview/internal/config"
	"litreview/internal/models"
	"litreview/internal/storage"
	"litreview/internal/workflows"
)

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errRouteNotFound    = errors.New("not found")
)

// WorkflowClient is the part of the Temporal client the server uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Server struct {
	cfg      config.Config
	store    storage.Store
	temporal WorkflowClient
	log      *zap.Logger
}

func NewServer(cfg config.Config, store storage.Store, tc WorkflowClient, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cfg: cfg, store: store, temporal: tc, log: log}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunsScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(r.Context(), r.URL.Query().Get("kind"), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRunsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, errRouteNotFound)
		return
	}

	if len(parts) == 1 {
		switch parts[0] {
		case "screening", "llm", "quality":
			if r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
				return
			}
			s.handleStart(w, r, parts[0])
			return
		}
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
			return
		}
		s.handleGetRun(w, r, parts[0])
		return
	}
	if len(parts) == 2 && r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	if len(parts) == 2 && parts[1] == "progress" {
		s.handleProgress(w, r, parts[0])
		return
	}
	if len(parts) == 2 && parts[1] == "decisions" {
		rows, err := s.store.ListDecisions(r.Context(), parts[0])
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"decisions": rows})
		return
	}
	writeErr(w, http.StatusNotFound, errRouteNotFound)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, storage.ErrNotFound) {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	usage, err := s.store.LLMUsage(r.Context(), runID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "llm_usage": usage})
}

type startSpec struct {
	kind     string
	workflow any
	input    func(runID string) any
	inputDir string
	outDir   string
	params   any
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, kind string) {
	spec, err := decodeStart(r, kind)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	params, _ := json.Marshal(spec.params)
	runID := uuid.NewString()
	wfID := kind + "-" + runID
	run, err := s.store.CreateRun(r.Context(), models.Run{
		RunID:      runID,
		Kind:       spec.kind,
		Status:     models.RunPending,
		WorkflowID: wfID,
		InputDir:   spec.inputDir,
		OutputDir:  spec.outDir,
		Params:     string(params),
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, spec.workflow, spec.input(run.RunID))
	if err != nil {
		s.log.Error("start workflow failed", zap.String("workflow_id", wfID), zap.Error(err))
		_ = s.store.FinishRun(context.WithoutCancel(r.Context()), run.RunID, models.RunFailed, "", err.Error())
		writeErr(w, http.StatusConflict, err)
		return
	}
	s.log.Info("workflow started", zap.String("kind", kind), zap.String("run_id", run.RunID), zap.String("workflow_id", we.GetID()))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":               run.RunID,
		"workflow_id":          we.GetID(),
		"temporal_workflow_id": we.GetRunID(),
	})
}

type screeningRequest struct {
	StageDir         string   `json:"stage_dir"`
	Reviewers        []string `json:"reviewers,omitempty"`
	SkipMerge        bool     `json:"skip_merge,omitempty"`
	Adjudicate       bool     `json:"adjudicate,omitempty"`
	AdjudicationPath string   `json:"adjudication_path,omitempty"`
	FinalizeFullText bool     `json:"finalize_full_text,omitempty"`
	FullTextPath     string   `json:"full_text_path,omitempty"`
}

type llmRequest struct {
	InputPath            string `json:"input_path"`
	PDFDir               string `json:"pdf_dir,omitempty"`
	StageDir             string `json:"stage_dir"`
	Reviewer             string `json:"reviewer"`
	Model                string `json:"model,omitempty"`
	BatchSize            int    `json:"batch_size,omitempty"`
	MaxConcurrentBatches int    `json:"max_concurrent_batches,omitempty"`
	Merge                bool   `json:"merge,omitempty"`
}

type qualityRequest struct {
	QualityDir    string `json:"quality_dir"`
	ExtractionDir string `json:"extraction_dir,omitempty"`
	OutDir        string `json:"out_dir,omitempty"`
}

func decodeStart(r *http.Request, kind string) (startSpec, error) {
	switch kind {
	case "screening":
		var req screeningRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return startSpec{}, malformed(err)
		}
		if err := requirePaths(map[string]string{"stage_dir": req.StageDir}, req.AdjudicationPath, req.FullTextPath); err != nil {
			return startSpec{}, err
		}
		for _, rv := range req.Reviewers {
			if !validReviewer(rv) {
				return startSpec{}, badRequest("invalid reviewer %q", rv)
			}
		}
		return startSpec{
			kind:     models.RunKindScreening,
			workflow: workflows.ScreeningPipelineWorkflow,
			input: func(runID string) any {
				return workflows.ScreeningPipelineInput{
					RunID: runID, StageDir: req.StageDir, Reviewers: req.Reviewers, SkipMerge: req.SkipMerge,
					Adjudicate: req.Adjudicate, AdjudicationPath: req.AdjudicationPath,
					FinalizeFullText: req.FinalizeFullText, FullTextPath: req.FullTextPath,
				}
			},
			inputDir: req.StageDir,
			outDir:   req.StageDir,
			params:   req,
		}, nil
	case "llm":
		var req llmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return startSpec{}, malformed(err)
		}
		if err := requirePaths(map[string]string{"input_path": req.InputPath, "stage_dir": req.StageDir}, req.PDFDir); err != nil {
			return startSpec{}, err
		}
		if !validReviewer(req.Reviewer) {
			return startSpec{}, badRequest("invalid reviewer %q", req.Reviewer)
		}
		return startSpec{
			kind:     models.RunKindLLM,
			workflow: workflows.LLMScreeningWorkflow,
			input: func(runID string) any {
				return workflows.LLMScreeningInput{
					RunID: runID, InputPath: req.InputPath, PDFDir: req.PDFDir, StageDir: req.StageDir,
					Reviewer: req.Reviewer, Model: req.Model, BatchSize: req.BatchSize,
					MaxConcurrentBatches: req.MaxConcurrentBatches, Merge: req.Merge,
				}
			},
			inputDir: req.InputPath,
			outDir:   filepath.Join(req.StageDir, req.Reviewer),
			params:   req,
		}, nil
	default:
		var req qualityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return startSpec{}, malformed(err)
		}
		if err := requirePaths(map[string]string{"quality_dir": req.QualityDir}, req.ExtractionDir, req.OutDir); err != nil {
			return startSpec{}, err
		}
		return startSpec{
			kind:     models.RunKindQuality,
			workflow: workflows.QualityWorkflow,
			input: func(runID string) any {
				return workflows.QualityInput{RunID: runID, QualityDir: req.QualityDir, ExtractionDir: req.ExtractionDir, OutDir: req.OutDir}
			},
			inputDir: req.QualityDir,
			outDir:   req.OutDir,
			params:   req,
		}, nil
	}
}

// requirePaths checks that required paths are set and that every path stays
// inside the data roots.
func requirePaths(required map[string]string, optional ...string) error {
	for name, p := range required {
		if strings.TrimSpace(p) == "" {
			return badRequest("%s is required", name)
		}
		optional = append(optional, p)
	}
	for _, p := range optional {
		if p != "" && !filepath.IsLocal(p) {
			return badRequest("path %q must be relative to the data root", p)
		}
	}
	return nil
}

func validReviewer(s string) bool {
	return s != "" && !strings.ContainsAny(s, `/\.`)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, storage.ErrNotFound) {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if run.WorkflowID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"run_id": run.RunID, "status": run.Status, "error": run.Error})
		return
	}
	resp, err := s.temporal.QueryWorkflow(r.Context(), run.WorkflowID, "", workflows.QueryGetProgress)
	if err != nil {
		// Fall back to the ledger once the workflow can no longer be queried.
		writeJSON(w, http.StatusOK, map[string]any{"run_id": run.RunID, "status": run.Status, "error": run.Error})
		return
	}
	var prog map[string]any
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

// requestError is a client mistake whose message is safe to echo back.
type requestError struct {
	msg       string
	malformed bool
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func malformed(err error) error {
	return &requestError{msg: "invalid json: " + err.Error(), malformed: true}
}

var statusErrors = map[int]apiError{
	http.StatusBadRequest:       {"LR-API-4001", "Invalid request. Check inputs and retry."},
	http.StatusNotFound:         {"LR-API-4004", "Requested resource was not found."},
	http.StatusMethodNotAllowed: {"LR-API-4005", "This endpoint does not support the requested method."},
	http.StatusConflict:         {"LR-API-4009", "Run could not be started. Check the run ledger and retry."},
}

// toAPIError maps a handler failure to a stable code. Internal details never
// reach the client; validation messages do.
func toAPIError(status int, err error) apiError {
	if status >= 500 {
		return internalError(err)
	}
	out, ok := statusErrors[status]
	if !ok {
		out = apiError{"LR-API-4000", "Request failed."}
	}
	var re *requestError
	if errors.As(err, &re) {
		out.Message = re.msg
		if re.malformed {
			out.Message = "Malformed JSON request body."
		}
	}
	return out
}

// internalError tells ledger outages apart from other server faults. Neither
// SQL driver exposes a shared sentinel, so the message is inspected.
func internalError(err error) apiError {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}
	switch {
	case strings.Contains(raw, "no such table"), strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
		return apiError{"LR-DB-5001", "Run ledger schema is not initialized. Restart the service and retry."}
	case strings.Contains(raw, "connection refused"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "database is locked"):
		return apiError{"LR-DB-5002", "Run ledger is unavailable. Check local services and retry."}
	default:
		return apiError{"LR-API-5000", "Internal server error. Please retry or check service logs."}
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
