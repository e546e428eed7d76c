// Package screener runs LLM-assisted title and abstract screening as an
// additional reviewer round.
package screener

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"litreview/internal/models"
	"litreview/internal/providers"
	"litreview/internal/screening"
	"litreview/internal/table"
	"litreview/internal/util"
)

// Auditor records provider calls. Audit failures are logged and never stop screening.
type Auditor interface {
	InsertLLMCall(ctx context.Context, call models.LLMCall) error
}

type Options struct {
	Model        string
	System       string
	Operation    string
	BatchSize    int
	Workers      int
	TPM          int
	SkipExisting bool
	RunID        string
	Reviewer     string
	// Limiter, when set, is shared with other screeners and TPM is ignored.
	Limiter *rate.Limiter
}

// Totals accumulates usage across a run.
type Totals struct {
	Calls   int     `json:"calls"`
	Failed  int     `json:"failed"`
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
}

type Screener struct {
	failover *providers.Failover
	limiter  *rate.Limiter
	audit    Auditor
	log      *zap.Logger
	opts     Options

	mu     sync.Mutex
	totals Totals
}

func New(f *providers.Failover, audit Auditor, opts Options, log *zap.Logger) *Screener {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.System == "" {
		opts.System = SystemPrompt
	}
	if opts.Operation == "" {
		opts.Operation = OperationTitleAbstract
	}
	s := &Screener{failover: f, audit: audit, log: log, opts: opts}
	switch {
	case opts.Limiter != nil:
		s.limiter = opts.Limiter
	case opts.TPM > 0:
		s.limiter = NewLimiter(opts.TPM)
	}
	return s
}

// NewLimiter allows tpm tokens per minute with a burst of one minute's budget.
func NewLimiter(tpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(tpm)/60), tpm)
}

// Row is one screened record as written to a batch file.
type Row struct {
	Title    string
	Year     string
	Decision string
	Notes    string
}

// Screen classifies one record. Provider failures and unusable answers are
// recorded as unsure rather than returned, so a batch always completes.
// Only a cancelled context is an error.
func (s *Screener) Screen(ctx context.Context, rec Record) (Row, error) {
	prompt := BuildPrompt(rec)
	if err := s.wait(ctx, EstimateTokens(s.opts.System)+EstimateTokens(prompt)); err != nil {
		return Row{}, err
	}
	resp, info, attempts, err := s.failover.Generate(ctx, providers.GenerateRequest{
		Operation: s.opts.Operation,
		System:    s.opts.System,
		Prompt:    prompt,
		Model:     s.opts.Model,
		JSONMode:  true,
	})
	s.record(ctx, rec, attempts)
	row := Row{Title: rec.Title, Year: rec.Year}
	if err != nil {
		if ctx.Err() != nil {
			return Row{}, ctx.Err()
		}
		s.log.Error("model call failed", zap.String("title", rec.Title), zap.Error(err))
		row.Decision, row.Notes = screening.Unsure, "model call failed: "+err.Error()
		return row, nil
	}
	res, perr := ParseDecision(resp.Text)
	if perr != nil {
		s.log.Warn("unusable screening answer", zap.String("title", rec.Title), zap.String("model", info.Model), zap.Error(perr))
	}
	row.Decision, row.Notes = res.Decision, res.NotesJSON()
	return row, nil
}

// ScreenBatch screens records with up to Workers calls in flight. Rows keep input order.
func (s *Screener) ScreenBatch(ctx context.Context, records []Record) ([]Row, error) {
	rows := make([]Row, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := range records {
		g.Go(func() error {
			row, err := s.Screen(gctx, records[i])
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

type RunResult struct {
	Reviewer  string         `json:"reviewer"`
	OutDir    string         `json:"out_dir"`
	Records   int            `json:"records"`
	Batches   []string       `json:"batches"`
	Skipped   []string       `json:"skipped,omitempty"`
	Decisions map[string]int `json:"decisions"`
	Totals    Totals         `json:"totals"`
}

// BatchPath names batch idx (1-based) of reviewer in outDir.
func BatchPath(outDir, reviewer string, idx int) string {
	return filepath.Join(outDir, fmt.Sprintf(screening.BatchFile, reviewer, idx))
}

// Run screens records in batches and writes each batch as
// <reviewer>_analysis_batch_NNN.csv in outDir, ready for the round merge.
func (s *Screener) Run(ctx context.Context, records []Record, reviewer, outDir string) (*RunResult, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("screen %s: %w: no records", reviewer, util.ErrNoInput)
	}
	if err := util.EnsureDir(outDir); err != nil {
		return nil, err
	}
	res := &RunResult{Reviewer: reviewer, OutDir: outDir, Records: len(records), Decisions: map[string]int{}}
	size := s.opts.BatchSize
	total := (len(records) + size - 1) / size
	start := time.Now()
	s.log.Info("screening started", zap.String("reviewer", reviewer), zap.Int("records", len(records)), zap.Int("batches", total), zap.Int("batch_size", size))
	for idx := 1; idx <= total; idx++ {
		lo, hi := (idx-1)*size, min(idx*size, len(records))
		path := BatchPath(outDir, reviewer, idx)
		if s.opts.SkipExisting && util.FileExists(path) {
			s.log.Info("batch exists, skipped", zap.Int("batch", idx), zap.String("path", path))
			res.Skipped = append(res.Skipped, path)
			continue
		}
		s.log.Info("batch started", zap.Int("batch", idx), zap.Int("from", lo), zap.Int("to", hi-1))
		rows, err := s.ScreenBatch(ctx, records[lo:hi])
		if err != nil {
			return res, fmt.Errorf("screen batch %d: %w", idx, err)
		}
		if err := WriteBatch(path, rows); err != nil {
			return res, err
		}
		for _, r := range rows {
			res.Decisions[r.Decision]++
		}
		res.Batches = append(res.Batches, path)
		s.log.Info("batch saved", zap.Int("batch", idx), zap.String("path", path))
	}
	res.Totals = s.Totals()
	s.log.Info("screening finished",
		zap.String("reviewer", reviewer), zap.Duration("elapsed", time.Since(start)),
		zap.Int("tokens", res.Totals.Tokens), zap.Float64("cost_usd", res.Totals.CostUSD))
	return res, nil
}

// WriteBatch writes rows with the Title, Year, Decision and Notes columns.
func WriteBatch(path string, rows []Row) error {
	t := table.New(screening.ColTitle, screening.ColYear, screening.ColDecision, screening.ColNotes)
	for _, r := range rows {
		t.Append([]string{r.Title, r.Year, r.Decision, r.Notes})
	}
	if err := table.WriteCSV(path, t); err != nil {
		return fmt.Errorf("write screening batch: %w", err)
	}
	return nil
}

func (s *Screener) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

func (s *Screener) wait(ctx context.Context, tokens int) error {
	if s.limiter == nil {
		return nil
	}
	if tokens > s.limiter.Burst() {
		tokens = s.limiter.Burst()
	}
	return s.limiter.WaitN(ctx, tokens)
}

func (s *Screener) record(ctx context.Context, rec Record, attempts []providers.Attempt) {
	for _, at := range attempts {
		status := "ok"
		if at.Err != nil {
			status = "failed"
		}
		tokens := at.Usage.Total()
		cost := Cost(at.Info.Name, at.Info.Model, tokens)
		s.mu.Lock()
		s.totals.Calls++
		if at.Err != nil {
			s.totals.Failed++
		}
		s.totals.Tokens += tokens
		s.totals.CostUSD += cost
		s.mu.Unlock()
		s.log.Debug("llm call",
			zap.String("provider", at.Ref.Raw), zap.String("model", at.Info.Model),
			zap.Int("tokens", tokens), zap.Float64("cost_usd", cost), zap.Duration("latency", at.Latency))
		if s.audit == nil {
			continue
		}
		call := models.LLMCall{
			CallID:           uuid.NewString(),
			RunID:            s.opts.RunID,
			Operation:        s.opts.Operation,
			Reviewer:         s.opts.Reviewer,
			RecordKey:        rec.Title + " (" + rec.Year + ")",
			ProviderName:     at.Info.Name,
			Model:            at.Info.Model,
			Status:           status,
			ErrorType:        string(at.ErrorType),
			PromptTokens:     at.Usage.PromptTokens,
			CompletionTokens: at.Usage.CompletionTokens,
			CostUSD:          cost,
			LatencyMS:        at.Latency.Milliseconds(),
			CreatedAt:        time.Now().UTC(),
		}
		if err := s.audit.InsertLLMCall(context.WithoutCancel(ctx), call); err != nil {
			s.log.Warn("audit llm call", zap.Error(err))
		}
	}
}
