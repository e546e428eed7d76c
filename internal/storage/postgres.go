package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"litreview/internal/models"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      uuid PRIMARY KEY,
	kind        text NOT NULL,
	status      text NOT NULL,
	workflow_id text NOT NULL DEFAULT '',
	input_dir   text NOT NULL DEFAULT '',
	output_dir  text NOT NULL DEFAULT '',
	params      text NOT NULL DEFAULT '',
	summary     text NOT NULL DEFAULT '',
	error       text NOT NULL DEFAULT '',
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS runs_kind_created_idx ON runs (kind, created_at DESC);

CREATE TABLE IF NOT EXISTS decisions (
	run_id      uuid NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq         integer NOT NULL,
	no          text NOT NULL DEFAULT '',
	title       text NOT NULL,
	year        text NOT NULL,
	r1_decision text NOT NULL DEFAULT '',
	r2_decision text NOT NULL DEFAULT '',
	r3_decision text NOT NULL DEFAULT '',
	need_r3     boolean NOT NULL DEFAULT false,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS llm_calls (
	call_id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	run_id            text NOT NULL DEFAULT '',
	operation         text NOT NULL,
	reviewer          text NOT NULL DEFAULT '',
	record_key        text NOT NULL DEFAULT '',
	provider_name     text NOT NULL,
	model             text NOT NULL,
	status            text NOT NULL,
	error_type        text,
	prompt_tokens     integer NOT NULL DEFAULT 0,
	completion_tokens integer NOT NULL DEFAULT 0,
	cost_usd          double precision NOT NULL DEFAULT 0,
	latency_ms        bigint NOT NULL DEFAULT 0,
	created_at        timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS llm_calls_run_idx ON llm_calls (run_id);
`

const pgRunColumns = `run_id::text, kind, status, workflow_id, input_dir, output_dir, params, summary, error, created_at, updated_at`

type PGStore struct {
	Pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PGStore{Pool: pool}, nil
}

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) Close() error {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *PGStore) CreateRun(ctx context.Context, run models.Run) (models.Run, error) {
	run = prepareRun(run)
	_, err := s.Pool.Exec(ctx, `
INSERT INTO runs (run_id, kind, status, workflow_id, input_dir, output_dir, params, summary, error, created_at, updated_at)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.RunID, run.Kind, run.Status, run.WorkflowID, run.InputDir, run.OutputDir, run.Params, run.Summary, run.Error, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return models.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *PGStore) FinishRun(ctx context.Context, runID, status, summary, errText string) error {
	tag, err := s.Pool.Exec(ctx, `
UPDATE runs SET status = $2, summary = $3, error = $4, updated_at = $5 WHERE run_id = $1::uuid`,
		runID, status, summary, errText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %s: %w", runID, ErrNotFound)
	}
	return nil
}

func (s *PGStore) GetRun(ctx context.Context, runID string) (models.Run, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM runs WHERE run_id = $1::uuid`, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, fmt.Errorf("get run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *PGStore) ListRuns(ctx context.Context, kind string, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
SELECT `+pgRunColumns+` FROM runs
WHERE ($1 = '' OR kind = $1)
ORDER BY created_at DESC
LIMIT $2`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (s *PGStore) SaveDecisions(ctx context.Context, runID string, rows []models.Decision) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save decisions: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM decisions WHERE run_id = $1::uuid`, runID); err != nil {
		return fmt.Errorf("clear decisions: %w", err)
	}
	batch := &pgx.Batch{}
	for i, d := range rows {
		batch.Queue(`
INSERT INTO decisions (run_id, seq, no, title, year, r1_decision, r2_decision, r3_decision, need_r3)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)`,
			runID, i, d.No, d.Title, d.Year, d.R1Decision, d.R2Decision, d.R3Decision, d.NeedR3)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert decisions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit decisions: %w", err)
	}
	return nil
}

func (s *PGStore) ListDecisions(ctx context.Context, runID string) ([]models.Decision, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT run_id::text, no, title, year, r1_decision, r2_decision, r3_decision, need_r3
FROM decisions WHERE run_id = $1::uuid ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Decision, 0)
	for rows.Next() {
		var d models.Decision
		if err := rows.Scan(&d.RunID, &d.No, &d.Title, &d.Year, &d.R1Decision, &d.R2Decision, &d.R3Decision, &d.NeedR3); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

func (s *PGStore) InsertLLMCall(ctx context.Context, c models.LLMCall) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, run_id, operation, reviewer, record_key, provider_name, model, status, error_type,
	prompt_tokens, completion_tokens, cost_usd, latency_ms, created_at)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''), $10, $11, $12, $13, $14)`,
		c.CallID, c.RunID, c.Operation, c.Reviewer, c.RecordKey, c.ProviderName, c.Model, c.Status, c.ErrorType,
		c.PromptTokens, c.CompletionTokens, c.CostUSD, c.LatencyMS, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

func (s *PGStore) LLMUsage(ctx context.Context, runID string) (models.Usage, error) {
	var u models.Usage
	err := s.Pool.QueryRow(ctx, `
SELECT count(*), count(*) FILTER (WHERE status <> 'ok'),
	COALESCE(sum(prompt_tokens), 0), COALESCE(sum(completion_tokens), 0), COALESCE(sum(cost_usd), 0)
FROM llm_calls WHERE run_id = $1`, runID).Scan(&u.Calls, &u.Failed, &u.PromptTokens, &u.CompletionTokens, &u.CostUSD)
	if err != nil {
		return u, fmt.Errorf("sum llm usage: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (models.Run, error) {
	var run models.Run
	err := r.Scan(&run.RunID, &run.Kind, &run.Status, &run.WorkflowID, &run.InputDir, &run.OutputDir,
		&run.Params, &run.Summary, &run.Error, &run.CreatedAt, &run.UpdatedAt)
	return run, err
}
