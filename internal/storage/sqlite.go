package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"litreview/internal/models"
	"litreview/internal/util"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	workflow_id TEXT NOT NULL DEFAULT '',
	input_dir   TEXT NOT NULL DEFAULT '',
	output_dir  TEXT NOT NULL DEFAULT '',
	params      TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_kind_created_idx ON runs (kind, created_at);

CREATE TABLE IF NOT EXISTS decisions (
	run_id      TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	no          TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL,
	year        TEXT NOT NULL,
	r1_decision TEXT NOT NULL DEFAULT '',
	r2_decision TEXT NOT NULL DEFAULT '',
	r3_decision TEXT NOT NULL DEFAULT '',
	need_r3     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS llm_calls (
	call_id           TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL DEFAULT '',
	operation         TEXT NOT NULL,
	reviewer          TEXT NOT NULL DEFAULT '',
	record_key        TEXT NOT NULL DEFAULT '',
	provider_name     TEXT NOT NULL,
	model             TEXT NOT NULL,
	status            TEXT NOT NULL,
	error_type        TEXT NOT NULL DEFAULT '',
	prompt_tokens     INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd          REAL NOT NULL DEFAULT 0,
	latency_ms        INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS llm_calls_run_idx ON llm_calls (run_id);
`

const sqliteRunColumns = `run_id, kind, status, workflow_id, input_dir, output_dir, params, summary, error, created_at, updated_at`

// SQLiteStore is the single-file ledger used by local CLI runs. Timestamps are
// stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := util.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateRun(ctx context.Context, run models.Run) (models.Run, error) {
	run = prepareRun(run)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (`+sqliteRunColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Kind, run.Status, run.WorkflowID, run.InputDir, run.OutputDir, run.Params, run.Summary, run.Error,
		run.CreatedAt.UnixMilli(), run.UpdatedAt.UnixMilli())
	if err != nil {
		return models.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status, summary, errText string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE runs SET status = ?, summary = ?, error = ?, updated_at = ? WHERE run_id = ?`,
		status, summary, errText, time.Now().UTC().UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", runID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, fmt.Errorf("get run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, kind string, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+sqliteRunColumns+` FROM runs
WHERE (? = '' OR kind = ?)
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]models.Run, 0)
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
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

func (s *SQLiteStore) SaveDecisions(ctx context.Context, runID string, rows []models.Decision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save decisions: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear decisions: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO decisions (run_id, seq, no, title, year, r1_decision, r2_decision, r3_decision, need_r3)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare decisions: %w", err)
	}
	defer stmt.Close()
	for i, d := range rows {
		if _, err := stmt.ExecContext(ctx, runID, i, d.No, d.Title, d.Year, d.R1Decision, d.R2Decision, d.R3Decision, d.NeedR3); err != nil {
			return fmt.Errorf("insert decision %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decisions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, runID string) ([]models.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, no, title, year, r1_decision, r2_decision, r3_decision, need_r3
FROM decisions WHERE run_id = ? ORDER BY seq`, runID)
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

func (s *SQLiteStore) InsertLLMCall(ctx context.Context, c models.LLMCall) error {
	if c.CallID == "" {
		c.CallID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO llm_calls(call_id, run_id, operation, reviewer, record_key, provider_name, model, status, error_type,
	prompt_tokens, completion_tokens, cost_usd, latency_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CallID, c.RunID, c.Operation, c.Reviewer, c.RecordKey, c.ProviderName, c.Model, c.Status, c.ErrorType,
		c.PromptTokens, c.CompletionTokens, c.CostUSD, c.LatencyMS, c.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LLMUsage(ctx context.Context, runID string) (models.Usage, error) {
	var u models.Usage
	err := s.db.QueryRowContext(ctx, `
SELECT count(*), COALESCE(sum(status <> 'ok'), 0),
	COALESCE(sum(prompt_tokens), 0), COALESCE(sum(completion_tokens), 0), COALESCE(sum(cost_usd), 0.0)
FROM llm_calls WHERE run_id = ?`, runID).Scan(&u.Calls, &u.Failed, &u.PromptTokens, &u.CompletionTokens, &u.CostUSD)
	if err != nil {
		return u, fmt.Errorf("sum llm usage: %w", err)
	}
	return u, nil
}

func scanSQLiteRun(r rowScanner) (models.Run, error) {
	var (
		run              models.Run
		created, updated int64
	)
	err := r.Scan(&run.RunID, &run.Kind, &run.Status, &run.WorkflowID, &run.InputDir, &run.OutputDir,
		&run.Params, &run.Summary, &run.Error, &created, &updated)
	run.CreatedAt = time.UnixMilli(created).UTC()
	run.UpdatedAt = time.UnixMilli(updated).UTC()
	return run, err
}
