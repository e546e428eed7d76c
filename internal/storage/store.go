// Package storage keeps the run ledger: runs, exported screening decisions and
// the LLM call audit.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"litreview/internal/config"
	"litreview/internal/models"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	// CreateRun stores run, assigning RunID and timestamps when unset.
	CreateRun(ctx context.Context, run models.Run) (models.Run, error)
	// FinishRun moves a run to status and records its summary or error text.
	FinishRun(ctx context.Context, runID, status, summary, errText string) error
	GetRun(ctx context.Context, runID string) (models.Run, error)
	// ListRuns returns runs newest first. An empty kind lists every kind.
	ListRuns(ctx context.Context, kind string, limit int) ([]models.Run, error)
	// SaveDecisions replaces the decisions stored for runID.
	SaveDecisions(ctx context.Context, runID string, rows []models.Decision) error
	ListDecisions(ctx context.Context, runID string) ([]models.Decision, error)
	InsertLLMCall(ctx context.Context, call models.LLMCall) error
	LLMUsage(ctx context.Context, runID string) (models.Usage, error)
	Close() error
}

// Open returns the store selected by cfg.StoreDriver and ensures its schema.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.StoreDriver {
	case config.StorePostgres:
		s, err := NewPGStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		log.Info("store opened", zap.String("driver", cfg.StoreDriver))
		return s, nil
	case config.StoreSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("store opened", zap.String("driver", cfg.StoreDriver), zap.String("path", cfg.SQLitePath))
		return s, nil
	case config.StoreNone, "":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("open store: unknown driver %q", cfg.StoreDriver)
	}
}

func prepareRun(run models.Run) models.Run {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	// Both stores keep millisecond precision.
	run.CreatedAt = run.CreatedAt.UTC().Truncate(time.Millisecond)
	run.UpdatedAt = run.CreatedAt
	return run
}

// NopStore discards writes. It backs CLI runs with the store disabled.
type NopStore struct{}

func (NopStore) CreateRun(_ context.Context, run models.Run) (models.Run, error) {
	return prepareRun(run), nil
}
func (NopStore) FinishRun(context.Context, string, string, string, string) error { return nil }
func (NopStore) GetRun(context.Context, string) (models.Run, error) {
	return models.Run{}, ErrNotFound
}
func (NopStore) ListRuns(context.Context, string, int) ([]models.Run, error) { return nil, nil }
func (NopStore) SaveDecisions(context.Context, string, []models.Decision) error {
	return nil
}
func (NopStore) ListDecisions(context.Context, string) ([]models.Decision, error) {
	return nil, nil
}
func (NopStore) InsertLLMCall(context.Context, models.LLMCall) error { return nil }
func (NopStore) LLMUsage(context.Context, string) (models.Usage, error) {
	return models.Usage{}, nil
}
func (NopStore) Close() error { return nil }
