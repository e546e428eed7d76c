package screening

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"litreview/internal/table"
	"litreview/internal/util"
)

// MergeResult describes one reviewer's merged round.
type MergeResult struct {
	Reviewer   string   `json:"reviewer"`
	BatchDir   string   `json:"batch_dir"`
	Batches    []string `json:"batches"`
	Skipped    []string `json:"skipped,omitempty"`
	Rows       int      `json:"rows"`
	OutputPath string   `json:"output_path"`
}

// Merger concatenates a reviewer's batch exports into one numbered table.
type Merger struct {
	Log *zap.Logger
}

func NewMerger(log *zap.Logger) *Merger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Merger{Log: log}
}

// MergeRound reads every {reviewer}_analysis_batch_*.csv in batchDir in name
// order, normalizes Notes, renumbers No. from 1 and writes
// {reviewer}_analysis_results.csv next to the batches.
func (m *Merger) MergeRound(batchDir, reviewer string) (MergeResult, error) {
	res := MergeResult{Reviewer: reviewer, BatchDir: batchDir}
	st, err := os.Stat(batchDir)
	if err != nil || !st.IsDir() {
		return res, fmt.Errorf("merge %s: %w: batch directory %s does not exist", reviewer, util.ErrInvalidInput, batchDir)
	}
	pattern := fmt.Sprintf(BatchPattern, reviewer)
	paths, err := util.GlobSorted(batchDir, pattern)
	if err != nil {
		return res, fmt.Errorf("merge %s: %w", reviewer, err)
	}
	if len(paths) == 0 {
		m.Log.Warn("no batch files found", zap.String("reviewer", reviewer), zap.String("dir", batchDir), zap.String("pattern", pattern))
		return res, fmt.Errorf("merge %s: %w (pattern %s in %s)", reviewer, util.ErrNoInput, pattern, batchDir)
	}
	m.Log.Info("found batch files", zap.String("reviewer", reviewer), zap.Int("count", len(paths)))

	parts := make([]*table.Table, 0, len(paths))
	for _, p := range paths {
		t, err := table.ReadCSV(p)
		if err != nil {
			m.Log.Error("batch read failed", zap.String("file", p), zap.Error(err))
			res.Skipped = append(res.Skipped, filepath.Base(p))
			continue
		}
		if i := t.Index(ColNotes); i >= 0 {
			for _, row := range t.Rows {
				row[i] = NormalizeNotes(row[i])
			}
		}
		m.Log.Debug("batch read", zap.String("file", filepath.Base(p)), zap.Int("rows", t.Len()))
		res.Batches = append(res.Batches, filepath.Base(p))
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return res, fmt.Errorf("merge %s: %w: every batch file failed to read", reviewer, util.ErrBatchProcessing)
	}

	merged := table.Concat(parts...)
	merged.Renumber()
	res.Rows = merged.Len()
	res.OutputPath = filepath.Join(batchDir, fmt.Sprintf(ResultsBase, reviewer)+".csv")
	if err := table.WriteCSV(res.OutputPath, merged); err != nil {
		return res, fmt.Errorf("merge %s: %w", reviewer, err)
	}
	m.Log.Info("merged round", zap.String("reviewer", reviewer), zap.Int("batches", len(res.Batches)), zap.Int("rows", res.Rows), zap.String("output", res.OutputPath))
	return res, nil
}

// MergeAll merges several reviewers concurrently. Each reviewer's batches live in
// stageDir/<reviewer> when that directory exists, else in stageDir. A failing
// reviewer never stops the others; their errors are joined.
func (m *Merger) MergeAll(ctx context.Context, stageDir string, reviewers ...string) ([]MergeResult, error) {
	results := make([]MergeResult, len(reviewers))
	var (
		mu   sync.Mutex
		errs []error
	)
	g, ctx := errgroup.WithContext(ctx)
	for i, reviewer := range reviewers {
		i, reviewer := i, reviewer
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := m.MergeRound(RoundDir(stageDir, reviewer), reviewer)
			results[i] = res
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

// RoundDir is stageDir/<reviewer> if present, otherwise stageDir.
func RoundDir(stageDir, reviewer string) string {
	sub := filepath.Join(stageDir, reviewer)
	if st, err := os.Stat(sub); err == nil && st.IsDir() {
		return sub
	}
	return stageDir
}
