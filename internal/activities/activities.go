package activities

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"litreview/internal/config"
	"litreview/internal/extraction"
	"litreview/internal/fulltext"
	"litreview/internal/providers"
	"litreview/internal/quality"
	"litreview/internal/screener"
	"litreview/internal/screening"
	"litreview/internal/storage"
	"litreview/internal/util"
)

type Activities struct {
	cfg      config.Config
	store    storage.Store
	failover *providers.Failover
	limiter  *rate.Limiter
	log      *zap.Logger
}

func New(cfg config.Config, store storage.Store, log *zap.Logger) (*Activities, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if store == nil {
		store = storage.NopStore{}
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	a := &Activities{
		cfg:      cfg,
		store:    store,
		failover: providers.NewFailover(pm, time.Duration(cfg.ProviderCooldownSecs)*time.Second, log),
		log:      log,
	}
	if cfg.TokensPerMinute > 0 {
		a.limiter = screener.NewLimiter(cfg.TokensPerMinute)
	}
	return a, nil
}

// resolve anchors a relative path at the input root.
func (a *Activities) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.cfg.DataInRoot, p)
}

func (a *Activities) outDir(p string) string {
	if p == "" {
		return a.cfg.DataOutRoot
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.cfg.DataOutRoot, p)
}

// permanent stops Temporal from retrying errors that another attempt cannot fix.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, util.ErrNoInput) || errors.Is(err, util.ErrInvalidInput) || errors.Is(err, util.ErrMissingColumns) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "InvalidInput", err)
	}
	return err
}

func (a *Activities) MergeRoundsActivity(ctx context.Context, in MergeRoundsInput) (MergeRoundsOutput, error) {
	stageDir := a.resolve(in.StageDir)
	results, err := screening.NewMerger(a.log).MergeAll(ctx, stageDir, in.Reviewers...)
	out := MergeRoundsOutput{Results: results}
	if err != nil {
		for _, r := range results {
			if r.OutputPath == "" {
				out.Failed = append(out.Failed, r.Reviewer)
			}
		}
		if len(out.Failed) == len(in.Reviewers) {
			return out, permanent(err)
		}
		a.log.Warn("some rounds failed to merge", zap.Strings("reviewers", out.Failed), zap.Error(err))
	}
	return out, nil
}

func (a *Activities) ConsistencyActivity(ctx context.Context, in ConsistencyInput) (ConsistencyOutput, error) {
	res, err := screening.NewStage(a.resolve(in.StageDir), a.log).Consistency(a.resolve(in.R1Path), a.resolve(in.R2Path))
	if err != nil {
		return ConsistencyOutput{}, permanent(err)
	}
	rep := res.Report
	if in.RunID != "" {
		if err := a.store.SaveDecisions(ctx, in.RunID, screening.Decisions(in.RunID, rep)); err != nil {
			return ConsistencyOutput{}, fmt.Errorf("save decisions: %w", err)
		}
	}
	return ConsistencyOutput{
		ReportPath:   res.ReportPath,
		ExportPath:   res.ExportPath,
		Aligned:      len(rep.Pairs),
		NeedR3:       rep.NeedR3Count(),
		NoMismatches: len(rep.NoMismatches()),
		Categories:   rep.Categories(),
	}, nil
}

func (a *Activities) SummaryActivity(ctx context.Context, in SummaryInput) (SummaryOutput, error) {
	_ = ctx
	_, path, err := screening.NewStage(a.resolve(in.StageDir), a.log).Summary(in.Reviewers...)
	if err != nil {
		return SummaryOutput{}, err
	}
	return SummaryOutput{Path: path}, nil
}

func (a *Activities) AdjudicationActivity(ctx context.Context, in AdjudicationInput) (AdjudicationOutput, error) {
	_ = ctx
	rep, path, err := screening.NewStage(a.resolve(in.StageDir), a.log).Adjudication(a.resolve(in.InputPath))
	if err != nil {
		return AdjudicationOutput{}, permanent(err)
	}
	return AdjudicationOutput{
		ReportPath:  path,
		Records:     rep.Total,
		NeedR3:      rep.NeedR3,
		R3Decisions: rep.R3Distribution(),
		Included:    rep.IncludedTotal(),
		Excluded:    rep.ExcludedTotal(),
	}, nil
}

func (a *Activities) FullTextFinalizeActivity(ctx context.Context, in FullTextFinalizeInput) (FullTextFinalizeOutput, error) {
	_ = ctx
	res, err := screening.NewStage(a.resolve(in.StageDir), a.log).FinalizeFullText(a.resolve(in.InputPath))
	if err != nil {
		return FullTextFinalizeOutput{}, permanent(err)
	}
	return FullTextFinalizeOutput{
		IncludedPath: res.IncludedPath,
		SummaryPath:  res.SummaryPath,
		Records:      res.Result.Total,
		Included:     res.Result.IncludedTotal(),
	}, nil
}

func (a *Activities) CountRecordsActivity(ctx context.Context, in CountRecordsInput) (CountRecordsOutput, error) {
	_ = ctx
	recs, err := screener.LoadRecordsFile(a.resolve(in.InputPath))
	if err != nil {
		return CountRecordsOutput{}, permanent(err)
	}
	return CountRecordsOutput{Records: len(recs)}, nil
}

// ScreenBatchActivity screens batch in.Batch (1-based) of the input records and
// writes its batch file. An existing batch file is kept, so retries and
// re-runs never pay for the same batch twice.
func (a *Activities) ScreenBatchActivity(ctx context.Context, in ScreenBatchInput) (ScreenBatchOutput, error) {
	outDir := a.resolve(in.OutDir)
	if outDir == "" {
		return ScreenBatchOutput{}, permanent(fmt.Errorf("screen batch: %w: out_dir is required", util.ErrInvalidInput))
	}
	path := screener.BatchPath(outDir, in.Reviewer, in.Batch)
	out := ScreenBatchOutput{Path: path}
	if util.FileExists(path) {
		out.Skipped = true
		return out, nil
	}
	recs, err := screener.LoadRecordsFile(a.resolve(in.InputPath))
	if err != nil {
		return out, permanent(err)
	}
	size := in.BatchSize
	if size <= 0 {
		size = a.cfg.ScreeningBatchSize
	}
	lo := (in.Batch - 1) * size
	if in.Batch < 1 || lo >= len(recs) {
		return out, permanent(fmt.Errorf("screen batch %d: %w: out of range for %d records", in.Batch, util.ErrInvalidInput, len(recs)))
	}
	recs = recs[lo:min(lo+size, len(recs))]

	opts := screener.Options{
		Model:     in.Model,
		Workers:   a.cfg.ScreeningWorkers,
		RunID:     in.RunID,
		Reviewer:  in.Reviewer,
		Limiter:   a.limiter,
		BatchSize: size,
	}
	if opts.Model == "" {
		opts.Model = a.cfg.ScreeningModel
	}
	if in.PDFDir != "" {
		if _, err := fulltext.NewAttacher(a.resolve(in.PDFDir), a.cfg.FullTextMaxChars, a.log).Attach(recs); err != nil {
			return out, err
		}
		opts.System, opts.Operation = fulltext.SystemPrompt, screener.OperationFullText
		if a.cfg.FullTextModel != "" && in.Model == "" {
			opts.Model = a.cfg.FullTextModel
		}
	}
	s := screener.New(a.failover, a.store, opts, a.log)
	activity.RecordHeartbeat(ctx, in.Batch)
	rows, err := s.ScreenBatch(ctx, recs)
	if err != nil {
		return out, err
	}
	if err := util.EnsureDir(outDir); err != nil {
		return out, err
	}
	if err := screener.WriteBatch(path, rows); err != nil {
		return out, err
	}
	out.Records = len(rows)
	out.Decisions = map[string]int{}
	for _, r := range rows {
		out.Decisions[r.Decision]++
	}
	out.Totals = s.Totals()
	a.log.Info("batch screened",
		zap.String("reviewer", in.Reviewer), zap.Int("batch", in.Batch),
		zap.Int("records", out.Records), zap.Float64("cost_usd", out.Totals.CostUSD))
	return out, nil
}

func (a *Activities) QualityMergeActivity(ctx context.Context, in QualityMergeInput) (QualityMergeOutput, error) {
	_ = ctx
	res, err := quality.NewMerger(a.log).MergeDir(a.resolve(in.Dir), a.outDir(in.OutDir))
	if err != nil {
		return QualityMergeOutput{}, permanent(err)
	}
	return QualityMergeOutput{OutputPath: res.OutputPath, Rows: res.Table.Len(), Skipped: len(res.Skipped)}, nil
}

func (a *Activities) QualityAnalyzeActivity(ctx context.Context, in QualityAnalyzeInput) (QualityAnalyzeOutput, error) {
	_ = ctx
	rep, path, err := quality.NewAnalyzer(a.log).AnalyzeFile(a.resolve(in.Path), a.outDir(in.OutDir))
	if err != nil {
		return QualityAnalyzeOutput{}, permanent(err)
	}
	return QualityAnalyzeOutput{SummaryPath: path, Rows: rep.Rows}, nil
}

func (a *Activities) ExtractionMergeActivity(ctx context.Context, in ExtractionMergeInput) (ExtractionMergeOutput, error) {
	_ = ctx
	t, path, err := extraction.MergeDir(a.resolve(in.Dir), a.outDir(in.OutDir), a.log)
	if err != nil {
		return ExtractionMergeOutput{}, permanent(err)
	}
	return ExtractionMergeOutput{OutputPath: path, Rows: t.Len()}, nil
}

func (a *Activities) FinalFilterActivity(ctx context.Context, in FinalFilterInput) (FinalFilterOutput, error) {
	_ = ctx
	t, path, err := extraction.FilterFinalFiles(a.resolve(in.QualityPath), a.resolve(in.ExtractionPath), a.outDir(in.OutDir), a.log)
	if err != nil {
		return FinalFilterOutput{}, permanent(err)
	}
	return FinalFilterOutput{OutputPath: path, Rows: t.Len()}, nil
}

func (a *Activities) UpdateRunActivity(ctx context.Context, in UpdateRunInput) error {
	if in.RunID == "" {
		return nil
	}
	return a.store.FinishRun(ctx, in.RunID, in.Status, in.Summary, in.Error)
}

func (a *Activities) WriteRunManifestActivity(ctx context.Context, in WriteRunManifestInput) error {
	_ = ctx
	manifest := make(map[string]any, len(in.Manifest)+1)
	for k, v := range in.Manifest {
		manifest[k] = v
	}
	sums := map[string]string{}
	for _, p := range in.Files {
		if p == "" {
			continue
		}
		if !util.FileExists(p) {
			p = a.resolve(p)
		}
		sum, err := util.SHA256File(p)
		if err != nil {
			a.log.Warn("manifest file not hashed", zap.String("path", p), zap.Error(err))
			continue
		}
		sums[p] = sum
	}
	if len(sums) > 0 {
		manifest["files"] = sums
	}
	return util.WriteJSONAtomic(a.outDir(in.Path), manifest)
}
