package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"litreview/internal/fulltext"
	"litreview/internal/models"
	"litreview/internal/providers"
	"litreview/internal/screener"
	"litreview/internal/screening"
)

type screenFlags struct {
	in           string
	reviewer     string
	out          string
	pdfDir       string
	model        string
	batchSize    int
	workers      int
	skipExisting bool
	merge        bool
}

func newScreenCmd() *cobra.Command {
	var f screenFlags
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Screen records with the configured LLM providers as one reviewer",
		Long: `screen sends every record of the input table to the LLM providers in
LITREVIEW_LLM_PROVIDERS and writes reviewer batch files that "merge" accepts.
With --pdf-dir, records are screened on their full text (<No>.pdf).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScreen(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.in, "in", "", "Records table with Title and Abstract (required)")
	cmd.Flags().StringVar(&f.reviewer, "reviewer", "R1", "Reviewer label used in batch file names")
	cmd.Flags().StringVar(&f.out, "out", "", "Directory for the batch files (required)")
	cmd.Flags().StringVar(&f.pdfDir, "pdf-dir", "", "Directory of <No>.pdf files for full-text screening")
	cmd.Flags().StringVar(&f.model, "model", "", "Model override")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Records per batch (default: config screening_batch_size)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent calls per batch (default: config screening_workers)")
	cmd.Flags().BoolVar(&f.skipExisting, "skip-existing", true, "Keep batch files that already exist")
	cmd.Flags().BoolVar(&f.merge, "merge", false, "Merge the batches into the reviewer results file afterwards")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runScreen(cmd *cobra.Command, f screenFlags) error {
	if !screeningReviewer(f.reviewer) {
		return fmt.Errorf("invalid reviewer %q", f.reviewer)
	}
	recs, err := screener.LoadRecordsFile(f.in)
	if err != nil {
		return err
	}
	opts := screener.Options{
		Model:        f.model,
		BatchSize:    f.batchSize,
		Workers:      f.workers,
		TPM:          cfg.TokensPerMinute,
		SkipExisting: f.skipExisting,
		Reviewer:     f.reviewer,
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = cfg.ScreeningBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = cfg.ScreeningWorkers
	}
	if opts.Model == "" {
		opts.Model = cfg.ScreeningModel
	}
	if f.pdfDir != "" {
		res, err := fulltext.NewAttacher(f.pdfDir, cfg.FullTextMaxChars, logger).Attach(recs)
		if err != nil {
			return err
		}
		logger.Info("full text attached",
			zap.Int("attached", len(res.Attached)), zap.Int("missing", len(res.Missing)), zap.Int("failed", len(res.Failed)))
		opts.System, opts.Operation = fulltext.SystemPrompt, screener.OperationFullText
		if f.model == "" && cfg.FullTextModel != "" {
			opts.Model = cfg.FullTextModel
		}
	}

	pm, err := providers.NewManager(cfg)
	if err != nil {
		return err
	}
	failover := providers.NewFailover(pm, time.Duration(cfg.ProviderCooldownSecs)*time.Second, logger)

	params := map[string]any{
		"input": f.in, "reviewer": f.reviewer, "model": opts.Model,
		"batch_size": opts.BatchSize, "pdf_dir": f.pdfDir,
	}
	return recordRun(cmd, models.RunKindLLM, f.in, f.out, params, func(runID string) (any, error) {
		opts.RunID = runID
		res, err := screener.New(failover, store, opts, logger).Run(cmd.Context(), recs, f.reviewer, f.out)
		if err != nil {
			return res, err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s screened %d records in %d batches (%d skipped)\n",
			f.reviewer, res.Records, len(res.Batches), len(res.Skipped))
		for _, d := range []string{screening.Include, screening.Exclude, screening.Unsure} {
			fmt.Fprintf(w, "  %s: %d\n", d, res.Decisions[d])
		}
		fmt.Fprintf(w, "calls %d, failed %d, tokens %d, cost $%.4f\n",
			res.Totals.Calls, res.Totals.Failed, res.Totals.Tokens, res.Totals.CostUSD)
		if !f.merge {
			return res, nil
		}
		mr, err := screening.NewMerger(logger).MergeRound(f.out, f.reviewer)
		if err != nil {
			return res, err
		}
		fmt.Fprintf(w, "merged %d rows -> %s\n", mr.Rows, mr.OutputPath)
		return map[string]any{"screen": res, "merge": mr}, nil
	})
}

// screeningReviewer rejects labels that would escape the batch directory.
func screeningReviewer(r string) bool {
	return r != "" && !strings.ContainsAny(r, `/\.`)
}
