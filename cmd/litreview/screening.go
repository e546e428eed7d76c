package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"litreview/internal/fulltext"
	"litreview/internal/models"
	"litreview/internal/screening"
	"litreview/internal/util"
)

func newMergeCmd() *cobra.Command {
	var (
		dir       string
		reviewers []string
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge each reviewer's batch files into one results file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, dir, reviewers)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Stage directory holding the reviewer batches (required)")
	cmd.Flags().StringSliceVar(&reviewers, "reviewers", []string{"R1", "R2"}, "Reviewer labels")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func runMerge(cmd *cobra.Command, dir string, reviewers []string) error {
	params := map[string]any{"reviewers": reviewers}
	return recordRun(cmd, models.RunKindScreening, dir, dir, params, func(string) (any, error) {
		results, err := screening.NewMerger(logger).MergeAll(cmd.Context(), dir, reviewers...)
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows from %d batches -> %s\n",
				r.Reviewer, r.Rows, len(r.Batches), r.OutputPath)
		}
		return results, err
	})
}

func newConsistencyCmd() *cobra.Command {
	var dir, r1, r2 string
	cmd := &cobra.Command{
		Use:   "consistency",
		Short: "Compare two reviewer rounds and flag records that need a third reviewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsistency(cmd, dir, r1, r2)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Stage directory (required)")
	cmd.Flags().StringVar(&r1, "r1", "", "R1 results file (default: merged R1 results)")
	cmd.Flags().StringVar(&r2, "r2", "", "R2 results file (default: merged R2 results)")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func runConsistency(cmd *cobra.Command, dir, r1, r2 string) error {
	params := map[string]string{"r1": r1, "r2": r2}
	return recordRun(cmd, models.RunKindScreening, dir, dir, params, func(runID string) (any, error) {
		out, err := screening.NewStage(dir, logger).Consistency(r1, r2)
		if err != nil {
			return nil, err
		}
		if runID != "" {
			if err := store.SaveDecisions(cmd.Context(), runID, screening.Decisions(runID, out.Report)); err != nil {
				return nil, err
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), out.Report.Text())
		return map[string]any{
			"report":  out.ReportPath,
			"export":  out.ExportPath,
			"aligned": len(out.Report.Pairs),
			"need_r3": out.Report.NeedR3Count(),
		}, nil
	})
}

func newSummaryCmd() *cobra.Command {
	var (
		dir    string
		rounds []string
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Write the decision summary across reviewer rounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, dir, rounds)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Stage directory (required)")
	cmd.Flags().StringArrayVar(&rounds, "round", nil, "Round as label=path; repeatable (default: R1 and R2 merged results)")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func runSummary(cmd *cobra.Command, dir string, rounds []string) error {
	if len(rounds) == 0 {
		text, path, err := screening.NewStage(dir, logger).Summary("R1", "R2")
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		logger.Sugar().Infof("summary written to %s", path)
		return nil
	}
	files, err := parseRounds(rounds)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, screening.SummaryFile)
	text := screening.Summarize(dir, path, files)
	fmt.Fprint(cmd.OutOrStdout(), text)
	return util.WriteTextAtomic(path, text)
}

func parseRounds(raw []string) ([]screening.RoundFile, error) {
	out := make([]screening.RoundFile, 0, len(raw))
	for _, r := range raw {
		label, path, ok := strings.Cut(r, "=")
		if !ok || label == "" || path == "" {
			return nil, fmt.Errorf("invalid --round %q: want label=path", r)
		}
		out = append(out, screening.RoundFile{Label: label, Path: path})
	}
	return out, nil
}

func newAdjudicateCmd() *cobra.Command {
	var dir, in string
	cmd := &cobra.Command{
		Use:   "adjudicate",
		Short: "Check the R1/R2/R3 worksheet and tally final decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return recordRun(cmd, models.RunKindScreening, dir, dir, map[string]string{"in": in}, func(string) (any, error) {
				rep, path, err := screening.NewStage(dir, logger).Adjudication(in)
				if err != nil {
					return nil, err
				}
				fmt.Fprint(cmd.OutOrStdout(), rep.Text())
				return map[string]any{
					"report":       path,
					"r3_decisions": rep.R3Distribution(),
					"included":     rep.IncludedTotal(),
					"excluded":     rep.ExcludedTotal(),
				}, nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Stage directory (required)")
	cmd.Flags().StringVar(&in, "in", "", "Adjudication worksheet (default: R1_R2_R3_analysis_results.xlsx in --dir)")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func newFullTextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fulltext",
		Short: "Full-text stage tools",
	}

	var dir, in string
	finalize := &cobra.Command{
		Use:   "finalize",
		Short: "Tally stage-2 decisions and export the included studies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return recordRun(cmd, models.RunKindScreening, dir, dir, map[string]string{"in": in}, func(string) (any, error) {
				out, err := screening.NewStage(dir, logger).FinalizeFullText(in)
				if err != nil {
					return nil, err
				}
				fmt.Fprint(cmd.OutOrStdout(), out.Result.Text())
				return map[string]any{"included": out.IncludedPath, "summary": out.SummaryPath}, nil
			})
		},
	}
	finalize.Flags().StringVar(&dir, "dir", "", "Stage-2 directory (required)")
	finalize.Flags().StringVar(&in, "in", "", "Stage-2 worksheet (default: the adjudicated results in --dir)")
	_ = finalize.MarkFlagRequired("dir")

	var (
		pdfPath  string
		maxChars int
	)
	extract := &cobra.Command{
		Use:   "extract",
		Short: "Print the plain text of a PDF as the screener sees it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pdfPath == "" {
				return errors.New("--pdf is required")
			}
			text, err := fulltext.Extract(pdfPath, maxChars)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	extract.Flags().StringVar(&pdfPath, "pdf", "", "PDF file")
	extract.Flags().IntVar(&maxChars, "max-chars", fulltext.DefaultMaxChars, "Truncate the text to this many characters")

	cmd.AddCommand(finalize, extract)
	return cmd
}
