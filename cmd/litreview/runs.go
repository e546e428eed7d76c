package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"litreview/internal/models"
	"litreview/internal/util"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run ledger",
	}

	var (
		kind  string
		limit int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := store.ListRuns(cmd.Context(), kind, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tKIND\tSTATUS\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.RunID, r.Kind, r.Status, r.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&kind, "kind", "", "Only runs of this kind")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")

	var export string
	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run with its decisions and LLM usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			decisions, err := store.ListDecisions(ctx, run.RunID)
			if err != nil {
				return err
			}
			usage, err := store.LLMUsage(ctx, run.RunID)
			if err != nil {
				return err
			}
			if export != "" {
				if err := util.WriteJSONLinesAtomic(export, decisions); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"run":       run,
				"decisions": len(decisions),
				"need_r3":   countNeedR3(decisions),
				"usage":     usage,
			})
		},
	}

	show.Flags().StringVar(&export, "export", "", "Write the run's decisions as JSON lines to this file")

	cmd.AddCommand(list, show)
	return cmd
}

func countNeedR3(ds []models.Decision) int {
	n := 0
	for _, d := range ds {
		if d.NeedR3 {
			n++
		}
	}
	return n
}
