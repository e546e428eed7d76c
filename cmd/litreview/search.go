package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"litreview/internal/models"
	"litreview/internal/search"
	"litreview/internal/table"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search export tools",
	}

	var (
		inputs     []string
		out        string
		minYear    int
		smallWords string
	)
	merge := &cobra.Command{
		Use:   "merge",
		Short: "Merge database exports, filter by year and remove duplicates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchMerge(cmd, inputs, outDirOr(out), minYear, smallWords)
		},
	}
	merge.Flags().StringArrayVar(&inputs, "in", nil, "Export file; repeatable (required)")
	merge.Flags().StringVar(&out, "out", "", "Output directory (default: data-out root)")
	merge.Flags().IntVar(&minYear, "min-year", 0, "Drop records published before this year (default: config min_publication_year)")
	merge.Flags().StringVar(&smallWords, "small-words", "", "File of words kept lower-case in titles")
	_ = merge.MarkFlagRequired("in")

	var (
		typesIn  string
		doFilter bool
	)
	doctypes := &cobra.Command{
		Use:   "doctypes",
		Short: "Count document types, optionally keeping only journal articles and conference papers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if doFilter {
				t, err := search.FilterDocumentTypesFile(typesIn, logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d records kept in %s\n", t.Len(), typesIn)
				return nil
			}
			t, err := table.Read(typesIn)
			if err != nil {
				return err
			}
			for _, tc := range search.DocumentTypes(t) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", tc.Type, tc.Count)
			}
			return nil
		},
	}
	doctypes.Flags().StringVar(&typesIn, "in", "", "Merged export (required)")
	doctypes.Flags().BoolVar(&doFilter, "filter", false, "Rewrite the file keeping only the standard document types")
	_ = doctypes.MarkFlagRequired("in")

	var (
		missingIn  []string
		missingOut string
	)
	missing := &cobra.Command{
		Use:   "missing",
		Short: "Report empty cells per column by No.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(outDirOr(missingOut), search.MissingReportFile)
			files, err := search.ReportFiles(missingIn, path, logger)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), search.MissingReport(files))
			return nil
		},
	}
	missing.Flags().StringArrayVar(&missingIn, "in", nil, "Table to check; repeatable (required)")
	missing.Flags().StringVar(&missingOut, "out", "", "Output directory (default: data-out root)")
	_ = missing.MarkFlagRequired("in")

	cmd.AddCommand(merge, doctypes, missing)
	return cmd
}

func runSearchMerge(cmd *cobra.Command, inputs []string, out string, minYear int, smallWords string) error {
	if minYear == 0 {
		minYear = cfg.MinPublicationYear
	}
	small := search.DefaultSmallWords()
	if smallWords != "" {
		var err error
		if small, err = search.LoadSmallWords(smallWords); err != nil {
			return err
		}
	}
	params := map[string]any{"inputs": inputs, "min_year": minYear}
	return recordRun(cmd, models.RunKindSearch, "", out, params, func(string) (any, error) {
		res, err := search.NewMerger(minYear, small, logger).MergeFiles(inputs, out)
		if err != nil {
			return nil, err
		}
		w := cmd.OutOrStdout()
		for _, s := range res.Sources {
			fmt.Fprintf(w, "%s: %d\n", s.Name, s.Rows)
		}
		fmt.Fprintf(w, "merged %d, after year filter %d, after dedupe %d -> %s\n",
			res.Merged, res.AfterYear, res.AfterDedupe, res.OutputPath)
		return map[string]any{"merged": res.Merged, "kept": res.AfterDedupe, "output": res.OutputPath}, nil
	})
}
