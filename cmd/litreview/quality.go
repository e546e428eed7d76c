package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"litreview/internal/extraction"
	"litreview/internal/models"
	"litreview/internal/quality"
	"litreview/internal/table"
	"litreview/internal/util"
)

func newQualityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Quality assessment tools",
	}

	var mergeDir, mergeOut string
	merge := &cobra.Command{
		Use:   "merge",
		Short: "Build the quality assessment table from per-study JSON texts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outDirOr(mergeOut)
			return recordRun(cmd, models.RunKindQuality, mergeDir, out, nil, func(string) (any, error) {
				res, err := quality.NewMerger(logger).MergeDir(mergeDir, out)
				if err != nil {
					return nil, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d studies from %d files (%d skipped) -> %s\n",
					res.Table.Len(), res.Files, len(res.Skipped), res.OutputPath)
				return map[string]any{"rows": res.Table.Len(), "skipped": res.Skipped, "output": res.OutputPath}, nil
			})
		},
	}
	merge.Flags().StringVar(&mergeDir, "dir", "", "Directory of per-study text files (required)")
	merge.Flags().StringVar(&mergeOut, "out", "", "Output directory (default: data-out root)")
	_ = merge.MarkFlagRequired("dir")

	var analyzeIn, analyzeOut string
	analyze := &cobra.Command{
		Use:   "analyze",
		Short: "Report missingness and score distributions of the quality table",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outDirOr(analyzeOut)
			in := analyzeIn
			if in == "" {
				in = filepath.Join(out, quality.MergedFile)
			}
			return recordRun(cmd, models.RunKindQuality, in, out, nil, func(string) (any, error) {
				rep, path, err := quality.NewAnalyzer(logger).AnalyzeFile(in, out)
				if err != nil {
					return nil, err
				}
				fmt.Fprint(cmd.OutOrStdout(), rep.Text())
				return map[string]string{"summary": path}, nil
			})
		},
	}
	analyze.Flags().StringVar(&analyzeIn, "in", "", "Quality table (default: quality_assessment_table.xlsx in --out)")
	analyze.Flags().StringVar(&analyzeOut, "out", "", "Output directory (default: data-out root)")

	var schemaOut string
	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the quality assessment standards as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := quality.SchemaYAML()
			if err != nil {
				return err
			}
			if schemaOut != "" {
				return util.WriteBytesAtomic(schemaOut, b)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	schema.Flags().StringVar(&schemaOut, "out", "", "Write the YAML to this file instead of stdout")

	cmd.AddCommand(merge, analyze, schema)
	return cmd
}

func newExtractionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extraction",
		Short: "Data extraction tools",
	}

	var mergeDir, mergeOut string
	merge := &cobra.Command{
		Use:   "merge",
		Short: "Build the data extraction table from per-study JSON texts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outDirOr(mergeOut)
			return recordRun(cmd, models.RunKindQuality, mergeDir, out, nil, func(string) (any, error) {
				t, path, err := extraction.MergeDir(mergeDir, out, logger)
				if err != nil {
					return nil, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d studies -> %s\n", t.Len(), path)
				return map[string]any{"rows": t.Len(), "output": path}, nil
			})
		},
	}
	merge.Flags().StringVar(&mergeDir, "dir", "", "Directory of per-study text files (required)")
	merge.Flags().StringVar(&mergeOut, "out", "", "Output directory (default: data-out root)")
	_ = merge.MarkFlagRequired("dir")

	var (
		rowsIn     string
		rowsOffset int
	)
	rows := &cobra.Command{
		Use:   "rows",
		Short: "Print extraction rows as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := table.Read(rowsIn)
			if err != nil {
				return err
			}
			return extraction.WriteRowsJSON(cmd.OutOrStdout(), t, rowsOffset)
		},
	}
	rows.Flags().StringVar(&rowsIn, "in", "", "Extraction table (required)")
	rows.Flags().IntVar(&rowsOffset, "offset", 0, "Skip this many rows")
	_ = rows.MarkFlagRequired("in")

	var qaPath, extPath, filterOut string
	filter := &cobra.Command{
		Use:   "filter",
		Short: "Keep the extraction rows of studies that passed quality assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outDirOr(filterOut)
			params := map[string]string{"qa": qaPath, "ext": extPath}
			return recordRun(cmd, models.RunKindQuality, filepath.Dir(extPath), out, params, func(string) (any, error) {
				t, path, err := extraction.FilterFinalFiles(qaPath, extPath, out, logger)
				if err != nil {
					return nil, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d studies kept -> %s\n", t.Len(), path)
				return map[string]any{"rows": t.Len(), "output": path}, nil
			})
		},
	}
	filter.Flags().StringVar(&qaPath, "qa", "", "Quality assessment table (required)")
	filter.Flags().StringVar(&extPath, "ext", "", "Data extraction table (required)")
	filter.Flags().StringVar(&filterOut, "out", "", "Output directory (default: data-out root)")
	_ = filter.MarkFlagRequired("qa")
	_ = filter.MarkFlagRequired("ext")

	cmd.AddCommand(merge, rows, filter)
	return cmd
}
