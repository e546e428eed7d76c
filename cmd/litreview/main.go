// Command litreview runs the systematic review tooling from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"litreview/internal/config"
	"litreview/internal/logging"
	"litreview/internal/models"
	"litreview/internal/storage"
)

var (
	configPath string
	verbose    bool
	dataIn     string
	dataOut    string
	storeFlag  string

	cfg    config.Config
	logger *zap.Logger
	store  storage.Store
)

var rootCmd = &cobra.Command{
	Use:   "litreview",
	Short: "Systematic literature review tooling",
	Long: `litreview merges reviewer screening batches, checks double-blind
consistency, adjudicates with a third reviewer, merges quality assessment and
data extraction texts, prepares search exports and runs LLM-assisted screening.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load(".env")
		var err error
		if configPath == "" {
			configPath = os.Getenv("LITREVIEW_CONFIG")
		}
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Verbose = true
		}
		if dataIn != "" {
			cfg.DataInRoot = dataIn
		}
		if dataOut != "" {
			cfg.DataOutRoot = dataOut
		}
		if storeFlag != "" {
			cfg.StoreDriver = storeFlag
		}
		logger, err = logging.New(cfg, "cli")
		if err != nil {
			return err
		}
		store, err = storage.Open(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Warn("run ledger unavailable, continuing without it", zap.Error(err))
			store = storage.NopStore{}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default: $LITREVIEW_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataIn, "data-in", "", "Input data root")
	rootCmd.PersistentFlags().StringVar(&dataOut, "data-out", "", "Output data root")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Run ledger driver: sqlite, postgres or none")

	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newConsistencyCmd())
	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newAdjudicateCmd())
	rootCmd.AddCommand(newFullTextCmd())
	rootCmd.AddCommand(newQualityCmd())
	rootCmd.AddCommand(newExtractionCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newScreenCmd())
	rootCmd.AddCommand(newRunsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// recordRun wraps a command body in a run ledger entry. The returned summary
// is stored as JSON when the body succeeds.
func recordRun(cmd *cobra.Command, kind, inputDir, outputDir string, params any, body func(runID string) (any, error)) error {
	ctx := cmd.Context()
	p, _ := json.Marshal(params)
	run, err := store.CreateRun(ctx, models.Run{
		Kind:      kind,
		Status:    models.RunRunning,
		InputDir:  inputDir,
		OutputDir: outputDir,
		Params:    string(p),
	})
	if err != nil {
		logger.Warn("run ledger create failed", zap.Error(err))
		run.RunID = ""
	}
	summary, err := body(run.RunID)
	if run.RunID == "" {
		return err
	}
	status, errText := models.RunCompleted, ""
	if err != nil {
		status, errText = models.RunFailed, err.Error()
	}
	s, _ := json.Marshal(summary)
	if ferr := store.FinishRun(context.WithoutCancel(ctx), run.RunID, status, string(s), errText); ferr != nil {
		logger.Warn("run ledger update failed", zap.String("run_id", run.RunID), zap.Error(ferr))
	}
	return err
}

func outDirOr(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.DataOutRoot
}
