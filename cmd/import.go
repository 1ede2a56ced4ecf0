package cmd

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/paulyc/openmaptiles-tools/internal/config"
	"github.com/paulyc/openmaptiles-tools/internal/loader"
	"github.com/paulyc/openmaptiles-tools/internal/logger"
	"github.com/paulyc/openmaptiles-tools/internal/pipeline"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file.pbf>",
	Short: "Run the full border pipeline (extract then load)",
	Long: `Run the complete border pipeline on a PBF extract:

  1. Optionally clean up the input with osmconvert (BORDERS_CLEANUP=true)
  2. Filter administrative boundary data with osmborder_filter
  3. Extract border linestrings to CSV with osmborder
  4. Replace the border table and COPY the CSV into PostGIS

Each stage overwrites its output file, so reruns start clean. The first
failing stage aborts the run and leaves the database untouched.`,
	Args: cobra.ExactArgs(1),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) {
	runImportTask(resolveConfig(), args[0])
}

// runImportTask extracts borders from input and loads the resulting CSV.
// Database settings are resolved up front so a misconfigured connection
// fails before any extraction work starts.
func runImportTask(cfg *config.Config, input string) {
	log := logger.Get()

	db, err := config.ResolveDatabase(os.Getenv)
	if err != nil {
		exitWithError("database configuration incomplete", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	totalStart := time.Now()
	log.Info("Starting border import",
		zap.String("input", input),
		zap.String("table", cfg.TableName),
		zap.String("database", db.Name),
		zap.String("host", db.Host),
		zap.Bool("cleanup", cfg.Cleanup),
	)

	coordinator, err := pipeline.NewCoordinator(cfg)
	if err != nil {
		exitWithError("failed to create pipeline", err)
	}

	csvPath, err := coordinator.Run(ctx, input)
	if err != nil {
		exitWithError("border extraction failed", err)
	}

	ldr, err := loader.NewLoader(ctx, db, cfg.TableName)
	if err != nil {
		exitWithError("failed to connect to database", err)
	}
	defer ldr.Close(context.Background())

	stats, err := ldr.Run(ctx, csvPath)
	if err != nil {
		exitWithError("load failed", err)
	}

	totalElapsed := time.Since(totalStart)

	log.Info("Import complete",
		zap.String("table", cfg.TableName),
		zap.Int64("rows", stats.RowsLoaded),
		zap.Duration("total_time", totalElapsed.Round(time.Millisecond)),
	)
}
