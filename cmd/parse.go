package cmd

import (
	"time"

	"go.uber.org/zap"

	"github.com/paulyc/openmaptiles-tools/internal/config"
	"github.com/paulyc/openmaptiles-tools/internal/logger"
	"github.com/paulyc/openmaptiles-tools/internal/pipeline"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file.pbf>",
	Short: "Extract border linestrings to CSV without loading",
	Long: `Run only the extraction stages of the border pipeline:

  1. Optionally clean up the input with osmconvert (BORDERS_CLEANUP=true)
  2. Filter administrative boundary data with osmborder_filter
  3. Extract border linestrings to CSV with osmborder

The CSV stays on disk (BORDERS_CSV_FILE) for a later 'load'. No database
connection is made and no connection settings are required.`,
	Args: cobra.ExactArgs(1),
	Run:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) {
	runParseTask(resolveConfig(), args[0])
}

// runParseTask runs the extraction stages only
func runParseTask(cfg *config.Config, input string) {
	log := logger.Get()

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	log.Info("Starting border parse",
		zap.String("input", input),
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

	log.Info("Parse complete",
		zap.String("csv", csvPath),
		zap.Duration("total_time", time.Since(start).Round(time.Millisecond)),
	)
}
