package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/joho/godotenv"
	"github.com/paulyc/openmaptiles-tools/internal/config"
	"github.com/paulyc/openmaptiles-tools/internal/logger"
	"github.com/paulyc/openmaptiles-tools/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	verbose         bool
	logFile         string
	metricsInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "import-borders [task] [file]",
	Short: "Extract administrative borders from OSM and load them into PostGIS",
	Long: `import-borders prepares the border linestring table from an OpenStreetMap
PBF extract. It drives the osmborder toolchain and bulk-loads the result:

  1. osmconvert       - optional reference cleanup of the input PBF
  2. osmborder_filter - reduce the PBF to administrative boundary data
  3. osmborder        - emit border linestrings as tab-delimited CSV
  4. COPY the CSV into PostGIS (default table: osm_border_linestring)

Tasks:
  import <file.pbf>  run the full pipeline, extract then load (default)
  parse  <file.pbf>  extract only, leaving the CSV on disk
  load   <file.csv>  load a previously extracted CSV

With no arguments the first *.pbf file in the data directory
(PBF_DATA_DIR, default /import) is imported. A bare file argument is
treated as an import of that file.`,
	// Unknown first words must fall through to Run so a bare file path
	// can be normalized to an import of that file.
	Args: cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose, logFile)

		// Optional .env in the working directory; absence is normal
		if err := godotenv.Load(); err == nil {
			logger.Get().Debug("Loaded environment from .env")
		}
	},
	Run: runRoot,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (e.g., 10s, 1m)")
}

// runRoot handles the invocation forms cobra has no subcommand for: no
// arguments at all, and a file path without a task keyword.
func runRoot(cmd *cobra.Command, args []string) {
	cfg := resolveConfig()

	task, target, err := pipeline.ResolveInvocation(args, cfg.DataDir)
	if err != nil {
		exitWithUsage(cmd, "cannot resolve task", err)
	}

	switch task {
	case pipeline.TaskImport:
		runImportTask(cfg, target)
	case pipeline.TaskParse:
		runParseTask(cfg, target)
	case pipeline.TaskLoad:
		runLoadTask(cfg, target)
	}
}

// resolveConfig reads the environment and folds in the global flags
func resolveConfig() *config.Config {
	cfg := config.Resolve(os.Getenv)
	cfg.Verbose = verbose
	cfg.LogFile = logFile
	cfg.MetricsInterval = metricsInterval
	return cfg
}

// signalContext returns a context cancelled on SIGINT or SIGTERM so a
// running external tool is killed and a pending transaction rolls back.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Get().Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	return ctx, cancel
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	os.Exit(1)
}

// exitWithUsage reports an argument error and prints command usage
func exitWithUsage(cmd *cobra.Command, msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	_ = cmd.Usage()
	os.Exit(1)
}
