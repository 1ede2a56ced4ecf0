package cmd

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/paulyc/openmaptiles-tools/internal/config"
	"github.com/paulyc/openmaptiles-tools/internal/loader"
	"github.com/paulyc/openmaptiles-tools/internal/logger"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <file.csv>",
	Short: "Load an extracted border CSV into PostGIS",
	Long: `Bulk load a previously extracted border CSV into PostGIS.

The target table is replaced in a single transaction:
  1. DROP TABLE ... CASCADE
  2. CREATE TABLE with a geometry(LineString, 3857) column
  3. CREATE a gist index on the geometry
  4. COPY the tab-delimited CSV

Connection settings come from POSTGRES_* variables, falling back to the
standard PG* ones. Host, database, user and password are required.`,
	Args: cobra.ExactArgs(1),
	Run:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) {
	runLoadTask(resolveConfig(), args[0])
}

// runLoadTask loads csvPath into the border table. The file argument
// wins over any configured CSV path.
func runLoadTask(cfg *config.Config, csvPath string) {
	log := logger.Get()

	db, err := config.ResolveDatabase(os.Getenv)
	if err != nil {
		exitWithError("database configuration incomplete", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	log.Info("Starting border load",
		zap.String("csv", csvPath),
		zap.String("table", cfg.TableName),
		zap.String("database", db.Name),
		zap.String("host", db.Host),
		zap.Int("port", db.Port),
	)

	ldr, err := loader.NewLoader(ctx, db, cfg.TableName)
	if err != nil {
		exitWithError("failed to connect to database", err)
	}
	defer ldr.Close(context.Background())

	stats, err := ldr.Run(ctx, csvPath)
	if err != nil {
		exitWithError("load failed", err)
	}

	elapsed := time.Since(start)

	log.Info("Load complete",
		zap.String("table", cfg.TableName),
		zap.Int64("rows", stats.RowsLoaded),
		zap.Duration("duration", elapsed.Round(time.Millisecond)),
	)
}
