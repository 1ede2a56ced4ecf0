package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/paulyc/openmaptiles-tools/internal/config"
	"github.com/paulyc/openmaptiles-tools/internal/logger"
	"github.com/paulyc/openmaptiles-tools/internal/metrics"
	"github.com/paulyc/openmaptiles-tools/internal/toolchain"
)

// toolRunner is the slice of the toolchain the coordinator drives.
// Narrow so tests can substitute a recorder.
type toolRunner interface {
	Cleanup(ctx context.Context, input, output string) error
	Filter(ctx context.Context, input, output string) error
	Extract(ctx context.Context, input, output string) error
}

// Coordinator sequences the external extraction stages
type Coordinator struct {
	cfg   *config.Config
	tools toolRunner
}

// NewCoordinator creates a coordinator, loading the tool profile when
// one is configured.
func NewCoordinator(cfg *config.Config) (*Coordinator, error) {
	profile := toolchain.DefaultProfile()
	if cfg.ToolsFile != "" {
		var err error
		profile, err = toolchain.LoadProfile(cfg.ToolsFile)
		if err != nil {
			return nil, err
		}
	}
	return &Coordinator{cfg: cfg, tools: toolchain.NewRunner(profile)}, nil
}

// Run executes the extraction stages on input and returns the path of
// the produced CSV. Stages run strictly in order; the first failure
// aborts the run.
func (c *Coordinator) Run(ctx context.Context, input string) (string, error) {
	log := logger.Get()

	// Start metrics collection in background if interval is set
	if c.cfg.MetricsInterval > 0 {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()

		collector := metrics.NewCollector(c.cfg.MetricsInterval, log)
		go collector.Start(metricsCtx)
		log.Info("System metrics collection started",
			zap.Duration("interval", c.cfg.MetricsInterval))
	}

	start := time.Now()
	source := input

	if c.cfg.Cleanup {
		log.Info("Cleaning up borders input",
			zap.String("input", input),
			zap.String("output", c.cfg.CleanupFile))
		if err := prepareArtifact(c.cfg.CleanupFile); err != nil {
			return "", err
		}
		if err := c.tools.Cleanup(ctx, input, c.cfg.CleanupFile); err != nil {
			return "", err
		}
		source = c.cfg.CleanupFile
	} else {
		log.Info("Skipping borders cleanup; set BORDERS_CLEANUP=true if osmborder_filter fails on this input")
	}

	log.Info("Filtering border primitives",
		zap.String("input", source),
		zap.String("output", c.cfg.FilteredFile))
	if err := prepareArtifact(c.cfg.FilteredFile); err != nil {
		return "", err
	}
	if err := c.tools.Filter(ctx, source, c.cfg.FilteredFile); err != nil {
		return "", err
	}

	log.Info("Extracting border linestrings",
		zap.String("input", c.cfg.FilteredFile),
		zap.String("output", c.cfg.CSVFile))
	if err := prepareArtifact(c.cfg.CSVFile); err != nil {
		return "", err
	}
	if err := c.tools.Extract(ctx, c.cfg.FilteredFile, c.cfg.CSVFile); err != nil {
		return "", err
	}

	log.Info("Extraction complete",
		zap.String("csv", c.cfg.CSVFile),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return c.cfg.CSVFile, nil
}

// prepareArtifact guarantees a clean write target: parent directory
// present, no stale file at the path.
func prepareArtifact(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale %s: %w", path, err)
	}
	return nil
}
