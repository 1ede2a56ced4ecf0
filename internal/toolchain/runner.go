package toolchain

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/paulyc/openmaptiles-tools/internal/logger"
)

// FullPlanetBounds is the bounding box passed to the cleanup tool: the
// whole valid longitude/latitude extent. Cleanup drops broken references
// without cropping any real data.
const FullPlanetBounds = "-180,-90,180,90"

// Runner invokes the external border-extraction tools
type Runner struct {
	profile Profile
}

// NewRunner creates a Runner using the given tool profile
func NewRunner(profile Profile) *Runner {
	return &Runner{profile: profile}
}

// Cleanup runs osmconvert to strip broken references from input,
// writing the cleaned PBF to output.
func (r *Runner) Cleanup(ctx context.Context, input, output string) error {
	tool := r.profile.Osmconvert
	return r.run(ctx, tool.Path, cleanupArgs(tool, input, output))
}

// Filter runs osmborder_filter to reduce input to the primitives the
// border extractor needs.
func (r *Runner) Filter(ctx context.Context, input, output string) error {
	tool := r.profile.OsmborderFilter
	return r.run(ctx, tool.Path, filterArgs(tool, input, output))
}

// Extract runs osmborder to produce the border linestring CSV
func (r *Runner) Extract(ctx context.Context, input, output string) error {
	tool := r.profile.Osmborder
	return r.run(ctx, tool.Path, extractArgs(tool, input, output))
}

func cleanupArgs(tool Tool, input, output string) []string {
	args := []string{"--out-pbf", "-o=" + output, "-b=" + FullPlanetBounds}
	args = append(args, tool.Args...)
	return append(args, input)
}

func filterArgs(tool Tool, input, output string) []string {
	args := []string{"-o", output}
	args = append(args, tool.Args...)
	return append(args, input)
}

func extractArgs(tool Tool, input, output string) []string {
	args := []string{"-o", output}
	args = append(args, tool.Args...)
	return append(args, input)
}

// run executes one tool, streaming its output into the log, and waits
// for it to exit. A non-zero exit is returned as an error.
func (r *Runner) run(ctx context.Context, name string, args []string) error {
	log := logger.Get()
	log.Info("Running tool",
		zap.String("tool", name),
		zap.Strings("args", args),
	)

	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	// Both streams must be drained before Wait
	var g errgroup.Group
	g.Go(func() error { return streamLines(stdout, log, name, "stdout") })
	g.Go(func() error { return streamLines(stderr, log, name, "stderr") })

	if err := g.Wait(); err != nil {
		log.Warn("Tool output stream ended abnormally",
			zap.String("tool", name), zap.Error(err))
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}

	log.Info("Tool finished",
		zap.String("tool", name),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}

// streamLines forwards each output line of a running tool into the log
func streamLines(r io.Reader, log *zap.Logger, tool, stream string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Info(scanner.Text(),
			zap.String("tool", tool),
			zap.String("stream", stream),
		)
	}
	return scanner.Err()
}
