package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/paulyc/openmaptiles-tools/internal/config"
)

// fakeRunner records stage invocations and can fail a chosen stage
type fakeRunner struct {
	calls  []string
	failOn string
	onStep func(name, output string)
}

func (f *fakeRunner) step(name, input, output string) error {
	if f.onStep != nil {
		f.onStep(name, output)
	}
	f.calls = append(f.calls, fmt.Sprintf("%s %s -> %s", name, input, output))
	if f.failOn == name {
		return errors.New(name + " exited with status 1")
	}
	return nil
}

func (f *fakeRunner) Cleanup(_ context.Context, input, output string) error {
	return f.step("cleanup", input, output)
}

func (f *fakeRunner) Filter(_ context.Context, input, output string) error {
	return f.step("filter", input, output)
}

func (f *fakeRunner) Extract(_ context.Context, input, output string) error {
	return f.step("extract", input, output)
}

func testConfig(t *testing.T, cleanup bool) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:      dir,
		Cleanup:      cleanup,
		CleanupFile:  filepath.Join(dir, "borders", "cleanup.pbf"),
		FilteredFile: filepath.Join(dir, "borders", "filtered.pbf"),
		CSVFile:      filepath.Join(dir, "borders", "lines.csv"),
		TableName:    "osm_border_linestring",
	}
}

func TestCoordinatorRunWithCleanup(t *testing.T) {
	cfg := testConfig(t, true)
	tools := &fakeRunner{}
	c := &Coordinator{cfg: cfg, tools: tools}

	csv, err := c.Run(context.Background(), "planet.pbf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if csv != cfg.CSVFile {
		t.Errorf("csv path = %q, want %q", csv, cfg.CSVFile)
	}

	want := []string{
		"cleanup planet.pbf -> " + cfg.CleanupFile,
		"filter " + cfg.CleanupFile + " -> " + cfg.FilteredFile,
		"extract " + cfg.FilteredFile + " -> " + cfg.CSVFile,
	}
	if !reflect.DeepEqual(tools.calls, want) {
		t.Errorf("calls = %v, want %v", tools.calls, want)
	}
}

func TestCoordinatorRunSkipsCleanup(t *testing.T) {
	cfg := testConfig(t, false)
	tools := &fakeRunner{}
	c := &Coordinator{cfg: cfg, tools: tools}

	if _, err := c.Run(context.Background(), "planet.pbf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// filter consumes the raw input when cleanup is disabled
	want := []string{
		"filter planet.pbf -> " + cfg.FilteredFile,
		"extract " + cfg.FilteredFile + " -> " + cfg.CSVFile,
	}
	if !reflect.DeepEqual(tools.calls, want) {
		t.Errorf("calls = %v, want %v", tools.calls, want)
	}
}

func TestCoordinatorFailFast(t *testing.T) {
	cfg := testConfig(t, false)
	tools := &fakeRunner{failOn: "filter"}
	c := &Coordinator{cfg: cfg, tools: tools}

	_, err := c.Run(context.Background(), "planet.pbf")
	if err == nil {
		t.Fatal("expected error but got none")
	}
	for _, call := range tools.calls {
		if strings.HasPrefix(call, "extract") {
			t.Errorf("extract ran after filter failure: %v", tools.calls)
		}
	}
}

func TestCoordinatorRemovesStaleArtifacts(t *testing.T) {
	cfg := testConfig(t, false)

	// Leave stale output from an earlier run in place
	if err := os.MkdirAll(filepath.Dir(cfg.FilteredFile), 0755); err != nil {
		t.Fatalf("failed to create borders dir: %v", err)
	}
	touch(t, cfg.FilteredFile)
	touch(t, cfg.CSVFile)

	tools := &fakeRunner{
		onStep: func(name, output string) {
			if _, err := os.Stat(output); !os.IsNotExist(err) {
				t.Errorf("stale %s still present when %s ran", output, name)
			}
		},
	}
	c := &Coordinator{cfg: cfg, tools: tools}

	if _, err := c.Run(context.Background(), "planet.pbf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPrepareArtifact(t *testing.T) {
	dir := t.TempDir()

	t.Run("creates missing parent directories", func(t *testing.T) {
		path := filepath.Join(dir, "a", "b", "out.pbf")
		if err := prepareArtifact(path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := os.Stat(filepath.Dir(path))
		if err != nil || !info.IsDir() {
			t.Errorf("parent directory not created: %v", err)
		}
	})

	t.Run("removes stale file", func(t *testing.T) {
		path := touch(t, filepath.Join(dir, "stale.csv"))
		if err := prepareArtifact(path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("stale file still present")
		}
	})
}

func TestNewCoordinatorToolsFile(t *testing.T) {
	cfg := testConfig(t, false)

	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.tools == nil {
		t.Error("coordinator has no tool runner")
	}

	cfg.ToolsFile = filepath.Join(cfg.DataDir, "does-not-exist.yaml")
	if _, err := NewCoordinator(cfg); err == nil {
		t.Error("expected error for missing tools file")
	}
}
