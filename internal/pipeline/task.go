package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Task selects which pipeline stages execute
type Task string

const (
	TaskImport Task = "import" // extract borders and load them
	TaskParse  Task = "parse"  // extract borders to CSV only
	TaskLoad   Task = "load"   // load an existing CSV
)

// ResolveInvocation maps raw positional arguments onto a (task, target)
// pair. With no arguments the data directory is scanned for a PBF file
// and the task is import. A first argument that is not a task keyword
// but names an existing file is normalized to an import of that file.
// After normalization exactly one target must remain.
func ResolveInvocation(args []string, dataDir string) (Task, string, error) {
	if len(args) == 0 {
		file, err := DiscoverPBF(dataDir)
		if err != nil {
			return "", "", err
		}
		return TaskImport, file, nil
	}

	switch task := Task(args[0]); task {
	case TaskImport, TaskParse, TaskLoad:
		if len(args) != 2 {
			return "", "", fmt.Errorf("%s expects exactly one file argument, got %d", task, len(args)-1)
		}
		return task, args[1], nil
	}

	if !isRegularFile(args[0]) {
		return "", "", fmt.Errorf("unexpected first parameter %q", args[0])
	}
	if len(args) != 1 {
		return "", "", fmt.Errorf("import expects exactly one file argument, got %d", len(args))
	}
	return TaskImport, args[0], nil
}

// DiscoverPBF returns the first *.pbf regular file in dir, in
// lexicographic name order. Entries that are not regular files are
// skipped.
func DiscoverPBF(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.pbf"))
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(matches)

	for _, m := range matches {
		if isRegularFile(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("no PBF files found in %s", dir)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
