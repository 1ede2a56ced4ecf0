package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// openCSV returns a reader over the CSV file and a cleanup func. The
// file is memory-mapped when possible; mapping fails for zero-length
// files, where a buffered file reader serves instead.
func openCSV(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return bufio.NewReaderSize(f, 1<<20), f.Close, nil
	}

	closeAll := func() error {
		if err := m.Unmap(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return bytes.NewReader(m), closeAll, nil
}
