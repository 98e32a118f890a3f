package input

import (
	"fmt"
	"io"
	"os"
)

const stdinPath = "-"

// Open returns a reader for path. "-" selects stdin, which is never closed.
func Open(path string) (io.ReadCloser, error) {
	if path == "" || path == stdinPath {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return f, nil
}
