package s2e

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MaxLogBytes caps how much of each S2E log file ReadLogs returns.
const MaxLogBytes = 1 << 20

// Logs holds the text logs S2E writes into a run's output directory.
// Each is truncated to its last MaxLogBytes.
type Logs struct {
	Warnings string
	Info     string
	Debug    string
}

// ReadLogs reads warnings.txt, info.txt and debug.txt from outDir. Missing
// files read as empty.
func ReadLogs(outDir string) (Logs, error) {
	var l Logs
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"warnings.txt", &l.Warnings},
		{"info.txt", &l.Info},
		{"debug.txt", &l.Debug},
	} {
		s, err := readTail(filepath.Join(outDir, f.name), MaxLogBytes)
		if err != nil {
			return l, err
		}
		*f.dst = s
	}
	return l, nil
}

func readTail(path string, max int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("s2e: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("s2e: %w", err)
	}
	if fi.Size() > max {
		if _, err := f.Seek(fi.Size()-max, io.SeekStart); err != nil {
			return "", fmt.Errorf("s2e: %w", err)
		}
	}
	data, err := io.ReadAll(io.LimitReader(f, max))
	if err != nil {
		return "", fmt.Errorf("s2e: read %s: %w", path, err)
	}
	return string(data), nil
}
