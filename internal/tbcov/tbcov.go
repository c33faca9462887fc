// Package tbcov reads the translation block coverage logs written by S2E's
// TranslationBlockCoverage plugin.
package tbcov

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/apex/log"

	"github.com/gohoron/s2e2-gui/internal/cover"
)

var (
	ErrMalformed      = errors.New("tbcov: malformed coverage file")
	ErrEmpty          = errors.New("tbcov: coverage file is empty")
	ErrModuleNotFound = errors.New("tbcov: module not found in coverage file")
)

// FilePattern matches coverage logs inside a run directory.
const FilePattern = "tbcoverage-*.json"

// ReadFile parses one coverage file and returns the intervals recorded for module.
// Each record is [start, end, <metadata>...]; metadata is ignored.
func ReadFile(path, module string) ([]cover.Interval, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tbcov: read %s: %w", path, err)
	}
	return Parse(data, module)
}

// Parse decodes coverage JSON for module.
func Parse(data []byte, module string) ([]cover.Interval, error) {
	var byModule map[string][]json.RawMessage
	if err := json.Unmarshal(data, &byModule); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(byModule) == 0 {
		return nil, ErrEmpty
	}
	records, ok := byModule[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, module)
	}

	out := make([]cover.Interval, 0, len(records))
	for i, raw := range records {
		var fields []json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformed, i, err)
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: record %d has %d fields", ErrMalformed, i, len(fields))
		}
		var iv cover.Interval
		if err := json.Unmarshal(fields[0], &iv.Start); err != nil {
			return nil, fmt.Errorf("%w: record %d start: %v", ErrMalformed, i, err)
		}
		if err := json.Unmarshal(fields[1], &iv.End); err != nil {
			return nil, fmt.Errorf("%w: record %d end: %v", ErrMalformed, i, err)
		}
		out = append(out, iv)
	}
	return out, nil
}

// FindFiles returns the coverage logs of a finished run, both per-instance
// (<dir>/*/tbcoverage-*.json) and top level (<dir>/tbcoverage-*.json), sorted.
func FindFiles(runDir string) ([]string, error) {
	nested, err := filepath.Glob(filepath.Join(runDir, "*", FilePattern))
	if err != nil {
		return nil, fmt.Errorf("tbcov: glob: %w", err)
	}
	top, err := filepath.Glob(filepath.Join(runDir, FilePattern))
	if err != nil {
		return nil, fmt.Errorf("tbcov: glob: %w", err)
	}
	files := append(nested, top...)
	sort.Strings(files)
	return files, nil
}

// Collect reads every file and returns the de-duplicated intervals for module.
// Unreadable, empty or foreign files are logged and contribute nothing.
func Collect(files []string, module string) []cover.Interval {
	var all []cover.Interval
	for _, path := range files {
		ivs, err := ReadFile(path, module)
		if err != nil {
			log.WithField("file", path).Warnf("skipping coverage log: %v", err)
			continue
		}
		if len(ivs) == 0 {
			log.WithField("file", path).Warnf("no translation blocks recorded for %s", module)
			continue
		}
		all = append(all, ivs...)
	}
	return cover.Dedup(all)
}
