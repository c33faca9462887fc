// Package output writes and reads the files that record S2E runs.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gohoron/s2e2-gui/internal/cover"
	"github.com/gohoron/s2e2-gui/internal/disasm"
)

const (
	RunFile      = "run.json"
	CoverageFile = "coverage.json"
	AnalysesFile = "analyses.jsonl"
)

// RunData is the outcome of one S2E run, stored in its output directory.
type RunData struct {
	KilledByTimeout bool     `json:"killed_by_timeout"`
	HasS2EError     bool     `json:"has_s2e_error"`
	FunctionPaths   []string `json:"function_paths"`
}

// WriteRunJSON writes run.json into dir.
func WriteRunJSON(dir string, rd RunData) error {
	return writeJSON(filepath.Join(dir, RunFile), rd)
}

// ReadRunJSON reads run.json from dir.
func ReadRunJSON(dir string) (RunData, error) {
	var rd RunData
	data, err := os.ReadFile(filepath.Join(dir, RunFile))
	if err != nil {
		return rd, fmt.Errorf("output: %w", err)
	}
	if err := json.Unmarshal(data, &rd); err != nil {
		return rd, fmt.Errorf("output: decode %s: %w", RunFile, err)
	}
	return rd, nil
}

// Coverage is the per-function summary written next to the graphs.
type Coverage struct {
	Module    string              `json:"module"`
	Intervals int                 `json:"intervals"`
	Skipped   int                 `json:"skipped_functions"`
	Functions []cover.FuncSummary `json:"functions"`
}

// WriteCoverageJSON writes coverage.json into dir.
func WriteCoverageJSON(dir string, c Coverage) error {
	return writeJSON(filepath.Join(dir, CoverageFile), c)
}

// ReadCoverageJSON reads coverage.json from dir.
func ReadCoverageJSON(dir string) (Coverage, error) {
	var c Coverage
	data, err := os.ReadFile(filepath.Join(dir, CoverageFile))
	if err != nil {
		return c, fmt.Errorf("output: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("output: decode %s: %w", CoverageFile, err)
	}
	return c, nil
}

// AnalysisRecord is one line of the analysis history.
type AnalysisRecord struct {
	Num      int       `json:"num"`
	Binary   string    `json:"binary"`
	Checksum string    `json:"checksum"`
	Time     time.Time `json:"time"`
}

// AppendAnalysis appends rec to <envDir>/analyses.jsonl.
func AppendAnalysis(envDir string, rec AnalysisRecord) error {
	path := filepath.Join(envDir, AnalysesFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("output: open %s: %w", path, err)
	}
	if err := json.NewEncoder(f).Encode(rec); err != nil {
		f.Close()
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return f.Close()
}

// ReadAnalyses returns the analysis history, oldest first. A missing history
// file is an empty history.
func ReadAnalyses(envDir string) ([]AnalysisRecord, error) {
	recs, err := readJSONL[AnalysisRecord](filepath.Join(envDir, AnalysesFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return recs, err
}

// WriteASM writes the disassembly listing of a function to dir/<name>.txt.
func WriteASM(dir, name string, insts []disasm.Inst) error {
	path := filepath.Join(dir, name+".txt")
	return os.WriteFile(path, []byte(disasm.Format(insts)), 0644)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}

func readJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []T
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec T
		if err := dec.Decode(&rec); err != nil {
			return records, fmt.Errorf("output: %s line %d: %w", filepath.Base(path), len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
