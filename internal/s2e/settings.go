// Package s2e manages an S2E environment: its projects, the binaries under
// analysis and the runs launched against them.
package s2e

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Disassembler backends.
const (
	DisasmNative = "native"
	DisasmR2     = "r2"
)

// Settings locate the S2E environment and the external tools.
type Settings struct {
	EnvDir        string `yaml:"env_dir"`
	BinaryDir     string `yaml:"binary_dir"`
	PluginCatalog string `yaml:"plugin_catalog"`
	S2EBin        string `yaml:"s2e_bin"`
	R2Bin         string `yaml:"r2_bin"`
	DotBin        string `yaml:"dot_bin"`
	Disassembler  string `yaml:"disassembler"`
	RenderWorkers int    `yaml:"render_workers"`
}

// LoadSettings reads a YAML settings file. Relative paths are resolved
// against the file's directory. An empty path yields the defaults.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("s2e: settings: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("s2e: settings %s: %w", path, err)
		}
		base := filepath.Dir(path)
		for _, p := range []*string{&s.EnvDir, &s.BinaryDir, &s.PluginCatalog} {
			if *p != "" && !filepath.IsAbs(*p) {
				*p = filepath.Join(base, *p)
			}
		}
	}
	s = s.WithDefaults()
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// WithDefaults fills unset fields. The environment directory falls back to
// $S2EDIR, which s2e-env's activate script exports.
func (s Settings) WithDefaults() Settings {
	if s.EnvDir == "" {
		s.EnvDir = os.Getenv("S2EDIR")
	}
	if s.BinaryDir == "" && s.EnvDir != "" {
		s.BinaryDir = filepath.Join(s.EnvDir, "binaries")
	}
	if s.PluginCatalog == "" && s.EnvDir != "" {
		s.PluginCatalog = filepath.Join(s.EnvDir, "plugins.json")
	}
	if s.S2EBin == "" {
		s.S2EBin = "s2e"
	}
	if s.R2Bin == "" {
		s.R2Bin = "r2"
	}
	if s.DotBin == "" {
		s.DotBin = "dot"
	}
	if s.Disassembler == "" {
		s.Disassembler = DisasmNative
	}
	if s.RenderWorkers <= 0 {
		s.RenderWorkers = runtime.NumCPU()
	}
	return s
}

// Validate checks field values, not the file system.
func (s Settings) Validate() error {
	switch s.Disassembler {
	case DisasmNative, DisasmR2:
	default:
		return fmt.Errorf("s2e: settings: unknown disassembler %q", s.Disassembler)
	}
	return nil
}

// Env returns the environment the settings point at.
func (s Settings) Env() Env {
	return Env{Dir: s.EnvDir}
}
