package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apex/log"

	"github.com/gohoron/s2e2-gui/internal/covgraph"
	"github.com/gohoron/s2e2-gui/internal/disasm"
	"github.com/gohoron/s2e2-gui/internal/render"
	"github.com/gohoron/s2e2-gui/internal/s2e"
)

// globalFlags are accepted by every subcommand.
type globalFlags struct {
	settings *string
	logLevel *string
}

func addGlobalFlags(fs *flag.FlagSet) globalFlags {
	return globalFlags{
		settings: fs.String("settings", defaultSettingsPath(), "YAML settings file"),
		logLevel: fs.String("log-level", "info", "log level (debug, info, warn, error)"),
	}
}

// defaultSettingsPath returns s2egui.yaml in the user config dir when present.
func defaultSettingsPath() string {
	if p := os.Getenv("S2EGUI_SETTINGS"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "s2egui", "settings.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// load applies the log level and reads the settings.
func (g globalFlags) load() (s2e.Settings, error) {
	lvl, err := log.ParseLevel(*g.logLevel)
	if err != nil {
		return s2e.Settings{}, fmt.Errorf("--log-level: %w", err)
	}
	log.SetLevel(lvl)
	return s2e.LoadSettings(*g.settings)
}

// opener picks the disassembler named in the settings.
func opener(s s2e.Settings) covgraph.OpenFunc {
	if s.Disassembler == s2e.DisasmR2 {
		return covgraph.R2Opener(s.R2Bin)
	}
	return covgraph.NativeOpener(disasm.NativeOptions{})
}

func renderOptions(s s2e.Settings, format string, keepDOT bool) render.Options {
	return render.Options{
		Rasterizer: render.Graphviz{Bin: s.DotBin},
		Format:     format,
		Workers:    s.RenderWorkers,
		KeepDOT:    keepDOT,
	}
}

// latestRun returns the highest existing run number of p.
func latestRun(p s2e.Project) (int, error) {
	runs, err := p.Runs()
	if err != nil {
		return 0, err
	}
	if len(runs) == 0 {
		return 0, fmt.Errorf("project %s has no runs", p.Name)
	}
	return runs[len(runs)-1], nil
}

// runNum resolves a --run flag where -1 means the latest run.
func runNum(p s2e.Project, n int) (int, error) {
	if n >= 0 {
		return n, nil
	}
	return latestRun(p)
}

func itoa(n int) string { return strconv.Itoa(n) }
