package s2e

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrNotEnv          = errors.New("s2e: not an S2E environment")
	ErrProjectNotFound = errors.New("s2e: project not found")
)

const (
	envConfigFile = "s2e.yaml"
	lastRunLink   = "s2e-last"
	runDirPrefix  = "s2e-out-"
	configFile    = "s2e-config.lua"
	launchScript  = "launch-s2e.sh"
)

// Env is an S2E environment created by s2e-env's init command.
type Env struct {
	Dir string
}

// Validate checks that Dir holds an s2e.yaml that parses as YAML.
func (e Env) Validate() error {
	if e.Dir == "" {
		return fmt.Errorf("%w: no directory configured", ErrNotEnv)
	}
	path := filepath.Join(e.Dir, envConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotEnv, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotEnv, path, err)
	}
	return nil
}

// ProjectsDir is where s2e new_project creates projects.
func (e Env) ProjectsDir() string {
	return filepath.Join(e.Dir, "projects")
}

// Project returns the project called name. It may not exist yet.
func (e Env) Project(name string) Project {
	return Project{Name: name, Dir: filepath.Join(e.ProjectsDir(), name)}
}

// Projects lists the names of existing projects.
func (e Env) Projects() ([]string, error) {
	entries, err := os.ReadDir(e.ProjectsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("s2e: list projects: %w", err)
	}
	var names []string
	for _, ent := range entries {
		if ent.IsDir() {
			names = append(names, ent.Name())
		}
	}
	return names, nil
}

// Project is one analysis target inside an environment.
type Project struct {
	Name string
	Dir  string
}

// Exists reports ErrProjectNotFound if the project directory is missing.
func (p Project) Exists() error {
	fi, err := os.Stat(p.Dir)
	if err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, p.Name)
	}
	return nil
}

// LastRunDir is the s2e-last link S2E points at its most recent output.
func (p Project) LastRunDir() string { return filepath.Join(p.Dir, lastRunLink) }

// OutputDir is the directory of run n.
func (p Project) OutputDir(n int) string {
	return filepath.Join(p.Dir, runDirPrefix+strconv.Itoa(n))
}

// ConfigPath is the Lua configuration S2E reads.
func (p Project) ConfigPath() string { return filepath.Join(p.Dir, configFile) }

// Runs returns the numbers of the existing s2e-out-N directories, ascending.
func (p Project) Runs() ([]int, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("s2e: list runs: %w", err)
	}
	var nums []int
	for _, ent := range entries {
		rest, ok := strings.CutPrefix(ent.Name(), runDirPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

// NextRunNum returns the smallest run number without an output directory.
func (p Project) NextRunNum() (int, error) {
	nums, err := p.Runs()
	if err != nil {
		return 0, err
	}
	next := 0
	for _, n := range nums {
		if n == next {
			next++
		} else if n > next {
			break
		}
	}
	return next, nil
}

// WriteConfig writes the Lua configuration for the next run.
func (p Project) WriteConfig(lua string) error {
	if err := os.WriteFile(p.ConfigPath(), []byte(lua), 0644); err != nil {
		return fmt.Errorf("s2e: write config: %w", err)
	}
	return nil
}
