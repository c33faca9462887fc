package s2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
)

// Runner invokes the s2e command line tool and project launch scripts.
type Runner struct {
	Env Env
	Bin string // s2e executable, "s2e" by default
}

// LaunchResult tells how a run ended.
type LaunchResult struct {
	KilledByTimeout bool
	HasError        bool
	Duration        time.Duration
}

// StageBinary copies src into dir as name, creating dir when needed, and
// returns the written path. name must be a plain file name.
func StageBinary(dir, name string, src io.Reader) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("s2e: invalid binary name %q", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("s2e: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return "", fmt.Errorf("s2e: create %s: %w", path, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return "", fmt.Errorf("s2e: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("s2e: write %s: %w", path, err)
	}
	return path, nil
}

// Checksum returns the hex sha256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("s2e: checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("s2e: checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (r Runner) bin() string {
	if r.Bin == "" {
		return "s2e"
	}
	return r.Bin
}

// CreateProject runs s2e new_project for binary. The project is named after
// the binary's file name.
func (r Runner) CreateProject(ctx context.Context, binary string) (Project, error) {
	p := r.Env.Project(filepath.Base(binary))
	cmd := exec.CommandContext(ctx, r.bin(), "new_project", binary)
	cmd.Dir = r.Env.Dir
	cmd.Env = append(os.Environ(), "S2EDIR="+r.Env.Dir)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		return p, fmt.Errorf("s2e: new_project %s: %w: %s", filepath.Base(binary), err, lastLine(msg))
	}
	if err := p.Exists(); err != nil {
		return p, err
	}
	return p, nil
}

// Launch runs the project's launch script. When timeout elapses S2E and its
// children are killed and the result reports KilledByTimeout. A run that
// exits non-zero on its own sets HasError. The returned error is reserved
// for failures to start the script.
func (r Runner) Launch(ctx context.Context, p Project, timeout time.Duration) (LaunchResult, error) {
	var res LaunchResult
	if timeout <= 0 {
		return res, fmt.Errorf("s2e: timeout must be positive, got %s", timeout)
	}
	script := filepath.Join(p.Dir, launchScript)
	if _, err := os.Stat(script); err != nil {
		return res, fmt.Errorf("s2e: launch: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, script)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), "S2EDIR="+r.Env.Dir)
	killGroup(cmd)

	logPath := filepath.Join(p.Dir, "launch.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return res, fmt.Errorf("s2e: launch log: %w", err)
	}
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return res, fmt.Errorf("s2e: launch %s: %w", p.Name, err)
	}
	log.WithFields(log.Fields{"project": p.Name, "timeout": timeout}).Info("s2e started")

	waitErr := cmd.Wait()
	res.Duration = time.Since(start)
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.KilledByTimeout = true
	case ctx.Err() != nil:
		return res, ctx.Err()
	case waitErr != nil:
		res.HasError = true
		log.WithField("project", p.Name).Warnf("s2e exited: %v", waitErr)
	}
	return res, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
