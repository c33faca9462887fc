// Package covgraph turns the coverage recorded by an S2E run into per-function
// control flow graph images with the executed basic blocks highlighted.
package covgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/apex/log"

	"github.com/gohoron/s2e2-gui/internal/callgraph"
	"github.com/gohoron/s2e2-gui/internal/cover"
	"github.com/gohoron/s2e2-gui/internal/disasm"
	"github.com/gohoron/s2e2-gui/internal/output"
	"github.com/gohoron/s2e2-gui/internal/render"
	"github.com/gohoron/s2e2-gui/internal/s2e"
	"github.com/gohoron/s2e2-gui/internal/tbcov"
)

// FunctionsDir is the directory inside a run's output that holds the images.
const FunctionsDir = "functions"

var (
	ErrNoOutputDir = errors.New("covgraph: output directory does not exist")
	ErrNoLastRun   = errors.New("covgraph: project has no s2e-last")
	ErrNoCoverage  = errors.New("covgraph: no translation block coverage files found in s2e-last; is the TranslationBlockCoverage plugin enabled in s2e-config.lua?")
)

// PreconditionError reports which check failed before any analysis ran.
type PreconditionError struct {
	Check string
	Path  string
	Err   error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("covgraph: %s check failed for %s: %v", e.Check, e.Path, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// OpenFunc opens a disassembler on binary. The closer may be nil.
type OpenFunc func(ctx context.Context, binary string) (disasm.Service, io.Closer, error)

// Request selects the run to analyse and how to render it.
type Request struct {
	Env     s2e.Env
	Project string
	RunNum  int

	// Binary defaults to the copy s2e new_project placed in the project,
	// Module to the project name.
	Binary string
	Module string

	Open   OpenFunc
	Render render.Options

	// ASM writes a disassembly listing next to each image when the
	// disassembler decodes in process.
	ASM bool
}

// Result describes what Generate produced.
type Result struct {
	OutputDir string
	Intervals int
	Skipped   int
	Summaries []cover.FuncSummary
	Covered   cover.Set
	// Paths are the images as <project>/s2e-out-<n>/functions/func_0x<hex>.png.
	Paths     []string
	Callgraph string
}

// EnsureOutputDir creates the functions directory of run n and returns it.
func EnsureOutputDir(p s2e.Project, n int) (string, error) {
	dir := filepath.Join(p.OutputDir(n), FunctionsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("covgraph: %w", err)
	}
	return dir, nil
}

// NativeOpener decodes the binary in process.
func NativeOpener(opts disasm.NativeOptions) OpenFunc {
	return func(ctx context.Context, binary string) (disasm.Service, io.Closer, error) {
		n, err := disasm.OpenNative(binary, opts)
		if err != nil {
			return nil, nil, err
		}
		return n, nil, nil
	}
}

// R2Opener drives radare2.
func R2Opener(r2Bin string) OpenFunc {
	return func(ctx context.Context, binary string) (disasm.Service, io.Closer, error) {
		r, err := disasm.OpenR2(ctx, r2Bin, binary)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	}
}

func checkDir(check, dir string, missing error) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return &PreconditionError{Check: check, Path: dir, Err: fmt.Errorf("%w: %v", missing, err)}
	}
	if !fi.IsDir() {
		return &PreconditionError{Check: check, Path: dir, Err: fmt.Errorf("%w: not a directory", missing)}
	}
	return nil
}

// Generate checks the preconditions in order, then correlates the coverage of
// the project's last run with the binary's basic blocks and renders one image
// per function into the functions directory of run RunNum. No artifact is
// written when a precondition fails.
func Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Env.Validate(); err != nil {
		return nil, &PreconditionError{Check: "environment", Path: req.Env.Dir, Err: err}
	}
	project := req.Env.Project(req.Project)
	if err := project.Exists(); err != nil {
		return nil, &PreconditionError{Check: "project", Path: project.Dir, Err: err}
	}
	runDir := project.OutputDir(req.RunNum)
	outDir := filepath.Join(runDir, FunctionsDir)
	if err := checkDir("output directory", outDir, ErrNoOutputDir); err != nil {
		return nil, err
	}
	lastDir := project.LastRunDir()
	if err := checkDir("last run", lastDir, ErrNoLastRun); err != nil {
		return nil, err
	}
	files, err := tbcov.FindFiles(lastDir)
	if err != nil {
		return nil, &PreconditionError{Check: "coverage files", Path: lastDir, Err: err}
	}
	if len(files) == 0 {
		return nil, &PreconditionError{Check: "coverage files", Path: lastDir, Err: ErrNoCoverage}
	}

	module := req.Module
	if module == "" {
		module = project.Name
	}
	binary := req.Binary
	if binary == "" {
		binary = filepath.Join(project.Dir, project.Name)
	}
	open := req.Open
	if open == nil {
		open = NativeOpener(disasm.NativeOptions{})
	}

	intervals := tbcov.Collect(files, module)
	logger := log.WithFields(log.Fields{"project": project.Name, "run": req.RunNum})
	logger.Infof("%d translation blocks from %d coverage files", len(intervals), len(files))

	svc, closer, err := open(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("covgraph: open disassembler: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	funcs, skipped, err := disasm.Functions(svc)
	if err != nil {
		return nil, fmt.Errorf("covgraph: %w", err)
	}
	if skipped > 0 {
		logger.Warnf("%d functions skipped", skipped)
	}

	covered := cover.CoveredBlocks(funcs, intervals)
	summaries := cover.Summarize(funcs, covered)
	logger.Infof("%d of %d functions, %d basic blocks covered", countExecuted(summaries), len(funcs), covered.Len())

	ropts := withFormat(req.Render)
	names, err := render.RenderAnnotatedGraphs(ctx, svc, funcs, covered, outDir, ropts)
	if err != nil {
		return nil, fmt.Errorf("covgraph: %w", err)
	}

	res := &Result{
		OutputDir: runDir,
		Intervals: len(intervals),
		Skipped:   skipped,
		Summaries: summaries,
		Covered:   covered,
	}
	base := path.Join(project.Name, filepath.Base(runDir), FunctionsDir)
	for _, name := range names {
		res.Paths = append(res.Paths, path.Join(base, name))
	}

	if req.ASM {
		writeListings(svc, funcs, outDir)
	}

	if err := output.WriteCoverageJSON(runDir, output.Coverage{
		Module:    module,
		Intervals: len(intervals),
		Skipped:   skipped,
		Functions: summaries,
	}); err != nil {
		return nil, fmt.Errorf("covgraph: %w", err)
	}

	cg, err := writeCallgraph(ctx, svc, funcs, summaries, runDir, ropts)
	if err != nil {
		logger.Warnf("call graph: %v", err)
	}
	res.Callgraph = cg

	if err := writeIndex(runDir, project.Name, req.RunNum, res, funcs, names, ropts.Format); err != nil {
		return nil, err
	}
	return res, nil
}

func withFormat(o render.Options) render.Options {
	if o.Format == "" {
		o.Format = "png"
	}
	return o
}

func countExecuted(summaries []cover.FuncSummary) int {
	n := 0
	for _, s := range summaries {
		if s.Covered > 0 {
			n++
		}
	}
	return n
}

// writeListings writes func_0x<hex>.txt for services that decode in process.
func writeListings(svc disasm.Service, funcs []cover.Function, outDir string) {
	native, ok := svc.(*disasm.Native)
	if !ok {
		log.Warn("disassembly listings need the native disassembler")
		return
	}
	for _, fn := range funcs {
		cfg, err := native.CFG(fn.Offset)
		if err != nil {
			continue
		}
		name := fmt.Sprintf("func_0x%x", fn.Offset)
		if err := output.WriteASM(outDir, name, cfg.Insts); err != nil {
			log.WithField("func", name).Warnf("listing: %v", err)
		}
	}
}

// writeCallgraph renders the calls between executed functions. It returns
// the image name relative to runDir, or "" when nothing was rendered.
func writeCallgraph(ctx context.Context, svc disasm.Service, funcs []cover.Function, summaries []cover.FuncSummary, runDir string, opts render.Options) (string, error) {
	if _, ok := svc.(disasm.Caller); !ok {
		return "", nil
	}
	executed := callgraph.Executed(callgraph.Collect(svc, funcs), summaries)
	if len(executed) == 0 {
		return "", nil
	}
	g := callgraph.BuildCallGraph(executed)
	src := []byte(callgraph.DOT(g, "executed functions"))

	dotPath := filepath.Join(runDir, "callgraph.dot")
	if err := os.WriteFile(dotPath, src, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", dotPath, err)
	}
	rast := opts.Rasterizer
	if rast == nil {
		rast = render.Graphviz{}
	}
	name := "callgraph." + opts.Format
	if err := rast.Rasterize(ctx, src, opts.Format, filepath.Join(runDir, name)); err != nil {
		return "", err
	}
	return name, nil
}

func writeIndex(runDir, project string, n int, res *Result, funcs []cover.Function, names []string, format string) error {
	rd, err := output.ReadRunJSON(runDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithField("dir", runDir).Warnf("run data: %v", err)
	}
	idx := render.RunIndex{
		Title:           fmt.Sprintf("%s run %d", project, n),
		KilledByTimeout: rd.KilledByTimeout,
		HasS2EError:     rd.HasS2EError,
		Intervals:       res.Intervals,
		Summaries:       res.Summaries,
		Artifacts:       render.ArtifactLinks(funcs, names, FunctionsDir, format),
		Callgraph:       res.Callgraph,
	}
	f, err := os.Create(filepath.Join(runDir, "index.html"))
	if err != nil {
		return fmt.Errorf("covgraph: %w", err)
	}
	render.WriteIndexHTML(f, idx)
	if err := f.Close(); err != nil {
		return fmt.Errorf("covgraph: %w", err)
	}
	return nil
}
