package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/gohoron/s2e2-gui/internal/covgraph"
	"github.com/gohoron/s2e2-gui/internal/output"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	g := addGlobalFlags(fs)
	project := fs.String("project", "", "project name")
	run := fs.Int("run", -1, "run number (default: latest)")
	module := fs.String("module", "", "module name in the coverage logs (default: project name)")
	binary := fs.String("binary", "", "binary to disassemble (default: the project's copy)")
	format := fs.String("format", "png", "graph image format")
	keepDOT := fs.Bool("keep-dot", false, "also write the DOT source of each graph")
	asm := fs.Bool("asm", false, "write disassembly listings (native disassembler only)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *project == "" {
		return fmt.Errorf("--project is required")
	}
	settings, err := g.load()
	if err != nil {
		return err
	}
	env := settings.Env()
	p := env.Project(*project)
	if err := p.Exists(); err != nil {
		return err
	}
	num, err := runNum(p, *run)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := covgraph.EnsureOutputDir(p, num); err != nil {
		return err
	}
	res, err := covgraph.Generate(ctx, covgraph.Request{
		Env:     env,
		Project: *project,
		RunNum:  num,
		Binary:  *binary,
		Module:  *module,
		Open:    opener(settings),
		Render:  renderOptions(settings, *format, *keepDOT),
		ASM:     *asm,
	})
	if err != nil {
		return err
	}

	runDir := p.OutputDir(num)
	rd, err := output.ReadRunJSON(runDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	rd.FunctionPaths = res.Paths
	if err := output.WriteRunJSON(runDir, rd); err != nil {
		return err
	}

	for _, path := range res.Paths {
		fmt.Println(path)
	}
	fmt.Fprintf(os.Stderr, "wrote %d function graphs to %s\n", len(res.Paths), filepath.Join(runDir, covgraph.FunctionsDir))
	if res.Callgraph != "" {
		fmt.Fprintf(os.Stderr, "wrote %s\n", filepath.Join(runDir, res.Callgraph))
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", filepath.Join(runDir, "index.html"))
	return nil
}
