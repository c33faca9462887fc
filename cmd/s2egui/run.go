package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/apex/log"

	"github.com/gohoron/s2e2-gui/internal/covgraph"
	"github.com/gohoron/s2e2-gui/internal/output"
	"github.com/gohoron/s2e2-gui/internal/plugins"
	"github.com/gohoron/s2e2-gui/internal/s2e"
)

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	g := addGlobalFlags(fs)
	binPath := fs.String("binary", "", "binary to analyse")
	selectPath := fs.String("select", "", "plugin selection (YAML or JSON)")
	timeout := fs.Duration("timeout", 5*time.Minute, "wall clock limit for S2E")
	graph := fs.Bool("graph", true, "render coverage graphs after the run")
	format := fs.String("format", "png", "graph image format")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *binPath == "" || *selectPath == "" {
		return fmt.Errorf("--binary and --select are required")
	}
	if *timeout <= 0 {
		return fmt.Errorf("the timeout cannot be negative or zero")
	}
	settings, err := g.load()
	if err != nil {
		return err
	}
	env := settings.Env()
	if err := env.Validate(); err != nil {
		return err
	}

	cat, err := plugins.Load(settings.PluginCatalog)
	if err != nil {
		return err
	}
	sel, err := plugins.LoadUserConfig(*selectPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src, err := os.Open(*binPath)
	if err != nil {
		return err
	}
	name := filepath.Base(*binPath)
	staged, err := s2e.StageBinary(settings.BinaryDir, name, src)
	src.Close()
	if err != nil {
		return err
	}

	runner := s2e.Runner{Env: env, Bin: settings.S2EBin}
	project := env.Project(name)
	if err := project.Exists(); errors.Is(err, s2e.ErrProjectNotFound) {
		log.WithField("binary", staged).Info("creating project")
		if project, err = runner.CreateProject(ctx, staged); err != nil {
			return fmt.Errorf("unable to create a project with the given binary: %w", err)
		}
	}

	num, err := project.NextRunNum()
	if err != nil {
		return err
	}
	lua, err := plugins.GenerateConfig(cat.Selected(sel), sel, project.Dir)
	if err != nil {
		return err
	}
	if err := project.WriteConfig(lua); err != nil {
		return err
	}

	res, err := runner.Launch(ctx, project, *timeout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "s2e finished in %s (timeout: %v, error: %v)\n",
		res.Duration.Round(time.Second), res.KilledByTimeout, res.HasError)

	sum, err := s2e.Checksum(staged)
	if err != nil {
		return err
	}
	if err := output.AppendAnalysis(env.Dir, output.AnalysisRecord{
		Num:      num,
		Binary:   name,
		Checksum: sum,
		Time:     time.Now().UTC(),
	}); err != nil {
		return err
	}

	runDir := project.OutputDir(num)
	rd := output.RunData{KilledByTimeout: res.KilledByTimeout, HasS2EError: res.HasError}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", runDir, err)
	}
	if err := output.WriteRunJSON(runDir, rd); err != nil {
		return err
	}

	if *graph {
		if _, err := covgraph.EnsureOutputDir(project, num); err != nil {
			return err
		}
		gres, err := covgraph.Generate(ctx, covgraph.Request{
			Env:     env,
			Project: project.Name,
			RunNum:  num,
			Open:    opener(settings),
			Render:  renderOptions(settings, *format, false),
		})
		if err != nil {
			return err
		}
		rd.FunctionPaths = gres.Paths
		if err := output.WriteRunJSON(runDir, rd); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d function graphs to %s\n", len(gres.Paths), filepath.Join(runDir, covgraph.FunctionsDir))
	}

	fmt.Fprintf(os.Stderr, "wrote %s\n", runDir)
	return nil
}
