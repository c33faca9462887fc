package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/gohoron/s2e2-gui/internal/output"
	"github.com/gohoron/s2e2-gui/internal/s2e"
)

func cmdShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	g := addGlobalFlags(fs)
	project := fs.String("project", "", "project name")
	run := fs.Int("run", -1, "run number (default: latest)")
	all := fs.Bool("all", false, "list functions that were not executed")
	logs := fs.Bool("logs", false, "print the S2E warnings log")

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
	p := settings.Env().Project(*project)
	if err := p.Exists(); err != nil {
		return err
	}
	num, err := runNum(p, *run)
	if err != nil {
		return err
	}
	runDir := p.OutputDir(num)

	rd, err := output.ReadRunJSON(runDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fmt.Printf("%s run %d (%s)\n", p.Name, num, runDir)
	if rd.KilledByTimeout {
		fmt.Println("  stopped by timeout")
	}
	if rd.HasS2EError {
		fmt.Println("  s2e exited with an error")
	}

	cov, err := output.ReadCoverageJSON(runDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Println("  no coverage graphs; run `s2egui graph` first")
	case err != nil:
		return err
	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"address", "function", "covered", "blocks", "%"})
		for _, s := range cov.Functions {
			if s.Covered == 0 && !*all {
				continue
			}
			table.Append([]string{
				fmt.Sprintf("0x%x", s.Offset),
				s.Name,
				itoa(s.Covered),
				itoa(s.Blocks),
				fmt.Sprintf("%.1f", s.Percent()),
			})
		}
		table.Render()
		fmt.Printf("%d translation blocks, %d functions skipped\n", cov.Intervals, cov.Skipped)
	}

	if *logs {
		l, err := s2e.ReadLogs(runDir)
		if err != nil {
			return err
		}
		if w := strings.TrimSpace(l.Warnings); w != "" {
			fmt.Println(w)
		}
	}
	return nil
}
