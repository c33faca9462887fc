package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/gohoron/s2e2-gui/internal/output"
)

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	g := addGlobalFlags(fs)
	binary := fs.String("binary", "", "only analyses of this binary")

	if err := fs.Parse(args); err != nil {
		return err
	}
	settings, err := g.load()
	if err != nil {
		return err
	}

	recs, err := output.ReadAnalyses(settings.EnvDir)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"time", "binary", "run", "sha256"})
	n := 0
	for _, r := range recs {
		if *binary != "" && r.Binary != *binary {
			continue
		}
		sum := r.Checksum
		if len(sum) > 16 {
			sum = sum[:16]
		}
		table.Append([]string{r.Time.Local().Format(time.DateTime), r.Binary, itoa(r.Num), sum})
		n++
	}
	table.Render()
	fmt.Fprintf(os.Stderr, "%d analyses\n", n)
	return nil
}
