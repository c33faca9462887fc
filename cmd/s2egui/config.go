package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gohoron/s2e2-gui/internal/plugins"
)

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	g := addGlobalFlags(fs)
	selectPath := fs.String("select", "", "plugin selection (YAML or JSON)")
	project := fs.String("project", "", "project the configuration is for")
	out := fs.String("out", "", "write to file instead of stdout")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *selectPath == "" {
		return fmt.Errorf("--select is required")
	}
	settings, err := g.load()
	if err != nil {
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

	// Without a project the file is a template for the user to edit.
	projectDir := "your_binary_name"
	if *project != "" {
		projectDir = settings.Env().Project(*project).Dir
	}
	lua, err := plugins.GenerateConfig(cat.Selected(sel), sel, projectDir)
	if err != nil {
		return err
	}

	if *out == "" {
		fmt.Print(lua)
		return nil
	}
	if err := os.WriteFile(*out, []byte(lua), 0644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", *out)
	return nil
}
