package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/gohoron/s2e2-gui/internal/plugins"
)

func cmdPlugins(args []string) error {
	fs := flag.NewFlagSet("plugins", flag.ExitOnError)
	g := addGlobalFlags(fs)
	name := fs.String("name", "", "show the options of one plugin")

	if err := fs.Parse(args); err != nil {
		return err
	}
	settings, err := g.load()
	if err != nil {
		return err
	}
	cat, err := plugins.Load(settings.PluginCatalog)
	if err != nil {
		return err
	}

	if *name != "" {
		p, ok := cat.Lookup(*name)
		if !ok {
			return fmt.Errorf("unknown plugin %q", *name)
		}
		fmt.Printf("%s: %s\n", p.Name, p.Description)
		if len(p.Dependencies) > 0 {
			fmt.Printf("depends on: %s\n", strings.Join(p.Dependencies, ", "))
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"option", "type", "description"})
		appendOptions(table, "", p.ConfigOption)
		table.Render()
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"plugin", "options", "description"})
	for _, p := range cat.Plugins() {
		table.Append([]string{p.Name, fmt.Sprintf("%d", len(p.ConfigOption)), p.Description})
	}
	table.Render()
	return nil
}

func appendOptions(table *tablewriter.Table, prefix string, opts map[string]plugins.Option) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		o := opts[k]
		table.Append([]string{prefix + k, o.Type, o.Description})
		if o.Type == plugins.TypeList {
			appendOptions(table, prefix+k+".<key>.", o.Content)
		}
	}
}
