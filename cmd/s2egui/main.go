package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

func main() {
	log.SetHandler(cli.New(os.Stderr))

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "plugins":
		err = cmdPlugins(os.Args[2:])
	case "config":
		err = cmdConfig(os.Args[2:])
	case "run":
		err = cmdRun(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "show":
		err = cmdShow(os.Args[2:])
	case "history":
		err = cmdHistory(os.Args[2:])
	case "cfg":
		err = cmdCFG(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `s2egui: configure S2E runs and visualise their basic block coverage

Usage:
  s2egui plugins [--name <plugin>]                       List the plugin catalog
  s2egui config  --select <file> [--project <name>]      Print the s2e-config.lua for a plugin selection
  s2egui run     --binary <path> --select <file>         Analyse a binary with S2E and render its coverage
  s2egui graph   --project <name> [--run <n>]            Render coverage graphs for a finished run
  s2egui show    --project <name> [--run <n>]            Print the results of a run
  s2egui history                                         List past analyses
  s2egui cfg     --binary <path> --func <name|0xaddr>    Print a function's CFG with its call sites as DOT

Flags:
  --settings <file>     YAML settings (env_dir, binary_dir, plugin_catalog, ...)
  --log-level <level>   debug, info, warn or error (default info)
`)
}
