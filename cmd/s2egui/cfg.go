package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/gohoron/s2e2-gui/internal/callgraph"
	"github.com/gohoron/s2e2-gui/internal/disasm"
)

func cmdCFG(args []string) error {
	fs := flag.NewFlagSet("cfg", flag.ExitOnError)
	g := addGlobalFlags(fs)
	binary := fs.String("binary", "", "ELF binary")
	fn := fs.String("func", "", "function name or 0x address")
	asm := fs.Bool("asm", false, "print the disassembly instead of DOT")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *binary == "" || *fn == "" {
		return fmt.Errorf("--binary and --func are required")
	}
	if _, err := g.load(); err != nil {
		return err
	}

	n, err := disasm.OpenNative(*binary, disasm.NativeOptions{})
	if err != nil {
		return err
	}
	addr, err := findFunc(n, *fn)
	if err != nil {
		return err
	}
	cfg, err := n.CFG(addr)
	if err != nil {
		return err
	}

	if *asm {
		fmt.Print(disasm.Format(cfg.Insts))
		return nil
	}
	fmt.Print(callgraph.FuncCFGDOT(cfg, n.FunctionName))
	return nil
}

// findFunc resolves a 0x address or a symbol name.
func findFunc(n *disasm.Native, spec string) (uint64, error) {
	if strings.HasPrefix(spec, "0x") {
		addr, err := strconv.ParseUint(spec[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("bad address %q: %w", spec, err)
		}
		return addr, nil
	}
	addrs, _ := n.FunctionOffsets()
	for _, a := range addrs {
		if n.FunctionName(a) == spec {
			return a, nil
		}
	}
	return 0, fmt.Errorf("function %q not found", spec)
}
