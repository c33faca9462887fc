package disasm

import (
	"debug/elf"
	"fmt"
	"sort"

	"github.com/apex/log"

	"github.com/gohoron/s2e2-gui/internal/cover"
	"github.com/gohoron/s2e2-gui/internal/elfx"
)

// stripped binaries have no sized symbols; the entry function is decoded up
// to this many bytes or the end of its section.
const maxEntryBytes = 0x1000

// NativeOptions controls in-process disassembly.
type NativeOptions struct {
	// Filter keeps only functions whose name it accepts. nil keeps all.
	Filter   func(name string) bool
	MaxSteps int
}

// Native disassembles an ELF binary in process. All functions are decoded
// and their CFGs built when the binary is opened.
type Native struct {
	arch  Arch
	addrs []uint64
	cfgs  map[uint64]FuncCFG
}

var _ Service = (*Native)(nil)

// ArchOf maps an ELF machine to a decoder.
func ArchOf(m elf.Machine) (Arch, error) {
	switch m {
	case elf.EM_X86_64:
		return ArchX86_64, nil
	case elf.EM_386:
		return ArchX86, nil
	case elf.EM_AARCH64:
		return ArchARM64, nil
	}
	return 0, fmt.Errorf("disasm: unsupported machine %s", m)
}

// OpenNative loads and analyses the binary at path.
func OpenNative(path string, opts NativeOptions) (*Native, error) {
	ef, err := elfx.Open(path)
	if err != nil {
		return nil, err
	}
	defer ef.Close()
	return analyzeELF(ef, opts)
}

func analyzeELF(ef *elfx.File, opts NativeOptions) (*Native, error) {
	arch, err := ArchOf(ef.Machine())
	if err != nil {
		return nil, err
	}

	funcs := ef.Functions()
	if len(funcs) == 0 {
		entry := ef.Entry()
		end, ok := ef.ExecSectionEnd(entry)
		if !ok {
			return nil, fmt.Errorf("disasm: no function symbols and entry 0x%x is not in code", entry)
		}
		size := end - entry
		if size > maxEntryBytes {
			size = maxEntryBytes
		}
		funcs = []elfx.Func{{Name: "entry0", Addr: entry, Size: size}}
	}

	n := &Native{arch: arch, cfgs: make(map[uint64]FuncCFG, len(funcs))}
	for _, fn := range funcs {
		if opts.Filter != nil && !opts.Filter(fn.Name) {
			continue
		}
		code, err := ef.ReadFunc(fn)
		if err != nil {
			log.WithField("func", fn.Name).Warnf("cannot read code: %v", err)
			continue
		}
		insts := Disassemble(code, Options{Arch: arch, BaseAddr: fn.Addr, MaxSteps: opts.MaxSteps})
		cfg := BuildCFG(fn.Name, insts)
		if len(cfg.Blocks) == 0 {
			continue
		}
		n.cfgs[fn.Addr] = cfg
		n.addrs = append(n.addrs, fn.Addr)
	}
	sort.Slice(n.addrs, func(i, j int) bool { return n.addrs[i] < n.addrs[j] })
	return n, nil
}

// Arch returns the decoder used for the binary.
func (n *Native) Arch() Arch { return n.arch }

// FunctionOffsets returns function entry addresses in ascending order.
func (n *Native) FunctionOffsets() ([]uint64, error) {
	return append([]uint64(nil), n.addrs...), nil
}

// CFG returns the control flow graph of fn.
func (n *Native) CFG(fn uint64) (FuncCFG, error) {
	cfg, ok := n.cfgs[fn]
	if !ok {
		return FuncCFG{}, fmt.Errorf("%w: 0x%x", ErrUnknownFunction, fn)
	}
	return cfg, nil
}

func (n *Native) BasicBlocks(fn uint64) ([]cover.Block, error) {
	cfg, err := n.CFG(fn)
	if err != nil {
		return nil, err
	}
	return cfg.CoverBlocks(), nil
}

func (n *Native) Graph(fn uint64) (*Graph, error) {
	cfg, err := n.CFG(fn)
	if err != nil {
		return nil, err
	}
	return GraphFromCFG(cfg), nil
}

func (n *Native) FunctionName(fn uint64) string {
	return n.cfgs[fn].Name
}

// CallTargets returns the direct call targets of fn.
func (n *Native) CallTargets(fn uint64) ([]uint64, error) {
	cfg, err := n.CFG(fn)
	if err != nil {
		return nil, err
	}
	return cfg.CallTargets(), nil
}
