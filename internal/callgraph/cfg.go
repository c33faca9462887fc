package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"github.com/gohoron/s2e2-gui/internal/disasm"
)

// BuildCFG converts disassembled functions to a lattice.CFGGraph with the
// direct calls of each block attached. names resolves call targets; a nil
// func or an empty result falls back to the hex address.
func BuildCFG(cfgs []disasm.FuncCFG, names func(uint64) string) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for i := range cfgs {
		cg.Funcs = append(cg.Funcs, convertFuncCFG(&cfgs[i], names))
	}
	return cg
}

// FuncCFGDOT renders a single function's CFG with its call sites.
func FuncCFGDOT(cfg disasm.FuncCFG, names func(uint64) string) string {
	g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{convertFuncCFG(&cfg, names)}}
	return render.DOTCFG(g, cfg.Name)
}

// convertFuncCFG maps a disasm.FuncCFG to a lattice.FuncCFG.
func convertFuncCFG(dcfg *disasm.FuncCFG, names func(uint64) string) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}

		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    ds.Cond,
			})
		}

		for idx := db.Start; idx < db.End && idx < len(dcfg.Insts); idx++ {
			target := dcfg.Insts[idx].Call
			if target == 0 {
				continue
			}
			callee := ""
			if names != nil {
				callee = names(target)
			}
			if callee == "" {
				callee = fmt.Sprintf("0x%x", target)
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{
				Offset: idx,
				Callee: callee,
			})
		}

		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
