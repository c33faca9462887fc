package callgraph

import (
	"fmt"

	"github.com/apex/log"
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"github.com/gohoron/s2e2-gui/internal/cover"
	"github.com/gohoron/s2e2-gui/internal/disasm"
)

// FuncInfo holds the data needed to place one function in the call graph.
type FuncInfo struct {
	Offset uint64
	Name   string
	Calls  []uint64 // direct call targets
}

// Collect gathers the call targets of funcs from svc. When svc cannot list
// calls every function is returned without edges.
func Collect(svc disasm.Service, funcs []cover.Function) []FuncInfo {
	caller, _ := svc.(disasm.Caller)
	out := make([]FuncInfo, 0, len(funcs))
	for _, fn := range funcs {
		fi := FuncInfo{Offset: fn.Offset, Name: fn.Name}
		if caller != nil {
			calls, err := caller.CallTargets(fn.Offset)
			if err != nil {
				log.WithField("func", fmt.Sprintf("0x%x", fn.Offset)).Warnf("call targets: %v", err)
			}
			fi.Calls = calls
		}
		out = append(out, fi)
	}
	return out
}

// BuildCallGraph constructs a lattice.Graph from funcs.
// Each function becomes a node. Calls into a known function are labelled with
// its name; other targets are labelled sub_<hex>. A name shared by functions
// at different offsets gets an @0x<hex> suffix so each stays its own node.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	offsets := make(map[string]map[uint64]bool)
	for _, f := range funcs {
		n := nodeName(f)
		if offsets[n] == nil {
			offsets[n] = make(map[uint64]bool)
		}
		offsets[n][f.Offset] = true
	}
	names := make(map[uint64]string, len(funcs))
	for _, f := range funcs {
		n := nodeName(f)
		if len(offsets[n]) > 1 {
			n = fmt.Sprintf("%s@0x%x", n, f.Offset)
		}
		names[f.Offset] = n
	}

	g := &lattice.Graph{}
	for _, f := range funcs {
		caller := names[f.Offset]
		g.Nodes = append(g.Nodes, caller)
		for _, target := range f.Calls {
			callee, ok := names[target]
			if !ok {
				callee = fmt.Sprintf("sub_%x", target)
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: caller,
				Callee: callee,
			})
		}
	}
	g.Dedup()
	return g
}

// Executed keeps the functions with at least one covered block, and only
// their calls into other executed functions.
func Executed(funcs []FuncInfo, summaries []cover.FuncSummary) []FuncInfo {
	ran := make(map[uint64]bool)
	for _, s := range summaries {
		if s.Covered > 0 {
			ran[s.Offset] = true
		}
	}

	var out []FuncInfo
	for _, f := range funcs {
		if !ran[f.Offset] {
			continue
		}
		kept := FuncInfo{Offset: f.Offset, Name: f.Name}
		for _, c := range f.Calls {
			if ran[c] {
				kept.Calls = append(kept.Calls, c)
			}
		}
		out = append(out, kept)
	}
	return out
}

// DOT renders the call graph.
func DOT(g *lattice.Graph, title string) string {
	return render.DOT(g, title)
}

func nodeName(f FuncInfo) string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("sub_%x", f.Offset)
}
