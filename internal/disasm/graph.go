package disasm

import "fmt"

// Node is a graph node. Label is normally the block start offset in hex,
// possibly quoted; synthetic nodes (entry, exit) carry other labels.
type Node struct {
	Label   string
	Covered bool
	Entry   bool
	Term    bool
}

// Edge is a directed control-flow edge between node labels.
type Edge struct {
	From string
	To   string
	Cond string // "", "T" or "F"
}

// Graph is the control-flow graph description of one function.
type Graph struct {
	Name  string
	Nodes []Node
	Edges []Edge
}

// BlockLabel is the node label used for a block starting at addr.
func BlockLabel(addr uint64) string { return fmt.Sprintf("0x%x", addr) }

// GraphFromCFG converts a CFG to its graph description.
func GraphFromCFG(cfg FuncCFG) *Graph {
	g := &Graph{Name: cfg.Name}
	labels := make([]string, len(cfg.Blocks))
	for i, blk := range cfg.Blocks {
		start, _ := cfg.BlockAddr(blk)
		labels[i] = BlockLabel(start)
		g.Nodes = append(g.Nodes, Node{
			Label: labels[i],
			Entry: blk.IsEntry,
			Term:  blk.IsTerm,
		})
	}
	for _, blk := range cfg.Blocks {
		for _, s := range blk.Succs {
			g.Edges = append(g.Edges, Edge{From: labels[blk.ID], To: labels[s.BlockID], Cond: s.Cond})
		}
	}
	return g
}
