package render

import (
	"github.com/emicklei/dot"

	"github.com/gohoron/s2e2-gui/internal/cover"
	"github.com/gohoron/s2e2-gui/internal/disasm"
)

// Annotate marks the nodes of g whose label is a covered offset.
// Nodes with non-hex labels are left untouched. Returns the number of
// covered nodes.
func Annotate(g *disasm.Graph, covered cover.Set) int {
	marked := 0
	for i := range g.Nodes {
		off, ok := ParseNodeOffset(g.Nodes[i].Label)
		if !ok {
			continue
		}
		g.Nodes[i].Covered = covered.Has(off)
		if g.Nodes[i].Covered {
			marked++
		}
	}
	return marked
}

// CFGDOT renders a per-function basic-block CFG as DOT.
// Each node is labelled with its block offset; covered blocks are filled
// with t.CoveredFill. Conditional edges use T/F colors.
func CFGDOT(g *disasm.Graph, t Theme) string {
	dg := dot.NewGraph(dot.Directed)
	dg.Attr("rankdir", "TB")
	dg.Attr("nodesep", "0.3")
	dg.Attr("ranksep", "0.4")
	dg.Attr("bgcolor", t.Background)
	dg.Attr("labelloc", "t")
	dg.Attr("labeljust", "l")
	dg.Attr("fontname", "Helvetica")
	dg.Attr("fontsize", "10")
	if g.Name != "" {
		dg.Attr("label", truncLabel(g.Name, 80))
	}

	nodes := make(map[string]dot.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		fill := t.NodeFill
		if n.Term {
			fill = t.TermFill
		}
		if n.Covered {
			fill = t.CoveredFill
		}
		dn := dg.Node(n.Label).Box().
			Attr("style", "filled").
			Attr("fillcolor", fill).
			Attr("color", t.NodeBorder).
			Attr("fontcolor", t.TextColor).
			Attr("fontname", "Courier").
			Attr("fontsize", "9").
			Attr("penwidth", "0.5")
		if n.Entry {
			dn.Attr("penwidth", "1.5").Attr("color", t.EntryBorder)
		}
		nodes[n.Label] = dn
	}

	for _, e := range g.Edges {
		from, ok := nodes[e.From]
		if !ok {
			continue
		}
		to, ok := nodes[e.To]
		if !ok {
			// Target lies outside the function.
			continue
		}
		de := dg.Edge(from, to).Attr("arrowsize", "0.5").Attr("penwidth", "0.7")
		switch e.Cond {
		case "T":
			de.Attr("color", t.EdgeTaken).Attr("label", "T").Attr("fontcolor", t.EdgeTaken)
		case "F":
			de.Attr("color", t.EdgeFallthrough).Attr("label", "F").Attr("fontcolor", t.EdgeFallthrough)
		default:
			de.Attr("color", t.EdgeDirect)
		}
	}

	return dg.String()
}
