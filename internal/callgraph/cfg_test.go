package callgraph

import (
	"encoding/binary"
	"reflect"
	"strings"
	"testing"

	"github.com/gohoron/s2e2-gui/internal/cover"
	"github.com/gohoron/s2e2-gui/internal/disasm"
)

func arm64Func(words ...uint32) []disasm.Inst {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[4*i:], w)
	}
	return disasm.Disassemble(data, disasm.Options{Arch: disasm.ArchARM64, BaseAddr: 0x1000})
}

func TestBuildCFG_DOTOutput(t *testing.T) {
	// entry (B0):
	//   0x1000: MOV X0, #0
	//   0x1004: BL  0x1104       ; call "foo_init"
	//   0x1008: CBZ X0, 0x1018   ; conditional → B2
	//
	// true path (B1):
	//   0x100C: MOV X1, #1
	//   0x1010: BL  0x1210       ; call "bar_run"
	//   0x1014: B   0x1020       ; jump → B3
	//
	// false path (B2):
	//   0x1018: BL  0x1318       ; unnamed
	//   0x101C: RET
	//
	// join (B3):
	//   0x1020: RET
	insts := arm64Func(
		0xD2800000, 0x94000040, 0xB4000080,
		0xD2800021, 0x94000080, 0x14000003,
		0x940000C0, 0xD65F03C0,
		0xD65F03C0,
	)
	names := map[uint64]string{0x1104: "foo_init", 0x1210: "bar_run"}
	lookup := func(addr uint64) string { return names[addr] }

	cfg := BuildCFG([]disasm.FuncCFG{disasm.BuildCFG("handler", insts)}, lookup)

	if len(cfg.Funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(cfg.Funcs))
	}
	f := cfg.Funcs[0]
	if f.Name != "handler" {
		t.Errorf("func name = %q", f.Name)
	}
	if len(f.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(f.Blocks))
	}

	b0 := f.Blocks[0]
	if len(b0.Calls) != 1 || b0.Calls[0].Callee != "foo_init" {
		t.Errorf("B0 calls = %+v", b0.Calls)
	}
	if len(b0.Succs) != 2 {
		t.Errorf("B0 succs = %+v", b0.Succs)
	}

	b1 := f.Blocks[1]
	if len(b1.Calls) != 1 || b1.Calls[0].Callee != "bar_run" {
		t.Errorf("B1 calls = %+v", b1.Calls)
	}
	if len(b1.Succs) != 1 || b1.Succs[0].Cond != "" {
		t.Errorf("B1 succs = %+v", b1.Succs)
	}

	b2 := f.Blocks[2]
	if len(b2.Calls) != 1 || b2.Calls[0].Callee != "0x1318" {
		t.Errorf("B2 calls = %+v", b2.Calls)
	}
	if !b2.Term {
		t.Error("B2 should be terminal")
	}
	if !f.Blocks[3].Term {
		t.Error("B3 should be terminal")
	}

	dot := FuncCFGDOT(disasm.BuildCFG("handler", insts), lookup)
	if dot == "" {
		t.Error("expected non-empty DOT output")
	}
}

func TestBuildCallGraph_DOTOutput(t *testing.T) {
	funcs := []FuncInfo{
		{Offset: 0x1000, Name: "main", Calls: []uint64{0x2000, 0x3000}},
		{Offset: 0x2000, Name: "init", Calls: []uint64{0x4000}},
		{Offset: 0x3000, Name: "run", Calls: []uint64{0x4000, 0x9000, 0x4000}},
		{Offset: 0x4000},
	}

	cg := BuildCallGraph(funcs)

	if len(cg.Nodes) != 4 {
		t.Errorf("expected 4 nodes, got %d", len(cg.Nodes))
	}
	hasUnnamed := false
	for _, n := range cg.Nodes {
		if n == "sub_4000" {
			hasUnnamed = true
		}
	}
	if !hasUnnamed {
		t.Errorf("unnamed function not labelled sub_4000: %v", cg.Nodes)
	}
	found := false
	for _, e := range cg.Edges {
		if e.Caller == "run" && e.Callee == "sub_9000" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing edge to unknown target: %+v", cg.Edges)
	}

	dot := DOT(cg, "call graph")
	if !strings.Contains(dot, "main") {
		t.Errorf("DOT output missing node:\n%s", dot)
	}
}

func TestBuildCallGraph_DuplicateNames(t *testing.T) {
	// Two static helpers share a symbol name.
	funcs := []FuncInfo{
		{Offset: 0x1000, Name: "main", Calls: []uint64{0x2000, 0x3000}},
		{Offset: 0x2000, Name: "helper"},
		{Offset: 0x3000, Name: "helper", Calls: []uint64{0x2000}},
	}

	cg := BuildCallGraph(funcs)

	want := []string{"main", "helper@0x2000", "helper@0x3000"}
	if !reflect.DeepEqual(cg.Nodes, want) {
		t.Fatalf("nodes = %v, want %v", cg.Nodes, want)
	}
	edges := make(map[string]bool)
	for _, e := range cg.Edges {
		edges[e.Caller+" -> "+e.Callee] = true
	}
	for _, e := range []string{
		"main -> helper@0x2000",
		"main -> helper@0x3000",
		"helper@0x3000 -> helper@0x2000",
	} {
		if !edges[e] {
			t.Errorf("missing edge %s in %+v", e, cg.Edges)
		}
	}
	if len(cg.Edges) != 3 {
		t.Errorf("edges = %d, want 3", len(cg.Edges))
	}
}

func TestExecuted(t *testing.T) {
	funcs := []FuncInfo{
		{Offset: 0x1000, Name: "main", Calls: []uint64{0x2000, 0x3000}},
		{Offset: 0x2000, Name: "init"},
		{Offset: 0x3000, Name: "never", Calls: []uint64{0x2000}},
	}
	summaries := []cover.FuncSummary{
		{Offset: 0x1000, Blocks: 3, Covered: 2},
		{Offset: 0x2000, Blocks: 1, Covered: 1},
		{Offset: 0x3000, Blocks: 4},
	}
	got := Executed(funcs, summaries)
	want := []FuncInfo{
		{Offset: 0x1000, Name: "main", Calls: []uint64{0x2000}},
		{Offset: 0x2000, Name: "init"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

type callService struct {
	calls map[uint64][]uint64
}

func (s callService) FunctionOffsets() ([]uint64, error) { return nil, nil }
func (s callService) BasicBlocks(fn uint64) ([]cover.Block, error) { return nil, nil }
func (s callService) Graph(fn uint64) (*disasm.Graph, error) { return nil, disasm.ErrGraphCount }
func (s callService) CallTargets(fn uint64) ([]uint64, error) { return s.calls[fn], nil }

func TestCollect(t *testing.T) {
	funcs := []cover.Function{{Offset: 0x1000, Name: "main"}, {Offset: 0x2000, Name: "helper"}}
	svc := callService{calls: map[uint64][]uint64{0x1000: {0x2000}}}

	got := Collect(svc, funcs)
	if len(got) != 2 || !reflect.DeepEqual(got[0].Calls, []uint64{0x2000}) || got[1].Calls != nil {
		t.Errorf("Collect = %+v", got)
	}
}
