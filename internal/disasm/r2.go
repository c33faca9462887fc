package disasm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/gohoron/s2e2-gui/internal/cover"
)

// R2 drives radare2 over the r2pipe protocol: commands are written one per
// line to stdin and every reply is terminated by a NUL byte.
type R2 struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	in    io.WriteCloser
	out   *bufio.Reader
	names map[uint64]string
}

var (
	_ Service = (*R2)(nil)
	_ Caller  = (*R2)(nil)
)

// OpenR2 starts radare2 on path and runs the full auto-analysis.
func OpenR2(ctx context.Context, r2Bin, path string) (*R2, error) {
	if r2Bin == "" {
		r2Bin = "r2"
	}
	cmd := exec.CommandContext(ctx, r2Bin, "-q0", "-e", "scr.color=0", path)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("disasm: r2 stdin: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("disasm: r2 stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("disasm: start r2: %w", err)
	}

	r := &R2{cmd: cmd, in: in, out: bufio.NewReader(out)}
	// r2 announces readiness with a NUL byte.
	if _, err := r.out.ReadBytes(0); err != nil {
		r.Close()
		return nil, fmt.Errorf("disasm: r2 handshake: %w", err)
	}
	if _, err := r.Cmd("aaa"); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Cmd runs one r2 command and returns its output.
func (r *R2) Cmd(c string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.in, c+"\n"); err != nil {
		return nil, fmt.Errorf("disasm: r2 %q: %w", c, err)
	}
	reply, err := r.out.ReadBytes(0)
	if err != nil {
		return nil, fmt.Errorf("disasm: r2 %q: %w", c, err)
	}
	return reply[:len(reply)-1], nil
}

// Close quits radare2 and waits for it.
func (r *R2) Close() error {
	io.WriteString(r.in, "q!\n")
	r.in.Close()
	return r.cmd.Wait()
}

func (r *R2) FunctionOffsets() ([]uint64, error) {
	out, err := r.Cmd("aflqj")
	if err != nil {
		return nil, err
	}
	return ParseR2Offsets(out)
}

func (r *R2) graph(fn uint64) (*r2Func, error) {
	out, err := r.Cmd(fmt.Sprintf("agj 0x%x", fn))
	if err != nil {
		return nil, err
	}
	f, err := parseR2Func(out)
	if err != nil {
		return nil, fmt.Errorf("0x%x: %w", fn, err)
	}
	r.mu.Lock()
	if r.names == nil {
		r.names = make(map[uint64]string)
	}
	r.names[fn] = f.Name
	r.mu.Unlock()
	return f, nil
}

func (r *R2) BasicBlocks(fn uint64) ([]cover.Block, error) {
	f, err := r.graph(fn)
	if err != nil {
		return nil, err
	}
	return f.coverBlocks(), nil
}

func (r *R2) Graph(fn uint64) (*Graph, error) {
	f, err := r.graph(fn)
	if err != nil {
		return nil, err
	}
	return f.toGraph(), nil
}

func (r *R2) FunctionName(fn uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[fn]
}

// CallTargets lists the call references made from fn.
func (r *R2) CallTargets(fn uint64) ([]uint64, error) {
	out, err := r.Cmd(fmt.Sprintf("axffj @ 0x%x", fn))
	if err != nil {
		return nil, err
	}
	return ParseR2Calls(out)
}

type r2Ref struct {
	Type string `json:"type"`
	At   uint64 `json:"at"`
	Ref  uint64 `json:"ref"`
}

// ParseR2Calls decodes axffj output and returns the distinct call targets in
// the order they appear.
func ParseR2Calls(data []byte) ([]uint64, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var refs []r2Ref
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("disasm: axffj: %w", err)
	}
	seen := make(map[uint64]bool)
	var out []uint64
	for _, ref := range refs {
		if !strings.EqualFold(ref.Type, "CALL") && !strings.EqualFold(ref.Type, "C") {
			continue
		}
		if seen[ref.Ref] {
			continue
		}
		seen[ref.Ref] = true
		out = append(out, ref.Ref)
	}
	return out, nil
}

type r2Block struct {
	Offset uint64  `json:"offset"`
	Size   uint64  `json:"size"`
	Jump   *uint64 `json:"jump"`
	Fail   *uint64 `json:"fail"`
}

type r2Func struct {
	Name   string    `json:"name"`
	Offset uint64    `json:"offset"`
	Blocks []r2Block `json:"blocks"`
}

// ParseR2Offsets decodes aflqj output. Offsets are JSON numbers or hex strings
// depending on the radare2 version.
func ParseR2Offsets(data []byte) ([]uint64, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("disasm: aflqj: %w", err)
	}
	out := make([]uint64, 0, len(raw))
	for _, m := range raw {
		var n uint64
		if err := json.Unmarshal(m, &n); err == nil {
			out = append(out, n)
			continue
		}
		var s string
		if err := json.Unmarshal(m, &s); err != nil {
			return nil, fmt.Errorf("disasm: aflqj entry %s: %w", m, err)
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("disasm: aflqj entry %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseR2Func(data []byte) (*r2Func, error) {
	var graphs []r2Func
	if err := json.Unmarshal(data, &graphs); err != nil {
		return nil, fmt.Errorf("disasm: agj: %w", err)
	}
	if len(graphs) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrGraphCount, len(graphs))
	}
	return &graphs[0], nil
}

// ParseR2Graph decodes agj output into a graph description.
func ParseR2Graph(data []byte) (*Graph, error) {
	f, err := parseR2Func(data)
	if err != nil {
		return nil, err
	}
	return f.toGraph(), nil
}

func (f *r2Func) coverBlocks() []cover.Block {
	out := make([]cover.Block, 0, len(f.Blocks))
	for _, b := range f.Blocks {
		out = append(out, cover.Block{Start: b.Offset, Size: b.Size})
	}
	return out
}

func (f *r2Func) toGraph() *Graph {
	g := &Graph{Name: f.Name}
	for _, b := range f.Blocks {
		g.Nodes = append(g.Nodes, Node{
			Label: BlockLabel(b.Offset),
			Entry: b.Offset == f.Offset,
			Term:  b.Jump == nil && b.Fail == nil,
		})
		from := BlockLabel(b.Offset)
		switch {
		case b.Jump != nil && b.Fail != nil:
			g.Edges = append(g.Edges,
				Edge{From: from, To: BlockLabel(*b.Jump), Cond: "T"},
				Edge{From: from, To: BlockLabel(*b.Fail), Cond: "F"})
		case b.Jump != nil:
			g.Edges = append(g.Edges, Edge{From: from, To: BlockLabel(*b.Jump)})
		}
	}
	return g
}
