package disasm

import (
	"errors"
	"fmt"

	"github.com/apex/log"

	"github.com/gohoron/s2e2-gui/internal/cover"
)

var (
	ErrGraphCount      = errors.New("disasm: expected exactly one graph")
	ErrUnknownFunction = errors.New("disasm: unknown function")
)

// Service is a disassembler able to enumerate functions and describe their
// control flow graphs.
type Service interface {
	FunctionOffsets() ([]uint64, error)
	// BasicBlocks returns the blocks of the single graph describing fn.
	// A query yielding zero or several graphs fails with ErrGraphCount.
	BasicBlocks(fn uint64) ([]cover.Block, error)
	Graph(fn uint64) (*Graph, error)
}

// Namer is implemented by services that know function names.
type Namer interface {
	FunctionName(fn uint64) string
}

// Caller is implemented by services that can list the direct call targets
// of a function.
type Caller interface {
	CallTargets(fn uint64) ([]uint64, error)
}

// FunctionName returns the symbolic name of fn, or sub_<hex> if unknown.
func FunctionName(svc Service, fn uint64) string {
	if n, ok := svc.(Namer); ok {
		if name := n.FunctionName(fn); name != "" {
			return name
		}
	}
	return fmt.Sprintf("sub_%x", fn)
}

// Functions collects every function and its blocks from svc.
// A function whose blocks cannot be obtained is logged and skipped; the
// returned count tells how many were dropped.
func Functions(svc Service) ([]cover.Function, int, error) {
	offsets, err := svc.FunctionOffsets()
	if err != nil {
		return nil, 0, fmt.Errorf("disasm: list functions: %w", err)
	}

	funcs := make([]cover.Function, 0, len(offsets))
	skipped := 0
	for _, off := range offsets {
		blocks, err := svc.BasicBlocks(off)
		if err != nil {
			log.WithField("func", fmt.Sprintf("0x%x", off)).Warnf("skipping function: %v", err)
			skipped++
			continue
		}
		funcs = append(funcs, cover.Function{
			Offset: off,
			Name:   FunctionName(svc, off),
			Blocks: blocks,
		})
	}
	return funcs, skipped, nil
}
