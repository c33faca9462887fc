// Package cover correlates executed translation blocks with statically
// disassembled basic blocks.
package cover

import "sort"

// Block is a basic block as reported by the disassembler.
type Block struct {
	Start uint64
	Size  uint64
}

// End returns the offset one past the last byte of the block.
func (b Block) End() uint64 { return b.Start + b.Size }

// Function is a disassembled function and its basic blocks.
// Block order is whatever the disassembler reported.
type Function struct {
	Offset uint64
	Name   string
	Blocks []Block
}

// Interval is an executed translation block range [Start, End] recorded by S2E.
// Start > End is tolerated.
type Interval struct {
	Start uint64
	End   uint64
}

// Set is a set of covered basic-block start offsets.
type Set map[uint64]struct{}

// NewSet returns a set holding the given offsets.
func NewSet(offsets ...uint64) Set {
	s := make(Set, len(offsets))
	for _, off := range offsets {
		s[off] = struct{}{}
	}
	return s
}

// Add marks off as covered.
func (s Set) Add(off uint64) { s[off] = struct{}{} }

// Has reports whether off is covered.
func (s Set) Has(off uint64) bool {
	_, ok := s[off]
	return ok
}

// Len returns the number of covered offsets.
func (s Set) Len() int { return len(s) }

// Sorted returns the covered offsets in ascending order.
func (s Set) Sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for off := range s {
		out = append(out, off)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Touches reports whether the translation block tb counts as executing b.
//
// The test is an inclusive "falls within" in either direction: the TB start
// lies in [b.Start, b.End], or the block start lies in [tb.Start, tb.End].
// It over-approximates at block boundaries: a TB ending exactly where the next
// block starts marks that block as well.
func Touches(b Block, tb Interval) bool {
	end := b.End()
	if b.Start <= tb.Start && tb.Start <= end {
		return true
	}
	return tb.Start <= b.Start && b.Start <= tb.End
}

// CoveredBlocks returns the start offsets of every basic block touched by at
// least one translation block. The cost is O(F×T×B); binaries analysed here
// have hundreds of functions, so no interval index is kept.
func CoveredBlocks(funcs []Function, tbs []Interval) Set {
	covered := make(Set)
	if len(tbs) == 0 {
		return covered
	}
	for _, fn := range funcs {
		for _, tb := range tbs {
			for _, b := range fn.Blocks {
				if Touches(b, tb) {
					covered.Add(b.Start)
				}
			}
		}
	}
	return covered
}

// Dedup returns the distinct intervals in tbs, sorted by start then end.
func Dedup(tbs []Interval) []Interval {
	seen := make(map[Interval]struct{}, len(tbs))
	out := make([]Interval, 0, len(tbs))
	for _, tb := range tbs {
		if _, ok := seen[tb]; ok {
			continue
		}
		seen[tb] = struct{}{}
		out = append(out, tb)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

// FuncSummary is the coverage of a single function.
type FuncSummary struct {
	Offset  uint64 `json:"offset"`
	Name    string `json:"name,omitempty"`
	Blocks  int    `json:"blocks"`
	Covered int    `json:"covered"`
}

// Percent returns the share of covered blocks, 0 for a function without blocks.
func (s FuncSummary) Percent() float64 {
	if s.Blocks == 0 {
		return 0
	}
	return float64(s.Covered) / float64(s.Blocks) * 100
}

// Summarize counts covered blocks per function, in function order.
func Summarize(funcs []Function, covered Set) []FuncSummary {
	out := make([]FuncSummary, 0, len(funcs))
	for _, fn := range funcs {
		s := FuncSummary{Offset: fn.Offset, Name: fn.Name, Blocks: len(fn.Blocks)}
		for _, b := range fn.Blocks {
			if covered.Has(b.Start) {
				s.Covered++
			}
		}
		out = append(out, s)
	}
	return out
}
