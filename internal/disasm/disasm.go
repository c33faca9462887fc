// Package disasm provides x86, x86-64 and ARM64 disassembly and per-function
// control flow graphs for S2E guest binaries.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Arch selects the instruction decoder.
type Arch int

const (
	ArchX86_64 Arch = iota
	ArchX86
	ArchARM64
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86_64"
	case ArchX86:
		return "i386"
	case ArchARM64:
		return "arm64"
	}
	return fmt.Sprintf("arch(%d)", int(a))
}

// Inst is a decoded instruction with address and control flow facts.
type Inst struct {
	Addr   uint64
	Size   int
	Raw    uint32 // ARM64 encoding; 0 on x86
	Text   string // full disassembly line
	Branch *BranchInfo
	Call   uint64 // direct call target, 0 if none
}

// End returns the address one past the instruction.
func (i Inst) End() uint64 { return i.Addr + uint64(i.Size) }

// Options controls disassembly behavior.
type Options struct {
	Arch     Arch
	BaseAddr uint64 // VA of the first byte in Data
	MaxSteps int    // maximum instructions to decode; 0 = 10M
}

const defaultMaxSteps = 10_000_000

func (o Options) effectiveMax() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return defaultMaxSteps
}

// Disassemble decodes instructions from a byte region.
// Returns decoded instructions up to MaxSteps or end of data.
func Disassemble(data []byte, opts Options) []Inst {
	if opts.Arch == ArchARM64 {
		return disassembleARM64(data, opts)
	}
	return disassembleX86(data, opts)
}

func disassembleARM64(data []byte, opts Options) []Inst {
	maxSteps := opts.effectiveMax()
	n := len(data) / 4
	if n > maxSteps {
		n = maxSteps
	}

	result := make([]Inst, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		raw := binary.LittleEndian.Uint32(data[off : off+4])
		addr := opts.BaseAddr + uint64(off)

		text := fmt.Sprintf(".word 0x%08x", raw)
		if inst, err := arm64asm.Decode(data[off : off+4]); err == nil {
			text = inst.String()
		}

		result = append(result, Inst{
			Addr:   addr,
			Raw:    raw,
			Size:   4,
			Text:   text,
			Branch: DecodeBranch(raw, addr),
			Call:   decodeBL(raw, addr),
		})
	}
	return result
}

func disassembleX86(data []byte, opts Options) []Inst {
	mode := 64
	if opts.Arch == ArchX86 {
		mode = 32
	}
	maxSteps := opts.effectiveMax()

	var result []Inst
	for off := 0; off < len(data) && len(result) < maxSteps; {
		addr := opts.BaseAddr + uint64(off)
		inst, err := x86asm.Decode(data[off:], mode)
		if err != nil || inst.Len == 0 || inst.Op == 0 {
			// Undecodable byte, or a prefix with no opcode after it: emit it
			// alone and resync on the next one.
			result = append(result, Inst{
				Addr: addr,
				Size: 1,
				Text: fmt.Sprintf(".byte 0x%02x", data[off]),
			})
			off++
			continue
		}
		result = append(result, Inst{
			Addr:   addr,
			Size:   inst.Len,
			Text:   strings.ToLower(x86asm.IntelSyntax(inst, addr, nil)),
			Branch: decodeX86Branch(inst, addr),
			Call:   decodeX86Call(inst, addr),
		})
		off += inst.Len
	}
	return result
}

// Format renders a slice of instructions as stable text output.
// Each line: <addr>  <disasm>
func Format(insts []Inst) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%08x  %s\n", inst.Addr, inst.Text)
	}
	return b.String()
}
