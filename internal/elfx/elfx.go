// Package elfx provides ELF loading helpers for S2E guest binaries.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	ErrNotELF       = errors.New("elfx: not an ELF file")
	ErrUnsupported  = errors.New("elfx: unsupported machine")
	ErrNoSegment    = errors.New("elfx: no PT_LOAD segment covers address")
	ErrSymbolNoSize = errors.New("elfx: symbol has zero size")
)

// File wraps a debug/elf.File with convenience methods for code analysis.
type File struct {
	ELF  *elf.File
	raw  io.ReaderAt
	size int64
	c    io.Closer
}

// Func is a function symbol located in an executable section.
type Func struct {
	Name string
	Addr uint64
	Size uint64
}

// Open opens an ELF file and validates it targets x86, x86-64 or ARM64.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	switch ef.Machine {
	case elf.EM_X86_64, elf.EM_386, elf.EM_AARCH64:
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ef.Machine)
	}

	return &File{ELF: ef, raw: f, size: info.Size(), c: f}, nil
}

// Close releases resources.
func (f *File) Close() error {
	return f.c.Close()
}

// FileSize returns the size of the underlying file.
func (f *File) FileSize() int64 { return f.size }

// Machine returns the ELF machine type.
func (f *File) Machine() elf.Machine { return f.ELF.Machine }

// Entry returns the program entry point.
func (f *File) Entry() uint64 { return f.ELF.Entry }

// Functions returns the sized STT_FUNC symbols of .symtab and .dynsym that
// live in executable sections, sorted by address and unique by address.
func (f *File) Functions() []Func {
	var syms []elf.Symbol
	if s, err := f.ELF.Symbols(); err == nil {
		syms = append(syms, s...)
	}
	if s, err := f.ELF.DynamicSymbols(); err == nil {
		syms = append(syms, s...)
	}

	byAddr := make(map[uint64]Func)
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Size == 0 || s.Value == 0 {
			continue
		}
		if !f.isExec(s.Section) {
			continue
		}
		if prev, ok := byAddr[s.Value]; ok && prev.Name != "" {
			continue
		}
		byAddr[s.Value] = Func{Name: s.Name, Addr: s.Value, Size: s.Size}
	}

	out := make([]Func, 0, len(byAddr))
	for _, fn := range byAddr {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func (f *File) isExec(idx elf.SectionIndex) bool {
	if idx == elf.SHN_UNDEF || int(idx) >= len(f.ELF.Sections) {
		return false
	}
	return f.ELF.Sections[idx].Flags&elf.SHF_EXECINSTR != 0
}

// ExecSectionEnd returns the end address of the executable section holding va.
func (f *File) ExecSectionEnd(va uint64) (uint64, bool) {
	for _, s := range f.ELF.Sections {
		if s.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		if va >= s.Addr && va < s.Addr+s.Size {
			return s.Addr + s.Size, true
		}
	}
	return 0, false
}

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Filesz {
			offset := va - p.Vaddr + p.Off
			if offset >= uint64(f.size) {
				return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
			}
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// ReadBytesAtVA reads n bytes starting at the given virtual address.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	off, err := f.VAToFileOffset(va)
	if err != nil {
		return nil, err
	}
	// Clamp to file size.
	avail := f.size - int64(off)
	if avail <= 0 {
		return nil, fmt.Errorf("elfx: offset 0x%x at or past end of file", off)
	}
	if int64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	_, err = f.raw.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf, nil
}

// ReadFunc reads the code bytes of fn.
func (f *File) ReadFunc(fn Func) ([]byte, error) {
	if fn.Size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNoSize, fn.Name)
	}
	return f.ReadBytesAtVA(fn.Addr, int(fn.Size))
}
