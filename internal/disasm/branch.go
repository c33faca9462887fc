package disasm

import "golang.org/x/arch/x86/x86asm"

// Branch detection for block terminators. ARM64 works on raw 32-bit encodings,
// x86 on decoded x86asm instructions. Calls are not terminators.

// BranchInfo describes a decoded branch instruction.
type BranchInfo struct {
	Target   uint64 // absolute target address (0 if RET or indirect)
	Cond     bool   // true if conditional (has fallthrough)
	IsRet    bool   // true if RET (or another instruction that leaves the function)
	Indirect bool   // true if the target is computed at run time
}

// DecodeBranch attempts to decode an ARM64 branch instruction from raw encoding at the given PC.
// Returns nil if the instruction is not a branch/ret.
func DecodeBranch(raw uint32, pc uint64) *BranchInfo {
	// RET (0xD65F03C0 exactly, or RET Xn = 0xD65F0000 | Rn<<5)
	if raw&0xFFFFFC1F == 0xD65F0000 {
		return &BranchInfo{IsRet: true}
	}

	// BR Xn
	if raw&0xFFFFFC1F == 0xD61F0000 {
		return &BranchInfo{Indirect: true}
	}

	// B (unconditional): 000101 imm26
	if raw&0xFC000000 == 0x14000000 {
		imm26 := raw & 0x03FFFFFF
		offset := signExtend(imm26, 26) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset))}
	}

	// B.cond: 01010100 imm19 0 cond
	if raw&0xFF000010 == 0x54000000 {
		imm19 := (raw >> 5) & 0x7FFFF
		offset := signExtend(imm19, 19) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset)), Cond: true}
	}

	// CBZ / CBNZ: 0 sf 11010x imm19 Rt
	if raw&0x7E000000 == 0x34000000 {
		imm19 := (raw >> 5) & 0x7FFFF
		offset := signExtend(imm19, 19) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset)), Cond: true}
	}

	// TBZ / TBNZ: 0 b5 11011x b40 imm14 Rt
	if raw&0x7E000000 == 0x36000000 {
		imm14 := (raw >> 5) & 0x3FFF
		offset := signExtend(imm14, 14) * 4
		return &BranchInfo{Target: uint64(int64(pc) + int64(offset)), Cond: true}
	}

	return nil
}

// decodeBL returns the target of an ARM64 BL, or 0.
// Encoding: 1 | 00101 | imm26
func decodeBL(raw uint32, pc uint64) uint64 {
	if raw&0xFC000000 != 0x94000000 {
		return 0
	}
	offset := signExtend(raw&0x03FFFFFF, 26) * 4
	return uint64(int64(pc) + int64(offset))
}

// signExtend sign-extends a value from the given bit width to int32.
func signExtend(val uint32, bits int) int32 {
	sign := uint32(1) << (bits - 1)
	mask := sign - 1
	if val&sign != 0 {
		return int32(val | ^mask) // negative
	}
	return int32(val & mask)
}

// IsBranchTerminator returns true if the ARM64 instruction terminates a basic block.
// This includes all branches (B, B.cond, CBZ, CBNZ, TBZ, TBNZ, BR, RET) but NOT BL/BLR
// (calls return to the next instruction).
func IsBranchTerminator(raw uint32) bool {
	return DecodeBranch(raw, 0) != nil
}

var x86CondJumps = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JCXZ: true, x86asm.JE: true, x86asm.JECXZ: true, x86asm.JG: true,
	x86asm.JGE: true, x86asm.JL: true, x86asm.JLE: true, x86asm.JNE: true,
	x86asm.JNO: true, x86asm.JNP: true, x86asm.JNS: true, x86asm.JO: true,
	x86asm.JP: true, x86asm.JRCXZ: true, x86asm.JS: true,
	x86asm.LOOP: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

// relTarget returns the absolute target of a relative first operand.
func relTarget(inst x86asm.Inst, pc uint64) (uint64, bool) {
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return uint64(int64(pc) + int64(inst.Len) + int64(rel)), true
}

func decodeX86Branch(inst x86asm.Inst, pc uint64) *BranchInfo {
	switch inst.Op {
	case x86asm.RET, x86asm.LRET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ,
		x86asm.HLT, x86asm.UD2:
		return &BranchInfo{IsRet: true}
	case x86asm.JMP:
		if target, ok := relTarget(inst, pc); ok {
			return &BranchInfo{Target: target}
		}
		return &BranchInfo{Indirect: true}
	case x86asm.LJMP:
		return &BranchInfo{Indirect: true}
	}
	if x86CondJumps[inst.Op] {
		target, _ := relTarget(inst, pc)
		return &BranchInfo{Target: target, Cond: true}
	}
	return nil
}

func decodeX86Call(inst x86asm.Inst, pc uint64) uint64 {
	if inst.Op != x86asm.CALL {
		return 0
	}
	target, _ := relTarget(inst, pc)
	return target
}
