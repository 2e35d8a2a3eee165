package x86

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/tetratelabs/regloc/internal/asm"
)

// decode disassembles the whole code, failing the test on bytes which don't form a valid instruction.
func decode(t *testing.T, code []byte, arch asm.Arch) (ret []x86asm.Inst) {
	for offset := 0; offset < len(code); {
		inst, err := x86asm.Decode(code[offset:], int(arch))
		require.NoError(t, err, "offset %d of %x", offset, code)
		ret = append(ret, inst)
		offset += inst.Len
	}
	return
}

func decodedOps(insts []x86asm.Inst) (ret []x86asm.Op) {
	for _, inst := range insts {
		ret = append(ret, inst.Op)
	}
	return
}

func x86asmRegister(reg asm.Register, arch asm.Arch) x86asm.Reg {
	if arch == asm.Arch32 {
		return x86asm.EAX + x86asm.Reg(reg)
	}
	return x86asm.RAX + x86asm.Reg(reg)
}

func TestEncoder_decode(t *testing.T) {
	for _, tc := range []struct {
		inst     asm.Instruction
		exp      x86asm.Op
		// regWidth is the width of the register operand, the word size of the target if zero.
		regWidth asm.Arch
	}{
		{inst: MOV, exp: x86asm.MOV},
		{inst: MOV32, exp: x86asm.MOV, regWidth: asm.Arch32},
		{inst: ADD, exp: x86asm.ADD},
		{inst: SUB, exp: x86asm.SUB},
		{inst: AND, exp: x86asm.AND},
		{inst: OR, exp: x86asm.OR},
		{inst: XOR, exp: x86asm.XOR},
		{inst: CMP, exp: x86asm.CMP},
		{inst: CMP32, exp: x86asm.CMP, regWidth: asm.Arch32},
	} {
		tc := tc
		for _, arch := range []asm.Arch{asm.Arch32, asm.Arch64} {
			arch := arch
			regWidth := tc.regWidth
			if regWidth == 0 {
				regWidth = arch
			}
			t.Run(InstructionName(tc.inst)+"/"+arch.String(), func(t *testing.T) {
				regs := []asm.Register{RegAX, RegSP, RegBP, RegDI}
				if arch == asm.Arch64 {
					regs = append(regs, RegR8, RegR12, RegR13, RegR15)
				}
				for _, reg := range regs {
					for _, base := range regs {
						for _, disp := range []int64{0, -8, 0x1000} {
							loc := Mem(base, disp)

							e := newTestEncoder(t, arch)
							require.NoError(t, e.Encode(tc.inst, Reg(reg), loc))
							insts := decode(t, e.Bytes(), arch)
							require.Len(t, insts, 1)
							require.Equal(t, tc.exp, insts[0].Op)

							mem, ok := insts[0].Args[1].(x86asm.Mem)
							require.True(t, ok, insts[0].String())
							require.Equal(t, x86asmRegister(base, arch), mem.Base, insts[0].String())
							require.Equal(t, disp, mem.Disp, insts[0].String())
							require.Equal(t, x86asmRegister(reg, regWidth), insts[0].Args[0], insts[0].String())

							for _, imm := range []int64{1, -0x80, 0x1234} {
								e := newTestEncoder(t, arch)
								require.NoError(t, e.Encode(tc.inst, loc, Imm(imm)))
								insts := decode(t, e.Bytes(), arch)
								require.Len(t, insts, 1)
								require.Equal(t, tc.exp, insts[0].Op)
								require.Equal(t, x86asm.Imm(imm), insts[0].Args[1], insts[0].String())
							}
						}
					}
				}
			})
		}
	}
}

func TestEncoder_decode_materialization(t *testing.T) {
	disp := int64(testBaseAddress)
	for _, tc := range []struct {
		name   string
		encode func(e *Encoder) error
		exp    []x86asm.Op
	}{
		{
			name:   "absolute",
			encode: func(e *Encoder) error { return e.MOV(Reg(RegCX), Abs(testBaseAddress)) },
			exp:    []x86asm.Op{x86asm.MOV, x86asm.MOV},
		},
		{
			name:   "base and index",
			encode: func(e *Encoder) error { return e.CMP(Reg(RegCX), MemIndex(RegDX, RegSI, 2, disp)) },
			exp:    []x86asm.Op{x86asm.MOV, x86asm.LEA, x86asm.CMP},
		},
		{
			name:   "imm64 to memory",
			encode: func(e *Encoder) error { return e.MOV(MemIndex(RegDX, RegAX, 2, disp), Imm(0x0123456789abcdef)) },
			exp:    []x86asm.Op{x86asm.PUSH, x86asm.MOV, x86asm.MOV, x86asm.LEA, x86asm.MOV, x86asm.POP},
		},
		{
			name:   "ALU with imm64",
			encode: func(e *Encoder) error { return e.XOR(Reg(RegR15), Imm(0x0123456789abcdef)) },
			exp:    []x86asm.Op{x86asm.MOV, x86asm.XOR},
		},
		{
			name:   "ALU memory with imm64",
			encode: func(e *Encoder) error { return e.AND(Mem(RegR13, 0x10), Imm(0x0123456789abcdef)) },
			exp:    []x86asm.Op{x86asm.MOV, x86asm.AND},
		},
		{
			name:   "far call",
			encode: func(e *Encoder) error { return e.CALL(Imm(0x0123456789abcdef)) },
			exp:    []x86asm.Op{x86asm.MOV, x86asm.CALL},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEncoder(t, asm.Arch64)
			require.NoError(t, tc.encode(e))
			insts := decode(t, e.Bytes(), asm.Arch64)
			require.Equal(t, tc.exp, decodedOps(insts))
			// The 64-bit constant goes through the scratch register.
			require.NotEqual(t, -1, firstScratchLoad(insts))
		})
	}
}

// firstScratchLoad returns the index of the first "MOV R11, imm64".
func firstScratchLoad(insts []x86asm.Inst) int {
	for i, inst := range insts {
		if inst.Op == x86asm.MOV && inst.Args[0] == x86asm.R11 {
			return i
		}
	}
	return -1
}
