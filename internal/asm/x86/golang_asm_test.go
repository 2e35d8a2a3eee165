package x86

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj"
	gox86 "github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/tetratelabs/regloc/internal/asm"
	"github.com/tetratelabs/regloc/internal/asm/golang_asm"
)

var (
	testIntRegisters = []asm.Register{RegAX, RegCX, RegSP, RegBP, RegSI, RegR8, RegR12, RegR13, RegR15}
	testBaseRegs     = []asm.Register{RegAX, RegSP, RegBP, RegR9, RegR12, RegR13}
	testIndexRegs    = []asm.Register{asm.NilRegister, RegCX, RegBP, RegR9, RegR13}
	testDisps        = []int64{0, 1, -1, 0x7f, 0x80, -0x80, -0x81, 0x7fff_ffff, -0x8000_0000}
)

func goasmAssemble(t *testing.T, add func(a *golang_asm.Assembler)) []byte {
	a, err := golang_asm.NewAssembler()
	require.NoError(t, err)
	add(a)
	return a.Assemble()
}

func TestEncoder_registerToRegister_golangAsm(t *testing.T) {
	for _, tc := range []struct {
		inst   asm.Instruction
		goasmI obj.As
	}{
		{inst: MOV, goasmI: gox86.AMOVQ},
		{inst: MOV32, goasmI: gox86.AMOVL},
		{inst: ADD, goasmI: gox86.AADDQ},
		{inst: AND, goasmI: gox86.AANDQ},
	} {
		tc := tc
		t.Run(InstructionName(tc.inst), func(t *testing.T) {
			for _, src := range testIntRegisters {
				for _, dst := range testIntRegisters {
					src, dst := src, dst
					t.Run(RegisterName(src)+"->"+RegisterName(dst), func(t *testing.T) {
						exp := goasmAssemble(t, func(a *golang_asm.Assembler) {
							// Go assembler puts the source first.
							a.RegisterToRegister(tc.goasmI, src, dst)
						})

						e := newTestEncoder(t, asm.Arch64)
						require.NoError(t, e.Encode(tc.inst, Reg(dst), Reg(src)))
						require.Equal(t, exp, e.Bytes())
					})
				}
			}
		})
	}
}

func TestEncoder_memory_golangAsm(t *testing.T) {
	for _, tc := range []struct {
		inst       asm.Instruction
		goasmI     obj.As
		toRegister bool
		toMemory   bool
	}{
		{inst: MOV, goasmI: gox86.AMOVQ, toRegister: true, toMemory: true},
		{inst: MOV32, goasmI: gox86.AMOVL, toRegister: true, toMemory: true},
		{inst: ADD, goasmI: gox86.AADDQ, toRegister: true},
		{inst: LEA, goasmI: gox86.ALEAQ, toRegister: true},
	} {
		tc := tc
		t.Run(InstructionName(tc.inst), func(t *testing.T) {
			for _, base := range testBaseRegs {
				for _, index := range testIndexRegs {
					for _, disp := range testDisps {
						for scale := byte(0); scale < 4; scale++ {
							if index == asm.NilRegister && scale != 0 {
								continue
							}
							m := golang_asm.Mem{Base: base, Index: index, Scale: scale, Disp: disp}
							loc := MemIndex(base, index, scale, disp)
							reg := RegDX
							if tc.toRegister {
								exp := goasmAssemble(t, func(a *golang_asm.Assembler) {
									a.MemoryToRegister(tc.goasmI, m, reg)
								})
								e := newTestEncoder(t, asm.Arch64)
								require.NoError(t, e.Encode(tc.inst, Reg(reg), loc))
								require.Equal(t, exp, e.Bytes(), "%s %s, %s", InstructionName(tc.inst), RegisterName(reg), loc)
							}
							if tc.toMemory {
								exp := goasmAssemble(t, func(a *golang_asm.Assembler) {
									a.RegisterToMemory(tc.goasmI, reg, m)
								})
								e := newTestEncoder(t, asm.Arch64)
								require.NoError(t, e.Encode(tc.inst, loc, Reg(reg)))
								require.Equal(t, exp, e.Bytes(), "%s %s, %s", InstructionName(tc.inst), loc, RegisterName(reg))
							}
						}
					}
				}
			}
		})
	}
}

func TestEncoder_PUSH_POP_golangAsm(t *testing.T) {
	for _, reg := range testIntRegisters {
		reg := reg
		t.Run(RegisterName(reg), func(t *testing.T) {
			exp := goasmAssemble(t, func(a *golang_asm.Assembler) {
				a.Register(gox86.APUSHQ, reg)
				a.Register(gox86.APOPQ, reg)
			})
			e := newTestEncoder(t, asm.Arch64)
			require.NoError(t, e.PUSH(Reg(reg)))
			require.NoError(t, e.POP(Reg(reg)))
			require.Equal(t, exp, e.Bytes())
		})
	}
}
