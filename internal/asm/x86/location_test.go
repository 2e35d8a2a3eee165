package x86

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/regloc/internal/asm"
)

func TestLocation_String(t *testing.T) {
	for _, tc := range []struct {
		in  Location
		exp string
	}{
		{in: Reg(RegR13), exp: "R13"},
		{in: Imm(100), exp: "$0x64"},
		{in: Imm(-1), exp: "$-0x1"},
		{in: Stack(-16), exp: "stack(-16)"},
		{in: Mem(RegAX, 0), exp: "[AX]"},
		{in: Mem(RegAX, 100), exp: "[AX + 0x64]"},
		{in: Mem(RegBP, -8), exp: "[BP - 0x8]"},
		{in: MemIndex(RegAX, RegR11, 3, 100), exp: "[AX + R11*8 + 0x64]"},
		{in: MemIndex(asm.NilRegister, RegSI, 1, 0), exp: "[SI*2]"},
		{in: Abs(0xFEDCBA9876543210), exp: "[0xfedcba9876543210]"},
		{in: Location{}, exp: "invalid"},
	} {
		tc := tc
		t.Run(tc.exp, func(t *testing.T) {
			require.Equal(t, tc.exp, tc.in.String())
		})
	}
}

func TestLocation_Address(t *testing.T) {
	require.Equal(t, Address{Base: FramePointer, Index: asm.NilRegister, Disp: 24}, Stack(24).Address())
	require.Equal(t, Address{Base: RegBX, Index: RegCX, Scale: 2, Disp: -1}, MemIndex(RegBX, RegCX, 2, -1).Address())
	require.Equal(t, Address{Base: asm.NilRegister, Index: asm.NilRegister, Disp: 0x1000}, Abs(0x1000).Address())
	require.True(t, Abs(0x1000).Address().isAbsolute())
	require.False(t, Stack(0).Address().isAbsolute())
}

func TestLocation_Kind(t *testing.T) {
	for _, tc := range []struct {
		in      Location
		exp     LocationKind
		expType operandType
	}{
		{in: Reg(RegAX), exp: LocationKindRegister, expType: operandTypeRegister},
		{in: Imm(1), exp: LocationKindImmediate, expType: operandTypeConst},
		{in: Stack(8), exp: LocationKindStack, expType: operandTypeMemory},
		{in: Mem(RegAX, 8), exp: LocationKindAddress, expType: operandTypeMemory},
		{in: Location{}, exp: locationKindInvalid, expType: operandTypeNone},
	} {
		tc := tc
		t.Run(tc.exp.String(), func(t *testing.T) {
			require.Equal(t, tc.exp, tc.in.Kind())
			require.Equal(t, tc.expType, tc.in.operandType())
		})
	}
}

func TestOperandTypes_String(t *testing.T) {
	require.Equal(t, "from:const,to:memory", operandTypesConstToMemory.String())
	require.Equal(t, "from:memory,to:register", operandTypesMemoryToRegister.String())
	require.Equal(t, "from:none,to:register", operandTypesRegister.String())
}

func TestInstructionName(t *testing.T) {
	for inst := NONE + 1; inst < instructionEnd; inst++ {
		require.NotEqual(t, "UNKNOWN", InstructionName(inst))
		require.NotEqual(t, encodingKindNone, descriptors[inst].kind, InstructionName(inst))
	}
	require.Equal(t, "UNKNOWN", InstructionName(instructionEnd))
}

func TestRegisterName(t *testing.T) {
	for reg := RegAX; reg <= RegR15; reg++ {
		require.NotEqual(t, "nil", RegisterName(reg))
		require.Equal(t, reg >= RegR8, isExtendedRegister(reg))
	}
	require.Equal(t, "nil", RegisterName(asm.NilRegister))
}
