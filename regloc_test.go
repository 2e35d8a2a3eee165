package regloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEncoder(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		e, err := NewEncoder(nil)
		require.NoError(t, err)
		require.Equal(t, Arch64, e.Arch())
		require.Zero(t, e.BaseAddress())
	})
	t.Run("configured", func(t *testing.T) {
		e, err := NewEncoder(NewEncoderConfig().WithArch(Arch32).WithBaseAddress(0x7FFFFF00))
		require.NoError(t, err)
		require.Equal(t, Arch32, e.Arch())
		require.NoError(t, e.JMP(Imm(0x800000BB)))
		require.Equal(t, []byte{0xe9, 0xb6, 0x01, 0x00, 0x00}, e.Bytes())
	})
	t.Run("invalid arch", func(t *testing.T) {
		_, err := NewEncoder(NewEncoderConfig().WithArch(Arch(16)))
		require.Error(t, err)
	})
}

func TestEncoder_errors(t *testing.T) {
	e, err := NewEncoder(nil)
	require.NoError(t, err)

	err = e.MOV(Reg(ScratchRegister), Reg(RegAX))
	require.True(t, errors.Is(err, ErrInvalidScratchUse))
	err = e.MOV(Mem(RegAX, 0), Stack(0))
	require.True(t, errors.Is(err, ErrUnsupportedOperandCombination))
	err = e.MOV(Reg(RegAX), MemIndex(RegAX, RegSP, 0, 0))
	require.True(t, errors.Is(err, ErrUnsupportedOperand))
	err = e.MOV16(Reg(RegAX), Imm(0x10000))
	require.True(t, errors.Is(err, ErrImmediateOutOfRange))
	require.Zero(t, e.Len())
}

func TestEncoder_reuseScratchRegister(t *testing.T) {
	addr := uint64(0xFEDCBA9876543210)
	e, err := NewEncoder(nil)
	require.NoError(t, err)
	err = e.WithReusedScratchRegister(func() error {
		if err := e.MOV(Reg(RegCX), Abs(addr)); err != nil {
			return err
		}
		return e.MOV(Reg(RegCX), Abs(addr+8))
	})
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x49, 0xbb, 0x10, 0x32, 0x54, 0x76, 0x98, 0xba, 0xdc, 0xfe, // mov r11, 0xFEDCBA9876543210
		0x49, 0x8b, 0x0b, // mov rcx, [r11]
		0x49, 0x8b, 0x4b, 0x08, // mov rcx, [r11+8]
	}, e.Bytes())
	require.Equal(t, ScratchSession{}, e.ScratchSession())
}

func TestNames(t *testing.T) {
	require.Equal(t, "R11", RegisterName(ScratchRegister))
	require.Equal(t, "BP", RegisterName(FramePointer))
	require.Equal(t, "CMP16", InstructionName(CMP16))
	require.Equal(t, LocationKindStack, Stack(8).Kind())
}
