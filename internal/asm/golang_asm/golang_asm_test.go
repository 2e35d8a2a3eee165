package golang_asm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/tetratelabs/regloc/internal/asm"
)

func TestAssembler_Register(t *testing.T) {
	a, err := NewAssembler()
	require.NoError(t, err)
	a.Register(x86.APUSHQ, 5) // BP
	a.Register(x86.APOPQ, 5)
	require.Equal(t, []byte{0x55, 0x5d}, a.Assemble())
}

func TestGolangAsmRegister(t *testing.T) {
	require.Equal(t, int16(x86.REG_AX), golangAsmRegister(0))
	require.Equal(t, int16(x86.REG_R15), golangAsmRegister(15))
	require.PanicsWithValue(t, "BUG: register 255 has no golang-asm counterpart", func() {
		golangAsmRegister(asm.NilRegister)
	})
}

func TestAssembler_nilBase(t *testing.T) {
	a, err := NewAssembler()
	require.NoError(t, err)
	require.Panics(t, func() {
		a.MemoryToRegister(x86.AMOVQ, Mem{Base: asm.NilRegister, Index: asm.NilRegister}, 0)
	})
}
