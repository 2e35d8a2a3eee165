package x86

import (
	"github.com/pkg/errors"

	"github.com/tetratelabs/regloc/internal/asm"
)

// relativeBranchLength is the length of "E9 rel32" and "E8 rel32".
const relativeBranchLength = 5

// encodeBranch encodes JMP and CALL. An immediate operand is the absolute address of the target, which is
// reached with a rel32 displacement from the end of the instruction.
func (e *Encoder) encodeBranch(d *descriptor, target Location) error {
	switch target.operandType() {
	case operandTypeConst:
		return e.encodeRelativeBranch(d, uint64(target.Value()))
	case operandTypeRegister:
		return e.writeRegisterInstruction(operandSizeStack, []byte{0xff}, d.immExtension, rexPrefixNone, target.Register())
	case operandTypeMemory:
		m, err := e.resolveAddress(target.Address())
		if err != nil {
			return err
		}
		return e.writeMemoryInstruction(operandSizeStack, []byte{0xff}, d.immExtension, rexPrefixNone, m)
	default:
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%s", target.operandType())
	}
}

func (e *Encoder) encodeRelativeBranch(d *descriptor, target uint64) error {
	next := e.CurrentAddress() + relativeBranchLength
	if e.arch == asm.Arch32 {
		// The displacement wraps around the 32-bit address space.
		e.buf.WriteByte(d.relOpcode)
		e.buf.WriteUint32(uint32(target) - uint32(next))
		return nil
	}

	if rel := int64(target - next); fitInSigned32bit(rel) {
		e.buf.WriteByte(d.relOpcode)
		e.writeConst(rel, 32)
		return nil
	}
	// The target is out of reach of rel32, so branch through R11 instead.
	e.loadScratchConst(int64(target))
	return e.writeRegisterInstruction(operandSizeStack, []byte{0xff}, d.immExtension, rexPrefixNone, ScratchRegister)
}
