package asm

import "errors"

// The errors below are returned wrapped with the offending instruction and operands.
// Use errors.Is to classify them.
var (
	// ErrUnsupportedOperand is returned when an operand or addressing form has no valid encoding,
	// e.g. SP as a SIB index or an extended register on the 32-bit target.
	ErrUnsupportedOperand = errors.New("unsupported operand")

	// ErrUnsupportedOperandCombination is returned when an instruction does not accept the given
	// shape of operands, e.g. memory to memory.
	ErrUnsupportedOperandCombination = errors.New("unsupported operand combination")

	// ErrInvalidScratchUse is returned when an operand names the reserved scratch register, or when the
	// scratch register session is opened or closed out of order.
	ErrInvalidScratchUse = errors.New("invalid use of the scratch register")

	// ErrImmediateOutOfRange is returned when an immediate is wider than the encoding slot allows, and
	// there's no way to materialize it for the instruction.
	ErrImmediateOutOfRange = errors.New("immediate out of range")
)
