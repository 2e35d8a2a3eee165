package x86

import "github.com/tetratelabs/regloc/internal/asm"

// x86 general purpose registers. The value of each register is its numeric encoding,
// and the registers from RegR8 are only available on the 64-bit target.
//
// Note: the names are independent of the operand size: RegCX is ECX for 32-bit operations and RCX for 64-bit ones.
const (
	RegAX asm.Register = iota
	RegCX
	RegDX
	RegBX
	RegSP
	RegBP
	RegSI
	RegDI
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
)

const (
	// ScratchRegister is reserved by the encoder for materializing 64-bit addresses and immediates.
	// Operands must never use it on the 64-bit target.
	ScratchRegister = RegR11
	// FramePointer is the base register of stack locations.
	FramePointer = RegBP
)

// Instructions supported by Encoder.
//
// Note: here we do not define all of x86 instructions, only the ones used by the JIT backend.
// Unsuffixed names operate on a machine word, i.e. 32 bits on the 32-bit target and 64 bits on the 64-bit target.
const (
	NONE asm.Instruction = iota
	ADD
	AND
	CALL
	CMP
	CMP16
	CMP32
	JMP
	LEA
	MOV
	MOV16
	MOV32
	OR
	POP
	PUSH
	SUB
	TEST
	XOR

	// instructionEnd is always placed at the bottom of this iota definition to be used in the test.
	instructionEnd
)

// InstructionName returns the name for an instruction
func InstructionName(instruction asm.Instruction) string {
	switch instruction {
	case ADD:
		return "ADD"
	case AND:
		return "AND"
	case CALL:
		return "CALL"
	case CMP:
		return "CMP"
	case CMP16:
		return "CMP16"
	case CMP32:
		return "CMP32"
	case JMP:
		return "JMP"
	case LEA:
		return "LEA"
	case MOV:
		return "MOV"
	case MOV16:
		return "MOV16"
	case MOV32:
		return "MOV32"
	case OR:
		return "OR"
	case POP:
		return "POP"
	case PUSH:
		return "PUSH"
	case SUB:
		return "SUB"
	case TEST:
		return "TEST"
	case XOR:
		return "XOR"
	}
	return "UNKNOWN"
}

// RegisterName returns the name for a register
func RegisterName(reg asm.Register) string {
	switch reg {
	case RegAX:
		return "AX"
	case RegCX:
		return "CX"
	case RegDX:
		return "DX"
	case RegBX:
		return "BX"
	case RegSP:
		return "SP"
	case RegBP:
		return "BP"
	case RegSI:
		return "SI"
	case RegDI:
		return "DI"
	case RegR8:
		return "R8"
	case RegR9:
		return "R9"
	case RegR10:
		return "R10"
	case RegR11:
		return "R11"
	case RegR12:
		return "R12"
	case RegR13:
		return "R13"
	case RegR14:
		return "R14"
	case RegR15:
		return "R15"
	default:
		return "nil"
	}
}

// isExtendedRegister returns true if the register needs a REX bit to be encoded.
func isExtendedRegister(reg asm.Register) bool {
	return RegR8 <= reg && reg <= RegR15
}

func isGeneralPurposeRegister(reg asm.Register) bool {
	return reg <= RegR15
}
