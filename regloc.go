// Package regloc encodes x86 (32 and 64-bit) instructions whose operands are registers, immediates, stack slots or
// memory addresses, as needed by the backend of a JIT compiler.
//
// On the 64-bit target, addresses and immediates which don't fit in the 32-bit fields of the instruction encoding
// are materialized through ScratchRegister, which callers must never use. Consecutive accesses relative to the same
// 64-bit address can share one load of it when they are wrapped in a scratch register session:
//
//	e, _ := regloc.NewEncoder(regloc.NewEncoderConfig())
//	err := e.WithReusedScratchRegister(func() error {
//		if err := e.MOV(regloc.Reg(regloc.RegCX), regloc.Abs(addr)); err != nil {
//			return err
//		}
//		return e.MOV(regloc.Reg(regloc.RegCX), regloc.Abs(addr+8))
//	})
package regloc

import (
	"github.com/tetratelabs/regloc/internal/asm"
	"github.com/tetratelabs/regloc/internal/asm/x86"
)

// Arch is the target architecture of an Encoder.
type Arch = asm.Arch

const (
	// Arch32 targets 32-bit flat protected mode.
	Arch32 = asm.Arch32
	// Arch64 targets 64-bit long mode.
	Arch64 = asm.Arch64
)

// Register is a general purpose register. The names are independent of the operand size, e.g. RegAX is EAX for
// 32-bit operations and RAX for 64-bit ones.
type Register = asm.Register

const (
	NilRegister = asm.NilRegister
	RegAX       = x86.RegAX
	RegCX       = x86.RegCX
	RegDX       = x86.RegDX
	RegBX       = x86.RegBX
	RegSP       = x86.RegSP
	RegBP       = x86.RegBP
	RegSI       = x86.RegSI
	RegDI       = x86.RegDI
	RegR8       = x86.RegR8
	RegR9       = x86.RegR9
	RegR10      = x86.RegR10
	RegR11      = x86.RegR11
	RegR12      = x86.RegR12
	RegR13      = x86.RegR13
	RegR14      = x86.RegR14
	RegR15      = x86.RegR15

	// ScratchRegister is reserved by the encoder on the 64-bit target.
	ScratchRegister = x86.ScratchRegister
	// FramePointer is the base register of Stack locations.
	FramePointer = x86.FramePointer
)

// RegisterName returns the name of the register, e.g. "R13".
func RegisterName(reg Register) string {
	return x86.RegisterName(reg)
}

// Instruction is a mnemonic supported by Encoder.Encode.
type Instruction = asm.Instruction

const (
	ADD   = x86.ADD
	AND   = x86.AND
	CALL  = x86.CALL
	CMP   = x86.CMP
	CMP16 = x86.CMP16
	CMP32 = x86.CMP32
	JMP   = x86.JMP
	LEA   = x86.LEA
	MOV   = x86.MOV
	MOV16 = x86.MOV16
	MOV32 = x86.MOV32
	OR    = x86.OR
	POP   = x86.POP
	PUSH  = x86.PUSH
	SUB   = x86.SUB
	TEST  = x86.TEST
	XOR   = x86.XOR
)

// InstructionName returns the mnemonic of the instruction, e.g. "MOV16".
func InstructionName(inst Instruction) string {
	return x86.InstructionName(inst)
}

type (
	// Encoder appends the machine code of instructions to its buffer. See x86.Encoder.
	Encoder = x86.Encoder
	// Location is an instruction operand.
	Location = x86.Location
	// LocationKind is the tag of Location.
	LocationKind = x86.LocationKind
	// Address is the memory operand [Base + Index*(1<<Scale) + Disp].
	Address = x86.Address
	// ScratchSession is the state of the scratch register session of an Encoder.
	ScratchSession = x86.ScratchSession
)

const (
	LocationKindRegister  = x86.LocationKindRegister
	LocationKindStack     = x86.LocationKindStack
	LocationKindImmediate = x86.LocationKindImmediate
	LocationKindAddress   = x86.LocationKindAddress
)

// Reg returns the location of the register reg.
func Reg(reg Register) Location { return x86.Reg(reg) }

// Imm returns the location of the immediate value v. As the target of JMP and CALL, v is an absolute address.
func Imm(v int64) Location { return x86.Imm(v) }

// Stack returns the location of the stack slot at offset bytes from FramePointer.
func Stack(offset int64) Location { return x86.Stack(offset) }

// Mem returns the location of the memory at [base + disp]. base can be NilRegister.
func Mem(base Register, disp int64) Location { return x86.Mem(base, disp) }

// MemIndex returns the location of the memory at [base + index*(1<<scale) + disp].
func MemIndex(base, index Register, scale byte, disp int64) Location {
	return x86.MemIndex(base, index, scale, disp)
}

// Abs returns the location of the memory at the absolute address addr.
func Abs(addr uint64) Location { return x86.Abs(addr) }

// The errors returned by Encoder wrap one of these. Use errors.Is to classify them.
var (
	ErrUnsupportedOperand            = asm.ErrUnsupportedOperand
	ErrUnsupportedOperandCombination = asm.ErrUnsupportedOperandCombination
	ErrInvalidScratchUse             = asm.ErrInvalidScratchUse
	ErrImmediateOutOfRange           = asm.ErrImmediateOutOfRange
)

// NewEncoder returns an Encoder configured by config. nil is the same as NewEncoderConfig.
func NewEncoder(config *EncoderConfig) (*Encoder, error) {
	if config == nil {
		config = NewEncoderConfig()
	}
	e, err := x86.NewEncoder(config.arch)
	if err != nil {
		return nil, err
	}
	e.SetBaseAddress(config.baseAddress)
	if config.logger != nil {
		e.SetLogger(config.logger)
	}
	return e, nil
}
