package x86

import (
	"github.com/pkg/errors"

	"github.com/tetratelabs/regloc/internal/asm"
)

// encodingKind selects the encoding routine of an instruction.
type encodingKind byte

const (
	encodingKindNone encodingKind = iota
	encodingKindMove
	encodingKindALU
	encodingKindTest
	encodingKindLea
	encodingKindPush
	encodingKindPop
	encodingKindBranch
)

// descriptor describes how to encode an instruction.
type descriptor struct {
	kind encodingKind
	size operandSize
	// opcodeRmReg is the opcode of "OP r/m, reg" and opcodeRegRm is the one of "OP reg, r/m".
	opcodeRmReg, opcodeRegRm byte
	// immExtension is the ModRM:reg opcode extension of "OP r/m, imm",
	// and the one of "OP r/m" for PUSH, POP and branches.
	immExtension byte
	// relOpcode is the opcode of the rel32 form of branches.
	relOpcode byte
}

// descriptors are indexed by the instruction.
//
// https://www.felixcloutier.com/x86/index.html
var descriptors = [instructionEnd]descriptor{
	ADD:   {kind: encodingKindALU, size: operandSizeWord, opcodeRmReg: 0x01, opcodeRegRm: 0x03, immExtension: 0},
	OR:    {kind: encodingKindALU, size: operandSizeWord, opcodeRmReg: 0x09, opcodeRegRm: 0x0b, immExtension: 1},
	AND:   {kind: encodingKindALU, size: operandSizeWord, opcodeRmReg: 0x21, opcodeRegRm: 0x23, immExtension: 4},
	SUB:   {kind: encodingKindALU, size: operandSizeWord, opcodeRmReg: 0x29, opcodeRegRm: 0x2b, immExtension: 5},
	XOR:   {kind: encodingKindALU, size: operandSizeWord, opcodeRmReg: 0x31, opcodeRegRm: 0x33, immExtension: 6},
	CMP:   {kind: encodingKindALU, size: operandSizeWord, opcodeRmReg: 0x39, opcodeRegRm: 0x3b, immExtension: 7},
	CMP32: {kind: encodingKindALU, size: operandSize32, opcodeRmReg: 0x39, opcodeRegRm: 0x3b, immExtension: 7},
	CMP16: {kind: encodingKindALU, size: operandSize16, opcodeRmReg: 0x39, opcodeRegRm: 0x3b, immExtension: 7},
	MOV:   {kind: encodingKindMove, size: operandSizeWord, opcodeRmReg: 0x89, opcodeRegRm: 0x8b},
	MOV32: {kind: encodingKindMove, size: operandSize32, opcodeRmReg: 0x89, opcodeRegRm: 0x8b},
	MOV16: {kind: encodingKindMove, size: operandSize16, opcodeRmReg: 0x89, opcodeRegRm: 0x8b},
	TEST:  {kind: encodingKindTest, size: operandSizeWord, opcodeRmReg: 0x85, immExtension: 0},
	LEA:   {kind: encodingKindLea, size: operandSizeWord, opcodeRegRm: 0x8d},
	PUSH:  {kind: encodingKindPush, immExtension: 6},
	POP:   {kind: encodingKindPop, immExtension: 0},
	JMP:   {kind: encodingKindBranch, relOpcode: 0xe9, immExtension: 4},
	CALL:  {kind: encodingKindBranch, relOpcode: 0xe8, immExtension: 2},
}

// operandSizeStack is used for PUSH, POP and indirect branches, whose operand size is the word size without REX.W.
const operandSizeStack = operandSize32

// imm64TemporaryRegisters are the candidates of the register holding a 64-bit immediate stored to memory.
var imm64TemporaryRegisters = [...]asm.Register{RegAX, RegDX, RegCX}

// MOV encodes "MOV dst, src" of the machine word size.
func (e *Encoder) MOV(dst, src Location) error { return e.Encode(MOV, dst, src) }

// MOV32 encodes "MOV dst, src" of 32 bits.
func (e *Encoder) MOV32(dst, src Location) error { return e.Encode(MOV32, dst, src) }

// MOV16 encodes "MOV dst, src" of 16 bits.
func (e *Encoder) MOV16(dst, src Location) error { return e.Encode(MOV16, dst, src) }

// ADD encodes "ADD dst, src".
func (e *Encoder) ADD(dst, src Location) error { return e.Encode(ADD, dst, src) }

// SUB encodes "SUB dst, src".
func (e *Encoder) SUB(dst, src Location) error { return e.Encode(SUB, dst, src) }

// AND encodes "AND dst, src".
func (e *Encoder) AND(dst, src Location) error { return e.Encode(AND, dst, src) }

// OR encodes "OR dst, src".
func (e *Encoder) OR(dst, src Location) error { return e.Encode(OR, dst, src) }

// XOR encodes "XOR dst, src".
func (e *Encoder) XOR(dst, src Location) error { return e.Encode(XOR, dst, src) }

// CMP encodes "CMP dst, src" of the machine word size.
func (e *Encoder) CMP(dst, src Location) error { return e.Encode(CMP, dst, src) }

// CMP32 encodes "CMP dst, src" of 32 bits.
func (e *Encoder) CMP32(dst, src Location) error { return e.Encode(CMP32, dst, src) }

// CMP16 encodes "CMP dst, src" of 16 bits.
func (e *Encoder) CMP16(dst, src Location) error { return e.Encode(CMP16, dst, src) }

// TEST encodes "TEST dst, src".
func (e *Encoder) TEST(dst, src Location) error { return e.Encode(TEST, dst, src) }

// LEA encodes "LEA dst, src".
func (e *Encoder) LEA(dst, src Location) error { return e.Encode(LEA, dst, src) }

// PUSH encodes "PUSH src".
func (e *Encoder) PUSH(src Location) error { return e.Encode(PUSH, src) }

// POP encodes "POP dst".
func (e *Encoder) POP(dst Location) error { return e.Encode(POP, dst) }

// JMP encodes "JMP target". An immediate target is the absolute address of the destination.
func (e *Encoder) JMP(target Location) error { return e.Encode(JMP, target) }

// CALL encodes "CALL target". An immediate target is the absolute address of the callee.
func (e *Encoder) CALL(target Location) error { return e.Encode(CALL, target) }

func (e *Encoder) encodeMove(d *descriptor, dst, src Location) error {
	switch types := (operandTypes{dst.operandType(), src.operandType()}); types {
	case operandTypesRegisterToRegister, operandTypesRegisterToMemory, operandTypesMemoryToRegister:
		return e.encodeRegisterMemory(d, dst, src)
	case operandTypesConstToRegister:
		return e.encodeMoveConstToRegister(d, dst.Register(), src.Value())
	case operandTypesConstToMemory:
		return e.encodeMoveConstToMemory(d, dst.Address(), src.Value())
	default:
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%s", types)
	}
}

// encodeRegisterMemory encodes the "OP r/m, reg" and "OP reg, r/m" forms.
func (e *Encoder) encodeRegisterMemory(d *descriptor, dst, src Location) error {
	switch types := (operandTypes{dst.operandType(), src.operandType()}); types {
	case operandTypesRegisterToRegister:
		regBits, regPrefix, err := register3bits(src.Register(), registerSpecifierPositionModRMFieldReg)
		if err != nil {
			return err
		}
		return e.writeRegisterInstruction(d.size, []byte{d.opcodeRmReg}, regBits, regPrefix, dst.Register())
	case operandTypesRegisterToMemory:
		regBits, regPrefix, err := register3bits(src.Register(), registerSpecifierPositionModRMFieldReg)
		if err != nil {
			return err
		}
		m, err := e.resolveAddress(dst.Address())
		if err != nil {
			return err
		}
		return e.writeMemoryInstruction(d.size, []byte{d.opcodeRmReg}, regBits, regPrefix, m)
	case operandTypesMemoryToRegister:
		regBits, regPrefix, err := register3bits(dst.Register(), registerSpecifierPositionModRMFieldReg)
		if err != nil {
			return err
		}
		m, err := e.resolveAddress(src.Address())
		if err != nil {
			return err
		}
		return e.writeMemoryInstruction(d.size, []byte{d.opcodeRegRm}, regBits, regPrefix, m)
	default:
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%s", types)
	}
}

func (e *Encoder) encodeMoveConstToRegister(d *descriptor, reg asm.Register, v int64) error {
	switch size := e.resolveSize(d.size); size {
	case operandSize16:
		if !fitIn16bit(v) {
			return errors.Wrapf(asm.ErrImmediateOutOfRange, "%#x does not fit in 16 bits", v)
		}
		if e.arch == asm.Arch64 {
			// "66 C7 /0 iw"
			if err := e.writeRegisterInstruction(size, []byte{0xc7}, 0, rexPrefixNone, reg); err != nil {
				return err
			}
		} else if err := e.writeOpcodeRegisterInstruction(size, 0xb8, reg); err != nil {
			return err
		}
		e.writeConst(v, 16)
	case operandSize32:
		if !fitIn32bit(v) {
			return errors.Wrapf(asm.ErrImmediateOutOfRange, "%#x does not fit in 32 bits", v)
		}
		if err := e.writeOpcodeRegisterInstruction(size, 0xb8, reg); err != nil {
			return err
		}
		e.writeConst(v, 32)
	case operandSize64:
		if fitInSigned32bit(v) {
			// Sign-extended "REX.W C7 /0 id".
			if err := e.writeRegisterInstruction(size, []byte{0xc7}, 0, rexPrefixNone, reg); err != nil {
				return err
			}
			e.writeConst(v, 32)
		} else if 0 <= v && v <= 0xffff_ffff {
			// Writing to the 32-bit register clears the upper 32 bits.
			if err := e.writeOpcodeRegisterInstruction(operandSize32, 0xb8, reg); err != nil {
				return err
			}
			e.writeConst(v, 32)
		} else {
			if err := e.writeOpcodeRegisterInstruction(size, 0xb8, reg); err != nil {
				return err
			}
			e.writeConst(v, 64)
		}
	}
	return nil
}

func (e *Encoder) encodeMoveConstToMemory(d *descriptor, a Address, v int64) error {
	size := e.resolveSize(d.size)
	switch size {
	case operandSize16:
		if !fitIn16bit(v) {
			return errors.Wrapf(asm.ErrImmediateOutOfRange, "%#x does not fit in 16 bits", v)
		}
	case operandSize32:
		if !fitIn32bit(v) {
			return errors.Wrapf(asm.ErrImmediateOutOfRange, "%#x does not fit in 32 bits", v)
		}
	case operandSize64:
		if !fitInSigned32bit(v) {
			return e.encodeMoveConst64ToMemory(a, v)
		}
	}

	m, err := e.resolveAddress(a)
	if err != nil {
		return err
	}
	if err = e.writeMemoryInstruction(size, []byte{0xc7}, 0, rexPrefixNone, m); err != nil {
		return err
	}
	if size == operandSize16 {
		e.writeConst(v, 16)
	} else {
		e.writeConst(v, 32)
	}
	return nil
}

// encodeMoveConst64ToMemory stores a 64-bit immediate through a temporary register saved on the stack:
//
//	PUSH tmp
//	MOV tmp, imm64
//	MOV [mem], tmp
//	POP tmp
func (e *Encoder) encodeMoveConst64ToMemory(a Address, v int64) error {
	tmp := asm.NilRegister
	for _, reg := range imm64TemporaryRegisters {
		if !a.uses(reg) {
			tmp = reg
			break
		}
	}

	if err := e.writeOpcodeRegisterInstruction(operandSizeStack, 0x50, tmp); err != nil {
		return err
	}
	if err := e.writeOpcodeRegisterInstruction(operandSize64, 0xb8, tmp); err != nil {
		return err
	}
	e.writeConst(v, 64)

	if a.Base == RegSP {
		// The push above moved the stack pointer.
		a.Disp += 8
	}
	m, err := e.resolveAddress(a)
	if err != nil {
		return err
	}
	tmpBits, _, _ := register3bits(tmp, registerSpecifierPositionModRMFieldReg)
	if err = e.writeMemoryInstruction(operandSize64, []byte{0x89}, tmpBits, rexPrefixNone, m); err != nil {
		return err
	}
	return e.writeOpcodeRegisterInstruction(operandSizeStack, 0x58, tmp)
}

func (e *Encoder) encodeALU(d *descriptor, dst, src Location) error {
	if src.Kind() != LocationKindImmediate {
		return e.encodeRegisterMemory(d, dst, src)
	}
	return e.encodeConstOperation(d, dst, src.Value(), true)
}

func (e *Encoder) encodeTest(d *descriptor, dst, src Location) error {
	switch types := (operandTypes{dst.operandType(), src.operandType()}); types {
	case operandTypesRegisterToRegister, operandTypesRegisterToMemory:
		return e.encodeRegisterMemory(d, dst, src)
	case operandTypesConstToRegister, operandTypesConstToMemory:
		return e.encodeConstOperation(d, dst, src.Value(), false)
	default:
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%s", types)
	}
}

// encodeConstOperation encodes "OP r/m, imm" with the opcodes of ALU operations, or the ones of TEST if
// aluOpcodes is false.
func (e *Encoder) encodeConstOperation(d *descriptor, dst Location, v int64, aluOpcodes bool) error {
	if dst.Kind() == LocationKindImmediate {
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%s", operandTypesConst)
	}

	size := e.resolveSize(d.size)
	var immWidth byte
	switch size {
	case operandSize16:
		if !fitIn16bit(v) {
			return errors.Wrapf(asm.ErrImmediateOutOfRange, "%#x does not fit in 16 bits", v)
		}
		v, immWidth = int64(int16(v)), 16
	case operandSize32:
		if !fitIn32bit(v) {
			return errors.Wrapf(asm.ErrImmediateOutOfRange, "%#x does not fit in 32 bits", v)
		}
		v, immWidth = int64(int32(v)), 32
	case operandSize64:
		if !fitInSigned32bit(v) {
			return e.encodeConst64Operation(d, dst, v)
		}
		immWidth = 32
	}

	opcode := byte(0x81)
	if !aluOpcodes {
		opcode = 0xf7
	} else if fitInSigned8bit(v) {
		opcode, immWidth = 0x83, 8
	}

	if dst.Kind() == LocationKindRegister {
		if err := e.writeRegisterInstruction(size, []byte{opcode}, d.immExtension, rexPrefixNone, dst.Register()); err != nil {
			return err
		}
	} else {
		m, err := e.resolveAddress(dst.Address())
		if err != nil {
			return err
		}
		if err = e.writeMemoryInstruction(size, []byte{opcode}, d.immExtension, rexPrefixNone, m); err != nil {
			return err
		}
	}
	e.writeConst(v, immWidth)
	return nil
}

// encodeConst64Operation encodes "OP r/m, imm64" as "MOV R11, imm64; OP r/m, R11".
// A memory operand whose displacement doesn't fit in 32 bits would need R11 as well, so it's rejected.
func (e *Encoder) encodeConst64Operation(d *descriptor, dst Location, v int64) error {
	if dst.Kind() == LocationKindRegister {
		e.loadScratchConst(v)
		return e.writeRegisterInstruction(operandSize64, []byte{d.opcodeRmReg}, byte(ScratchRegister&0b111), rexPrefixR, dst.Register())
	}

	a := dst.Address()
	if !fitInSigned32bit(a.Disp) {
		return errors.Wrapf(asm.ErrImmediateOutOfRange, "%#x does not fit in 32 bits with a 64-bit address", v)
	}
	e.loadScratchConst(v)
	m, err := e.resolveAddress(a)
	if err != nil {
		return err
	}
	return e.writeMemoryInstruction(operandSize64, []byte{d.opcodeRmReg}, byte(ScratchRegister&0b111), rexPrefixR, m)
}

func (e *Encoder) encodeLea(d *descriptor, dst, src Location) error {
	if types := (operandTypes{dst.operandType(), src.operandType()}); types != operandTypesMemoryToRegister {
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%s", types)
	}
	return e.encodeRegisterMemory(d, dst, src)
}

func (e *Encoder) encodePush(d *descriptor, src Location) error {
	switch src.operandType() {
	case operandTypeRegister:
		return e.writeOpcodeRegisterInstruction(operandSizeStack, 0x50, src.Register())
	case operandTypeMemory:
		m, err := e.resolveAddress(src.Address())
		if err != nil {
			return err
		}
		return e.writeMemoryInstruction(operandSizeStack, []byte{0xff}, d.immExtension, rexPrefixNone, m)
	case operandTypeConst:
		v := src.Value()
		if fitInSigned8bit(v) {
			e.buf.Write([]byte{0x6a, byte(int8(v))})
			return nil
		}
		if e.arch == asm.Arch32 {
			if !fitIn32bit(v) {
				return errors.Wrapf(asm.ErrImmediateOutOfRange, "%#x does not fit in 32 bits", v)
			}
		} else if !fitInSigned32bit(v) {
			// PUSH R11 after loading the immediate into R11.
			e.loadScratchConst(v)
			return e.writeOpcodeRegisterInstruction(operandSizeStack, 0x50, ScratchRegister)
		}
		e.buf.WriteByte(0x68)
		e.writeConst(v, 32)
		return nil
	default:
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%s", src.operandType())
	}
}

func (e *Encoder) encodePop(d *descriptor, dst Location) error {
	switch dst.operandType() {
	case operandTypeRegister:
		return e.writeOpcodeRegisterInstruction(operandSizeStack, 0x58, dst.Register())
	case operandTypeMemory:
		m, err := e.resolveAddress(dst.Address())
		if err != nil {
			return err
		}
		return e.writeMemoryInstruction(operandSizeStack, []byte{0x8f}, d.immExtension, rexPrefixNone, m)
	default:
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%s", dst.operandType())
	}
}
