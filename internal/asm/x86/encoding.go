package x86

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tetratelabs/regloc/internal/asm"
)

// rexPrefix represents REX prefix https://wiki.osdev.org/X86-64_Instruction_Encoding#REX_prefix
type rexPrefix = byte

// REX prefixes are independent of each other and can be combined with OR.
const (
	rexPrefixNone    rexPrefix = 0x0000_0000 // Indicates that the instruction doesn't need rexPrefix.
	rexPrefixDefault rexPrefix = 0b0100_0000
	rexPrefixW       rexPrefix = 0b0000_1000 | rexPrefixDefault
	rexPrefixR       rexPrefix = 0b0000_0100 | rexPrefixDefault
	rexPrefixX       rexPrefix = 0b0000_0010 | rexPrefixDefault
	rexPrefixB       rexPrefix = 0b0000_0001 | rexPrefixDefault
)

// operandSizePrefix switches the operand size of the next instruction to 16-bit.
// https://wiki.osdev.org/X86-64_Instruction_Encoding#Operand-size_and_address-size_override_prefix
const operandSizePrefix byte = 0x66

// operandSize is the size of the operation of an instruction.
type operandSize byte

const (
	// operandSizeWord is 32-bit on the 32-bit target and 64-bit on the 64-bit target.
	operandSizeWord operandSize = iota
	operandSize16
	operandSize32
	operandSize64
)

// registerSpecifierPosition represents the position in the instruction bytes where an operand register is placed.
type registerSpecifierPosition byte

const (
	registerSpecifierPositionModRMFieldReg registerSpecifierPosition = iota
	registerSpecifierPositionModRMFieldRM
	registerSpecifierPositionSIBIndex
	// registerSpecifierPositionOpcode is for the "+r" forms such as PUSH and MOV with immediate.
	registerSpecifierPositionOpcode
)

func register3bits(reg asm.Register, registerSpecifierPosition registerSpecifierPosition) (bits byte, prefix rexPrefix, err error) {
	if !isGeneralPurposeRegister(reg) {
		err = errors.Wrapf(asm.ErrUnsupportedOperand, "invalid register [%s]", RegisterName(reg))
		return
	}

	prefix = rexPrefixNone
	if isExtendedRegister(reg) {
		// https://wiki.osdev.org/X86-64_Instruction_Encoding#REX_prefix
		switch registerSpecifierPosition {
		case registerSpecifierPositionModRMFieldReg:
			prefix = rexPrefixR
		case registerSpecifierPositionSIBIndex:
			prefix = rexPrefixX
		case registerSpecifierPositionModRMFieldRM, registerSpecifierPositionOpcode:
			prefix = rexPrefixB
		}
	}

	// https://wiki.osdev.org/X86-64_Instruction_Encoding#Registers
	bits = byte(reg) & 0b111
	return
}

// memoryOperand is an address whose displacement fits in the 32-bit displacement of the ModRM encoding.
type memoryOperand struct {
	base, index asm.Register
	scale       byte
	disp        int32
}

// memoryLocation returns what's needed to encode m as the ModRM:r/m operand: the REX bits for base and index,
// the ModRM byte without ModRM:reg, the optional SIB byte and the width in bits of the displacement following them.
func (e *Encoder) memoryLocation(m memoryOperand) (p rexPrefix, modRM byte, sib *byte, displacementWidth byte, err error) {
	baseReg, indexReg, offset := m.base, m.index, int64(m.disp)

	if m.scale > 3 {
		err = errors.Wrapf(asm.ErrUnsupportedOperand, "scale in SIB must be one of 0, 1, 2, 3 but got %d", m.scale)
		return
	} else if indexReg == asm.NilRegister && m.scale != 0 {
		err = errors.Wrapf(asm.ErrUnsupportedOperand, "scale %d without index register", m.scale)
		return
	} else if indexReg == RegSP {
		err = errors.Wrap(asm.ErrUnsupportedOperand, "SP cannot be used for SIB index")
		return
	}

	if baseReg == asm.NilRegister && indexReg == asm.NilRegister {
		if e.arch == asm.Arch32 {
			// https://wiki.osdev.org/X86-64_Instruction_Encoding#32.2F64-bit_addressing
			modRM = 0b00_000_101 // Indicate [disp32].
		} else {
			// On 64-bit, 0b00_000_101 means [RIP + disp32], so we use the SIB form without base nor index instead.
			modRM = 0b00_000_100 // Indicate that the memory location is specified by SIB.
			sibValue := byte(0b00_100_101)
			sib = &sibValue
		}
		displacementWidth = 32
	} else if baseReg == asm.NilRegister {
		// [index*scale + disp32] is encoded as SIB with "no base" (0b101) and mod = 0b00.
		var indexRegBits byte
		indexRegBits, p, err = register3bits(indexReg, registerSpecifierPositionSIBIndex)
		if err != nil {
			return
		}
		modRM = 0b00_000_100 // Indicate that the memory location is specified by SIB.
		sibValue := m.scale<<6 | indexRegBits<<3 | 0b101
		sib = &sibValue
		displacementWidth = 32
	} else if indexReg == asm.NilRegister {
		var baseRegBits byte
		baseRegBits, p, err = register3bits(baseReg, registerSpecifierPositionModRMFieldRM)
		if err != nil {
			return
		}
		modRM = baseRegBits

		modRM, displacementWidth = withDisplacement(modRM, baseRegBits, offset)

		// For SP and R12 register, we have [SIB + displacement] if the const is non-zero, otherwise [SIB].
		// https://wiki.osdev.org/X86-64_Instruction_Encoding#32.2F64-bit_addressing
		//
		// Therefore we emit the SIB byte before the const so that [SIB + displacement] ends up [register + displacement].
		// https://wiki.osdev.org/X86-64_Instruction_Encoding#32.2F64-bit_addressing_2
		if baseRegBits == 0b100 {
			sibValue := byte(0b00_100_100)
			sib = &sibValue
		}
	} else {
		var baseRegBits byte
		baseRegBits, p, err = register3bits(baseReg, registerSpecifierPositionModRMFieldRM)
		if err != nil {
			return
		}

		var indexRegBits byte
		var indexRegPrefix rexPrefix
		indexRegBits, indexRegPrefix, err = register3bits(indexReg, registerSpecifierPositionSIBIndex)
		if err != nil {
			return
		}
		p |= indexRegPrefix

		modRM = 0b00_000_100 // Indicate that the memory location is specified by SIB.
		modRM, displacementWidth = withDisplacement(modRM, baseRegBits, offset)

		sibValue := m.scale<<6 | indexRegBits<<3 | baseRegBits
		sib = &sibValue
	}
	return
}

// withDisplacement sets ModRM:mod for a base register whose low 3 bits are baseRegBits.
func withDisplacement(modRM, baseRegBits byte, offset int64) (byte, byte) {
	// If the base register is R13 or BP, we have to keep [R/M + displacement] even if the value
	// is zero since [R/M] operand is not defined for these two registers.
	// https://wiki.osdev.org/X86-64_Instruction_Encoding#32.2F64-bit_addressing
	withoutDisplacement := offset == 0 && baseRegBits != 0b101
	if withoutDisplacement {
		// https://wiki.osdev.org/X86-64_Instruction_Encoding#ModR.2FM
		return modRM | 0b00_000_000, 0 // Specifying that operand is memory without displacement
	} else if fitInSigned8bit(offset) {
		return modRM | 0b01_000_000, 8 // Specifying that operand is memory + 8bit displacement.
	}
	return modRM | 0b10_000_000, 32 // Specifying that operand is memory + 32bit displacement.
}

// registerToRegisterModRM returns the REX bits and the ModRM byte with reg on ModRM:reg and rm on ModRM:r/m.
func registerToRegisterModRM(reg, rm asm.Register) (p rexPrefix, modRM byte, err error) {
	regBits, regPrefix, err := register3bits(reg, registerSpecifierPositionModRMFieldReg)
	if err != nil {
		return
	}
	rmBits, rmPrefix, err := register3bits(rm, registerSpecifierPositionModRMFieldRM)
	if err != nil {
		return
	}
	p = regPrefix | rmPrefix
	// https://wiki.osdev.org/X86-64_Instruction_Encoding#ModR.2FM
	modRM = 0b11_000_000 | // Specifying that the r/m operand is register.
		regBits<<3 |
		rmBits
	return
}

// writePrefixes writes the operand size prefix and the REX prefix of an instruction of the given size.
func (e *Encoder) writePrefixes(size operandSize, p rexPrefix) error {
	size = e.resolveSize(size)
	if size == operandSize16 {
		e.buf.WriteByte(operandSizePrefix)
	}
	if size == operandSize64 {
		p |= rexPrefixW
	}
	if p != rexPrefixNone {
		if e.arch == asm.Arch32 {
			return errors.Wrap(asm.ErrUnsupportedOperand, "REX prefix is not available on the 32-bit target")
		}
		e.buf.WriteByte(p)
	}
	return nil
}

// writeRegisterInstruction writes "opcode ModRM" where ModRM:r/m is the register rm and ModRM:reg holds regField,
// which is either a register or an opcode extension.
func (e *Encoder) writeRegisterInstruction(size operandSize, opcode []byte, regField byte, regFieldPrefix rexPrefix, rm asm.Register) error {
	rmBits, p, err := register3bits(rm, registerSpecifierPositionModRMFieldRM)
	if err != nil {
		return err
	}
	if err = e.writePrefixes(size, p|regFieldPrefix); err != nil {
		return err
	}
	e.buf.Write(opcode)
	e.buf.WriteByte(0b11_000_000 | regField<<3 | rmBits)
	return nil
}

// writeMemoryInstruction writes "opcode ModRM [SIB] [disp]" where ModRM:r/m is the memory m and ModRM:reg holds
// regField, which is either a register or an opcode extension.
func (e *Encoder) writeMemoryInstruction(size operandSize, opcode []byte, regField byte, regFieldPrefix rexPrefix, m memoryOperand) error {
	p, modRM, sib, displacementWidth, err := e.memoryLocation(m)
	if err != nil {
		return err
	}
	if err = e.writePrefixes(size, p|regFieldPrefix); err != nil {
		return err
	}
	e.buf.Write(opcode)
	e.buf.WriteByte(modRM | regField<<3)
	if sib != nil {
		e.buf.WriteByte(*sib)
	}
	if displacementWidth != 0 {
		e.writeConst(int64(m.disp), displacementWidth)
	}
	return nil
}

// writeOpcodeRegisterInstruction writes the "+r" forms where the register is added to the last opcode byte.
func (e *Encoder) writeOpcodeRegisterInstruction(size operandSize, opcode byte, reg asm.Register) error {
	bits, p, err := register3bits(reg, registerSpecifierPositionOpcode)
	if err != nil {
		return err
	}
	if err = e.writePrefixes(size, p); err != nil {
		return err
	}
	e.buf.WriteByte(opcode | bits)
	return nil
}

func (e *Encoder) writeConst(v int64, length byte) {
	switch length {
	case 8:
		e.buf.WriteByte(byte(int8(v)))
	case 16:
		e.buf.WriteUint16(uint16(v))
	case 32:
		e.buf.WriteUint32(uint32(v))
	case 64:
		e.buf.WriteUint64(uint64(v))
	default:
		panic("BUG: length must be one of 8, 16, 32 or 64")
	}
}

// resolveSize turns operandSizeWord into the concrete size of the target.
func (e *Encoder) resolveSize(size operandSize) operandSize {
	if size != operandSizeWord {
		return size
	}
	if e.arch == asm.Arch64 {
		return operandSize64
	}
	return operandSize32
}

func fitIn32bit(v int64) bool {
	return math.MinInt32 <= v && v <= math.MaxUint32
}

func fitInSigned32bit(v int64) bool {
	return math.MinInt32 <= v && v <= math.MaxInt32
}

func fitIn16bit(v int64) bool {
	return math.MinInt16 <= v && v <= math.MaxUint16
}

func fitInSigned8bit(v int64) bool {
	return math.MinInt8 <= v && v <= math.MaxInt8
}
