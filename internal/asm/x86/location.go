package x86

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/regloc/internal/asm"
)

// LocationKind is the tag of Location.
type LocationKind byte

const (
	locationKindInvalid LocationKind = iota
	// LocationKindRegister is a general purpose register.
	LocationKindRegister
	// LocationKindStack is a slot at a fixed offset from FramePointer.
	LocationKindStack
	// LocationKindImmediate is a constant value embedded in, or materialized for, an instruction.
	LocationKindImmediate
	// LocationKindAddress is the memory at base + index*(1<<scale) + displacement.
	LocationKindAddress
)

// String implements fmt.Stringer.
func (k LocationKind) String() (ret string) {
	switch k {
	case LocationKindRegister:
		ret = "register"
	case LocationKindStack:
		ret = "stack"
	case LocationKindImmediate:
		ret = "immediate"
	case LocationKindAddress:
		ret = "address"
	default:
		ret = "invalid"
	}
	return
}

// Address is the memory operand [Base + Index*(1<<Scale) + Disp].
//
// Base and Index are asm.NilRegister when absent. Scale is the shift amount 0, 1, 2 or 3
// (meaning x1, x2, x4 and x8), and must be zero when there is no Index.
// Disp is interpreted modulo the address width, so an address above math.MaxInt64 is given as
// its two's complement.
type Address struct {
	Base, Index asm.Register
	Scale       byte
	Disp        int64
}

// isAbsolute returns true if the address has neither base nor index.
func (a Address) isAbsolute() bool {
	return a.Base == asm.NilRegister && a.Index == asm.NilRegister
}

// uses returns true if reg is the base or the index of the address.
func (a Address) uses(reg asm.Register) bool {
	return a.Base == reg || a.Index == reg
}

// String implements fmt.Stringer.
func (a Address) String() string {
	var parts []string
	if a.Base != asm.NilRegister {
		parts = append(parts, RegisterName(a.Base))
	}
	if a.Index != asm.NilRegister {
		parts = append(parts, fmt.Sprintf("%s*%d", RegisterName(a.Index), 1<<a.Scale))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("[0x%x]", uint64(a.Disp))
	}
	ret := strings.Join(parts, " + ")
	if a.Disp < 0 {
		ret += fmt.Sprintf(" - 0x%x", -uint64(a.Disp))
	} else if a.Disp > 0 {
		ret += fmt.Sprintf(" + 0x%x", a.Disp)
	}
	return "[" + ret + "]"
}

// Location is an operand of Encoder instructions: one of a register, a stack slot, an immediate or a memory address.
//
// The zero value is invalid; use Reg, Stack, Imm, Mem, MemIndex or Abs.
type Location struct {
	kind LocationKind
	reg  asm.Register
	// value is the immediate for LocationKindImmediate and the offset from FramePointer for LocationKindStack.
	value int64
	addr  Address
}

// Reg returns the location of the register reg.
func Reg(reg asm.Register) Location {
	return Location{kind: LocationKindRegister, reg: reg}
}

// Imm returns the location of the immediate value v.
func Imm(v int64) Location {
	return Location{kind: LocationKindImmediate, value: v}
}

// Stack returns the location of the stack slot at offset bytes from FramePointer.
func Stack(offset int64) Location {
	return Location{kind: LocationKindStack, value: offset}
}

// Mem returns the location of the memory at [base + disp]. base can be asm.NilRegister.
func Mem(base asm.Register, disp int64) Location {
	return MemIndex(base, asm.NilRegister, 0, disp)
}

// MemIndex returns the location of the memory at [base + index*(1<<scale) + disp].
// base and index can be asm.NilRegister.
func MemIndex(base, index asm.Register, scale byte, disp int64) Location {
	return Location{kind: LocationKindAddress, addr: Address{Base: base, Index: index, Scale: scale, Disp: disp}}
}

// Abs returns the location of the memory at the absolute address addr.
func Abs(addr uint64) Location {
	return Mem(asm.NilRegister, int64(addr))
}

// Kind returns the tag of this location.
func (l Location) Kind() LocationKind {
	return l.kind
}

// Register returns the register of a LocationKindRegister location.
func (l Location) Register() asm.Register {
	return l.reg
}

// Value returns the immediate of a LocationKindImmediate location.
func (l Location) Value() int64 {
	return l.value
}

// Address returns the memory operand of a LocationKindAddress or LocationKindStack location.
func (l Location) Address() Address {
	if l.kind == LocationKindStack {
		return Address{Base: FramePointer, Index: asm.NilRegister, Disp: l.value}
	}
	return l.addr
}

// String implements fmt.Stringer.
func (l Location) String() (ret string) {
	switch l.kind {
	case LocationKindRegister:
		ret = RegisterName(l.reg)
	case LocationKindStack:
		ret = fmt.Sprintf("stack(%d)", l.value)
	case LocationKindImmediate:
		ret = fmt.Sprintf("$0x%x", l.value)
		if l.value < 0 {
			ret = fmt.Sprintf("$-0x%x", -uint64(l.value))
		}
	case LocationKindAddress:
		ret = l.addr.String()
	default:
		ret = "invalid"
	}
	return
}

// operandType represents how a location is encoded into an instruction.
type operandType byte

const (
	operandTypeNone operandType = iota
	operandTypeRegister
	operandTypeMemory
	operandTypeConst
)

func (o operandType) String() (ret string) {
	switch o {
	case operandTypeNone:
		ret = "none"
	case operandTypeRegister:
		ret = "register"
	case operandTypeMemory:
		ret = "memory"
	case operandTypeConst:
		ret = "const"
	}
	return
}

// operandTypes represents the combinations of the destination and source operands of an instruction.
type operandTypes struct{ dst, src operandType }

var (
	operandTypesRegister           = operandTypes{operandTypeRegister, operandTypeNone}
	operandTypesMemory             = operandTypes{operandTypeMemory, operandTypeNone}
	operandTypesConst              = operandTypes{operandTypeConst, operandTypeNone}
	operandTypesRegisterToRegister = operandTypes{operandTypeRegister, operandTypeRegister}
	operandTypesMemoryToRegister   = operandTypes{operandTypeRegister, operandTypeMemory}
	operandTypesRegisterToMemory   = operandTypes{operandTypeMemory, operandTypeRegister}
	operandTypesConstToRegister    = operandTypes{operandTypeRegister, operandTypeConst}
	operandTypesConstToMemory      = operandTypes{operandTypeMemory, operandTypeConst}
)

// String implements fmt.Stringer
func (o operandTypes) String() string {
	return fmt.Sprintf("from:%s,to:%s", o.src, o.dst)
}

func (l Location) operandType() (ret operandType) {
	switch l.kind {
	case LocationKindRegister:
		ret = operandTypeRegister
	case LocationKindStack, LocationKindAddress:
		ret = operandTypeMemory
	case LocationKindImmediate:
		ret = operandTypeConst
	default:
		ret = operandTypeNone
	}
	return
}
