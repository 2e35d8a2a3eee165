// Package asm holds the architecture independent pieces shared by the encoders under this directory.
package asm

import "fmt"

// Register represents an architecture-specific register.
type Register byte

// NilRegister is the only architecture-independent register, and
// can be used to indicate that no register is specified.
const NilRegister Register = 0xff

// Instruction represents an architecture-specific instruction.
type Instruction byte

// ConstantValue represents a constant value used in an instruction.
type ConstantValue = int64

// Arch is the address width an encoder targets.
type Arch byte

const (
	// Arch32 targets 32-bit flat protected mode.
	Arch32 Arch = 32
	// Arch64 targets 64-bit long mode.
	Arch64 Arch = 64
)

// WordSize returns the size in bytes of a machine word on this architecture.
func (a Arch) WordSize() int {
	return int(a) / 8
}

// String implements fmt.Stringer.
func (a Arch) String() string {
	switch a {
	case Arch32:
		return "x86-32"
	case Arch64:
		return "x86-64"
	}
	return fmt.Sprintf("Arch(%d)", byte(a))
}

// Valid returns true if a is one of Arch32 or Arch64.
func (a Arch) Valid() bool {
	return a == Arch32 || a == Arch64
}
