package x86

import (
	"github.com/pkg/errors"

	"github.com/tetratelabs/regloc/internal/asm"
)

// ScratchSession is the state of the scratch register reuse session.
//
// While the session is Active, the encoder may leave a 64-bit address in ScratchRegister between instructions
// and address memory relative to it instead of loading it again. Known is true when Value is held by
// ScratchRegister. Outside a session every address is loaded afresh.
type ScratchSession struct {
	Active bool
	Known  bool
	Value  int64
}

// movScratchOpcode is "REX.W B8+r io" for "MOV R11, imm64".
var movScratchOpcode = []byte{rexPrefixW | rexPrefixB, 0xb8 | byte(ScratchRegister&0b111)}

// BeginReuseScratchRegister opens the scratch register session. The caller must not touch ScratchRegister
// until EndReuseScratchRegister.
func (e *Encoder) BeginReuseScratchRegister() error {
	if e.session.Active {
		return errors.Wrap(asm.ErrInvalidScratchUse, "scratch register session is already open")
	}
	e.session = ScratchSession{Active: true}
	return nil
}

// EndReuseScratchRegister closes the scratch register session opened by BeginReuseScratchRegister.
func (e *Encoder) EndReuseScratchRegister() error {
	if !e.session.Active {
		return errors.Wrap(asm.ErrInvalidScratchUse, "scratch register session is not open")
	}
	e.session = ScratchSession{}
	return nil
}

// WithReusedScratchRegister runs fn inside a scratch register session, which is closed when fn returns
// whether it succeeded or not.
func (e *Encoder) WithReusedScratchRegister(fn func() error) (err error) {
	if err = e.BeginReuseScratchRegister(); err != nil {
		return
	}
	defer func() {
		if endErr := e.EndReuseScratchRegister(); err == nil {
			err = endErr
		}
	}()
	return fn()
}

// loadScratchAddress makes ScratchRegister hold an address within int32 range of addr, and returns the
// displacement from it to addr.
func (e *Encoder) loadScratchAddress(addr int64) int32 {
	if e.session.Active && e.session.Known {
		// Addresses wrap around, so the difference is computed modulo 2^64 as well.
		if delta := addr - e.session.Value; fitInSigned32bit(delta) {
			return int32(delta)
		}
	}
	e.buf.Write(movScratchOpcode)
	e.writeConst(addr, 64)
	if e.session.Active {
		e.session.Known, e.session.Value = true, addr
	}
	return 0
}

// loadScratchConst loads v into ScratchRegister for an instruction which can't embed it.
func (e *Encoder) loadScratchConst(v int64) {
	e.buf.Write(movScratchOpcode)
	e.writeConst(v, 64)
	e.forgetScratchValue()
}

// forgetScratchValue records that ScratchRegister no longer holds an address which can be reused.
func (e *Encoder) forgetScratchValue() {
	e.session.Known, e.session.Value = false, 0
}

// resolveAddress returns the memory operand for a, emitting the instructions to materialize its displacement
// into ScratchRegister when it doesn't fit in the 32-bit displacement of the ModRM encoding.
func (e *Encoder) resolveAddress(a Address) (memoryOperand, error) {
	if e.arch == asm.Arch32 {
		// The 32-bit address space wraps around, so only the lower 32 bits of the displacement matter.
		return memoryOperand{base: a.Base, index: a.Index, scale: a.Scale, disp: int32(a.Disp)}, nil
	}
	if fitInSigned32bit(a.Disp) {
		return memoryOperand{base: a.Base, index: a.Index, scale: a.Scale, disp: int32(a.Disp)}, nil
	}

	res := e.loadScratchAddress(a.Disp)
	switch {
	case a.Base == asm.NilRegister && a.Index == asm.NilRegister:
		// [R11 + res]
		return memoryOperand{base: ScratchRegister, index: asm.NilRegister, disp: res}, nil
	case a.Base == asm.NilRegister:
		// [R11 + index*scale + res]
		return memoryOperand{base: ScratchRegister, index: a.Index, scale: a.Scale, disp: res}, nil
	case a.Index == asm.NilRegister:
		// [base + R11*1 + res]
		return memoryOperand{base: a.Base, index: ScratchRegister, disp: res}, nil
	default:
		// LEA R11, [base + R11], then [R11 + index*scale + res].
		// R11 no longer holds the address, so it cannot be reused.
		err := e.writeMemoryInstruction(operandSize64, []byte{0x8d}, byte(ScratchRegister&0b111), rexPrefixR,
			memoryOperand{base: a.Base, index: ScratchRegister})
		if err != nil {
			return memoryOperand{}, err
		}
		e.forgetScratchValue()
		return memoryOperand{base: ScratchRegister, index: a.Index, scale: a.Scale, disp: res}, nil
	}
}
