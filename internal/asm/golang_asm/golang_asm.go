// Package golang_asm assembles amd64 instructions with golang-asm, the assembler of the Go toolchain,
// so that tests can compare our encodings against it.
package golang_asm

import (
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/tetratelabs/regloc/internal/asm"
)

// Assembler is a thin wrapper of goasm.Builder for amd64.
type Assembler struct {
	b *goasm.Builder
}

// NewAssembler returns a new amd64 Assembler.
func NewAssembler() (*Assembler, error) {
	b, err := goasm.NewBuilder("amd64", 64)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new assembly builder: %w", err)
	}
	a := &Assembler{b: b}
	// golang-asm treats the first instruction as the function entry, so we place a NOP which emits nothing.
	nop := b.NewProg()
	nop.As = obj.ANOP
	b.AddInstruction(nop)
	return a, nil
}

// Assemble returns the machine code of the added instructions.
func (a *Assembler) Assemble() []byte {
	return a.b.Assemble()
}

// Mem is a memory operand. Base must not be asm.NilRegister, and Scale is the shift amount of Index.
type Mem struct {
	Base, Index asm.Register
	Scale       byte
	Disp        int64
}

// MemoryToRegister adds "inst mem, reg" in Go assembler operand order, e.g. MOVQ 8(AX), CX.
func (a *Assembler) MemoryToRegister(inst obj.As, src Mem, dst asm.Register) {
	p := a.b.NewProg()
	p.As = inst
	setMem(&p.From, src)
	setReg(&p.To, dst)
	a.b.AddInstruction(p)
}

// RegisterToMemory adds "inst reg, mem" in Go assembler operand order, e.g. MOVQ CX, 8(AX).
func (a *Assembler) RegisterToMemory(inst obj.As, src asm.Register, dst Mem) {
	p := a.b.NewProg()
	p.As = inst
	setReg(&p.From, src)
	setMem(&p.To, dst)
	a.b.AddInstruction(p)
}

// ConstToRegister adds "inst $v, reg".
func (a *Assembler) ConstToRegister(inst obj.As, v int64, dst asm.Register) {
	p := a.b.NewProg()
	p.As = inst
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = v
	setReg(&p.To, dst)
	a.b.AddInstruction(p)
}

// Register adds "inst reg" such as PUSHQ and POPQ.
func (a *Assembler) Register(inst obj.As, reg asm.Register) {
	p := a.b.NewProg()
	p.As = inst
	if inst == x86.APOPQ {
		setReg(&p.To, reg)
	} else {
		setReg(&p.From, reg)
	}
	a.b.AddInstruction(p)
}

// golangAsmRegister converts a register number of x86 into the one of golang-asm.
// Both number AX, CX, DX, BX, SP, BP, SI, DI, R8, ..., R15 in this order.
func golangAsmRegister(reg asm.Register) int16 {
	if reg > 15 {
		panic(fmt.Sprintf("BUG: register %d has no golang-asm counterpart", reg))
	}
	return x86.REG_AX + int16(reg)
}

func setReg(addr *obj.Addr, reg asm.Register) {
	addr.Type = obj.TYPE_REG
	addr.Reg = golangAsmRegister(reg)
}

func setMem(addr *obj.Addr, m Mem) {
	addr.Type = obj.TYPE_MEM
	addr.Reg = golangAsmRegister(m.Base)
	addr.Offset = m.Disp
	if m.Index != asm.NilRegister {
		addr.Index = golangAsmRegister(m.Index)
		addr.Scale = 1 << m.Scale
	}
}

// RegisterToRegister adds "inst src, dst" in Go assembler operand order.
func (a *Assembler) RegisterToRegister(inst obj.As, src, dst asm.Register) {
	p := a.b.NewProg()
	p.As = inst
	setReg(&p.From, src)
	setReg(&p.To, dst)
	a.b.AddInstruction(p)
}
