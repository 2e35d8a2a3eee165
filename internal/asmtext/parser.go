// Package asmtext parses instructions written in an Intel-like syntax, one per line:
//
//	mov rcx, [rdx + rsi*4 + 0x10]
//	cmp16 [r13], 12345   ; comment
//	jmp 0x800000bb
//
// Operands are registers, immediates, memory addresses "[base + index*scale + disp]" and
// stack slots "stack(offset)".
package asmtext

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tetratelabs/regloc/internal/asm"
	"github.com/tetratelabs/regloc/internal/asm/x86"
)

// Statement is one parsed instruction.
type Statement struct {
	Pos         Position
	Instruction asm.Instruction
	Operands    []x86.Location
}

// String implements fmt.Stringer.
func (s Statement) String() string {
	ops := make([]string, len(s.Operands))
	for i, op := range s.Operands {
		ops[i] = op.String()
	}
	return strings.TrimSpace(x86.InstructionName(s.Instruction) + " " + strings.Join(ops, ", "))
}

var instructions = map[string]asm.Instruction{}

var registers = map[string]asm.Register{}

func init() {
	for inst := x86.NONE + 1; x86.InstructionName(inst) != "UNKNOWN"; inst++ {
		instructions[x86.InstructionName(inst)] = inst
	}

	// The register names don't carry the operand size, which is given by the instruction.
	for i, names := range [][]string{
		{"rax", "eax", "ax"}, {"rcx", "ecx", "cx"}, {"rdx", "edx", "dx"}, {"rbx", "ebx", "bx"},
		{"rsp", "esp", "sp"}, {"rbp", "ebp", "bp"}, {"rsi", "esi", "si"}, {"rdi", "edi", "di"},
	} {
		for _, name := range names {
			registers[name] = x86.RegAX + asm.Register(i)
		}
	}
	for reg := x86.RegR8; reg <= x86.RegR15; reg++ {
		name := strings.ToLower(x86.RegisterName(reg))
		registers[name] = reg
		registers[name+"d"] = reg
		registers[name+"w"] = reg
	}
}

// Parse parses all the statements of r. filename is only used in error messages.
func Parse(r io.Reader, filename string) ([]Statement, error) {
	var ret []Statement
	s := bufio.NewScanner(r)
	for line := 1; s.Scan(); line++ {
		stmt, ok, err := parseLine(s.Text(), Position{File: filename, Line: line, Col: 1})
		if err != nil {
			return nil, err
		} else if ok {
			ret = append(ret, stmt)
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", filename)
	}
	return ret, nil
}

// ParseStatement parses a single instruction.
func ParseStatement(src string) (Statement, error) {
	stmt, ok, err := parseLine(src, Position{Line: 1, Col: 1})
	if err != nil {
		return Statement{}, err
	} else if !ok {
		return Statement{}, newError(Position{Line: 1, Col: 1}, "missing instruction")
	}
	return stmt, nil
}

// parser holds the tokens of one line.
type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) next() token {
	tok := p.toks[p.i]
	if tok.typ != tokEOL {
		p.i++
	}
	return tok
}

func (p *parser) accept(punct string) bool {
	if tok := p.peek(); tok.typ == tokPunct && tok.value == punct {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(punct string) error {
	if tok := p.peek(); !p.accept(punct) {
		return newError(tok.pos, "expected %q but got %s", punct, describe(tok))
	}
	return nil
}

// parseLine returns false when the line has no statement.
func parseLine(line string, pos Position) (stmt Statement, ok bool, err error) {
	toks, err := newTokenizer(line, pos).tokens()
	if err != nil {
		return
	}
	p := &parser{toks: toks}

	mnemonic := p.next()
	switch mnemonic.typ {
	case tokEOL:
		return
	case tokIdent:
	default:
		err = newError(mnemonic.pos, "expected instruction but got %s", describe(mnemonic))
		return
	}

	inst, found := instructions[strings.ToUpper(mnemonic.value)]
	if !found {
		err = newError(mnemonic.pos, "unknown instruction %q", mnemonic.value)
		return
	}
	stmt = Statement{Pos: mnemonic.pos, Instruction: inst}

	if p.peek().typ != tokEOL {
		for {
			var op x86.Location
			if op, err = p.parseOperand(); err != nil {
				return
			}
			stmt.Operands = append(stmt.Operands, op)
			if !p.accept(",") {
				break
			}
		}
	}
	if tok := p.peek(); tok.typ != tokEOL {
		err = newError(tok.pos, "unexpected %s", describe(tok))
		return
	}
	ok = true
	return
}

func (p *parser) parseOperand() (x86.Location, error) {
	tok := p.peek()
	switch {
	case tok.typ == tokPunct && tok.value == "[":
		p.next()
		return p.parseMemory()
	case tok.typ == tokIdent && strings.EqualFold(tok.value, "stack"):
		p.next()
		return p.parseStack()
	case tok.typ == tokIdent:
		p.next()
		reg, ok := registers[strings.ToLower(tok.value)]
		if !ok {
			return x86.Location{}, newError(tok.pos, "unknown register %q", tok.value)
		}
		return x86.Reg(reg), nil
	default:
		v, err := p.parseSignedNumber()
		if err != nil {
			return x86.Location{}, err
		}
		return x86.Imm(v), nil
	}
}

// parseStack parses "(offset)" following "stack".
func (p *parser) parseStack() (x86.Location, error) {
	if err := p.expect("("); err != nil {
		return x86.Location{}, err
	}
	offset, err := p.parseSignedNumber()
	if err != nil {
		return x86.Location{}, err
	}
	if err = p.expect(")"); err != nil {
		return x86.Location{}, err
	}
	return x86.Stack(offset), nil
}

// parseMemory parses the terms of "base + index*scale + disp]" following "[" in any order.
func (p *parser) parseMemory() (x86.Location, error) {
	base, index := asm.NilRegister, asm.NilRegister
	var scale byte
	var disp int64

	negative := p.accept("-")
	for {
		tok := p.peek()
		switch tok.typ {
		case tokIdent:
			p.next()
			reg, ok := registers[strings.ToLower(tok.value)]
			if !ok {
				return x86.Location{}, newError(tok.pos, "unknown register %q", tok.value)
			} else if negative {
				return x86.Location{}, newError(tok.pos, "register %s cannot be subtracted", tok.value)
			}

			if p.accept("*") {
				if index != asm.NilRegister {
					return x86.Location{}, newError(tok.pos, "more than one index register")
				}
				s, err := p.parseScale()
				if err != nil {
					return x86.Location{}, err
				}
				index, scale = reg, s
			} else if base == asm.NilRegister {
				base = reg
			} else if index == asm.NilRegister {
				index = reg
			} else {
				return x86.Location{}, newError(tok.pos, "too many registers")
			}
		case tokNumber:
			p.next()
			v, err := parseNumber(tok)
			if err != nil {
				return x86.Location{}, err
			}
			if negative {
				v = -v
			}
			disp += v
		default:
			return x86.Location{}, newError(tok.pos, "expected register or number but got %s", describe(tok))
		}

		switch {
		case p.accept("]"):
			return x86.MemIndex(base, index, scale, disp), nil
		case p.accept("+"):
			negative = false
		case p.accept("-"):
			negative = true
		default:
			tok := p.peek()
			return x86.Location{}, newError(tok.pos, "expected \"]\" but got %s", describe(tok))
		}
	}
}

// parseScale parses the factor of an index register into its shift amount.
func (p *parser) parseScale() (byte, error) {
	tok := p.next()
	if tok.typ == tokNumber {
		switch tok.value {
		case "1":
			return 0, nil
		case "2":
			return 1, nil
		case "4":
			return 2, nil
		case "8":
			return 3, nil
		}
	}
	return 0, newError(tok.pos, "scale must be one of 1, 2, 4, 8 but got %s", describe(tok))
}

func (p *parser) parseSignedNumber() (int64, error) {
	negative := false
	if p.accept("-") {
		negative = true
	} else {
		p.accept("+")
	}
	tok := p.next()
	if tok.typ != tokNumber {
		return 0, newError(tok.pos, "expected number but got %s", describe(tok))
	}
	v, err := parseNumber(tok)
	if err != nil {
		return 0, err
	}
	if negative {
		v = -v
	}
	return v, nil
}

// parseNumber parses a decimal or "0x" prefixed hexadecimal number of up to 64 bits.
// Numbers above math.MaxInt64 are returned as their two's complement.
func parseNumber(tok token) (int64, error) {
	value, base := strings.ReplaceAll(tok.value, "_", ""), 10
	if len(value) > 2 && (value[:2] == "0x" || value[:2] == "0X") {
		value, base = value[2:], 16
	}
	v, err := strconv.ParseUint(value, base, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, newError(tok.pos, "invalid number %q: %v", tok.value, err)
	}
	return int64(v), nil
}

func describe(tok token) string {
	if tok.typ == tokEOL {
		return "end of line"
	}
	return strconv.Quote(tok.value)
}
