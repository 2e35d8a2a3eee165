package x86

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/tetratelabs/regloc/internal/asm"
)

// Encoder emits x86 machine code for instructions whose operands are given as Location.
//
// Every instruction is encoded atomically: when an instruction fails, nothing is appended to the code
// and the scratch register session is left as it was before the call.
//
// Note: Encoder is not goroutine-safe. Use one encoder per code generation unit, they don't share any state.
type Encoder struct {
	arch asm.Arch
	buf  *asm.CodeBuffer
	// baseAddress is the address where the code will be placed, and is used to compute relative jumps.
	baseAddress uint64
	session     ScratchSession
	logger      *slog.Logger
}

// NewEncoder returns a new Encoder for the target arch.
func NewEncoder(arch asm.Arch) (*Encoder, error) {
	if !arch.Valid() {
		return nil, errors.Errorf("unsupported architecture %s", arch)
	}
	return &Encoder{arch: arch, buf: asm.NewCodeBuffer(128), logger: defaultLogger()}, nil
}

// Arch returns the target architecture.
func (e *Encoder) Arch() asm.Arch {
	return e.arch
}

// SetBaseAddress sets the address at which the first byte of the code will be placed.
func (e *Encoder) SetBaseAddress(addr uint64) {
	e.baseAddress = addr
}

// BaseAddress returns the address given by SetBaseAddress.
func (e *Encoder) BaseAddress() uint64 {
	return e.baseAddress
}

// SetLogger sets the logger receiving one debug record per encoded instruction. nil disables tracing.
func (e *Encoder) SetLogger(logger *slog.Logger) {
	e.logger = logger
}

// Bytes returns the code encoded so far. The returned slice must not be modified.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the length of the code encoded so far.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// CurrentAddress returns the address of the next instruction.
func (e *Encoder) CurrentAddress() uint64 {
	return e.baseAddress + uint64(e.buf.Len())
}

// ScratchSession returns the current state of the scratch register session.
func (e *Encoder) ScratchSession() ScratchSession {
	return e.session
}

// Reset discards the encoded code and closes the scratch register session, keeping the base address.
func (e *Encoder) Reset() {
	e.buf.Reset()
	e.session = ScratchSession{}
}

// Encode encodes the instruction with the operands, the destination first.
func (e *Encoder) Encode(instruction asm.Instruction, operands ...Location) (err error) {
	start, session := e.buf.Len(), e.session
	defer func() {
		if err != nil {
			e.buf.Truncate(start)
			e.session = session
			err = errors.Wrapf(err, "%s %s", InstructionName(instruction), formatOperands(operands))
			return
		}
		if e.logger != nil {
			e.trace(instruction, operands, start)
		}
	}()

	if instruction >= instructionEnd || instruction == NONE {
		return errors.Wrapf(asm.ErrUnsupportedOperandCombination, "unknown instruction %d", instruction)
	}
	for _, op := range operands {
		if err = e.validateLocation(op); err != nil {
			return
		}
	}

	d := &descriptors[instruction]
	switch len(operands) {
	case 1:
		switch d.kind {
		case encodingKindPush:
			err = e.encodePush(d, operands[0])
		case encodingKindPop:
			err = e.encodePop(d, operands[0])
		case encodingKindBranch:
			err = e.encodeBranch(d, operands[0])
		default:
			err = errors.Wrap(asm.ErrUnsupportedOperandCombination, "expected two operands")
		}
	case 2:
		switch d.kind {
		case encodingKindMove:
			err = e.encodeMove(d, operands[0], operands[1])
		case encodingKindALU:
			err = e.encodeALU(d, operands[0], operands[1])
		case encodingKindTest:
			err = e.encodeTest(d, operands[0], operands[1])
		case encodingKindLea:
			err = e.encodeLea(d, operands[0], operands[1])
		default:
			err = errors.Wrap(asm.ErrUnsupportedOperandCombination, "expected one operand")
		}
	default:
		err = errors.Wrapf(asm.ErrUnsupportedOperandCombination, "%d operands", len(operands))
	}
	return
}

func (e *Encoder) trace(instruction asm.Instruction, operands []Location, start int) {
	e.logger.LogAttrs(context.Background(), slog.LevelDebug, "encoded",
		slog.String("arch", e.arch.String()),
		slog.String("mnemonic", InstructionName(instruction)),
		slog.String("operands", formatOperands(operands)),
		slog.Int("offset", start),
		slog.String("bytes", hex.EncodeToString(e.buf.Bytes()[start:])),
	)
}

// validateLocation checks the parts of a location which don't depend on the instruction.
func (e *Encoder) validateLocation(l Location) error {
	switch l.Kind() {
	case LocationKindRegister:
		return e.validateRegister(l.Register())
	case LocationKindImmediate:
		return nil
	case LocationKindStack, LocationKindAddress:
		a := l.Address()
		if a.Base != asm.NilRegister {
			if err := e.validateRegister(a.Base); err != nil {
				return err
			}
		}
		if a.Index == asm.NilRegister {
			if a.Scale != 0 {
				return errors.Wrapf(asm.ErrUnsupportedOperand, "scale %d without index register", a.Scale)
			}
			return nil
		}
		if err := e.validateRegister(a.Index); err != nil {
			return err
		}
		if a.Index == RegSP {
			return errors.Wrap(asm.ErrUnsupportedOperand, "SP cannot be used for SIB index")
		} else if a.Scale > 3 {
			return errors.Wrapf(asm.ErrUnsupportedOperand, "scale in SIB must be one of 0, 1, 2, 3 but got %d", a.Scale)
		}
		return nil
	default:
		return errors.Wrap(asm.ErrUnsupportedOperand, "invalid location")
	}
}

func (e *Encoder) validateRegister(reg asm.Register) error {
	if !isGeneralPurposeRegister(reg) {
		return errors.Wrapf(asm.ErrUnsupportedOperand, "invalid register [%s]", RegisterName(reg))
	}
	switch e.arch {
	case asm.Arch32:
		if isExtendedRegister(reg) {
			return errors.Wrapf(asm.ErrUnsupportedOperand, "%s is not available on %s", RegisterName(reg), e.arch)
		}
	case asm.Arch64:
		if reg == ScratchRegister {
			return errors.Wrapf(asm.ErrInvalidScratchUse, "%s is reserved", RegisterName(reg))
		}
	}
	return nil
}

func formatOperands(operands []Location) string {
	s := make([]string, len(operands))
	for i, op := range operands {
		s[i] = op.String()
	}
	return strings.Join(s, ", ")
}
