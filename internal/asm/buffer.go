package asm

import "encoding/binary"

// CodeBuffer is an append-only byte sequence where encoded instructions are written.
//
// The zero value is an empty buffer ready to use. The only mutation other than appending
// is Truncate, which the encoders use to roll back a partially written instruction.
type CodeBuffer struct {
	code []byte
}

// NewCodeBuffer returns a CodeBuffer with room for sizeHint bytes before it has to grow.
func NewCodeBuffer(sizeHint int) *CodeBuffer {
	return &CodeBuffer{code: make([]byte, 0, sizeHint)}
}

// Len returns the number of bytes written so far.
func (buf *CodeBuffer) Len() int {
	return len(buf.code)
}

// Cap returns the number of bytes the buffer can hold before growing.
func (buf *CodeBuffer) Cap() int {
	return cap(buf.code)
}

// Bytes returns the written bytes.
//
// The returned slice remains valid until more bytes are written to the buffer.
func (buf *CodeBuffer) Bytes() []byte {
	return buf.code[:len(buf.code):len(buf.code)]
}

// Truncate discards all but the first n written bytes.
func (buf *CodeBuffer) Truncate(n int) {
	if n < 0 || n > len(buf.code) {
		panic("BUG: truncating code buffer out of range")
	}
	buf.code = buf.code[:n]
}

// Reset empties the buffer, retaining its capacity.
func (buf *CodeBuffer) Reset() {
	buf.code = buf.code[:0]
}

func (buf *CodeBuffer) WriteByte(b byte) error {
	buf.code = append(buf.code, b)
	return nil
}

func (buf *CodeBuffer) Write(b []byte) (int, error) {
	buf.code = append(buf.code, b...)
	return len(b), nil
}

func (buf *CodeBuffer) WriteUint16(u uint16) {
	buf.code = binary.LittleEndian.AppendUint16(buf.code, u)
}

func (buf *CodeBuffer) WriteUint32(u uint32) {
	buf.code = binary.LittleEndian.AppendUint32(buf.code, u)
}

func (buf *CodeBuffer) WriteUint64(u uint64) {
	buf.code = binary.LittleEndian.AppendUint64(buf.code, u)
}
