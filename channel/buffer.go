package channel

import (
	"bytes"
	"io"
)

// BinaryBuffer is a read-only view over a message payload.
// A buffer handed to a Handler is only valid for the duration of that call;
// use Clone to keep the bytes.
type BinaryBuffer struct {
	data []byte
	pos  int
}

// NewBinaryBuffer wraps data without copying it.
func NewBinaryBuffer(data []byte) *BinaryBuffer {
	return &BinaryBuffer{data: data}
}

// Bytes returns the unread portion of the buffer.
func (b *BinaryBuffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data[b.pos:]
}

// Clone returns a copy of the unread portion.
func (b *BinaryBuffer) Clone() []byte {
	return bytes.Clone(b.Bytes())
}

// Len returns the total size of the payload.
func (b *BinaryBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Remaining returns the number of unread bytes.
func (b *BinaryBuffer) Remaining() int {
	if b == nil {
		return 0
	}
	return len(b.data) - b.pos
}

// Position returns the read offset.
func (b *BinaryBuffer) Position() int {
	if b == nil {
		return 0
	}
	return b.pos
}

// Read implements io.Reader.
func (b *BinaryBuffer) Read(p []byte) (int, error) {
	if b.Remaining() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

// ReadByte implements io.ByteReader.
func (b *BinaryBuffer) ReadByte() (byte, error) {
	if b.Remaining() == 0 {
		return 0, io.EOF
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

// Next returns the next n unread bytes and advances past them.
// If fewer than n bytes remain, Next returns what is left.
func (b *BinaryBuffer) Next(n int) []byte {
	if n < 0 {
		n = 0
	}
	if r := b.Remaining(); n > r {
		n = r
	}
	out := b.data[b.pos : b.pos+n]
	b.pos += n
	return out
}

// Rewind resets the read offset to the start of the payload.
func (b *BinaryBuffer) Rewind() {
	if b != nil {
		b.pos = 0
	}
}

func (b *BinaryBuffer) String() string {
	return string(b.Bytes())
}
