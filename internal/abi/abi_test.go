package abi

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory is a fixed-size linear memory with a bump allocator.
type fakeMemory struct {
	buf  []byte
	next uint32
}

func newFakeMemory(size int) *fakeMemory {
	return &fakeMemory{buf: make([]byte, size), next: 8}
}

func (m *fakeMemory) Read(offset, n uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(n)
	if end > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset:end], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *fakeMemory) allocate(_ context.Context, size uint32) (uint32, error) {
	p := m.next
	m.next += size
	return p, nil
}

func TestPackPtrLen(t *testing.T) {
	tests := []struct {
		name   string
		ptr    uint32
		length uint32
		want   uint64
	}{
		{
			name:   "typical values",
			ptr:    0x12345678,
			length: 0xABCDEF00,
			want:   (uint64(0x12345678) << PtrHighBits) | uint64(0xABCDEF00),
		},
		{
			name:   "zero pointer zero length",
			ptr:    0,
			length: 0,
			want:   0,
		},
		{
			name:   "max pointer",
			ptr:    0xFFFFFFFF,
			length: 1,
			want:   (uint64(0xFFFFFFFF) << PtrHighBits) | 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed := PackPtrLen(tt.ptr, tt.length)
			assert.Equal(t, tt.want, packed, "packed value mismatch")

			gotPtr, gotLen, err := UnpackPtrLen(packed)
			require.NoError(t, err)
			assert.Equal(t, tt.ptr, gotPtr, "unpacked pointer mismatch")
			assert.Equal(t, tt.length, gotLen, "unpacked length mismatch")
		})
	}
}

func TestUnpackPtrLen_RejectsNullPointerWithLength(t *testing.T) {
	_, _, err := UnpackPtrLen(uint64(1))
	assert.ErrorIs(t, err, ErrNullPointer)
}

func TestWriteThenReadBytes(t *testing.T) {
	mem := newFakeMemory(64)
	data := []byte(`{"x":1}`)

	packed, err := WriteBytes(context.Background(), mem, mem.allocate, data)
	require.NoError(t, err)
	ptr, length, err := UnpackPtrLen(packed)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), ptr)
	assert.Equal(t, uint32(len(data)), length)

	got, err := ReadBytes(mem, packed, 0)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// the copy is detached from engine memory
	got[0] = 'X'
	again, _ := ReadBytes(mem, packed, 0)
	assert.Equal(t, data, again)
}

func TestWriteBytes_Empty(t *testing.T) {
	mem := newFakeMemory(16)
	packed, err := WriteBytes(context.Background(), mem, mem.allocate, nil)
	require.NoError(t, err)
	assert.Zero(t, packed)
	assert.Equal(t, uint32(8), mem.next, "nothing allocated")

	got, err := ReadBytes(mem, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWriteBytes_Failures(t *testing.T) {
	mem := newFakeMemory(16)
	boom := stdErrors.New("guest trapped")

	_, err := WriteBytes(context.Background(), mem, func(context.Context, uint32) (uint32, error) { return 0, boom }, []byte("a"))
	assert.ErrorIs(t, err, boom)

	_, err = WriteBytes(context.Background(), mem, func(context.Context, uint32) (uint32, error) { return 0, nil }, []byte("a"))
	assert.ErrorIs(t, err, ErrNullPointer)

	_, err = WriteBytes(context.Background(), mem, mem.allocate, make([]byte, 32))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReadBytes_Bounds(t *testing.T) {
	mem := newFakeMemory(16)

	_, err := ReadBytes(mem, PackPtrLen(12, 8), 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ReadBytes(mem, PackPtrLen(0, 4), 0)
	assert.ErrorIs(t, err, ErrNullPointer)

	_, err = ReadBytes(mem, PackPtrLen(4, 8), 4)
	assert.ErrorContains(t, err, "exceeds limit")
}
