// Package abi moves byte payloads across the engine's linear memory using the
// packed pointer+length convention: pointer in the high 32 bits, length in
// the low 32 bits of an i64.
package abi

import (
	"context"
	stdErrors "errors"
	"fmt"
)

// PtrHighBits is the shift applied to the pointer half of a packed value.
const PtrHighBits = 32

// DefaultMaxMessageSize bounds a single payload read from engine memory.
const DefaultMaxMessageSize = 16 * 1024 * 1024 // 16 MB

var (
	// ErrNullPointer is returned for a packed value with a zero pointer and a non-zero length.
	ErrNullPointer = stdErrors.New("abi: null pointer with non-zero length")

	// ErrOutOfRange is returned when a payload does not fit in engine memory.
	ErrOutOfRange = stdErrors.New("abi: memory access out of range")
)

// Memory is the view of engine linear memory the helpers need.
// wazero's api.Memory satisfies it.
type Memory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// Allocator reserves size bytes in engine memory and returns the offset.
type Allocator func(ctx context.Context, size uint32) (uint32, error)

// PackPtrLen packs a pointer and length into a single uint64.
func PackPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen splits a packed value. A zero pointer with a non-zero length
// is rejected.
func UnpackPtrLen(packed uint64) (ptr, length uint32, err error) {
	ptr = uint32(packed >> PtrHighBits) //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed)             //nolint:gosec // G115: packed format stores 32-bit values
	if ptr == 0 && length > 0 {
		return 0, 0, fmt.Errorf("%w (length %d)", ErrNullPointer, length)
	}
	return ptr, length, nil
}

// ReadBytes copies the payload a packed value points at. An empty payload
// returns an empty, non-nil slice.
func ReadBytes(mem Memory, packed uint64, limit uint32) ([]byte, error) {
	ptr, length, err := UnpackPtrLen(packed)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	if limit > 0 && length > limit {
		return nil, fmt.Errorf("abi: payload of %d bytes exceeds limit of %d", length, limit)
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("%w: read %d bytes at 0x%x", ErrOutOfRange, length, ptr)
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// WriteBytes allocates room for data in engine memory, copies it there and
// returns the packed location. Empty data packs to zero without allocating.
func WriteBytes(ctx context.Context, mem Memory, alloc Allocator, data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	size := uint32(len(data)) //nolint:gosec // G115: payloads are bounded by DefaultMaxMessageSize
	ptr, err := alloc(ctx, size)
	if err != nil {
		return 0, fmt.Errorf("abi: allocate %d bytes: %w", size, err)
	}
	if ptr == 0 {
		return 0, fmt.Errorf("abi: allocate %d bytes: %w", size, ErrNullPointer)
	}
	if !mem.Write(ptr, data) {
		return 0, fmt.Errorf("%w: write %d bytes at 0x%x", ErrOutOfRange, size, ptr)
	}
	return PackPtrLen(ptr, size), nil
}
