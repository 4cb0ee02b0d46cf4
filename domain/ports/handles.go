package ports

import "fmt"

// ChannelHandle identifies an engine-side channel counterpart.
// Only the engine that issued a handle can interpret it.
type ChannelHandle struct {
	raw uint64
}

// NewChannelHandle wraps an engine-issued value. Zero is never a valid handle.
func NewChannelHandle(raw uint64) ChannelHandle {
	return ChannelHandle{raw: raw}
}

// Value returns the engine-issued value. Intended for engine adapters only.
func (h ChannelHandle) Value() uint64 {
	return h.raw
}

// Valid reports whether the handle was issued by an engine.
func (h ChannelHandle) Valid() bool {
	return h.raw != 0
}

func (h ChannelHandle) String() string {
	return fmt.Sprintf("channel#%d", h.raw)
}

// HostHandle identifies an engine-side host instance.
type HostHandle struct {
	raw uint64
}

// NewHostHandle wraps an engine-issued value. Zero is never a valid handle.
func NewHostHandle(raw uint64) HostHandle {
	return HostHandle{raw: raw}
}

// Value returns the engine-issued value. Intended for engine adapters only.
func (h HostHandle) Value() uint64 {
	return h.raw
}

// Valid reports whether the handle was issued by an engine.
func (h HostHandle) Valid() bool {
	return h.raw != 0
}

func (h HostHandle) String() string {
	return fmt.Sprintf("host#%d", h.raw)
}
