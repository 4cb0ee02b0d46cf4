// Package channel implements the byte transport between a host and a native
// engine and the typed message layer on top of it.
//
// A BinaryChannel is paired 1:1 with an engine-side counterpart created by
// Create. Outbound bytes go to the engine with Send; inbound bytes arrive on
// OnNativeMessage from any goroutine and are marshaled onto the owner
// goroutine through a Dispatcher before the handler sees them.
//
// A MessageChannel wraps a BinaryChannel with a Codec so that handlers and
// senders work with values instead of bytes. Channels are collected into an
// immutable Registry once, before the engine host is created.
package channel
