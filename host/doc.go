// Package host sequences the lifecycle of a native engine host.
//
// The lifecycle runs in four steps:
//
//	before create  build every named channel, the "system" channel first
//	engine create  create the engine host, handing it the system channel
//	update         drain inbound messages, run frame callbacks and timers, tick the engine
//	destroy        destroy the engine host, then release every channel
//
// Builder, Prepared and Host encode that order in types: a Host can only be
// obtained from a Prepared, and a Prepared only from Builder.BeforeCreate.
// Controller wraps the same steps in a state machine for embedders driven by
// platform callbacks, returning *errors.LifecycleOrderingError on misuse.
//
// All lifecycle calls must come from one owner goroutine. Engine messages may
// arrive on any goroutine; they are queued and handed to channel handlers
// during Update.
package host
