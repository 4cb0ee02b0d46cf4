// Package wazero runs an engine compiled to WebAssembly under the wazero
// runtime and exposes it as a ports.Engine.
//
// Payloads cross linear memory as packed i64 values: pointer in the high 32
// bits, length in the low 32 bits. The host writes into guest memory through
// the guest's allocate export.
//
// # Guest exports
//
//	memory
//	allocate(size i32) -> i32
//	channel_create(name i64) -> i32                   ; channel handle, 0 on failure
//	channel_handle_message(channel i32, data i64) -> i32 ; 0 on success
//	channel_release(channel i32) -> i32                ; 0 on success
//	host_create(primary i32, width i32, height i32) -> i32 ; host handle, 0 on failure
//	host_update(host i32) -> i32                       ; 0 on success
//	host_destroy(host i32) -> i32                      ; 0 on success
//	host_resize(host i32, width i32, height i32) -> i32 ; optional
//	_initialize                                        ; optional, called once
//
// # Host module (default name "bridge_host")
//
//	channel_send(channel i32, data i64)
//	log_message(record i64)                            ; MessageWire JSON
//
// Messages the guest sends while the host is calling into it are queued and
// handed to the bound channels after the call returns.
//
// # Basic Usage
//
//	eng, err := wazero.New(ctx, wasmBytes,
//	    wazero.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
//	ctrl := host.NewController(eng)
package wazero
