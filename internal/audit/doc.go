// Package audit relays security-relevant events to pluggable sinks.
//
// The [Dispatcher] decouples emitters from sink latency with a bounded
// buffer. It either drops events when full or blocks the caller until the
// buffer has room or the caller's context ends. Which events to emit is
// decided by the engine, not by this package.
package audit
