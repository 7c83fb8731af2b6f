// Package client is a resilient TCP client for the store daemon. It
// implements store.RawStore, so wrapping it with store.Wrap yields the
// same API as an embedded store.
//
// # Connection lifecycle
//
// A Client starts Disconnected and dials lazily on first use. When the
// connection fails it moves back to Disconnected and a background loop
// redials with full-jitter exponential backoff:
//
//	sleep = random[0, min(MaxBackoff, BaseBackoff * 2^attempt))
//
// # Failure semantics
//
// While disconnected, calls block until the connection is back, bounded
// by the caller's context and RequestTimeout. With FailFast they return
// domain.ErrDisconnected immediately.
//
// A response that does not arrive in time fails the call with
// domain.ErrTimeout and tears the connection down, because the stream
// can no longer be trusted. Late responses are discarded by request id.
//
// Transport failures are retried only for read operations with
// RetryReads, and for SET, DEL and MOVE only with RetryWrites, which
// gives at-least-once semantics. Everything else surfaces to the caller.
// domain.ErrDisconnected and domain.ErrTimeout have no embedded
// equivalent.
package client
