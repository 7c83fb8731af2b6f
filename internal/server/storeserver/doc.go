// Package storeserver exposes a store.RawStore over TCP using the
// framed protocol of package protocol.
//
// Each connection is served by one goroutine and requests on it are
// answered in arrival order. Writes to the same (persona, app) from
// different connections are serialized by the store's lock table.
//
// Resource limits:
//
//   - MaxConnections caps concurrent connections; extra clients receive
//     an ERR CS-SYS-5030 frame and are closed.
//   - RateLimit bounds requests per second per connection.
//   - ReadTimeout, WriteTimeout and IdleTimeout bound slow peers.
//   - MaxFrameSize bounds a single frame element.
package storeserver
