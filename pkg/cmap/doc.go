// Package cmap provides a concurrent-safe sharded map with string keys.
//
// Keys are spread over a power-of-two number of shards by their
// murmur3 hash, so unrelated keys rarely contend on the same lock.
// It backs the per-App lock table and the server's connection registry.
//
// Usage:
//
//	m := cmap.New[*sync.Mutex]()
//	mu := m.GetOrCreate("alice\x00notes", func() *sync.Mutex { return new(sync.Mutex) })
package cmap
