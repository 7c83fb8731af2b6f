// Package store is the persona/app/key store API.
//
// Two implementations of RawStore exist: Embedded, which works directly
// on a storage backend in this process, and client.Client, which sends
// the same operations to a celerix-stored server. Wrap turns either
// into a Handle that encodes and decodes values, so application code
// sees identical semantics and errors in both modes. The only
// remote-only errors are domain.ErrDisconnected and domain.ErrTimeout.
//
// Usage:
//
//	s, err := store.Open(ctx, storage.DefaultConfig("data"))
//	err = s.Set(ctx, "alice", "ui", "theme", "dark")
//	v, err := s.Get(ctx, "alice", "ui", "theme")
//
//	secrets, err := s.App("alice", "creds").Vault(key)
//	err = secrets.Set(ctx, "db", "p4ss")
package store
