// Package storage defines the persistence contract of the store and
// selects a backend for it.
//
// A Backend maps (persona, app) to one Snapshot, the App's complete
// key/value map, and replaces it atomically on Save. Backends do not
// lock: the store core serializes load-mutate-save sequences per App.
//
// Backends:
//
//   - "file" (default): one JSON file per App, see package snapshot
//   - "badger": one Badger key per App, one transaction per Save
//
// Both support at-rest encryption keyed from Config.Key.
package storage
