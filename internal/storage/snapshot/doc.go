// Package snapshot is the file-per-App persistence backend.
//
// Layout under the data directory:
//
//	<dir>/<persona>/<app>.json          current snapshot of one App
//	<dir>/<persona>/.<app>.json.tmp-*   in-flight write (removed by Cleanup)
//	<dir>/<persona>.json                legacy single-file persona (ImportLegacy)
//
// A snapshot file is the App's key/value map as an indented JSON object.
// With at-rest encryption enabled the file is instead
//
//	[magic:8 "CLXENC01"][nonce||ciphertext||tag]
//
// where the plaintext is the same JSON object and "<persona>/<app>" is
// the associated data, so a file copied to another App fails to open.
//
// Every write goes through a temp file in the same directory, fsync,
// rename over the canonical path and fsync of the directory. Readers
// therefore see either the previous or the new snapshot, never a mix.
package snapshot
