// Package command defines the celerix-cli commands on urfave/cli/v2.
//
//   - root.go: application, global flags, store selection
//   - kv.go: key, enumeration, export and move commands
//   - vault.go: encrypted values and key generation
//   - system.go: ping and version
//
// Every command opens the store, runs one operation under --timeout and
// renders the result with the selected output format.
package command
