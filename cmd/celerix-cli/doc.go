// Command celerix-cli reads and edits a celerix store, either a local
// data directory or a running celerix-stored.
//
//	celerix-cli --data-dir ./data personas
//	celerix-cli --addr store:7001 get alice ui theme
package main
