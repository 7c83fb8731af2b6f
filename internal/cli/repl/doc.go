// Package repl provides the interactive shell of celerix-cli.
//
// Each input line is split into words with shell-style quoting and
// handed to an Executor, so the shell accepts exactly the commands the
// one-shot CLI does:
//
//	celerix> set alice notes title "hello world"
//	celerix> get alice notes title
//
// Built-ins: help [prefix], history, exit, quit.
package repl
