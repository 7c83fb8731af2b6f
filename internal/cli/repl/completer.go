package repl

import (
	"slices"
	"strings"
)

var builtins = []string{"exit", "help", "history", "quit"}

// Completer matches command names by prefix.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over names plus the shell built-ins.
func NewCompleter(names []string) *Completer {
	all := append(slices.Clone(names), builtins...)
	slices.Sort(all)
	return &Completer{commands: slices.Compact(all)}
}

// Complete returns the sorted names starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}
