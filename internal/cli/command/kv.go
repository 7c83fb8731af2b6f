package command

import (
	"encoding/json"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/celerix-dev/celerix-store/internal/cli/output"
)

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print a value",
		ArgsUsage: "PERSONA APP KEY",
		Action: func(c *cli.Context) error {
			a, err := args(c, 3)
			if err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				v, err := s.store.Get(s.ctx, a[0], a[1], a[2])
				if err != nil {
					return err
				}
				return s.print(v)
			})
		},
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a value; VALUE is JSON or else a string",
		ArgsUsage: "PERSONA APP KEY VALUE",
		Action: func(c *cli.Context) error {
			a, err := args(c, 4)
			if err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				if err := s.store.Set(s.ctx, a[0], a[1], a[2], parseValue(a[3])); err != nil {
					return err
				}
				return s.done("OK")
			})
		},
	}
}

// parseValue reads s as JSON and falls back to the plain string, so
// `set p a k hello` stores "hello" and `set p a k 42` stores 42.
func parseValue(s string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return s
	}
	// A valid prefix followed by more input ("1 2") is not JSON.
	if strings.TrimSpace(s[dec.InputOffset():]) != "" {
		return s
	}
	return v
}

// DelCommand returns the del command.
func DelCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Aliases:   []string{"delete", "rm"},
		Usage:     "Delete a key; deleting a missing key succeeds",
		ArgsUsage: "PERSONA APP KEY",
		Action: func(c *cli.Context) error {
			a, err := args(c, 3)
			if err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				if err := s.store.Delete(s.ctx, a[0], a[1], a[2]); err != nil {
					return err
				}
				return s.done("OK")
			})
		},
	}
}

// PersonasCommand returns the personas command.
func PersonasCommand() *cli.Command {
	return &cli.Command{
		Name:  "personas",
		Usage: "List personas",
		Action: func(c *cli.Context) error {
			if _, err := args(c, 0); err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				personas, err := s.store.GetPersonas(s.ctx)
				if err != nil {
					return err
				}
				return s.print(personas)
			})
		},
	}
}

// AppsCommand returns the apps command.
func AppsCommand() *cli.Command {
	return &cli.Command{
		Name:      "apps",
		Usage:     "List a persona's apps",
		ArgsUsage: "PERSONA",
		Action: func(c *cli.Context) error {
			a, err := args(c, 1)
			if err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				apps, err := s.store.GetApps(s.ctx, a[0])
				if err != nil {
					return err
				}
				return s.print(apps)
			})
		},
	}
}

// DumpCommand returns the dump command.
func DumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print every key of one app",
		ArgsUsage: "PERSONA APP",
		Action: func(c *cli.Context) error {
			a, err := args(c, 2)
			if err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				values, err := s.store.GetAppStore(s.ctx, a[0], a[1])
				if err != nil {
					return err
				}
				return s.print(values)
			})
		},
	}
}

// DumpAppCommand returns the dump-app command.
func DumpAppCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump-app",
		Usage:     "Print an app across all personas",
		ArgsUsage: "APP",
		Action: func(c *cli.Context) error {
			a, err := args(c, 1)
			if err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				values, err := s.store.DumpApp(s.ctx, a[0])
				if err != nil {
					return err
				}
				return s.print(values)
			})
		},
	}
}

// globalResult is a value found by get-global.
type globalResult struct {
	Persona string `json:"persona" yaml:"persona"`
	Value   any    `json:"value" yaml:"value"`
}

func (r globalResult) Table() *output.Table {
	t := &output.Table{Headers: []string{"PERSONA", "VALUE"}}
	t.AddRow(r.Persona, output.Cell(r.Value))
	return t
}

// GetGlobalCommand returns the get-global command.
func GetGlobalCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-global",
		Usage:     "Find a key in any persona",
		ArgsUsage: "APP KEY",
		Action: func(c *cli.Context) error {
			a, err := args(c, 2)
			if err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				v, persona, err := s.store.GetGlobal(s.ctx, a[0], a[1])
				if err != nil {
					return err
				}
				return s.print(globalResult{Persona: persona, Value: v})
			})
		},
	}
}

// MoveCommand returns the move command.
func MoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "move",
		Aliases:   []string{"mv"},
		Usage:     "Move a key to another persona",
		ArgsUsage: "SRC_PERSONA DST_PERSONA APP KEY",
		Action: func(c *cli.Context) error {
			a, err := args(c, 4)
			if err != nil {
				return err
			}
			return withStore(c, func(s *session) error {
				if err := s.store.Move(s.ctx, a[0], a[1], a[2], a[3]); err != nil {
					return err
				}
				return s.done("OK")
			})
		},
	}
}
