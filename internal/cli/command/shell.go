package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/celerix-dev/celerix-store/internal/cli/repl"
)

var errNestedShell = errors.New("already in a shell")

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell",
		Description: `Reads commands line by line and runs each one like a separate
celerix-cli invocation with the same global flags. Quote values with
spaces; single quotes keep JSON intact:

   celerix> set alice notes tags '["a", "b"]'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "History file (empty to disable)",
				Value: repl.DefaultHistoryFile(),
			},
		},
		Action: func(c *cli.Context) error {
			prefix := forwardedFlags(c)
			r := repl.New(
				func(ctx context.Context, args []string) error {
					if args[0] == "shell" {
						return errNestedShell
					}
					app := App()
					app.Reader = c.App.Reader
					app.Writer = c.App.Writer
					app.ErrWriter = c.App.ErrWriter
					app.ExitErrHandler = func(*cli.Context, error) {}
					argv := append([]string{c.App.Name}, prefix...)
					return app.RunContext(ctx, append(argv, args...))
				},
				repl.WithIO(c.App.Reader, c.App.Writer),
				repl.WithCommands(commandNames(c.App)),
				repl.WithHistory(repl.NewHistory(c.String("history"))),
			)
			return r.Run(c.Context)
		},
	}
}

// forwardedFlags rebuilds the global flags that were set explicitly so
// every shell line runs with the same settings.
func forwardedFlags(c *cli.Context) []string {
	var out []string
	for _, f := range globalFlags() {
		name := f.Names()[0]
		if !c.IsSet(name) {
			continue
		}
		switch f.(type) {
		case *cli.BoolFlag:
			out = append(out, fmt.Sprintf("--%s=%t", name, c.Bool(name)))
		case *cli.DurationFlag:
			out = append(out, fmt.Sprintf("--%s=%s", name, c.Duration(name)))
		default:
			out = append(out, fmt.Sprintf("--%s=%s", name, c.String(name)))
		}
	}
	return out
}

func commandNames(app *cli.App) []string {
	var names []string
	for _, cmd := range app.Commands {
		if cmd.Hidden {
			continue
		}
		names = append(names, cmd.Name)
		names = append(names, cmd.Aliases...)
	}
	return names
}
