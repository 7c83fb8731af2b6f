package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/celerix-dev/celerix-store/internal/cli/config"
	"github.com/celerix-dev/celerix-store/internal/cli/output"
	"github.com/celerix-dev/celerix-store/internal/infra/buildinfo"
	"github.com/celerix-dev/celerix-store/internal/infra/tlsroots"
	"github.com/celerix-dev/celerix-store/internal/telemetry/logger"
	"github.com/celerix-dev/celerix-store/pkg/client"
	"github.com/celerix-dev/celerix-store/pkg/sdk"
	"github.com/celerix-dev/celerix-store/pkg/store"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "celerix-cli",
		Usage:   "Inspect and edit a celerix store",
		Version: buildinfo.Get().String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			DelCommand(),
			PersonasCommand(),
			AppsCommand(),
			DumpCommand(),
			DumpAppCommand(),
			GetGlobalCommand(),
			MoveCommand(),
			VaultCommand(),
			PingCommand(),
			VersionCommand(),
			ShellCommand(),
		},
		HideVersion: true,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file",
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Data directory for embedded mode",
			EnvVars: []string{"CELERIX_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "Daemon address (host:port); selects remote mode",
			EnvVars: []string{"CELERIX_STORE_ADDR"},
		},
		&cli.BoolFlag{
			Name:    "no-tls",
			Usage:   "Connect without TLS",
			EnvVars: []string{"CELERIX_DISABLE_TLS"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip TLS certificate verification",
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM bundle trusted for the daemon certificate",
			EnvVars: []string{"CELERIX_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "Timeout of one command",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// GlobalFlags holds the effective global settings: flags over the
// config file over defaults.
type GlobalFlags struct {
	DataDir  string
	Addr     string
	TLS      bool
	Insecure bool
	CAFile   string
	Output   output.Format
	Timeout  time.Duration
	Verbose  bool

	VaultKeyFile string
}

// ParseGlobalFlags merges the flags with the CLI config file.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	fileCfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	g := &GlobalFlags{
		DataDir:      fileCfg.DataDir,
		Addr:         fileCfg.Addr,
		TLS:          fileCfg.TLSEnabled(),
		Insecure:     fileCfg.Insecure,
		CAFile:       fileCfg.CAFile,
		Timeout:      fileCfg.Timeout,
		Verbose:      c.Bool("verbose"),
		VaultKeyFile: fileCfg.VaultKeyFile,
	}
	if c.IsSet("data-dir") {
		g.DataDir = c.String("data-dir")
	}
	if c.IsSet("addr") {
		g.Addr = c.String("addr")
	}
	if c.IsSet("no-tls") {
		g.TLS = !c.Bool("no-tls")
	}
	if c.IsSet("insecure") {
		g.Insecure = c.Bool("insecure")
	}
	if c.IsSet("ca-file") {
		g.CAFile = c.String("ca-file")
	}
	if c.IsSet("timeout") {
		g.Timeout = c.Duration("timeout")
	}

	format := fileCfg.Output
	if c.IsSet("output") {
		format = c.String("output")
	}
	if g.Output, err = output.ParseFormat(format); err != nil {
		return nil, err
	}
	if g.Timeout <= 0 {
		g.Timeout = config.Default().Timeout
	}
	return g, nil
}

// session is the per-command state: settings, store and deadline.
type session struct {
	ctx   context.Context
	flags *GlobalFlags
	store store.Store
	mode  sdk.Mode
	out   *cli.Context
}

// withStore opens the store, runs fn and closes the store.
func withStore(c *cli.Context, fn func(*session) error) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, flags.Timeout)
	defer cancel()

	st, mode, err := openStore(ctx, c, flags)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(&session{ctx: ctx, flags: flags, store: st, mode: mode, out: c})
}

func cliLogger(c *cli.Context, verbose bool) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	l, err := logger.New(logger.Config{Level: level, Format: "text", Output: w})
	if err != nil {
		return logger.Discard()
	}
	return l
}

func openStore(ctx context.Context, c *cli.Context, flags *GlobalFlags) (store.Store, sdk.Mode, error) {
	log := cliLogger(c, flags.Verbose)
	opts := sdk.Options{
		DataDir: flags.DataDir,
		Addr:    flags.Addr,
		Logger:  log,
	}
	if flags.Addr != "" {
		cc := client.DefaultConfig(flags.Addr)
		cc.RequestTimeout = flags.Timeout
		cc.FailFast = true
		cc.RetryReads = true
		opts.Client = &cc
		if flags.TLS {
			tc, err := tlsroots.ClientTLS(tlsroots.ClientOptions{CAFile: flags.CAFile, Insecure: flags.Insecure})
			if err != nil {
				return nil, "", err
			}
			opts.TLSConfig = tc
		}
	}
	return sdk.OpenWithMode(ctx, opts)
}

// print renders data in the selected format.
func (s *session) print(data any) error {
	return output.NewFormatter(s.flags.Output).Format(s.out.App.Writer, data)
}

// done reports a successful mutation.
func (s *session) done(msg string) error {
	if s.flags.Output == output.FormatTable {
		_, err := fmt.Fprintln(s.out.App.Writer, msg)
		return err
	}
	return s.print(map[string]any{"ok": true, "message": msg})
}

// args checks the positional argument count.
func args(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("%s: expected %d arguments (%s), got %d", c.Command.Name, n, c.Command.ArgsUsage, c.NArg())
	}
	return c.Args().Slice(), nil
}
