package command

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/celerix-dev/celerix-store/internal/cli/output"
	"github.com/celerix-dev/celerix-store/internal/infra/buildinfo"
	"github.com/celerix-dev/celerix-store/pkg/sdk"
)

type pingResult struct {
	Mode    string `json:"mode" yaml:"mode"`
	Addr    string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Latency string `json:"latency,omitempty" yaml:"latency,omitempty"`
}

func (r pingResult) Table() *output.Table {
	t := &output.Table{Headers: []string{"MODE", "ADDR", "LATENCY"}}
	addr, latency := r.Addr, r.Latency
	if addr == "" {
		addr = "-"
	}
	if latency == "" {
		latency = "-"
	}
	t.AddRow(r.Mode, addr, latency)
	return t
}

// PingCommand returns the ping command.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the store is reachable",
		Action: func(c *cli.Context) error {
			return withStore(c, func(s *session) error {
				start := time.Now()
				if err := s.store.Ping(s.ctx); err != nil {
					return err
				}
				res := pingResult{Mode: string(s.mode)}
				if s.mode == sdk.ModeRemote {
					res.Addr = s.flags.Addr
					res.Latency = time.Since(start).Round(time.Microsecond).String()
				}
				return s.print(res)
			})
		},
	}
}

type versionResult buildinfo.Info

func (r versionResult) Table() *output.Table {
	t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("version", r.Version)
	t.AddRow("commit", r.Commit)
	t.AddRow("built", r.BuildTime)
	t.AddRow("go", r.GoVersion)
	return t
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			flags, err := ParseGlobalFlags(c)
			if err != nil {
				return err
			}
			return output.NewFormatter(flags.Output).Format(c.App.Writer, versionResult(buildinfo.Get()))
		},
	}
}
