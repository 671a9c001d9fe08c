package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/buildcore/cmd/buildcore/commands"
	"git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	parser := kong.Parse(cli,
		kong.Name("buildcore"),
		kong.Description("Build queue worker, scheduler and retention tooling."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	err := parser.Run(global, cli)
	if err == nil {
		return
	}
	adapter := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
	adapter.Log(err)
	os.Exit(adapter.ExitCodeFor(err))
}
