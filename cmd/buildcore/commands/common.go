package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"buildcore.yaml" env:"BUILDCORE_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Worker    WorkerCmd    `cmd:"" help:"Run the build worker loop"`
	Scheduler SchedulerCmd `cmd:"" help:"Create periodical builds on a fixed interval"`
	Rebuild   RebuildCmd   `cmd:"" help:"Re-run the most recent build"`
	Create    CreateCmd    `cmd:"" help:"Create a build for a project"`
	Prune     PruneCmd     `cmd:"" help:"Delete old builds of a project"`
}

// AfterApply runs after flag parsing; sets a bootstrap logger used until the
// configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}
