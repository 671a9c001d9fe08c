package commands

import (
	"context"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
)

// PruneCmd implements the 'prune' command.
type PruneCmd struct {
	Project int64 `short:"p" required:"" help:"Project id"`
	All     bool  `help:"Delete every build of the project and its artifacts"`
	Keep    int   `help:"Override build.keep_builds" default:"-1"`
}

func (p *PruneCmd) Run(_ *Global, root *CLI) error {
	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	if p.All {
		if err := a.service.DeleteAllByProject(ctx, p.Project); err != nil {
			return err
		}
		a.logger.Info("Deleted all builds", logfields.ProjectID(p.Project))
		return nil
	}

	if p.Keep >= 0 {
		a.service.WithKeepBuilds(p.Keep)
	}
	removed, err := a.service.DeleteOldByProject(ctx, p.Project)
	if err != nil {
		return err
	}
	a.logger.Info("Prune finished", logfields.ProjectID(p.Project), logfields.Count(removed))
	return nil
}
