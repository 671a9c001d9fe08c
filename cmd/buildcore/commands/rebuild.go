package commands

import (
	"context"
	stdErrors "errors"
	"fmt"

	errs "git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/queue"
)

// RebuildCmd implements the 'rebuild' command: it duplicates the most recent
// build and optionally processes one job.
//
// --run leases whatever job is next in the tube. With other jobs already
// queued that is not necessarily the rebuild just created.
type RebuildCmd struct {
	Project int64 `help:"Only consider builds of this project (0 for any)"`
	RunNow  bool  `name:"run" help:"Process the next queued job, which may not be the rebuild"`
}

func (r *RebuildCmd) Run(_ *Global, root *CLI) error {
	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	var projectID *int64
	if r.Project > 0 {
		projectID = &r.Project
	}
	latest, err := a.store.GetLatestBuilds(ctx, projectID, 1)
	if err != nil {
		return err
	}
	if len(latest) == 0 {
		return errs.ValidationFailed("project", "no build to re-run")
	}

	dup, err := a.service.CreateDuplicateBuild(ctx, latest[0])
	if err != nil {
		return err
	}
	a.logger.Info("Rebuild created",
		logfields.BuildID(dup.ID),
		logfields.ProjectID(dup.ProjectID),
		logfields.Branch(dup.Branch),
		logfields.RebuildOf(latest[0].ID))
	if a.service.QueueError() {
		return errs.QueueUnavailable(a.cfg.Queue.Host, a.service.LastQueueError())
	}

	if !r.RunNow {
		return nil
	}
	if err := a.requireQueue(); err != nil {
		return err
	}
	if err := a.newWorker().RunOnce(ctx); err != nil && !stdErrors.Is(err, queue.ErrNoJob) {
		return fmt.Errorf("run build: %w", err)
	}
	return nil
}
