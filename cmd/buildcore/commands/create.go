package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/buildcore/internal/build"
	errs "git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/model"
)

// CreateCmd implements the 'create' command.
type CreateCmd struct {
	Project   int64  `short:"p" required:"" help:"Project id"`
	Branch    string `short:"b" help:"Branch to build (defaults to the project branch)"`
	Env       string `short:"e" help:"Environment whose branches are recorded on the build"`
	Commit    string `help:"Commit id"`
	Tag       string `help:"Tag"`
	Committer string `help:"Committer email"`
	Message   string `help:"Commit message"`
	User      int64  `help:"Id of the user triggering the build"`
}

func (c *CreateCmd) Run(_ *Global, root *CLI) error {
	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	project, err := a.store.Projects().GetByID(ctx, c.Project)
	if err != nil {
		return err
	}
	if project == nil {
		return errs.ValidationFailed("project", fmt.Sprintf("project %d does not exist", c.Project))
	}

	b, err := a.service.CreateBuild(ctx, project, build.CreateOptions{
		Environment:    c.Env,
		CommitID:       c.Commit,
		Branch:         c.Branch,
		Tag:            c.Tag,
		CommitterEmail: c.Committer,
		CommitMessage:  c.Message,
		Source:         model.SourceManualConsole,
		UserID:         c.User,
	})
	if err != nil {
		return err
	}
	fmt.Println(b.ID)

	if a.service.QueueError() {
		return errs.QueueUnavailable(a.cfg.Queue.Host, a.service.LastQueueError()).
			WithContext("build_id", b.ID)
	}
	return nil
}
