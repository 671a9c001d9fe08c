// Package store defines the persistence contracts for builds and projects and
// a SQL implementation of them.
package store

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/buildcore/internal/model"
)

// ErrNotFound is returned by GetByID lookups for rows that do not exist.
var ErrNotFound = errors.New("not found")

// OldBuilds is the result of a retention lookup.
type OldBuilds struct {
	Items []*model.Build
	Count int
}

// BuildStore persists builds. Every method except the not-found case returns
// errors classified as infrastructure failures.
type BuildStore interface {
	// Save inserts the build when it has no id yet (assigning one) and updates it otherwise.
	Save(ctx context.Context, build *model.Build) (*model.Build, error)

	// GetByID returns ErrNotFound when the build does not exist.
	GetByID(ctx context.Context, id int64) (*model.Build, error)

	// Delete removes the row and reports whether one was removed.
	Delete(ctx context.Context, build *model.Build) (bool, error)

	// GetLatestBuilds returns up to limit builds, newest first. A nil projectID spans all projects.
	GetLatestBuilds(ctx context.Context, projectID *int64, limit int) ([]*model.Build, error)

	// GetLatestBuildByProjectAndBranch returns nil, nil when the pair has no builds.
	GetLatestBuildByProjectAndBranch(ctx context.Context, projectID int64, branch string) (*model.Build, error)

	// GetOldByProject returns every build of the project except the newest keep.
	GetOldByProject(ctx context.Context, projectID int64, keep int) (OldBuilds, error)

	DeleteAllByProject(ctx context.Context, projectID int64) error

	// AppendLog concatenates text to the stored log without rewriting other columns.
	AppendLog(ctx context.Context, buildID int64, text string) error
}

// ProjectStore reads projects.
type ProjectStore interface {
	// GetByID returns nil, nil when the project does not exist.
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	Save(ctx context.Context, project *model.Project) (*model.Project, error)
}
