package periodical

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/model"
	"git.home.luguber.info/inful/buildcore/internal/store"
)

// DueBuild is a (project, branch) pair that needs a periodical build.
type DueBuild struct {
	Project *model.Project
	Branch  string
}

// Planner evaluates the schedule against the latest builds.
type Planner struct {
	provider Provider
	projects store.ProjectStore
	builds   store.BuildStore
	logger   *slog.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(provider Provider, projects store.ProjectStore, builds store.BuildStore, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{provider: provider, projects: projects, builds: builds, logger: logger}
}

// Due returns every scheduled pair whose latest build finished at least one
// interval before now. Pairs with a pending or running build are never due.
func (p *Planner) Due(ctx context.Context, now time.Time) ([]DueBuild, error) {
	schedule, err := p.provider.Schedule(ctx)
	if err != nil {
		return nil, err
	}

	var due []DueBuild
	for _, projectID := range schedule.ProjectIDs() {
		entry := schedule[projectID]
		project, err := p.projects.GetByID(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("load project %d: %w", projectID, err)
		}
		if project == nil || entry.Interval.IsZero() || len(entry.Branches) == 0 {
			p.logger.Debug("Skipping periodical entry", logfields.ProjectID(projectID))
			continue
		}

		threshold := entry.Interval.Before(now)
		for _, branch := range entry.Branches {
			latest, err := p.builds.GetLatestBuildByProjectAndBranch(ctx, projectID, branch)
			if err != nil {
				return nil, fmt.Errorf("latest build for project %d branch %s: %w", projectID, branch, err)
			}
			if latest != nil {
				if latest.Status.InFlight() {
					continue
				}
				if latest.FinishDate != nil && latest.FinishDate.After(threshold) {
					continue
				}
			}
			due = append(due, DueBuild{Project: project, Branch: branch})
		}
	}
	return due, nil
}
