package build

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/model"
)

// DeleteOldByProject keeps the newest keep-count builds of a project and
// deletes the rest, directory first, then row. It returns the number removed.
func (s *Service) DeleteOldByProject(ctx context.Context, projectID int64) (int, error) {
	old, err := s.builds.GetOldByProject(ctx, projectID, s.keepBuilds)
	if err != nil {
		return 0, fmt.Errorf("load old builds: %w", err)
	}

	removed := 0
	for _, b := range old.Items {
		if err := s.layout.RemoveBuildDirectory(b, true); err != nil {
			s.logger.Warn("Failed to remove build directory", logfields.BuildID(b.ID), logfields.Error(err))
		}
		ok, err := s.builds.Delete(ctx, b)
		if err != nil {
			return removed, fmt.Errorf("delete build %d: %w", b.ID, err)
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		s.recorder.AddBuildsPruned(removed)
		s.logger.Info("Pruned old builds",
			logfields.ProjectID(projectID),
			logfields.Count(removed),
			logfields.Keep(s.keepBuilds))
	}
	return removed, nil
}

// DeleteAllByProject deletes every build row of a project, then removes the
// project's build and artifact directories. Filesystem errors are logged and
// swallowed because the rows are already gone.
func (s *Service) DeleteAllByProject(ctx context.Context, projectID int64) error {
	if err := s.builds.DeleteAllByProject(ctx, projectID); err != nil {
		return fmt.Errorf("delete project builds: %w", err)
	}
	if err := s.layout.RemoveProjectDirectories(projectID); err != nil {
		s.logger.Debug("Ignoring project cleanup error", logfields.ProjectID(projectID), logfields.Error(err))
	}
	return nil
}

// DeleteBuild removes the build's directory, then its row, and reports
// whether the row was deleted.
func (s *Service) DeleteBuild(ctx context.Context, b *model.Build) (bool, error) {
	if err := s.layout.RemoveBuildDirectory(b, true); err != nil {
		s.logger.Warn("Failed to remove build directory", logfields.BuildID(b.ID), logfields.Error(err))
	}
	return s.builds.Delete(ctx, b)
}
