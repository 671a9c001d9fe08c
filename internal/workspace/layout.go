package workspace

import (
	stdErrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/model"
)

// DefaultArtifactTools are the tools whose per-project artifact directories
// are purged together with a project.
var DefaultArtifactTools = []string{"pdepend", "phpunit"}

// Layout resolves build and artifact directories.
type Layout struct {
	RuntimeDir    string
	PublicDir     string
	ArtifactTools []string
}

// NewLayout creates a Layout. A nil tools slice selects DefaultArtifactTools.
func NewLayout(runtimeDir, publicDir string, tools []string) *Layout {
	if tools == nil {
		tools = DefaultArtifactTools
	}
	return &Layout{RuntimeDir: runtimeDir, PublicDir: publicDir, ArtifactTools: tools}
}

// ProjectBuildsPath returns the directory holding all builds of a project.
func (l *Layout) ProjectBuildsPath(projectID int64) string {
	return filepath.Join(l.RuntimeDir, "builds", strconv.FormatInt(projectID, 10))
}

// BuildPath returns the working directory of a build.
func (l *Layout) BuildPath(build *model.Build) string {
	return filepath.Join(l.ProjectBuildsPath(build.ProjectID), strconv.FormatInt(build.ID, 10))
}

// ArtifactPath returns a tool's artifact directory for a project.
func (l *Layout) ArtifactPath(tool string, projectID int64) string {
	return filepath.Join(l.PublicDir, "artifacts", tool, strconv.FormatInt(projectID, 10))
}

// ProjectPaths lists every directory owned by a project.
func (l *Layout) ProjectPaths(projectID int64) []string {
	paths := []string{l.ProjectBuildsPath(projectID)}
	for _, tool := range l.ArtifactTools {
		paths = append(paths, l.ArtifactPath(tool, projectID))
	}
	return paths
}

// EnsureBuildDirectory creates the build's working directory.
func (l *Layout) EnsureBuildDirectory(build *model.Build) (string, error) {
	path := l.BuildPath(build)
	if err := os.MkdirAll(path, 0o750); err != nil {
		return "", fmt.Errorf("failed to create build directory: %w", err)
	}
	return path, nil
}

// RemoveBuildDirectory deletes a build's working directory. With recursive
// false only an empty directory is removed. A missing directory is not an error.
func (l *Layout) RemoveBuildDirectory(build *model.Build, recursive bool) error {
	path := l.BuildPath(build)
	if !recursive {
		if err := os.Remove(path); err != nil && !stdErrors.Is(err, fs.ErrNotExist) {
			return errors.CleanupFailed(path, err)
		}
		return nil
	}
	return removePath(path)
}

// RemoveProjectDirectories deletes every directory of a project and returns
// the joined errors of the paths that could not be removed.
func (l *Layout) RemoveProjectDirectories(projectID int64) error {
	var errs []error
	for _, path := range l.ProjectPaths(projectID) {
		if err := removePath(path); err != nil {
			errs = append(errs, err)
			continue
		}
		slog.Debug("Removed project directory", logfields.ProjectID(projectID), logfields.Path(path))
	}
	return stdErrors.Join(errs...)
}

// removePath removes a directory tree, or only the link when path is a symlink.
func removePath(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.CleanupFailed(path, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return errors.CleanupFailed(path, err)
		}
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return errors.CleanupFailed(path, err)
	}
	return nil
}
