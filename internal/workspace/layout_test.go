package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/buildcore/internal/model"
)

func newTestLayout(t *testing.T) *Layout {
	t.Helper()
	base := t.TempDir()
	return NewLayout(filepath.Join(base, "runtime"), filepath.Join(base, "public"), nil)
}

func TestLayout_Paths(t *testing.T) {
	l := NewLayout("/srv/runtime", "/srv/public", nil)
	build := &model.Build{ID: 17, ProjectID: 3}

	if got := l.BuildPath(build); got != "/srv/runtime/builds/3/17" {
		t.Errorf("BuildPath() = %s", got)
	}
	if got := l.ArtifactPath("phpunit", 3); got != "/srv/public/artifacts/phpunit/3" {
		t.Errorf("ArtifactPath() = %s", got)
	}

	paths := l.ProjectPaths(3)
	if len(paths) != 3 {
		t.Fatalf("ProjectPaths() = %v", paths)
	}
}

func TestLayout_RemoveBuildDirectory(t *testing.T) {
	l := newTestLayout(t)
	build := &model.Build{ID: 1, ProjectID: 2}

	dir, err := l.EnsureBuildDirectory(build)
	if err != nil {
		t.Fatalf("EnsureBuildDirectory() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "output.log"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := l.RemoveBuildDirectory(build, false); err == nil {
		t.Error("non-recursive removal of a non-empty directory should fail")
	}
	if err := l.RemoveBuildDirectory(build, true); err != nil {
		t.Fatalf("RemoveBuildDirectory() failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("build directory still exists: %s", dir)
	}

	// Removing again is a no-op.
	if err := l.RemoveBuildDirectory(build, true); err != nil {
		t.Errorf("second removal failed: %v", err)
	}
}

func TestLayout_RemoveProjectDirectoriesKeepsSymlinkTarget(t *testing.T) {
	l := newTestLayout(t)

	target := filepath.Join(t.TempDir(), "shared-artifacts")
	if err := os.MkdirAll(target, 0o750); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(target, "report.xml")
	if err := os.WriteFile(marker, []byte("<xml/>"), 0o600); err != nil {
		t.Fatal(err)
	}

	link := l.ArtifactPath("phpunit", 5)
	if err := os.MkdirAll(filepath.Dir(link), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if _, err := l.EnsureBuildDirectory(&model.Build{ID: 9, ProjectID: 5}); err != nil {
		t.Fatal(err)
	}

	if err := l.RemoveProjectDirectories(5); err != nil {
		t.Fatalf("RemoveProjectDirectories() failed: %v", err)
	}

	if _, err := os.Lstat(link); !os.IsNotExist(err) {
		t.Errorf("symlink was not removed")
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("symlink target content was removed: %v", err)
	}
	if _, err := os.Stat(l.ProjectBuildsPath(5)); !os.IsNotExist(err) {
		t.Errorf("project build directory still exists")
	}
}
