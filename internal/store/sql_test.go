package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/model"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newBuild(projectID int64, branch string) *model.Build {
	b := model.NewPendingBuild(projectID, time.Unix(1700000000, 0))
	b.Branch = branch
	b.Source = model.SourceManualConsole
	return b
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	require.Error(t, err)
	require.True(t, errs.IsCategory(err, errs.CategoryConfig))
}

func TestSaveAndGetByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := newBuild(1, "main")
	b.SetExtra(model.Extra{"debug": true})
	saved, err := s.Save(ctx, b)
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	got, err := s.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, got.Status)
	require.Equal(t, "main", got.Branch)
	require.Equal(t, model.SourceManualConsole, got.Source)
	require.Equal(t, true, got.Extra["debug"])
	require.Nil(t, got.StartDate)
	require.Nil(t, got.FinishDate)
	require.True(t, got.CreateDate.Equal(b.CreateDate))

	now := time.Unix(1700000100, 0)
	require.NoError(t, got.Start(now))
	require.NoError(t, got.Finish(model.StatusSuccess, now.Add(time.Minute)))
	_, err = s.Save(ctx, got)
	require.NoError(t, err)

	reloaded, err := s.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuccess, reloaded.Status)
	require.NotNil(t, reloaded.FinishDate)
	require.True(t, reloaded.FinishDate.Equal(now.Add(time.Minute)))
}

func TestGetByID_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetByID(context.Background(), 9999)
	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, errs.IsInfrastructure(err))
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b, err := s.Save(ctx, newBuild(1, "main"))
	require.NoError(t, err)

	removed, err := s.Delete(ctx, b)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.Delete(ctx, b)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestGetLatestBuildByProjectAndBranch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	latest, err := s.GetLatestBuildByProjectAndBranch(ctx, 1, "main")
	require.NoError(t, err)
	require.Nil(t, latest)

	_, err = s.Save(ctx, newBuild(1, "main"))
	require.NoError(t, err)
	second, err := s.Save(ctx, newBuild(1, "main"))
	require.NoError(t, err)
	_, err = s.Save(ctx, newBuild(1, "develop"))
	require.NoError(t, err)

	latest, err = s.GetLatestBuildByProjectAndBranch(ctx, 1, "main")
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
}

func TestGetLatestBuilds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, pid := range []int64{1, 2, 1} {
		_, err := s.Save(ctx, newBuild(pid, "main"))
		require.NoError(t, err)
	}

	all, err := s.GetLatestBuilds(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Greater(t, all[0].ID, all[1].ID)

	pid := int64(1)
	one, err := s.GetLatestBuilds(ctx, &pid, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, int64(3), one[0].ID)
}

func TestGetOldByProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	for range 5 {
		b, err := s.Save(ctx, newBuild(7, "main"))
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}
	_, err := s.Save(ctx, newBuild(8, "main"))
	require.NoError(t, err)

	old, err := s.GetOldByProject(ctx, 7, 2)
	require.NoError(t, err)
	require.Equal(t, 3, old.Count)
	require.Equal(t, []int64{ids[2], ids[1], ids[0]}, []int64{old.Items[0].ID, old.Items[1].ID, old.Items[2].ID})

	none, err := s.GetOldByProject(ctx, 7, 10)
	require.NoError(t, err)
	require.Zero(t, none.Count)
}

func TestDeleteAllByProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, newBuild(1, "main"))
	require.NoError(t, err)
	other, err := s.Save(ctx, newBuild(2, "main"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteAllByProject(ctx, 1))

	pid := int64(1)
	left, err := s.GetLatestBuilds(ctx, &pid, 0)
	require.NoError(t, err)
	require.Empty(t, left)

	_, err = s.GetByID(ctx, other.ID)
	require.NoError(t, err)
}

func TestAppendLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b, err := s.Save(ctx, newBuild(1, "main"))
	require.NoError(t, err)

	require.NoError(t, s.AppendLog(ctx, b.ID, "step one\n"))
	require.NoError(t, s.AppendLog(ctx, b.ID, "step two\n"))

	got, err := s.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "step one\nstep two\n", got.Log)
}

func TestClosedStoreIsInfrastructureFailure(t *testing.T) {
	s, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Save(context.Background(), newBuild(1, "main"))
	require.Error(t, err)
	require.True(t, errs.IsInfrastructure(err))
}

func TestProjects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	projects := s.Projects()

	missing, err := projects.GetByID(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, missing)

	p, err := projects.Save(ctx, &model.Project{
		Title:  "api",
		Branch: "main",
		EnvironmentBranches: map[string][]string{
			"staging": {"develop", "release"},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, p.ID)

	got, err := projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "api", got.Title)
	require.Equal(t, []string{"develop", "release"}, got.BranchesByEnvironment("staging"))

	got.Branch = "trunk"
	_, err = projects.Save(ctx, got)
	require.NoError(t, err)
	got, err = projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "trunk", got.Branch)
}
