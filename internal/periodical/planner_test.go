package periodical

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildcore/internal/model"
	"git.home.luguber.info/inful/buildcore/internal/store"
)

type plannerFixture struct {
	db      *store.SQLStore
	project *model.Project
	now     time.Time
}

func newPlannerFixture(t *testing.T) *plannerFixture {
	t.Helper()
	db, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	project, err := db.Projects().Save(context.Background(), &model.Project{Title: "api", Branch: "main"})
	require.NoError(t, err)

	return &plannerFixture{
		db:      db,
		project: project,
		now:     time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *plannerFixture) planner(schedule Schedule) *Planner {
	return NewPlanner(StaticProvider(schedule), f.db.Projects(), f.db, nil)
}

func (f *plannerFixture) hourly() Schedule {
	return Schedule{f.project.ID: {Interval: Interval{Clock: time.Hour}, Branches: []string{"main"}}}
}

func (f *plannerFixture) saveBuild(t *testing.T, status model.BuildStatus, finishedAgo time.Duration) {
	t.Helper()
	b := model.NewPendingBuild(f.project.ID, f.now.Add(-3*time.Hour))
	b.Branch = "main"
	if status != model.StatusPending {
		require.NoError(t, b.Start(f.now.Add(-3*time.Hour)))
	}
	if status.Terminal() {
		require.NoError(t, b.Finish(status, f.now.Add(-finishedAgo)))
	}
	_, err := f.db.Save(context.Background(), b)
	require.NoError(t, err)
}

func TestPlanner_NoBuildsIsDue(t *testing.T) {
	f := newPlannerFixture(t)
	due, err := f.planner(f.hourly()).Due(context.Background(), f.now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "main", due[0].Branch)
	require.Equal(t, f.project.ID, due[0].Project.ID)
}

func TestPlanner_FinishedLongAgoIsDue(t *testing.T) {
	f := newPlannerFixture(t)
	f.saveBuild(t, model.StatusSuccess, 2*time.Hour)

	due, err := f.planner(f.hourly()).Due(context.Background(), f.now)
	require.NoError(t, err)
	require.Len(t, due, 1)
}

func TestPlanner_FinishedRecentlyIsNotDue(t *testing.T) {
	f := newPlannerFixture(t)
	f.saveBuild(t, model.StatusFailed, 30*time.Minute)

	due, err := f.planner(f.hourly()).Due(context.Background(), f.now)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestPlanner_InFlightIsNeverDue(t *testing.T) {
	for _, status := range []model.BuildStatus{model.StatusRunning, model.StatusPending} {
		t.Run(status.String(), func(t *testing.T) {
			f := newPlannerFixture(t)
			f.saveBuild(t, status, 0)

			due, err := f.planner(f.hourly()).Due(context.Background(), f.now.Add(24*time.Hour))
			require.NoError(t, err)
			require.Empty(t, due)
		})
	}
}

func TestPlanner_SkipsIncompleteEntries(t *testing.T) {
	f := newPlannerFixture(t)
	schedule := Schedule{
		f.project.ID: {Branches: []string{"main"}},
		9999:         {Interval: Interval{Clock: time.Hour}, Branches: []string{"main"}},
	}

	due, err := f.planner(schedule).Due(context.Background(), f.now)
	require.NoError(t, err)
	require.Empty(t, due)

	schedule = Schedule{f.project.ID: {Interval: Interval{Clock: time.Hour}}}
	due, err = f.planner(schedule).Due(context.Background(), f.now)
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestPlanner_EvaluatesBranchesIndependently(t *testing.T) {
	f := newPlannerFixture(t)
	f.saveBuild(t, model.StatusSuccess, 10*time.Minute)
	schedule := Schedule{f.project.ID: {Interval: Interval{Clock: time.Hour}, Branches: []string{"main", "develop"}}}

	due, err := f.planner(schedule).Due(context.Background(), f.now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "develop", due[0].Branch)
}

func TestNoopLocker(t *testing.T) {
	unlock, ok, err := NoopLocker{}.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, unlock(context.Background()))
}
