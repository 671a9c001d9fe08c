// Package build creates, duplicates and deletes builds, enforces retention and
// hands new builds to the job queue.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/metrics"
	"git.home.luguber.info/inful/buildcore/internal/model"
	"git.home.luguber.info/inful/buildcore/internal/periodical"
	"git.home.luguber.info/inful/buildcore/internal/postback"
	"git.home.luguber.info/inful/buildcore/internal/queue"
	"git.home.luguber.info/inful/buildcore/internal/store"
	"git.home.luguber.info/inful/buildcore/internal/workspace"
)

// DefaultKeepBuilds is the retention keep-count used when none is configured.
const DefaultKeepBuilds = 100

// CreateOptions carries the optional inputs of CreateBuild. Blank strings mean
// "not supplied".
type CreateOptions struct {
	Environment    string
	CommitID       string
	Branch         string
	Tag            string
	CommitterEmail string
	CommitMessage  string
	Source         model.BuildSource
	UserID         int64
	Extra          model.Extra
}

// Service is the build service.
type Service struct {
	builds   store.BuildStore
	layout   *workspace.Layout
	notifier postback.Notifier
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time

	queue     queue.Client
	tube      string
	timeToRun time.Duration

	planner *periodical.Planner
	locker  periodical.Locker

	keepBuilds int

	mu           sync.Mutex
	queueError   bool
	lastQueueErr error
}

// NewService creates a build service without a queue or periodical planner.
func NewService(builds store.BuildStore, layout *workspace.Layout) *Service {
	return &Service{
		builds:     builds,
		layout:     layout,
		notifier:   postback.Noop{},
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
		now:        time.Now,
		locker:     periodical.NoopLocker{},
		keepBuilds: DefaultKeepBuilds,
		timeToRun:  queue.DefaultTimeToRun,
	}
}

// WithQueue configures job submission. A nil client or an empty tube leaves
// the queue unconfigured and AddBuildToQueue becomes a no-op.
func (s *Service) WithQueue(client queue.Client, tube string, timeToRun time.Duration) *Service {
	s.queue = client
	s.tube = tube
	if timeToRun > 0 {
		s.timeToRun = timeToRun
	}
	return s
}

// WithNotifier sets the status postback collaborator.
func (s *Service) WithNotifier(n postback.Notifier) *Service {
	if n != nil {
		s.notifier = n
	}
	return s
}

// WithPlanner enables CreatePeriodicalBuilds. A nil locker means no cross-process lock.
func (s *Service) WithPlanner(p *periodical.Planner, locker periodical.Locker) *Service {
	s.planner = p
	if locker != nil {
		s.locker = locker
	}
	return s
}

// WithKeepBuilds sets the retention keep-count.
func (s *Service) WithKeepBuilds(n int) *Service {
	if n >= 0 {
		s.keepBuilds = n
	}
	return s
}

// WithRecorder allows injecting a metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock replaces the clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateBuild persists a new PENDING build for project. When the store
// assigned an id the postback is sent and the build is enqueued; a queue
// failure is recorded on the service, not returned.
func (s *Service) CreateBuild(ctx context.Context, project *model.Project, opts CreateOptions) (*model.Build, error) {
	b := model.NewPendingBuild(project.ID, s.now())
	b.Environment = opts.Environment
	if opts.Extra != nil {
		b.SetExtra(opts.Extra)
	}
	b.AddExtraValue("branches", project.BranchesByEnvironment(opts.Environment))
	b.Source = opts.Source
	b.UserID = opts.UserID
	b.CommitID = opts.CommitID

	if opts.Branch != "" {
		b.Branch = opts.Branch
	} else {
		b.Branch = project.Branch
	}
	if opts.Tag != "" {
		b.Tag = opts.Tag
	}
	if opts.CommitterEmail != "" {
		b.CommitterEmail = opts.CommitterEmail
	}
	if opts.CommitMessage != "" {
		b.CommitMessage = opts.CommitMessage
	}

	return s.persistAndQueue(ctx, b)
}

// CreateDuplicateBuild copies every descriptive field of source into a new
// PENDING build.
func (s *Service) CreateDuplicateBuild(ctx context.Context, source *model.Build) (*model.Build, error) {
	return s.persistAndQueue(ctx, source.Duplicate(s.now()))
}

func (s *Service) persistAndQueue(ctx context.Context, b *model.Build) (*model.Build, error) {
	saved, err := s.builds.Save(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("save build: %w", err)
	}
	if !saved.Persisted() {
		return saved, nil
	}

	s.recorder.IncBuildsCreated(saved.Source.String())
	s.logger.Info("Build created",
		logfields.BuildID(saved.ID),
		logfields.ProjectID(saved.ProjectID),
		logfields.Branch(saved.Branch),
		logfields.Source(saved.Source.String()))

	s.sendPostback(ctx, saved)
	s.AddBuildToQueue(ctx, saved)
	return saved, nil
}

func (s *Service) sendPostback(ctx context.Context, b *model.Build) {
	if err := s.notifier.SendStatusPostback(ctx, b); err != nil {
		s.logger.Warn("Status postback failed", logfields.BuildID(b.ID), logfields.Error(err))
	}
}

// CreatePeriodicalBuilds creates a PERIODICAL build for every due
// (project, branch) pair and returns the created builds.
func (s *Service) CreatePeriodicalBuilds(ctx context.Context) ([]*model.Build, error) {
	if s.planner == nil {
		return nil, nil
	}

	unlock, ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug("Periodical scan skipped, lock held elsewhere")
		return nil, nil
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			s.logger.Warn("Failed to release periodical lock", logfields.Error(err))
		}
	}()

	due, err := s.planner.Due(ctx, s.now())
	if err != nil {
		return nil, err
	}

	created := make([]*model.Build, 0, len(due))
	for _, d := range due {
		b, err := s.CreateBuild(ctx, d.Project, CreateOptions{
			Branch: d.Branch,
			Source: model.SourcePeriodical,
		})
		if err != nil {
			return created, err
		}
		created = append(created, b)
	}
	if len(created) > 0 {
		s.recorder.AddPeriodicalBuilds(len(created))
		s.logger.Info("Periodical builds created", logfields.Count(len(created)))
	}
	return created, nil
}
