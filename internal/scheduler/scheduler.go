// Package scheduler runs the periodical scan on a fixed interval, for
// deployments where workers do not scan themselves.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/worker"
)

// Scheduler wraps a gocron scheduler running a single periodical scan job.
type Scheduler struct {
	scheduler gocron.Scheduler
	creator   worker.PeriodicalCreator
	logger    *slog.Logger
	jobID     string
	ctx       context.Context
}

// New creates a scheduler that runs creator every interval. Runs never
// overlap: a scan still in progress when the next tick fires is skipped.
func New(creator worker.PeriodicalCreator, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	sch := &Scheduler{scheduler: s, creator: creator, logger: logger, ctx: context.Background()}
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sch.scan),
		gocron.WithName("periodical-scan"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create periodical scan job: %w", err)
	}
	sch.jobID = job.ID().String()
	return sch, nil
}

// JobID returns the gocron id of the scan job.
func (s *Scheduler) JobID() string { return s.jobID }

// Start begins scheduling. Scans run with ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.logger.Info("Starting scheduler", logfields.JobID(s.jobID))
	s.scheduler.Start()
}

// Stop waits for a running scan and shuts down.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) scan() {
	started := time.Now()
	created, err := s.creator.CreatePeriodicalBuilds(s.ctx)
	if err != nil {
		s.logger.Error("Periodical scan failed", logfields.Error(err))
		return
	}
	s.logger.Debug("Periodical scan finished",
		logfields.Count(len(created)),
		logfields.DurationMS(time.Since(started)))
}
