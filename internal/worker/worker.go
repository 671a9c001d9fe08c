// Package worker runs the build worker loop: it leases build jobs from the
// queue, executes them through a Builder and acknowledges or requeues them
// according to how execution ended.
package worker

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/buildcore/internal/builder"
	"git.home.luguber.info/inful/buildcore/internal/buildlog"
	errs "git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/metrics"
	"git.home.luguber.info/inful/buildcore/internal/model"
	"git.home.luguber.info/inful/buildcore/internal/postback"
	"git.home.luguber.info/inful/buildcore/internal/queue"
	"git.home.luguber.info/inful/buildcore/internal/retry"
	"git.home.luguber.info/inful/buildcore/internal/store"
)

// State represents the lifecycle state of a worker.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// DefaultPeriodicalInterval is the minimum wall-clock gap between periodical scans.
const DefaultPeriodicalInterval = 60 * time.Second

// ErrInfrastructure is returned by Run when the loop stopped because the
// build store failed during execution.
var ErrInfrastructure = stdErrors.New("worker stopped after infrastructure failure")

// PeriodicalCreator creates the builds that are due by schedule.
type PeriodicalCreator interface {
	CreatePeriodicalBuilds(ctx context.Context) ([]*model.Build, error)
}

// Worker processes build jobs from one tube.
type Worker struct {
	id      string
	builds  store.BuildStore
	queue   queue.Client
	tube    string
	builder builder.Builder

	sink       *buildlog.Sink
	logger     *slog.Logger
	notifier   postback.Notifier
	recorder   metrics.Recorder
	periodical PeriodicalCreator
	retry      retry.Policy
	now        func() time.Time

	periodicalEvery time.Duration
	lastPeriodical  time.Time

	status   atomic.Value // State
	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a worker leasing jobs from tube. Jobs in the default tube are
// never reserved.
func New(builds store.BuildStore, client queue.Client, tube string, b builder.Builder) *Worker {
	w := &Worker{
		id:              uuid.NewString(),
		builds:          builds,
		queue:           client,
		tube:            tube,
		builder:         b,
		logger:          slog.Default(),
		notifier:        postback.Noop{},
		recorder:        metrics.NoopRecorder{},
		retry:           retry.DefaultPolicy(),
		now:             time.Now,
		periodicalEvery: DefaultPeriodicalInterval,
		stopChan:        make(chan struct{}),
	}
	w.status.Store(StateIdle)
	return w
}

// WithLogSink routes log records emitted during a build into that build's log.
// The worker's logger should be built on sink.Handler for captured lines to
// reach the sink.
func (w *Worker) WithLogSink(sink *buildlog.Sink) *Worker {
	w.sink = sink
	return w
}

// WithLogger sets the logger handed to the builder.
func (w *Worker) WithLogger(l *slog.Logger) *Worker {
	if l != nil {
		w.logger = l
	}
	return w
}

func (w *Worker) WithNotifier(n postback.Notifier) *Worker {
	if n != nil {
		w.notifier = n
	}
	return w
}

func (w *Worker) WithRecorder(r metrics.Recorder) *Worker {
	if r != nil {
		w.recorder = r
	}
	return w
}

// WithPeriodical enables the throttled periodical scan. A zero interval
// selects DefaultPeriodicalInterval.
func (w *Worker) WithPeriodical(p PeriodicalCreator, every time.Duration) *Worker {
	w.periodical = p
	if every > 0 {
		w.periodicalEvery = every
	}
	return w
}

// WithRetryPolicy sets the backoff used when the queue is unreachable.
func (w *Worker) WithRetryPolicy(p retry.Policy) *Worker {
	w.retry = p
	return w
}

func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// ID returns the worker's identity used in logs.
func (w *Worker) ID() string { return w.id }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	s, ok := w.status.Load().(State)
	if !ok {
		return StateIdle
	}
	return s
}

// Stop requests a cooperative stop. The flag is checked between iterations,
// so a job already being processed runs to completion.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.State() == StateRunning {
			w.status.Store(StateStopping)
		}
		close(w.stopChan)
	})
}

func (w *Worker) stopRequested() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

// Run processes jobs until Stop is called, ctx is done, the queue stays
// unreachable past the retry policy, or an infrastructure failure occurs.
// Only the last two return a non-nil error. Neither Stop nor ctx interrupts
// a job that is already leased.
func (w *Worker) Run(ctx context.Context) error {
	if !w.status.CompareAndSwap(StateIdle, StateRunning) {
		return fmt.Errorf("worker is not idle: %s", w.State())
	}
	w.recorder.SetWorkerRunning(true)
	defer func() {
		w.recorder.SetWorkerRunning(false)
		w.status.Store(StateStopped)
	}()

	log := w.logger.With(logfields.Worker(w.id), logfields.Tube(w.tube))
	log.Info("Worker started")

	queueFailures := 0
	for !w.stopRequested() && ctx.Err() == nil {
		w.maybeCreatePeriodicalBuilds(ctx)

		err := w.RunOnce(ctx)
		switch {
		case err == nil, stdErrors.Is(err, queue.ErrNoJob):
			queueFailures = 0
		case stdErrors.Is(err, ErrInfrastructure):
			log.Error("Worker stopping", logfields.Error(err))
			return err
		case ctx.Err() != nil:
		case errs.IsRetryable(err):
			queueFailures++
			if w.retry.Exhausted(queueFailures) {
				return fmt.Errorf("queue unavailable after %d attempts: %w", queueFailures, err)
			}
			log.Warn("Queue unavailable, backing off",
				logfields.Error(err),
				logfields.Attempt(queueFailures))
			_ = w.retry.Wait(ctx, queueFailures)
		default:
			return err
		}
	}

	log.Info("Worker stopped")
	return nil
}

func (w *Worker) maybeCreatePeriodicalBuilds(ctx context.Context) {
	if w.periodical == nil {
		return
	}
	now := w.now()
	if !w.lastPeriodical.IsZero() && w.lastPeriodical.Add(w.periodicalEvery).After(now) {
		return
	}
	w.lastPeriodical = now.Add(-time.Second)

	if _, err := w.periodical.CreatePeriodicalBuilds(ctx); err != nil {
		w.logger.Error("Periodical scan failed", logfields.Worker(w.id), logfields.Error(err))
	}
}
