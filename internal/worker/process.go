package worker

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	errs "git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/metrics"
	"git.home.luguber.info/inful/buildcore/internal/model"
	"git.home.luguber.info/inful/buildcore/internal/queue"
	"git.home.luguber.info/inful/buildcore/internal/store"
)

// RunOnce leases one job and processes it. It returns queue.ErrNoJob when no
// job became available, an error wrapping ErrInfrastructure after an
// infrastructure failure, and nil otherwise, including after a build failure.
//
// Cancelling ctx only interrupts the reservation. Once a job is leased it is
// executed and acknowledged to the end, so a shutdown never kills a build.
func (w *Worker) RunOnce(ctx context.Context) error {
	job, err := w.queue.Reserve(ctx, w.tube)
	if err != nil {
		return err
	}
	w.recorder.IncJobsReserved()
	return w.process(context.WithoutCancel(ctx), job)
}

func (w *Worker) process(ctx context.Context, job *queue.Job) error {
	log := w.logger.With(logfields.Worker(w.id), logfields.JobID(job.ID))

	payload, err := queue.DecodeBuildJob(job.Body)
	if err != nil {
		log.Debug("Discarding malformed job", logfields.Error(err))
		w.recorder.IncJobOutcome(metrics.OutcomeMalformed)
		return w.ack(ctx, job)
	}

	log = log.With(logfields.BuildID(payload.BuildID))
	log.Info("Received build from queue")

	b, err := w.builds.GetByID(ctx, payload.BuildID)
	switch {
	case stdErrors.Is(err, store.ErrNotFound):
		log.Warn("Build does not exist in the database")
		w.recorder.IncJobOutcome(metrics.OutcomeUnknownBuild)
		return w.ack(ctx, job)
	case err != nil:
		return w.infrastructureFailure(ctx, job, err)
	}

	started := time.Now()
	execErr, sinkErr := w.execute(ctx, b)
	w.recorder.ObserveBuildDuration(time.Since(started))

	switch {
	case execErr != nil && errs.IsInfrastructure(execErr):
		return w.infrastructureFailure(ctx, job, execErr)
	case sinkErr != nil:
		return w.infrastructureFailure(ctx, job, sinkErr)
	case execErr != nil:
		if err := w.failBuild(ctx, b.ID, execErr); err != nil {
			return w.infrastructureFailure(ctx, job, err)
		}
		w.recorder.IncJobOutcome(metrics.OutcomeBuildFailure)
	default:
		w.recorder.IncJobOutcome(metrics.OutcomeSuccess)
	}

	return w.ack(ctx, job)
}

// execute runs the builder with the build's log sink attached. The sink is
// flushed into the build log unless execution hit an infrastructure failure,
// in which case the captured lines are dropped so the row stays untouched.
func (w *Worker) execute(ctx context.Context, b *model.Build) (execErr, sinkErr error) {
	if w.sink == nil {
		return w.runBuilder(ctx, b), nil
	}

	att, err := w.sink.Attach(b.ID)
	if err != nil {
		return nil, errs.InternalError("attach build log", err)
	}
	defer att.Discard()

	execErr = w.runBuilder(ctx, b)
	if execErr != nil && errs.IsInfrastructure(execErr) {
		return execErr, nil
	}
	return execErr, att.Detach(ctx)
}

func (w *Worker) runBuilder(ctx context.Context, b *model.Build) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("builder panic: %v", r)
		}
	}()
	err = w.builder.Execute(ctx, b, w.logger.With(logfields.BuildID(b.ID)))
	if err != nil && !errs.IsInfrastructure(err) {
		w.logger.Error(err.Error(), logfields.BuildID(b.ID))
	}
	return err
}

// failBuild reloads the build, so lines flushed by the log sink are kept, and
// marks it FAILED with the error appended to its log.
func (w *Worker) failBuild(ctx context.Context, buildID int64, cause error) error {
	b, err := w.builds.GetByID(ctx, buildID)
	if err != nil {
		return err
	}
	b.Fail(w.now(), cause.Error())
	if _, err := w.builds.Save(ctx, b); err != nil {
		return err
	}
	w.logger.Warn("Build failed",
		logfields.BuildID(b.ID),
		logfields.BuildStatus(b.Status.String()),
		logfields.Error(cause))

	if err := w.notifier.SendStatusPostback(ctx, b); err != nil {
		w.logger.Warn("Status postback failed", logfields.BuildID(b.ID), logfields.Error(err))
	}
	return nil
}

// infrastructureFailure releases job for redelivery and stops the loop.
func (w *Worker) infrastructureFailure(ctx context.Context, job *queue.Job, cause error) error {
	w.recorder.IncJobOutcome(metrics.OutcomeInfrastructure)
	if err := w.queue.Release(ctx, job); err != nil {
		w.logger.Error("Failed to release job", logfields.JobID(job.ID), logfields.Error(err))
	}
	w.Stop()
	return fmt.Errorf("%w: %w", ErrInfrastructure, cause)
}

func (w *Worker) ack(ctx context.Context, job *queue.Job) error {
	if err := w.queue.Delete(ctx, job); err != nil {
		w.logger.Error("Failed to delete job", logfields.JobID(job.ID), logfields.Error(err))
		return err
	}
	return nil
}
