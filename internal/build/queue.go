package build

import (
	"context"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/model"
	"git.home.luguber.info/inful/buildcore/internal/queue"
)

// QueueConfigured reports whether builds are submitted to a queue.
func (s *Service) QueueConfigured() bool {
	return s.queue != nil && s.tube != ""
}

// AddBuildToQueue submits a job for build. It does nothing for an unsaved
// build or without a configured queue. Submission errors set QueueError and
// are otherwise swallowed.
func (s *Service) AddBuildToQueue(ctx context.Context, b *model.Build) {
	if !b.Persisted() || !s.QueueConfigured() {
		return
	}

	body, err := queue.EncodeBuildJob(b.ID)
	if err == nil {
		var jobID string
		jobID, err = s.queue.Put(ctx, s.tube, body, queue.DefaultPutOptions(s.timeToRun))
		if err == nil {
			s.logger.Debug("Build queued",
				logfields.BuildID(b.ID),
				logfields.JobID(jobID),
				logfields.Tube(s.tube))
			return
		}
	}

	s.mu.Lock()
	s.queueError = true
	s.lastQueueErr = err
	s.mu.Unlock()

	s.recorder.IncQueueErrors()
	s.logger.Error("Build created but not queued",
		logfields.BuildID(b.ID),
		logfields.Tube(s.tube),
		logfields.Error(err))
}

// QueueError reports whether any submission failed since the service was created.
func (s *Service) QueueError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueError
}

// LastQueueError returns the most recent submission error, or nil.
func (s *Service) LastQueueError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQueueErr
}
