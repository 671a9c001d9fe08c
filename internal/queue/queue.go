// Package queue defines the work-queue contract used to hand builds from the
// build service to workers, and the build job payload carried on it.
//
// Semantics follow a beanstalk-style queue: jobs are put on a named tube,
// reserved under a lease that lasts the job's time-to-run, and either deleted
// (acknowledged) or released back for redelivery. A reserved job that is
// neither deleted nor released before its lease expires becomes ready again.
package queue

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultPriority is the priority used when none is given. Lower runs first.
	DefaultPriority uint32 = 1024

	// DefaultDelay puts jobs in the ready state immediately.
	DefaultDelay time.Duration = 0

	// DefaultTimeToRun is the lease length applied to build jobs.
	DefaultTimeToRun = 600 * time.Second

	// DefaultTube is the unnamed channel every backend exposes. Workers never
	// reserve from it so foreign jobs sharing the backend are left alone.
	DefaultTube = "default"
)

var (
	// ErrNoJob is returned by Reserve when no job became ready within the
	// backend's reserve timeout. Callers are expected to loop.
	ErrNoJob = errors.New("queue: no job ready")

	// ErrDefaultTube is returned when reserving from DefaultTube.
	ErrDefaultTube = errors.New("queue: reserving from the default tube is not allowed")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("queue: client closed")
)

// PutOptions controls how a job is enqueued.
type PutOptions struct {
	Priority  uint32
	Delay     time.Duration
	TimeToRun time.Duration
}

// DefaultPutOptions returns default priority and delay with the given time-to-run.
func DefaultPutOptions(ttr time.Duration) PutOptions {
	if ttr <= 0 {
		ttr = DefaultTimeToRun
	}
	return PutOptions{
		Priority:  DefaultPriority,
		Delay:     DefaultDelay,
		TimeToRun: ttr,
	}
}

// Job is a reserved unit of work.
type Job struct {
	ID   string
	Tube string
	Body []byte

	// Receipt is the backend handle needed to delete or release the job.
	Receipt any
}

// Client is the queue contract required by the build service and workers.
type Client interface {
	// Put enqueues body on tube and returns the backend's job id.
	Put(ctx context.Context, tube string, body []byte, opts PutOptions) (string, error)

	// Reserve leases the next ready job from tube, watching only that tube.
	// It returns ErrNoJob when nothing arrived within the reserve timeout and
	// ctx.Err() when ctx is done.
	Reserve(ctx context.Context, tube string) (*Job, error)

	// Delete acknowledges a reserved job.
	Delete(ctx context.Context, job *Job) error

	// Release returns a reserved job to the ready state for redelivery.
	Release(ctx context.Context, job *Job) error

	Close() error
}

// CheckTube validates a tube name for reservation.
func CheckTube(tube string) error {
	if tube == "" || tube == DefaultTube {
		return ErrDefaultTube
	}
	return nil
}
