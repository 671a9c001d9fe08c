// Package queuetest provides an in-memory queue.Client with lease and
// time-to-run semantics for tests.
package queuetest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildcore/internal/queue"
)

type entry struct {
	job      queue.Job
	priority uint32
	seq      int
	ttr      time.Duration
	readyAt  time.Time
	deadline time.Time
}

// Queue is a goroutine-safe in-memory queue.
type Queue struct {
	mu             sync.Mutex
	now            func() time.Time
	reserveTimeout time.Duration
	seq            int
	ready          map[string][]*entry
	delayed        []*entry
	reserved       map[string]*entry
	deleted        []string
	released       []string
	changed        chan struct{}
	closed         bool
	putErr         error
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the clock used for delays and lease expiry.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithReserveTimeout sets how long Reserve waits before returning queue.ErrNoJob.
func WithReserveTimeout(d time.Duration) Option {
	return func(q *Queue) { q.reserveTimeout = d }
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		now:            time.Now,
		reserveTimeout: 50 * time.Millisecond,
		ready:          make(map[string][]*entry),
		reserved:       make(map[string]*entry),
		changed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// FailPuts makes every subsequent Put return err. A nil err restores normal behavior.
func (q *Queue) FailPuts(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.putErr = err
}

// Put implements queue.Client.
func (q *Queue) Put(_ context.Context, tube string, body []byte, opts queue.PutOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", queue.ErrClosed
	}
	if q.putErr != nil {
		return "", q.putErr
	}

	q.seq++
	e := &entry{
		job: queue.Job{
			ID:   strconv.Itoa(q.seq),
			Tube: tube,
			Body: append([]byte(nil), body...),
		},
		priority: opts.Priority,
		seq:      q.seq,
		ttr:      opts.TimeToRun,
		readyAt:  q.now().Add(opts.Delay),
	}
	if opts.Delay > 0 {
		q.delayed = append(q.delayed, e)
	} else {
		q.pushReady(e)
	}
	q.signal()
	return e.job.ID, nil
}

// Reserve implements queue.Client.
func (q *Queue) Reserve(ctx context.Context, tube string) (*queue.Job, error) {
	if err := queue.CheckTube(tube); err != nil {
		return nil, err
	}

	timer := time.NewTimer(q.reserveTimeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, queue.ErrClosed
		}
		now := q.now()
		q.promote(now)
		if entries := q.ready[tube]; len(entries) > 0 {
			e := entries[0]
			q.ready[tube] = entries[1:]
			e.deadline = now.Add(e.ttr)
			q.reserved[e.job.ID] = e
			job := e.job
			job.Receipt = e.seq
			q.mu.Unlock()
			return &job, nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, queue.ErrNoJob
		case <-changed:
		}
	}
}

// Delete implements queue.Client.
func (q *Queue) Delete(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.reserved[job.ID]; !ok {
		return errNotReserved(job.ID)
	}
	delete(q.reserved, job.ID)
	q.deleted = append(q.deleted, job.ID)
	return nil
}

// Release implements queue.Client.
func (q *Queue) Release(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.reserved[job.ID]
	if !ok {
		return errNotReserved(job.ID)
	}
	delete(q.reserved, job.ID)
	q.released = append(q.released, job.ID)
	q.pushReady(e)
	q.signal()
	return nil
}

// Close implements queue.Client.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.signal()
	}
	return nil
}

// Ready returns the bodies of the ready jobs on tube in delivery order.
func (q *Queue) Ready(tube string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.promote(q.now())
	out := make([][]byte, 0, len(q.ready[tube]))
	for _, e := range q.ready[tube] {
		out = append(out, e.job.Body)
	}
	return out
}

// ReservedCount returns the number of jobs currently leased.
func (q *Queue) ReservedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reserved)
}

// Deleted returns the ids of acknowledged jobs.
func (q *Queue) Deleted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

// Released returns the ids of released jobs.
func (q *Queue) Released() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.released...)
}

func (q *Queue) promote(now time.Time) {
	kept := q.delayed[:0]
	for _, e := range q.delayed {
		if !e.readyAt.After(now) {
			q.pushReady(e)
			continue
		}
		kept = append(kept, e)
	}
	q.delayed = kept

	for id, e := range q.reserved {
		if !e.deadline.After(now) {
			delete(q.reserved, id)
			q.pushReady(e)
		}
	}
}

func (q *Queue) pushReady(e *entry) {
	entries := append(q.ready[e.job.Tube], e)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	q.ready[e.job.Tube] = entries
}

// signal wakes blocked reservers. Callers hold q.mu.
func (q *Queue) signal() {
	close(q.changed)
	q.changed = make(chan struct{})
}

type errNotReserved string

func (e errNotReserved) Error() string {
	return "queuetest: job " + string(e) + " is not reserved"
}

var _ queue.Client = (*Queue)(nil)
