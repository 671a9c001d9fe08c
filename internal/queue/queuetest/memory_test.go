package queuetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildcore/internal/queue"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestReserveOrdersByPriorityThenFIFO(t *testing.T) {
	q := New()
	ctx := context.Background()

	_, err := q.Put(ctx, "builds", []byte("a"), queue.PutOptions{Priority: 1024, TimeToRun: time.Minute})
	require.NoError(t, err)
	_, err = q.Put(ctx, "builds", []byte("b"), queue.PutOptions{Priority: 1024, TimeToRun: time.Minute})
	require.NoError(t, err)
	_, err = q.Put(ctx, "builds", []byte("urgent"), queue.PutOptions{Priority: 1, TimeToRun: time.Minute})
	require.NoError(t, err)

	var got []string
	for range 3 {
		job, err := q.Reserve(ctx, "builds")
		require.NoError(t, err)
		got = append(got, string(job.Body))
		require.NoError(t, q.Delete(ctx, job))
	}
	require.Equal(t, []string{"urgent", "a", "b"}, got)
}

func TestReserveOnlyWatchesRequestedTube(t *testing.T) {
	q := New(WithReserveTimeout(10 * time.Millisecond))
	ctx := context.Background()

	_, err := q.Put(ctx, queue.DefaultTube, []byte("foreign"), queue.DefaultPutOptions(0))
	require.NoError(t, err)

	_, err = q.Reserve(ctx, "builds")
	require.ErrorIs(t, err, queue.ErrNoJob)

	_, err = q.Reserve(ctx, queue.DefaultTube)
	require.ErrorIs(t, err, queue.ErrDefaultTube)
}

func TestLeaseExpiryRedelivers(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	q := New(WithClock(clock.now), WithReserveTimeout(10*time.Millisecond))
	ctx := context.Background()

	_, err := q.Put(ctx, "builds", []byte("x"), queue.PutOptions{TimeToRun: 600 * time.Second})
	require.NoError(t, err)

	first, err := q.Reserve(ctx, "builds")
	require.NoError(t, err)

	_, err = q.Reserve(ctx, "builds")
	require.ErrorIs(t, err, queue.ErrNoJob)

	clock.t = clock.t.Add(601 * time.Second)
	second, err := q.Reserve(ctx, "builds")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestReleaseMakesJobReadyAgain(t *testing.T) {
	q := New()
	ctx := context.Background()

	id, err := q.Put(ctx, "builds", []byte("x"), queue.DefaultPutOptions(0))
	require.NoError(t, err)

	job, err := q.Reserve(ctx, "builds")
	require.NoError(t, err)
	require.Equal(t, 1, q.ReservedCount())

	require.NoError(t, q.Release(ctx, job))
	require.Equal(t, []string{id}, q.Released())
	require.Len(t, q.Ready("builds"), 1)
	require.Error(t, q.Delete(ctx, job))
}

func TestDelayedJob(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	q := New(WithClock(clock.now), WithReserveTimeout(10*time.Millisecond))
	ctx := context.Background()

	_, err := q.Put(ctx, "builds", []byte("later"), queue.PutOptions{Delay: time.Minute, TimeToRun: time.Minute})
	require.NoError(t, err)
	require.Empty(t, q.Ready("builds"))

	clock.t = clock.t.Add(time.Minute)
	require.Len(t, q.Ready("builds"), 1)
}

func TestReserveWakesOnPut(t *testing.T) {
	q := New(WithReserveTimeout(5 * time.Second))
	ctx := context.Background()

	done := make(chan *queue.Job, 1)
	go func() {
		job, err := q.Reserve(ctx, "builds")
		if err == nil {
			done <- job
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := q.Put(ctx, "builds", []byte("x"), queue.DefaultPutOptions(0))
	require.NoError(t, err)

	select {
	case job := <-done:
		require.NotNil(t, job)
	case <-time.After(2 * time.Second):
		t.Fatal("reserve did not wake up")
	}
}

func TestReserveHonorsContext(t *testing.T) {
	q := New(WithReserveTimeout(5 * time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Reserve(ctx, "builds")
	require.ErrorIs(t, err, context.Canceled)
}
