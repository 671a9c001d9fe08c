package queue

import (
	"context"
	"sync"
)

// Dialer opens a backend connection.
type Dialer func(ctx context.Context) (Client, error)

// Lazy defers connecting until the first operation. A failed dial is retried
// on the next call, so a backend that is down at startup only fails the
// operations attempted while it is unreachable.
func Lazy(dial Dialer) Client {
	return &lazyClient{dial: dial}
}

type lazyClient struct {
	dial Dialer

	mu     sync.Mutex
	client Client
	closed bool
}

func (l *lazyClient) get(ctx context.Context) (Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.client != nil {
		return l.client, nil
	}
	c, err := l.dial(ctx)
	if err != nil {
		return nil, err
	}
	l.client = c
	return c, nil
}

func (l *lazyClient) Put(ctx context.Context, tube string, body []byte, opts PutOptions) (string, error) {
	c, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return c.Put(ctx, tube, body, opts)
}

func (l *lazyClient) Reserve(ctx context.Context, tube string) (*Job, error) {
	c, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return c.Reserve(ctx, tube)
}

func (l *lazyClient) Delete(ctx context.Context, job *Job) error {
	c, err := l.get(ctx)
	if err != nil {
		return err
	}
	return c.Delete(ctx, job)
}

func (l *lazyClient) Release(ctx context.Context, job *Job) error {
	c, err := l.get(ctx)
	if err != nil {
		return err
	}
	return c.Release(ctx, job)
}

func (l *lazyClient) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
