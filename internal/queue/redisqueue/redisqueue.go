// Package redisqueue implements queue.Client on Redis.
//
// Per tube it keeps a ready list, a reserved list and two sorted sets: leases
// scored by their expiry and delayed jobs scored by the time they become
// ready. Job bodies live in a hash per job. Every reserve attempt runs one Lua
// script that moves expired leases and due delayed jobs back to the ready
// list and leases the next job.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	errs "git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/queue"
)

// Config configures the Redis backend.
type Config struct {
	Addr           string
	Password       string
	DB             int
	Prefix         string
	ReserveTimeout time.Duration

	// PollInterval is the pause between reserve attempts on an empty tube.
	PollInterval time.Duration
}

// Client is a Redis-backed queue.Client.
type Client struct {
	rdb    *redis.Client
	cfg    Config
	now    func() time.Time
	closed bool
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.QueueUnavailable(cfg.Addr, fmt.Errorf("failed to connect to Redis: %w", err))
	}
	return NewWithClient(rdb, cfg), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(rdb *redis.Client, cfg Config) *Client {
	if cfg.Prefix == "" {
		cfg.Prefix = "buildcore"
	}
	if cfg.ReserveTimeout <= 0 {
		cfg.ReserveTimeout = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	return &Client{rdb: rdb, cfg: cfg, now: time.Now}
}

func (c *Client) key(tube, kind string) string {
	return c.cfg.Prefix + ":" + tube + ":" + kind
}

func (c *Client) jobKey(id string) string {
	return c.cfg.Prefix + ":job:" + id
}

// Put stores the job body and makes it ready, or delayed when opts.Delay is set.
// Priority is not honored; ready jobs are delivered in FIFO order.
func (c *Client) Put(ctx context.Context, tube string, body []byte, opts queue.PutOptions) (string, error) {
	if c.closed {
		return "", queue.ErrClosed
	}
	ttr := opts.TimeToRun
	if ttr <= 0 {
		ttr = queue.DefaultTimeToRun
	}

	id := uuid.NewString()
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.jobKey(id), map[string]any{
			"tube":     tube,
			"body":     body,
			"ttr_ms":   ttr.Milliseconds(),
			"priority": opts.Priority,
		})
		if opts.Delay > 0 {
			pipe.ZAdd(ctx, c.key(tube, "delayed"), &redis.Z{
				Score:  float64(c.now().Add(opts.Delay).UnixMilli()),
				Member: id,
			})
			return nil
		}
		pipe.LPush(ctx, c.key(tube, "ready"), id)
		return nil
	})
	if err != nil {
		return "", errs.QueueUnavailable(c.cfg.Addr, fmt.Errorf("failed to put job: %w", err))
	}
	return id, nil
}

// reserveScript requeues expired leases and due delayed jobs, then pops the
// oldest ready job onto the reserved list and leases it, all in one step so a
// reserver dying midway cannot strand a job without a lease.
//
// KEYS: ready, reserved, leases, delayed. ARGV: now (ms), job key prefix,
// default time-to-run (ms).
var reserveScript = redis.NewScript(`
local now = tonumber(ARGV[1])
for _, id in ipairs(redis.call("zrangebyscore", KEYS[3], "-inf", now)) do
	redis.call("zrem", KEYS[3], id)
	redis.call("lrem", KEYS[2], 1, id)
	redis.call("rpush", KEYS[1], id)
end
for _, id in ipairs(redis.call("zrangebyscore", KEYS[4], "-inf", now)) do
	redis.call("zrem", KEYS[4], id)
	redis.call("lpush", KEYS[1], id)
end
local id = redis.call("rpoplpush", KEYS[1], KEYS[2])
if not id then
	return false
end
local job = ARGV[2] .. id
local ttr = tonumber(redis.call("hget", job, "ttr_ms")) or tonumber(ARGV[3])
local deadline = now + ttr
redis.call("zadd", KEYS[3], deadline, id)
return {id, redis.call("hget", job, "body") or "", tostring(deadline)}
`)

// Reserve leases the oldest ready job, polling until ReserveTimeout elapses.
func (c *Client) Reserve(ctx context.Context, tube string) (*queue.Job, error) {
	if err := queue.CheckTube(tube); err != nil {
		return nil, err
	}
	if c.closed {
		return nil, queue.ErrClosed
	}

	timer := time.NewTimer(c.cfg.ReserveTimeout)
	defer timer.Stop()
	for {
		job, err := c.reserveOnce(ctx, tube)
		if err != nil || job != nil {
			return job, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, queue.ErrNoJob
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) reserveOnce(ctx context.Context, tube string) (*queue.Job, error) {
	keys := []string{
		c.key(tube, "ready"),
		c.key(tube, "reserved"),
		c.key(tube, "leases"),
		c.key(tube, "delayed"),
	}
	res, err := reserveScript.Run(ctx, c.rdb, keys,
		c.now().UnixMilli(),
		c.cfg.Prefix+":job:",
		queue.DefaultTimeToRun.Milliseconds(),
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.QueueUnavailable(c.cfg.Addr, fmt.Errorf("failed to reserve job: %w", err))
	}
	if len(res) != 3 {
		return nil, errs.QueueUnavailable(c.cfg.Addr, fmt.Errorf("unexpected reserve reply: %v", res))
	}

	id, _ := res[0].(string)
	body, _ := res[1].(string)
	deadlineStr, _ := res[2].(string)
	deadlineMS, err := strconv.ParseInt(deadlineStr, 10, 64)
	if err != nil {
		return nil, errs.QueueUnavailable(c.cfg.Addr, fmt.Errorf("invalid lease deadline %q: %w", deadlineStr, err))
	}
	return &queue.Job{
		ID:      id,
		Tube:    tube,
		Body:    []byte(body),
		Receipt: time.UnixMilli(deadlineMS),
	}, nil
}

// Delete removes the job and its lease.
func (c *Client) Delete(ctx context.Context, job *queue.Job) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, c.key(job.Tube, "reserved"), 1, job.ID)
		pipe.ZRem(ctx, c.key(job.Tube, "leases"), job.ID)
		pipe.Del(ctx, c.jobKey(job.ID))
		return nil
	})
	if err != nil {
		return errs.QueueUnavailable(c.cfg.Addr, fmt.Errorf("failed to delete job %s: %w", job.ID, err))
	}
	return nil
}

// Release drops the lease and puts the job at the head of the ready list.
func (c *Client) Release(ctx context.Context, job *queue.Job) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, c.key(job.Tube, "leases"), job.ID)
		pipe.LRem(ctx, c.key(job.Tube, "reserved"), 1, job.ID)
		pipe.RPush(ctx, c.key(job.Tube, "ready"), job.ID)
		return nil
	})
	if err != nil {
		return errs.QueueUnavailable(c.cfg.Addr, fmt.Errorf("failed to release job %s: %w", job.ID, err))
	}
	return nil
}

// Close closes the Redis client.
func (c *Client) Close() error {
	c.closed = true
	return c.rdb.Close()
}

var _ queue.Client = (*Client)(nil)
