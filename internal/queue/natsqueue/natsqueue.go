// Package natsqueue implements queue.Client on a NATS JetStream work-queue stream.
//
// Each tube maps to the subject <stream>.<tube> and a durable pull consumer of
// the same name. The consumer's AckWait is the job time-to-run: a job that is
// not acknowledged in time is redelivered to another reserver.
package natsqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	errs "git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/queue"
)

// Config configures the JetStream backend.
type Config struct {
	URL            string
	Stream         string
	TimeToRun      time.Duration
	ReserveTimeout time.Duration
}

// Client is a JetStream-backed queue.Client.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  Config

	mu        sync.Mutex
	consumers map[string]jetstream.Consumer
}

// New connects to NATS and ensures the work-queue stream exists.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Stream == "" {
		return nil, errs.ConfigRequired("queue.name")
	}
	if cfg.TimeToRun <= 0 {
		cfg.TimeToRun = queue.DefaultTimeToRun
	}
	if cfg.ReserveTimeout <= 0 {
		cfg.ReserveTimeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("buildcore"))
	if err != nil {
		return nil, errs.QueueUnavailable(cfg.URL, fmt.Errorf("failed to connect to NATS: %w", err))
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errs.QueueUnavailable(cfg.URL, fmt.Errorf("failed to create JetStream context: %w", err))
	}

	c := &Client{
		conn:      conn,
		js:        js,
		cfg:       cfg,
		consumers: make(map[string]jetstream.Consumer),
	}

	if err := c.initStream(ctx); err != nil {
		conn.Close()
		return nil, errs.QueueUnavailable(cfg.URL, err)
	}

	slog.Info("NATS queue initialized",
		logfields.Addr(cfg.URL),
		logfields.Stream(cfg.Stream),
		logfields.TimeToRun(cfg.TimeToRun))

	return c, nil
}

func (c *Client) initStream(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        c.cfg.Stream,
		Description: "buildcore build jobs",
		Subjects:    []string{c.cfg.Stream + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.cfg.Stream, err)
	}
	return nil
}

func (c *Client) subject(tube string) string {
	return c.cfg.Stream + "." + tube
}

// Put publishes body to the tube subject. JetStream has no per-message
// priority or delay; a non-zero delay is rejected and priority is ignored.
func (c *Client) Put(ctx context.Context, tube string, body []byte, opts queue.PutOptions) (string, error) {
	if opts.Delay > 0 {
		return "", fmt.Errorf("natsqueue: delayed jobs are not supported")
	}
	ack, err := c.js.Publish(ctx, c.subject(tube), body)
	if err != nil {
		return "", errs.QueueUnavailable(c.cfg.URL, fmt.Errorf("failed to publish job: %w", err))
	}
	return strconv.FormatUint(ack.Sequence, 10), nil
}

func (c *Client) consumer(ctx context.Context, tube string) (jetstream.Consumer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cons, ok := c.consumers[tube]; ok {
		return cons, nil
	}

	// Durable names may not contain dots.
	durable := strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(tube)
	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: c.subject(tube),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.cfg.TimeToRun,
		MaxDeliver:    -1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for %s: %w", tube, err)
	}
	c.consumers[tube] = cons
	return cons, nil
}

// Reserve fetches one message from the tube's durable consumer.
func (c *Client) Reserve(ctx context.Context, tube string) (*queue.Job, error) {
	if err := queue.CheckTube(tube); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cons, err := c.consumer(ctx, tube)
	if err != nil {
		return nil, errs.QueueUnavailable(c.cfg.URL, err)
	}

	batch, err := cons.Fetch(1, jetstream.FetchMaxWait(c.cfg.ReserveTimeout))
	if err != nil {
		return nil, errs.QueueUnavailable(c.cfg.URL, fmt.Errorf("failed to fetch job: %w", err))
	}
	for msg := range batch.Messages() {
		job := &queue.Job{
			Tube:    tube,
			Body:    msg.Data(),
			Receipt: msg,
		}
		if meta, err := msg.Metadata(); err == nil {
			job.ID = strconv.FormatUint(meta.Sequence.Stream, 10)
		}
		return job, nil
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		return nil, errs.QueueUnavailable(c.cfg.URL, fmt.Errorf("failed to fetch job: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, queue.ErrNoJob
}

func receipt(job *queue.Job) (jetstream.Msg, error) {
	msg, ok := job.Receipt.(jetstream.Msg)
	if !ok {
		return nil, fmt.Errorf("natsqueue: job %s was not reserved by this client", job.ID)
	}
	return msg, nil
}

// Delete acknowledges the message and waits for the server to confirm.
func (c *Client) Delete(ctx context.Context, job *queue.Job) error {
	msg, err := receipt(job)
	if err != nil {
		return err
	}
	if err := msg.DoubleAck(ctx); err != nil {
		return errs.QueueUnavailable(c.cfg.URL, fmt.Errorf("failed to ack job %s: %w", job.ID, err))
	}
	return nil
}

// Release negatively acknowledges the message for immediate redelivery.
func (c *Client) Release(_ context.Context, job *queue.Job) error {
	msg, err := receipt(job)
	if err != nil {
		return err
	}
	if err := msg.Nak(); err != nil {
		return errs.QueueUnavailable(c.cfg.URL, fmt.Errorf("failed to release job %s: %w", job.ID, err))
	}
	slog.Debug("Released job", logfields.JobID(job.ID), logfields.Tube(job.Tube))
	return nil
}

// Close drains the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Drain()
	}
	return nil
}

var _ queue.Client = (*Client)(nil)
