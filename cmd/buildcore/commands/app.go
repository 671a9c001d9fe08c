package commands

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/buildcore/internal/build"
	"git.home.luguber.info/inful/buildcore/internal/builder"
	"git.home.luguber.info/inful/buildcore/internal/buildlog"
	"git.home.luguber.info/inful/buildcore/internal/config"
	errs "git.home.luguber.info/inful/buildcore/internal/errors"
	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/metrics"
	"git.home.luguber.info/inful/buildcore/internal/periodical"
	"git.home.luguber.info/inful/buildcore/internal/postback"
	"git.home.luguber.info/inful/buildcore/internal/queue"
	"git.home.luguber.info/inful/buildcore/internal/queue/natsqueue"
	"git.home.luguber.info/inful/buildcore/internal/queue/redisqueue"
	"git.home.luguber.info/inful/buildcore/internal/store"
	"git.home.luguber.info/inful/buildcore/internal/worker"
	"git.home.luguber.info/inful/buildcore/internal/workspace"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.SQLStore
	sink     *buildlog.Sink
	layout   *workspace.Layout
	queue    queue.Client
	notifier postback.Notifier
	schedule *periodical.FileProvider
	registry *prometheus.Registry
	recorder metrics.Recorder
	service  *build.Service

	closers []func() error
}

func newApp(root *CLI) (*app, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: db}
	a.closers = append(a.closers, db.Close)

	level := cfg.Logging.SlogLevel()
	if root.Verbose {
		level = slog.LevelDebug
	}
	a.sink = buildlog.NewSink(db, slog.LevelInfo)
	a.logger = slog.New(a.sink.Handler(newHandler(os.Stderr, cfg.Logging.Format, level)))
	slog.SetDefault(a.logger)

	a.registry = prometheus.NewRegistry()
	a.recorder = metrics.NewPrometheusRecorder(a.registry)
	a.layout = workspace.NewLayout(cfg.Build.RuntimeDir, cfg.Build.PublicDir, cfg.Build.ArtifactTools)
	a.service = build.NewService(db, a.layout).
		WithKeepBuilds(cfg.Build.KeepBuilds).
		WithRecorder(a.recorder).
		WithLogger(a.logger)

	if cfg.Queue.Configured() {
		a.queue = queue.Lazy(queueDialer(cfg))
		a.closers = append(a.closers, a.queue.Close)
		a.service.WithQueue(a.queue, cfg.Queue.Name, cfg.Queue.Lifetime.Std())
	} else {
		a.logger.Warn("Queue not configured, builds will not be queued")
	}

	if cfg.Postback.NATSURL != "" {
		pub, err := postback.NewNATSPublisher(cfg.Postback.NATSURL, cfg.Postback.Subject)
		if err != nil {
			a.logger.Warn("Status postbacks disabled", logfields.Error(err))
		} else {
			a.notifier = pub
			a.closers = append(a.closers, pub.Close)
			a.service.WithNotifier(pub)
		}
	}
	if a.notifier == nil {
		a.notifier = postback.Noop{}
	}

	a.schedule = periodical.NewFileProvider(cfg.Periodical.File, a.logger)
	a.closers = append(a.closers, a.schedule.Close)
	planner := periodical.NewPlanner(a.schedule, db.Projects(), db, a.logger)

	var locker periodical.Locker
	if lock := cfg.Periodical.Lock; lock.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: lock.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		locker = periodical.NewRedisLocker(rdb, lock.Key, lock.TTL.Std())
	}
	a.service.WithPlanner(planner, locker)

	return a, nil
}

func newHandler(w io.Writer, format config.LogFormat, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func queueDialer(cfg *config.Config) queue.Dialer {
	q := cfg.Queue
	return func(ctx context.Context) (queue.Client, error) {
		switch q.Backend {
		case "redis":
			return redisqueue.New(ctx, redisqueue.Config{
				Addr:           q.Host,
				Password:       q.Password,
				DB:             q.DB,
				ReserveTimeout: cfg.Worker.ReserveTimeout.Std(),
			})
		default:
			return natsqueue.New(ctx, natsqueue.Config{
				URL:            q.Host,
				Stream:         q.Name,
				TimeToRun:      q.Lifetime.Std(),
				ReserveTimeout: cfg.Worker.ReserveTimeout.Std(),
			})
		}
	}
}

// requireQueue fails when the command needs a queue that is not configured.
func (a *app) requireQueue() error {
	if a.queue == nil {
		return errs.ConfigRequired("queue.host")
	}
	return nil
}

func (a *app) newWorker() *worker.Worker {
	b := builder.NewCommandBuilder(a.store, a.layout, a.cfg.Builder.Shell, a.cfg.Builder.CommandFile)
	return worker.New(a.store, a.queue, a.cfg.Queue.Name, b).
		WithLogSink(a.sink).
		WithLogger(a.logger).
		WithNotifier(a.notifier).
		WithRecorder(a.recorder)
}

func (a *app) Close() error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	if len(errList) > 0 {
		return fmt.Errorf("close: %w", stdErrors.Join(errList...))
	}
	return nil
}
