package commands

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/metrics"
)

// WorkerCmd implements the 'worker' command.
type WorkerCmd struct {
	NoPeriodical bool   `help:"Do not run the periodical scan in this worker"`
	MetricsAddr  string `help:"Override metrics.addr"`
}

func (w *WorkerCmd) Run(_ *Global, root *CLI) error {
	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("Shutdown incomplete", logfields.Error(err))
		}
	}()
	if err := a.requireQueue(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := a.cfg.Metrics.Addr
	if w.MetricsAddr != "" {
		addr = w.MetricsAddr
	}
	if addr != "" {
		srv := startMetricsServer(a, addr)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	wk := a.newWorker()
	if a.cfg.Worker.PeriodicalEnabled() && !w.NoPeriodical {
		if err := a.schedule.Watch(ctx); err != nil {
			a.logger.Warn("Schedule file is re-read on every scan", logfields.Error(err))
		}
		wk.WithPeriodical(a.service, a.cfg.Worker.PeriodicalInterval.Std())
	}

	go func() {
		<-ctx.Done()
		a.logger.Info("Shutdown signal received, stopping after the current build")
		wk.Stop()
	}()

	a.logger.Info("Starting worker",
		logfields.Worker(wk.ID()),
		logfields.Tube(a.cfg.Queue.Name),
		logfields.Backend(a.cfg.Queue.Backend))
	if err := wk.Run(ctx); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}

func startMetricsServer(a *app, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, metrics.HTTPHandler(a.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}
	go func() {
		a.logger.Info("Serving metrics", logfields.Addr(addr), logfields.Path(a.cfg.Metrics.Path))
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	return srv
}
