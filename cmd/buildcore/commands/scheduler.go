package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/scheduler"
)

// SchedulerCmd implements the 'scheduler' command.
type SchedulerCmd struct{}

func (s *SchedulerCmd) Run(_ *Global, root *CLI) error {
	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("Shutdown incomplete", logfields.Error(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.schedule.Watch(ctx); err != nil {
		a.logger.Warn("Schedule file is re-read on every scan", logfields.Error(err))
	}

	interval := a.cfg.Worker.PeriodicalInterval.Std()
	sch, err := scheduler.New(a.service, interval, a.logger)
	if err != nil {
		return err
	}
	sch.Start(ctx)
	a.logger.Info("Scheduler running", logfields.Interval(interval), logfields.Path(a.schedule.Path()))

	<-ctx.Done()
	return sch.Stop()
}
