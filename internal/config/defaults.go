package config

import "time"

// Default values.
const (
	DefaultStoreDriver        = "sqlite"
	DefaultStoreDSN           = "buildcore.db"
	DefaultQueueBackend       = "nats"
	DefaultQueueLifetime      = 600 * time.Second
	DefaultKeepBuilds         = 100
	DefaultRuntimeDir         = "runtime"
	DefaultPublicDir          = "public"
	DefaultPeriodicalInterval = 60 * time.Second
	DefaultReserveTimeout     = 5 * time.Second
	DefaultPeriodicalFile     = "periodical.yml"
	DefaultLockTTL            = 55 * time.Second
	DefaultPostbackSubject    = "buildcore.status"
	DefaultMetricsPath        = "/metrics"
	DefaultShell              = "/bin/sh"
	DefaultCommandFile        = ".buildcore.sh"
)

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == DefaultStoreDriver {
		cfg.Store.DSN = DefaultStoreDSN
	}

	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = DefaultQueueBackend
	}
	if cfg.Queue.Lifetime <= 0 {
		cfg.Queue.Lifetime = Duration(DefaultQueueLifetime)
	}

	if cfg.Build.KeepBuilds == 0 {
		cfg.Build.KeepBuilds = DefaultKeepBuilds
	}
	if cfg.Build.RuntimeDir == "" {
		cfg.Build.RuntimeDir = DefaultRuntimeDir
	}
	if cfg.Build.PublicDir == "" {
		cfg.Build.PublicDir = DefaultPublicDir
	}

	if cfg.Worker.PeriodicalInterval <= 0 {
		cfg.Worker.PeriodicalInterval = Duration(DefaultPeriodicalInterval)
	}
	if cfg.Worker.ReserveTimeout <= 0 {
		cfg.Worker.ReserveTimeout = Duration(DefaultReserveTimeout)
	}

	if cfg.Periodical.File == "" {
		cfg.Periodical.File = DefaultPeriodicalFile
	}
	if cfg.Periodical.Lock.TTL <= 0 {
		cfg.Periodical.Lock.TTL = Duration(DefaultLockTTL)
	}

	if cfg.Postback.Subject == "" {
		cfg.Postback.Subject = DefaultPostbackSubject
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}

	if cfg.Builder.Shell == "" {
		cfg.Builder.Shell = DefaultShell
	}
	if cfg.Builder.CommandFile == "" {
		cfg.Builder.CommandFile = DefaultCommandFile
	}
}
