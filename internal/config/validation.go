package config

import (
	"fmt"
	"slices"

	"git.home.luguber.info/inful/buildcore/internal/errors"
)

var (
	validDrivers  = []string{"sqlite", "mysql", "postgres"}
	validBackends = []string{"nats", "redis"}
	validLevels   = []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}
	validFormats  = []LogFormat{LogFormatJSON, LogFormatText}
)

// Validate checks a configuration after defaults were applied.
func Validate(cfg *Config) error {
	if !slices.Contains(validDrivers, cfg.Store.Driver) {
		return errors.ValidationFailed("store.driver", fmt.Sprintf("unsupported driver %q", cfg.Store.Driver))
	}
	if cfg.Store.DSN == "" {
		return errors.ConfigRequired("store.dsn")
	}
	if !slices.Contains(validBackends, cfg.Queue.Backend) {
		return errors.ValidationFailed("queue.backend", fmt.Sprintf("unsupported backend %q", cfg.Queue.Backend))
	}
	if cfg.Queue.Name == "default" {
		return errors.ValidationFailed("queue.name", "the default tube is reserved for foreign jobs")
	}
	if cfg.Build.KeepBuilds < 0 {
		return errors.ValidationFailed("build.keep_builds", "must not be negative")
	}
	if !slices.Contains(validLevels, cfg.Logging.Level) {
		return errors.ValidationFailed("logging.level", fmt.Sprintf("unsupported level %q", cfg.Logging.Level))
	}
	if !slices.Contains(validFormats, cfg.Logging.Format) {
		return errors.ValidationFailed("logging.format", fmt.Sprintf("unsupported format %q", cfg.Logging.Format))
	}
	return nil
}
