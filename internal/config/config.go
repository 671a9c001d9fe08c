// Package config loads the buildcore YAML configuration.
package config

import (
	stdErrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/buildcore/internal/errors"
)

// Config is the root configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Queue      QueueConfig      `yaml:"queue"`
	Build      BuildConfig      `yaml:"build"`
	Worker     WorkerConfig     `yaml:"worker"`
	Periodical PeriodicalConfig `yaml:"periodical"`
	Postback   PostbackConfig   `yaml:"postback"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Builder    BuilderConfig    `yaml:"builder"`
}

// StoreConfig selects the SQL driver and connection string.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite|mysql|postgres
	DSN    string `yaml:"dsn"`
}

// QueueConfig configures the job queue. Host and Name must both be set for
// builds to be enqueued.
type QueueConfig struct {
	Backend  string   `yaml:"backend"` // nats|redis
	Host     string   `yaml:"host"`
	Name     string   `yaml:"name"`     // Tube builds are put on and reserved from
	Lifetime Duration `yaml:"lifetime"` // Job time-to-run
	Password string   `yaml:"password,omitempty"`
	DB       int      `yaml:"db,omitempty"`
}

// Configured reports whether enough is set to talk to a queue.
func (q QueueConfig) Configured() bool {
	return q.Host != "" && q.Name != ""
}

// BuildConfig configures retention and on-disk layout.
type BuildConfig struct {
	KeepBuilds    int      `yaml:"keep_builds"`
	RuntimeDir    string   `yaml:"runtime_dir"`
	PublicDir     string   `yaml:"public_dir"`
	ArtifactTools []string `yaml:"artifact_tools"`
}

// WorkerConfig configures the worker loop.
type WorkerConfig struct {
	Periodical         *bool    `yaml:"periodical"`
	PeriodicalInterval Duration `yaml:"periodical_interval"`
	ReserveTimeout     Duration `yaml:"reserve_timeout"`
}

// PeriodicalEnabled reports whether workers run the periodical scan.
func (w WorkerConfig) PeriodicalEnabled() bool {
	return w.Periodical == nil || *w.Periodical
}

// PeriodicalConfig locates the schedule file and the optional scan lock.
type PeriodicalConfig struct {
	File string     `yaml:"file"`
	Lock LockConfig `yaml:"lock"`
}

// LockConfig configures the Redis scan lock. An empty address disables it.
type LockConfig struct {
	RedisAddr string   `yaml:"redis_addr"`
	Key       string   `yaml:"key"`
	TTL       Duration `yaml:"ttl"`
}

// PostbackConfig configures status postbacks. An empty URL disables them.
type PostbackConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// BuilderConfig configures the command builder.
type BuilderConfig struct {
	Shell       string `yaml:"shell"`
	CommandFile string `yaml:"command_file"`
}

// Load reads configPath, expands environment variables, applies defaults and validates.
// Variables from .env and .env.local are loaded first without overriding the environment.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(".env", ".env.local"); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ConfigNotFound(configPath)
		}
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes YAML configuration data.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to unmarshal config")
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func loadEnvFiles(paths ...string) error {
	var errs []error
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return stdErrors.Join(errs...)
}
