package periodical

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
)

type fileSchedule struct {
	Projects map[int64]fileEntry `yaml:"projects"`
}

type fileEntry struct {
	Interval string   `yaml:"interval"`
	Branches []string `yaml:"branches"`
}

// FileProvider reads the schedule from a YAML file.
//
// Without Watch the file is parsed on every Schedule call. With Watch the
// parsed schedule is cached and invalidated by filesystem events.
type FileProvider struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	cached   Schedule
	valid    bool
	watching bool
	watcher  *fsnotify.Watcher
	stop     chan struct{}
}

// NewFileProvider creates a provider for path. A missing file means an empty schedule.
func NewFileProvider(path string, logger *slog.Logger) *FileProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &FileProvider{path: path, logger: logger}
}

// Path returns the schedule file path.
func (p *FileProvider) Path() string { return p.path }

// Schedule implements Provider.
func (p *FileProvider) Schedule(_ context.Context) (Schedule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watching && p.valid {
		return p.cached, nil
	}
	s, err := p.load()
	if err != nil {
		return nil, err
	}
	p.cached, p.valid = s, true
	return s, nil
}

func (p *FileProvider) load() (Schedule, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return Schedule{}, nil
		}
		return nil, fmt.Errorf("read periodical schedule: %w", err)
	}
	return parseSchedule(data, p.logger)
}

func parseSchedule(data []byte, logger *slog.Logger) (Schedule, error) {
	var raw fileSchedule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse periodical schedule: %w", err)
	}

	s := make(Schedule, len(raw.Projects))
	for id, e := range raw.Projects {
		entry := Entry{Branches: e.Branches}
		if e.Interval != "" {
			iv, err := ParseInterval(e.Interval)
			if err != nil {
				logger.Warn("Ignoring periodical entry with invalid interval",
					logfields.ProjectID(id), logfields.Error(err))
				continue
			}
			entry.Interval = iv
		}
		s[id] = entry
	}
	return s, nil
}

// Watch starts invalidating the cache on changes to the schedule file.
// It watches the containing directory so editors that replace the file are seen.
func (p *FileProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch schedule directory %s: %w", dir, err)
	}

	p.mu.Lock()
	p.watcher = watcher
	p.watching = true
	p.valid = false
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	p.logger.Info("Watching periodical schedule", logfields.Path(p.path))
	go p.watchLoop(ctx, watcher, stop)
	return nil
}

func (p *FileProvider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, stop <-chan struct{}) {
	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				p.logger.Debug("Periodical schedule changed", logfields.Path(event.Name), logfields.Op(event.Op.String()))
				p.invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("Schedule watcher error", logfields.Error(err))
		}
	}
}

func (p *FileProvider) invalidate() {
	p.mu.Lock()
	p.valid = false
	p.mu.Unlock()
}

// Close stops watching.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil {
		return nil
	}
	close(p.stop)
	err := p.watcher.Close()
	p.watcher = nil
	p.watching = false
	return err
}
