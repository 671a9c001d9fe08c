package periodical

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const scheduleYAML = `
projects:
  12:
    interval: PT1H
    branches: [main, develop]
  13:
    interval: 30m
    branches: [main]
  14:
    interval: every now and then
    branches: [main]
  15:
    branches: [main]
`

func TestFileProvider_MissingFile(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "periodical.yml"), nil)
	s, err := p.Schedule(context.Background())
	require.NoError(t, err)
	require.Empty(t, s)
}

func TestFileProvider_Parse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodical.yml")
	require.NoError(t, os.WriteFile(path, []byte(scheduleYAML), 0o600))

	s, err := NewFileProvider(path, nil).Schedule(context.Background())
	require.NoError(t, err)

	require.Equal(t, []int64{12, 13, 15}, s.ProjectIDs())
	require.Equal(t, time.Hour, s[12].Interval.Clock)
	require.Equal(t, []string{"main", "develop"}, s[12].Branches)
	require.Equal(t, 30*time.Minute, s[13].Interval.Clock)
	require.True(t, s[15].Interval.IsZero())
}

func TestFileProvider_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodical.yml")
	require.NoError(t, os.WriteFile(path, []byte("projects: [unclosed"), 0o600))

	_, err := NewFileProvider(path, nil).Schedule(context.Background())
	require.Error(t, err)
}

func TestFileProvider_WatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodical.yml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n  1:\n    interval: PT1H\n    branches: [main]\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewFileProvider(path, nil)
	require.NoError(t, p.Watch(ctx))
	defer func() { _ = p.Close() }()

	s, err := p.Schedule(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, s.ProjectIDs())

	require.NoError(t, os.WriteFile(path, []byte("projects:\n  2:\n    interval: PT2H\n    branches: [main]\n"), 0o600))

	require.Eventually(t, func() bool {
		s, err := p.Schedule(ctx)
		return err == nil && len(s) == 1 && s[2].Interval.Clock == 2*time.Hour
	}, 3*time.Second, 20*time.Millisecond)
}
