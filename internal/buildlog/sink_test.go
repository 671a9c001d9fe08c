package buildlog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryLogs struct {
	logs map[int64]string
	err  error
}

func (m *memoryLogs) AppendLog(_ context.Context, id int64, text string) error {
	if m.err != nil {
		return m.err
	}
	if m.logs == nil {
		m.logs = map[int64]string{}
	}
	m.logs[id] += text
	return nil
}

func newLogger(t *testing.T, sink *Sink) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	base := slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn})
	return slog.New(sink.Handler(base)), &out
}

func TestSink_CapturesOnlyWhileAttached(t *testing.T) {
	logs := &memoryLogs{}
	sink := NewSink(logs, slog.LevelInfo)
	logger, _ := newLogger(t, sink)

	logger.Info("before attach")

	att, err := sink.Attach(7)
	require.NoError(t, err)
	logger.Info("running phpunit", "step", 2)
	logger.Debug("too verbose")
	require.NoError(t, att.Detach(context.Background()))

	logger.Info("after detach")

	got := logs.logs[7]
	require.Contains(t, got, "running phpunit")
	require.Contains(t, got, "step=2")
	require.NotContains(t, got, "before attach")
	require.NotContains(t, got, "after detach")
	require.NotContains(t, got, "too verbose")
}

func TestSink_ForwardsToBaseHandler(t *testing.T) {
	sink := NewSink(&memoryLogs{}, slog.LevelInfo)
	logger, out := newLogger(t, sink)

	att, err := sink.Attach(1)
	require.NoError(t, err)
	defer att.Discard()

	logger.Info("info only goes to the build")
	logger.Warn("warnings reach the process log")

	require.NotContains(t, out.String(), "info only")
	require.Contains(t, out.String(), "warnings reach the process log")
}

func TestSink_DiscardDropsCapturedText(t *testing.T) {
	logs := &memoryLogs{}
	sink := NewSink(logs, slog.LevelInfo)
	logger, _ := newLogger(t, sink)

	att, err := sink.Attach(3)
	require.NoError(t, err)
	logger.Info("lost")
	att.Discard()

	require.NoError(t, att.Detach(context.Background()))
	require.Empty(t, logs.logs)

	// The sink is free for the next build.
	next, err := sink.Attach(4)
	require.NoError(t, err)
	next.Discard()
}

func TestSink_SingleAttachment(t *testing.T) {
	sink := NewSink(&memoryLogs{}, slog.LevelInfo)
	att, err := sink.Attach(1)
	require.NoError(t, err)
	defer att.Discard()

	_, err = sink.Attach(2)
	require.Error(t, err)
}

func TestSink_AttrsAndGroupsAreRendered(t *testing.T) {
	logs := &memoryLogs{}
	sink := NewSink(logs, slog.LevelInfo)
	logger, _ := newLogger(t, sink)
	scoped := logger.With("plugin", "phpunit").WithGroup("result")

	att, err := sink.Attach(5)
	require.NoError(t, err)
	scoped.Info("done", "failures", 0)
	require.NoError(t, att.Detach(context.Background()))

	got := logs.logs[5]
	require.True(t, strings.Contains(got, "plugin=phpunit"), got)
	require.True(t, strings.Contains(got, "result.failures=0"), got)
}

func TestSink_DetachReportsStoreErrors(t *testing.T) {
	logs := &memoryLogs{err: errors.New("database is locked")}
	sink := NewSink(logs, slog.LevelInfo)
	logger, _ := newLogger(t, sink)

	att, err := sink.Attach(9)
	require.NoError(t, err)
	logger.Info("line")
	require.ErrorContains(t, att.Detach(context.Background()), "database is locked")
}
