// Package buildlog captures log records into the log of the build being executed.
//
// A Sink wraps the process slog.Handler. While a build is attached, records at
// or above the sink level are also rendered as text into a buffer that is
// appended to the build's stored log on Detach. Outside an attachment the
// wrapper only forwards to the wrapped handler.
package buildlog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/buildcore/internal/store"
)

// LogAppender is the store capability the sink needs.
type LogAppender interface {
	AppendLog(ctx context.Context, buildID int64, text string) error
}

var _ LogAppender = store.BuildStore(nil)

// Sink routes log records to the currently attached build.
type Sink struct {
	builds LogAppender
	level  slog.Level

	mu  sync.Mutex
	cur *Attachment
}

// NewSink creates a sink that captures records at level and above.
func NewSink(builds LogAppender, level slog.Level) *Sink {
	return &Sink{builds: builds, level: level}
}

// Attachment is the scope during which records are captured for one build.
type Attachment struct {
	sink    *Sink
	buildID int64
	buf     bytes.Buffer
	text    slog.Handler
	done    bool
}

// Attach starts capturing for buildID. Only one build may be attached at a time.
func (s *Sink) Attach(buildID int64) (*Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		return nil, fmt.Errorf("buildlog: build %d is still attached", s.cur.buildID)
	}
	a := &Attachment{sink: s, buildID: buildID}
	a.text = slog.NewTextHandler(&a.buf, &slog.HandlerOptions{Level: s.level})
	s.cur = a
	return a, nil
}

// Detach stops capturing and appends the captured text to the build's log.
// Calling Detach or Discard again is a no-op.
func (a *Attachment) Detach(ctx context.Context) error {
	text, ok := a.sink.release(a)
	if !ok || text == "" {
		return nil
	}
	return a.sink.builds.AppendLog(ctx, a.buildID, text)
}

// Discard stops capturing and drops the captured text.
func (a *Attachment) Discard() {
	a.sink.release(a)
}

func (s *Sink) release(a *Attachment) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.done {
		return "", false
	}
	a.done = true
	if s.cur == a {
		s.cur = nil
	}
	return a.buf.String(), true
}

// Handler wraps base so records also reach the attached build.
func (s *Sink) Handler(base slog.Handler) slog.Handler {
	return &teeHandler{sink: s, base: base}
}

type handlerOp struct {
	attrs []slog.Attr
	group string
}

type teeHandler struct {
	sink *Sink
	base slog.Handler
	ops  []handlerOp
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.base.Enabled(ctx, level) {
		return true
	}
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.cur != nil && level >= h.sink.level
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.base.Enabled(ctx, r.Level) {
		err = h.base.Handle(ctx, r)
	}

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	cur := h.sink.cur
	if cur == nil || r.Level < h.sink.level {
		return err
	}
	text := cur.text
	for _, op := range h.ops {
		if op.group != "" {
			text = text.WithGroup(op.group)
		} else {
			text = text.WithAttrs(op.attrs)
		}
	}
	if terr := text.Handle(ctx, r.Clone()); terr != nil && err == nil {
		err = terr
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &teeHandler{
		sink: h.sink,
		base: h.base.WithAttrs(attrs),
		ops:  append(cloneOps(h.ops), handlerOp{attrs: attrs}),
	}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &teeHandler{
		sink: h.sink,
		base: h.base.WithGroup(name),
		ops:  append(cloneOps(h.ops), handlerOp{group: name}),
	}
}

func cloneOps(ops []handlerOp) []handlerOp {
	return append(make([]handlerOp, 0, len(ops)+1), ops...)
}
