// Package builder defines the execution engine contract used by workers and a
// command-based implementation.
package builder

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/buildcore/internal/model"
)

// Builder runs a build to completion.
//
// On return without error the builder has moved the build to a terminal
// status and persisted it. Errors classified as store failures mean the
// persistence layer is broken; any other error is a failure of this build.
type Builder interface {
	Execute(ctx context.Context, build *model.Build, logger *slog.Logger) error
}

// Func adapts a function to Builder.
type Func func(ctx context.Context, build *model.Build, logger *slog.Logger) error

// Execute implements Builder.
func (f Func) Execute(ctx context.Context, build *model.Build, logger *slog.Logger) error {
	return f(ctx, build, logger)
}
