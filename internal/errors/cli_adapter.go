package errors

import (
	"context"
	"fmt"
	"log/slog"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if ce, ok := As(err); ok {
		return exitCodeFromCategory(ce.Category)
	}

	return 1
}

func exitCodeFromCategory(category ErrorCategory) int {
	switch category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryQueue:
		return 8 // External system error
	case CategoryStore:
		return 9 // Persistence unavailable, supervisor should restart
	case CategoryBuild, CategoryFileSystem:
		return 11 // Build error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	ce, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return err.Error()
	}

	switch ce.Category {
	case CategoryConfig, CategoryValidation:
		return ce.Message
	default:
		return fmt.Sprintf("%s: %s", ce.Category, ce.Message)
	}
}

// Log writes err at a level derived from its severity.
func (a *CLIErrorAdapter) Log(err error) {
	if err == nil {
		return
	}
	ce, ok := As(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}

	attrs := []slog.Attr{
		slog.String("category", string(ce.Category)),
	}
	if ce.Retryable {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if ce.Cause != nil {
		attrs = append(attrs, slog.String("cause", ce.Cause.Error()))
	}
	a.logger.LogAttrs(context.Background(), levelFromSeverity(ce.Severity), ce.Message, attrs...)
}

func levelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
