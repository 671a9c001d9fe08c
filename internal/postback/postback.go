// Package postback notifies external systems about build status changes.
package postback

import (
	"context"
	stdErrors "errors"
	"time"

	"git.home.luguber.info/inful/buildcore/internal/model"
)

// Notifier sends a status postback for a build. Callers treat postbacks as
// fire-and-forget: an error is logged, never propagated.
type Notifier interface {
	SendStatusPostback(ctx context.Context, build *model.Build) error
}

// StatusEvent is the payload describing a build status change.
type StatusEvent struct {
	BuildID     int64      `json:"build_id"`
	ProjectID   int64      `json:"project_id"`
	Status      string     `json:"status"`
	Source      string     `json:"source"`
	Branch      string     `json:"branch,omitempty"`
	Environment string     `json:"environment,omitempty"`
	CommitID    string     `json:"commit_id,omitempty"`
	FinishDate  *time.Time `json:"finish_date,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// NewStatusEvent builds the event for b at now.
func NewStatusEvent(b *model.Build, now time.Time) StatusEvent {
	return StatusEvent{
		BuildID:     b.ID,
		ProjectID:   b.ProjectID,
		Status:      b.Status.String(),
		Source:      b.Source.String(),
		Branch:      b.Branch,
		Environment: b.Environment,
		CommitID:    b.CommitID,
		FinishDate:  b.FinishDate,
		Timestamp:   now,
	}
}

// Noop discards postbacks.
type Noop struct{}

// SendStatusPostback implements Notifier.
func (Noop) SendStatusPostback(context.Context, *model.Build) error { return nil }

// Multi fans a postback out to several notifiers.
type Multi []Notifier

// SendStatusPostback calls every notifier and joins their errors.
func (m Multi) SendStatusPostback(ctx context.Context, build *model.Build) error {
	var errs []error
	for _, n := range m {
		if err := n.SendStatusPostback(ctx, build); err != nil {
			errs = append(errs, err)
		}
	}
	return stdErrors.Join(errs...)
}
