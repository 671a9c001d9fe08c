package model

import (
	"fmt"
	"maps"
	"time"
)

// Extra is an open key/value bag attached to a build.
type Extra map[string]any

// Build is one attempt to run a project's pipeline against a commit, branch or tag.
type Build struct {
	ID             int64
	ProjectID      int64
	Status         BuildStatus
	Source         BuildSource
	Environment    string
	Branch         string
	Tag            string
	CommitID       string
	CommitterEmail string
	CommitMessage  string
	Extra          Extra
	UserID         int64
	CreateDate     time.Time
	StartDate      *time.Time
	FinishDate     *time.Time
	Log            string
}

// NewPendingBuild returns an unsaved build in the only legal creation state.
func NewPendingBuild(projectID int64, now time.Time) *Build {
	return &Build{
		ProjectID:  projectID,
		Status:     StatusPending,
		CreateDate: now,
	}
}

// Persisted reports whether the store has assigned an id.
func (b *Build) Persisted() bool {
	return b != nil && b.ID > 0
}

// SetExtra replaces the extra bag with a copy of extra.
func (b *Build) SetExtra(extra Extra) {
	if extra == nil {
		b.Extra = nil
		return
	}
	b.Extra = maps.Clone(extra)
}

// AddExtraValue merges a single key into the extra bag.
func (b *Build) AddExtraValue(key string, value any) {
	if b.Extra == nil {
		b.Extra = make(Extra)
	}
	b.Extra[key] = value
}

// Start moves a pending build to RUNNING.
func (b *Build) Start(now time.Time) error {
	if err := b.transition(StatusRunning); err != nil {
		return err
	}
	b.StartDate = &now
	return nil
}

// StartAttempt starts a pending build. A build already RUNNING was left behind
// by an attempt that never finished, so its job was redelivered; the start
// date is stamped again and the build stays RUNNING.
func (b *Build) StartAttempt(now time.Time) error {
	if b.Status == StatusRunning {
		b.StartDate = &now
		return nil
	}
	return b.Start(now)
}

// Finish moves a running build to a terminal status.
func (b *Build) Finish(status BuildStatus, now time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("build %d: %s is not a terminal status", b.ID, status)
	}
	if err := b.transition(status); err != nil {
		return err
	}
	b.FinishDate = &now
	return nil
}

// Fail marks the build FAILED and appends msg to its log. A build that never
// started passes through RUNNING first. Returns false when the build was
// already terminal, in which case only the log is appended.
func (b *Build) Fail(now time.Time, msg string) bool {
	b.AppendLog(msg)
	if b.Status.Terminal() {
		return false
	}
	if b.Status == StatusPending {
		_ = b.Start(now)
	}
	_ = b.Finish(StatusFailed, now)
	return true
}

// AppendLog adds text to the build log separated by a blank line.
func (b *Build) AppendLog(text string) {
	if text == "" {
		return
	}
	b.Log += "\n\n" + text
}

// Duplicate copies every descriptive field into a new pending build.
func (b *Build) Duplicate(now time.Time) *Build {
	dup := NewPendingBuild(b.ProjectID, now)
	dup.CommitID = b.CommitID
	dup.Branch = b.Branch
	dup.Tag = b.Tag
	dup.CommitterEmail = b.CommitterEmail
	dup.CommitMessage = b.CommitMessage
	dup.SetExtra(b.Extra)
	dup.Environment = b.Environment
	dup.Source = b.Source
	dup.UserID = b.UserID
	return dup
}

func (b *Build) transition(to BuildStatus) error {
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("build %d: illegal transition %s -> %s", b.ID, b.Status, to)
	}
	b.Status = to
	return nil
}
