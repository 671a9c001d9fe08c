package model

import "fmt"

// BuildStatus is the lifecycle state of a build. Values match the persisted integers.
type BuildStatus int

const (
	StatusPending BuildStatus = 0
	StatusRunning BuildStatus = 1
	StatusSuccess BuildStatus = 2
	StatusFailed  BuildStatus = 3
)

func (s BuildStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s BuildStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// InFlight reports whether the build is queued or executing.
func (s BuildStatus) InFlight() bool {
	return s == StatusPending || s == StatusRunning
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to BuildStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusSuccess || to == StatusFailed
	default:
		return false
	}
}

// BuildSource records why a build was created. It never changes after creation.
type BuildSource int

const (
	SourceUnknown                   BuildSource = 0
	SourceManualWeb                 BuildSource = 1
	SourceManualConsole             BuildSource = 2
	SourceManualRebuildWeb          BuildSource = 3
	SourceManualRebuildConsole      BuildSource = 4
	SourcePeriodical                BuildSource = 5
	SourceWebhookPush               BuildSource = 6
	SourceWebhookPullRequestCreated BuildSource = 7
	SourceWebhookPullRequestUpdated BuildSource = 8
	SourceWebhookPullRequestMerged  BuildSource = 9
)

var sourceNames = map[BuildSource]string{
	SourceUnknown:                   "unknown",
	SourceManualWeb:                 "manual_web",
	SourceManualConsole:             "manual_console",
	SourceManualRebuildWeb:          "manual_rebuild_web",
	SourceManualRebuildConsole:      "manual_rebuild_console",
	SourcePeriodical:                "periodical",
	SourceWebhookPush:               "webhook_push",
	SourceWebhookPullRequestCreated: "webhook_pull_request_created",
	SourceWebhookPullRequestUpdated: "webhook_pull_request_updated",
	SourceWebhookPullRequestMerged:  "webhook_pull_request_merged",
}

func (s BuildSource) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// IsWebhook reports whether the build was triggered by a VCS webhook.
func (s BuildSource) IsWebhook() bool {
	return s >= SourceWebhookPush && s <= SourceWebhookPullRequestMerged
}
