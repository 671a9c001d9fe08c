// Package periodical decides when time-triggered builds are due.
//
// A Provider supplies the schedule (project id to interval and branches), the
// Planner applies the due policy against the build store, and a Locker
// optionally serializes scans across worker processes.
package periodical

import (
	"context"
	"slices"
)

// Entry is the schedule of one project.
type Entry struct {
	Interval Interval
	Branches []string
}

// Schedule maps project ids to their entry.
type Schedule map[int64]Entry

// ProjectIDs returns the scheduled project ids in ascending order.
func (s Schedule) ProjectIDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Provider supplies the current schedule.
type Provider interface {
	Schedule(ctx context.Context) (Schedule, error)
}

// StaticProvider serves a fixed schedule.
type StaticProvider Schedule

// Schedule implements Provider.
func (p StaticProvider) Schedule(context.Context) (Schedule, error) {
	return Schedule(p), nil
}
