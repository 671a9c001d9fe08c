package metrics

import "time"

// OutcomeLabel enumerates how the worker disposed of a reserved job.
type OutcomeLabel string

const (
	OutcomeSuccess        OutcomeLabel = "success"
	OutcomeBuildFailure   OutcomeLabel = "build_failure"
	OutcomeInfrastructure OutcomeLabel = "infrastructure"
	OutcomeMalformed      OutcomeLabel = "malformed"
	OutcomeUnknownBuild   OutcomeLabel = "unknown_build"
)

// Recorder defines observability hooks for the build service and workers.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	IncJobsReserved()
	IncJobOutcome(outcome OutcomeLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildsCreated(source string)
	IncQueueErrors()
	AddPeriodicalBuilds(n int)
	AddBuildsPruned(n int)
	SetWorkerRunning(running bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncJobsReserved()                  {}
func (NoopRecorder) IncJobOutcome(OutcomeLabel)        {}
func (NoopRecorder) ObserveBuildDuration(time.Duration) {}
func (NoopRecorder) IncBuildsCreated(string)           {}
func (NoopRecorder) IncQueueErrors()                   {}
func (NoopRecorder) AddPeriodicalBuilds(int)           {}
func (NoopRecorder) AddBuildsPruned(int)               {}
func (NoopRecorder) SetWorkerRunning(bool)             {}
