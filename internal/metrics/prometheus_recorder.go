package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "buildcore"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	jobsReserved     prom.Counter
	jobOutcomes      *prom.CounterVec
	buildDuration    prom.Histogram
	buildsCreated    *prom.CounterVec
	queueErrors      prom.Counter
	periodicalBuilds prom.Counter
	buildsPruned     prom.Counter
	workerRunning    prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.jobsReserved = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_reserved_total",
			Help:      "Jobs leased from the queue",
		})
		pr.jobOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Reserved jobs by disposition",
		}, []string{"outcome"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Time spent in the builder per job",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		})
		pr.buildsCreated = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "builds_created_total",
			Help:      "Builds created by source",
		}, []string{"source"})
		pr.queueErrors = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "queue_errors_total",
			Help:      "Builds that were created but could not be enqueued",
		})
		pr.periodicalBuilds = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "periodical_builds_total",
			Help:      "Builds created by the periodical scheduler",
		})
		pr.buildsPruned = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "builds_pruned_total",
			Help:      "Builds removed by retention",
		})
		pr.workerRunning = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 while the worker loop is running",
		})
		reg.MustRegister(pr.jobsReserved, pr.jobOutcomes, pr.buildDuration, pr.buildsCreated,
			pr.queueErrors, pr.periodicalBuilds, pr.buildsPruned, pr.workerRunning)
	})
	return pr
}

func (p *PrometheusRecorder) IncJobsReserved() {
	if p == nil || p.jobsReserved == nil {
		return
	}
	p.jobsReserved.Inc()
}

func (p *PrometheusRecorder) IncJobOutcome(outcome OutcomeLabel) {
	if p == nil || p.jobOutcomes == nil {
		return
	}
	p.jobOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildsCreated(source string) {
	if p == nil || p.buildsCreated == nil {
		return
	}
	p.buildsCreated.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) IncQueueErrors() {
	if p == nil || p.queueErrors == nil {
		return
	}
	p.queueErrors.Inc()
}

func (p *PrometheusRecorder) AddPeriodicalBuilds(n int) {
	if p == nil || p.periodicalBuilds == nil {
		return
	}
	p.periodicalBuilds.Add(float64(n))
}

func (p *PrometheusRecorder) AddBuildsPruned(n int) {
	if p == nil || p.buildsPruned == nil {
		return
	}
	p.buildsPruned.Add(float64(n))
}

func (p *PrometheusRecorder) SetWorkerRunning(running bool) {
	if p == nil || p.workerRunning == nil {
		return
	}
	if running {
		p.workerRunning.Set(1)
		return
	}
	p.workerRunning.Set(0)
}
