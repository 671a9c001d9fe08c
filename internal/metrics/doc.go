// Package metrics provides build and worker metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics stay optional:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	w := worker.New(deps, worker.WithRecorder(recorder))
//
// HTTPHandler exposes a registry for scraping.
package metrics
