// Package metrics records pipeline observations.
//
// Components take a Recorder and default to NoopRecorder, so metrics never
// need nil checks. The daemon injects a PrometheusRecorder and serves its
// registry on /metrics.
package metrics
