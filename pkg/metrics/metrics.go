/*
Copyright 2025 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics records how scripts run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
)

// An Outcome of a function run.
type Outcome string

// Run outcomes.
const (
	// OutcomeSuccess indicates the script ran and its result was encoded.
	OutcomeSuccess Outcome = "success"

	// OutcomeFatal indicates the run returned a fatal result.
	OutcomeFatal Outcome = "fatal"
)

// Default metric namespace and subsystem.
const (
	DefaultNamespace = "function_script"
	DefaultSubsystem = "runs"
)

// A Recorder records metrics about function runs and the script cache.
type Recorder interface {
	// RecordRun records a completed run.
	RecordRun(outcome Outcome, d time.Duration)

	// RecordCompile records a script cache lookup.
	RecordCompile(hit bool)
}

// A NopRecorder discards everything.
type NopRecorder struct{}

// RecordRun does nothing.
func (NopRecorder) RecordRun(_ Outcome, _ time.Duration) {}

// RecordCompile does nothing.
func (NopRecorder) RecordCompile(_ bool) {}

// A PrometheusRecorder records metrics to Prometheus.
type PrometheusRecorder struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

// NewPrometheusRecorder returns a Recorder whose metrics are registered with
// the supplied registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Subsystem: DefaultSubsystem,
			Name:      "total",
			Help:      "Total number of function runs.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: DefaultNamespace,
			Subsystem: DefaultSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration of function runs in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Subsystem: "script_cache",
			Name:      "lookups_total",
			Help:      "Total number of compiled script cache lookups.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{r.runs, r.duration, r.cache} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "cannot register metric")
		}
	}
	return r, nil
}

// RecordRun records a completed run.
func (r *PrometheusRecorder) RecordRun(outcome Outcome, d time.Duration) {
	r.runs.WithLabelValues(string(outcome)).Inc()
	r.duration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

// RecordCompile records a script cache lookup.
func (r *PrometheusRecorder) RecordCompile(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(result).Inc()
}
