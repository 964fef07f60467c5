// Copyright 2025 The Taskcluster Taskgraph Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package expr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "taskgraph"
	metricsSubsystem = "expr"
)

// Registry collects this package's metrics, kept separate from
// prometheus.DefaultRegisterer so evaluating expressions never implicitly
// registers into a caller's global registry.
var Registry = prometheus.NewRegistry()

var (
	compileDuration = newDurationHistogram("compile_duration_seconds", "CEL expression compilation time in seconds.")
	evalDuration    = newDurationHistogram("eval_duration_seconds", "CEL expression evaluation time in seconds.")
)

func newDurationHistogram(name, help string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 10), // 10µs to ~5ms
	}, []string{"result"})
	Registry.MustRegister(h)
	return h
}

func observeDuration(h *prometheus.HistogramVec, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	h.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
