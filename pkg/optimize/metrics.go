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

package optimize

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "taskgraph"
	metricsSubsystem = "optimize"
)

// Registry collects this package's metrics. It is its own registry rather
// than prometheus.DefaultRegisterer so a caller that never asks for metrics
// never pays for an import-time global registration it didn't choose.
var Registry = prometheus.NewRegistry()

var decisions = newDecisionCounter()

func newDecisionCounter() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "decisions_total",
		Help:      "Optimizer decisions, by outcome and the strategy that made them.",
	}, []string{"decision", "strategy"})
	Registry.MustRegister(c)
	return c
}

func recordDecision(decision Decision, strategy string) {
	decisions.WithLabelValues(string(decision), strategy).Inc()
}
