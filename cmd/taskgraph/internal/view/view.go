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

// Package view wraps internal/logging into the two diagnostic output
// styles the CLI offers: a colorized stream for interactive terminal use,
// and JSON lines for CI. This is separate from the task-graph JSON payload
// itself (always encoding/json, regardless of this package's mode) — it
// only governs where progress/error logging goes.
package view

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/version"
	"github.com/taskcluster/taskgraph/internal/logging"
)

// Format selects how diagnostic logging is rendered.
type Format int

const (
	FormatHuman Format = iota
	FormatJSON
)

// ParseFormat maps the --log-format flag value to a Format: "" or "human"
// gives FormatHuman, "json" gives FormatJSON, and any other string is an
// error.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "human":
		return FormatHuman, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatHuman, fmt.Errorf("unknown log format %q: want \"human\" or \"json\"", s)
	}
}

// Stream wraps an io.Writer with the small set of output operations the
// CLI's commands need beyond structured logging (version banner, the
// generated task-graph JSON payload itself).
type Stream struct {
	Writer io.Writer
}

func NewStream(w io.Writer) *Stream {
	return &Stream{Writer: w}
}

func (s *Stream) Printf(format string, args ...any) {
	fmt.Fprintf(s.Writer, format, args...)
}

func (s *Stream) PrintVersion() {
	version.Fprint(s.Writer)
}

// NewLogger returns the *slog.Logger for format at level, writing to w.
func NewLogger(format Format, w io.Writer, level logging.Level) *slog.Logger {
	if format == FormatJSON {
		return logging.NewJSON(w, level)
	}
	return logging.NewHuman(w, level)
}

// PrintMetrics gathers every registry and writes them to the stream in
// Prometheus text exposition format, one block per registry.
func (s *Stream) PrintMetrics(registries ...*prometheus.Registry) error {
	for _, reg := range registries {
		families, err := reg.Gather()
		if err != nil {
			return fmt.Errorf("gathering metrics: %w", err)
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(s.Writer, mf); err != nil {
				return fmt.Errorf("writing metrics: %w", err)
			}
		}
	}
	return nil
}
