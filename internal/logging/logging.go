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

// Package logging provides the two slog handlers cmd/taskgraph logs
// through: a colorized handler for interactive terminal
// use, and a JSON handler for CI/machine consumption.
package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
)

// Level is the repository's own log-level enum, mirroring slog.Level but
// adding Silent, which suppresses every record.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.Level(100)
	}
}

func rewriteLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		level := a.Value.Any().(slog.Level)
		var text string
		switch level {
		case slog.LevelDebug:
			text = "DEBUG"
		case slog.LevelInfo:
			text = color.GreenString("INFO")
		case slog.LevelWarn:
			text = color.YellowString("WARN")
		case slog.LevelError:
			text = color.RedString("ERROR")
		default:
			text = level.String()
		}
		a.Value = slog.StringValue(text)
	}
	return a
}

// NewHuman returns a *slog.Logger using github.com/lmittmann/tint's
// colorized, single-line handler, for interactive terminal output.
func NewHuman(w io.Writer, level Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level.toSlogLevel(),
		TimeFormat:  time.DateTime,
		ReplaceAttr: rewriteLevel,
	}))
}

// NewJSON returns a *slog.Logger using the standard library's JSON
// handler, for machine-readable output (CI logs, piped output).
func NewJSON(w io.Writer, level Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.toSlogLevel()}))
}

// NewNop returns a *slog.Logger that discards everything, for tests.
func NewNop() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))
}
