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

package view_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
	"github.com/taskcluster/taskgraph/internal/logging"
)

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]view.Format{
		"":      view.FormatHuman,
		"human": view.FormatHuman,
		"json":  view.FormatJSON,
	} {
		got, err := view.ParseFormat(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestParseFormat_RejectsUnknownValue(t *testing.T) {
	_, err := view.ParseFormat("xml")
	assert.Error(t, err)
}

func TestStream_PrintfWritesToUnderlyingWriter(t *testing.T) {
	buf := new(bytes.Buffer)
	s := view.NewStream(buf)
	s.Printf("hello %s\n", "world")
	assert.Equal(t, "hello world\n", buf.String())
}

func TestStream_PrintVersionIncludesVersionBanner(t *testing.T) {
	buf := new(bytes.Buffer)
	s := view.NewStream(buf)
	s.PrintVersion()
	assert.Contains(t, buf.String(), "taskgraph version")
}

func TestNewLogger_HumanFormatRespectsLevel(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := view.NewLogger(view.FormatHuman, buf, logging.LevelWarn)
	logger.Info("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestNewLogger_JSONFormatEmitsStructuredOutput(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := view.NewLogger(view.FormatJSON, buf, logging.LevelInfo)
	logger.Info("hello", "label", "hello-a")

	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"label":"hello-a"`)
}
