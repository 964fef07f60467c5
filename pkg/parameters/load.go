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

package parameters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taskcluster/taskgraph/pkg/taskerrors"
	"github.com/taskcluster/taskgraph/pkg/value"
)

// PlatformTaskFetcher is the subset of pkg/platform.Client needed to resolve
// a task-id=/project=/index= parameters reference: finding a decision task
// and downloading its parameters.yml artifact.
type PlatformTaskFetcher interface {
	FindTaskByIndex(ctx context.Context, indexPath string) (string, bool, error)
	GetArtifact(ctx context.Context, taskID, name string) ([]byte, error)
}

// Source describes where to load a Parameters file from: one of five
// mutually-exclusive forms.
type Source struct {
	// Path is a local file path (YAML or JSON). Mutually exclusive with the
	// other fields.
	Path string
	// TaskID is the "task-id=<id>" form.
	TaskID string
	// Project is the "project=<p>" form; requires TrustDomain.
	Project string
	// Index is the "index=<path>" form.
	Index string
}

// ParseSource parses a --parameters flag value into a Source, recognizing
// the task-id=, project=, and index= prefixes; anything else is a path.
func ParseSource(spec string) Source {
	switch {
	case strings.HasPrefix(spec, "task-id="):
		return Source{TaskID: strings.TrimPrefix(spec, "task-id=")}
	case strings.HasPrefix(spec, "project="):
		return Source{Project: strings.TrimPrefix(spec, "project=")}
	case strings.HasPrefix(spec, "index="):
		return Source{Index: strings.TrimPrefix(spec, "index=")}
	default:
		return Source{Path: spec}
	}
}

// Load resolves a Source into a validated Parameters. overrides are applied
// over the loaded values before validation (used by the CLI for ad hoc
// flag-level overrides). trustDomain and client are only needed for the
// project=/index= forms.
func Load(ctx context.Context, src Source, overrides map[string]value.Value, trustDomain string, client PlatformTaskFetcher) (*Parameters, error) {
	var raw []byte
	var err error

	switch {
	case src.Path != "":
		raw, err = os.ReadFile(src.Path)
		if err != nil {
			return nil, &taskerrors.ParameterError{Err: fmt.Errorf("reading %s: %w", src.Path, err)}
		}
		return parseBytes(raw, src.Path, overrides)

	case src.TaskID != "":
		raw, err = client.GetArtifact(ctx, src.TaskID, "public/parameters.yml")
		if err != nil {
			return nil, &taskerrors.ParameterError{Err: err}
		}
		return parseBytes(raw, "parameters.yml", overrides)

	case src.Project != "":
		if trustDomain == "" {
			return nil, &taskerrors.ParameterError{Err: fmt.Errorf("project= parameters reference requires a trust domain")}
		}
		indexPath := fmt.Sprintf("%s.v2.%s.latest.taskgraph.decision", trustDomain, src.Project)
		return Load(ctx, Source{Index: indexPath}, overrides, trustDomain, client)

	case src.Index != "":
		taskID, found, err := client.FindTaskByIndex(ctx, src.Index)
		if err != nil {
			return nil, &taskerrors.ParameterError{Err: err}
		}
		if !found {
			return nil, &taskerrors.ParameterError{Err: fmt.Errorf("no task indexed at %q", src.Index)}
		}
		return Load(ctx, Source{TaskID: taskID}, overrides, trustDomain, client)

	default:
		// Empty source: defaulted mode, handled by Defaults (requires a VCS).
		return nil, &taskerrors.ParameterError{Err: fmt.Errorf("empty parameters source requires Defaults(), not Load()")}
	}
}

func parseBytes(raw []byte, name string, overrides map[string]value.Value) (*Parameters, error) {
	var decoded map[string]any
	switch filepath.Ext(name) {
	case ".json":
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, &taskerrors.ParameterError{Err: fmt.Errorf("parsing %s as JSON: %w", name, err)}
		}
	case ".yml", ".yaml", "":
		if err := yaml.Unmarshal(raw, &decoded); err != nil {
			return nil, &taskerrors.ParameterError{Err: fmt.Errorf("parsing %s as YAML: %w", name, err)}
		}
	default:
		return nil, &taskerrors.ParameterError{Err: fmt.Errorf("parameters file %q is not JSON or YAML", name)}
	}

	values := make(map[string]value.Value, len(decoded))
	for k, v := range decoded {
		values[k] = value.FromAny(v)
	}
	for k, v := range overrides {
		values[k] = v
	}
	return New(values)
}
