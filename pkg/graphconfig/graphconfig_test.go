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

package graphconfig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/graphconfig"
)

func validConfig() map[string]any {
	return map[string]any{
		"trust-domain": "demo",
		"task-priority": "low",
		"workers": map[string]any{
			"aliases": map[string]any{
				"b-linux": map[string]any{
					"provisioner":    "demo-1",
					"implementation": "docker-worker",
					"os":             "linux",
					"worker-type":    "b-linux",
				},
			},
		},
		"taskgraph": map[string]any{
			"repositories": map[string]any{
				"demo": map[string]any{
					"name": "Demo",
				},
			},
			"cached-task-prefix": "demo",
			"max-routes":         32,
			"max-dependencies":   100,
		},
	}
}

func TestLoadValid(t *testing.T) {
	cfg, err := graphconfig.New(validConfig(), "/tmp/demo/taskcluster")
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.TrustDomain())
	assert.Equal(t, "demo", cfg.CachedTaskPrefix())
	assert.Equal(t, "docker-image", cfg.DockerImageKind())
	assert.Equal(t, 32, cfg.MaxRoutes(64))
	assert.Equal(t, 100, cfg.MaxDependencies(9999))
}

func TestGetDottedPath(t *testing.T) {
	cfg, err := graphconfig.New(validConfig(), "/tmp/demo/taskcluster")
	require.NoError(t, err)
	v, ok := cfg.Get("taskgraph.cached-task-prefix")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "demo", s)

	_, ok = cfg.Get("taskgraph.does-not-exist")
	assert.False(t, ok)
}

func TestMissingTrustDomain(t *testing.T) {
	cfg := validConfig()
	delete(cfg, "trust-domain")
	_, err := graphconfig.New(cfg, "/tmp/demo/taskcluster")
	require.Error(t, err)
}

func TestRepositories(t *testing.T) {
	cfg, err := graphconfig.New(validConfig(), "/tmp/demo/taskcluster")
	require.NoError(t, err)
	repos := cfg.Repositories()
	require.Contains(t, repos, "demo")
	assert.Equal(t, "Demo", repos["demo"].Name)
}

func TestWorkerAliases(t *testing.T) {
	cfg, err := graphconfig.New(validConfig(), "/tmp/demo/taskcluster")
	require.NoError(t, err)
	aliases := cfg.WorkerAliases()
	require.Contains(t, aliases, "b-linux")
	assert.Equal(t, "docker-worker", aliases["b-linux"].Implementation)
}

func TestKindsDirAndDockerDir(t *testing.T) {
	cfg, err := graphconfig.New(validConfig(), "/tmp/demo/taskcluster")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/demo/taskcluster/kinds", cfg.KindsDir())
	assert.Equal(t, "/tmp/demo/taskcluster/docker", cfg.DockerDir())
}
