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

package parameters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcluster/taskgraph/pkg/parameters"
)

type fakeVCS struct {
	defaultBranch string
	remoteName    string
	headRev       string
	headRef       string
	commonRev     string
	filesChanged  []string
	existsLocally bool
}

func (f *fakeVCS) DefaultBranch(context.Context) (string, error) { return f.defaultBranch, nil }

func (f *fakeVCS) RemoteName(context.Context, string) (string, error) { return f.remoteName, nil }

func (f *fakeVCS) DoesRevisionExistLocally(context.Context, string) bool { return f.existsLocally }

func (f *fakeVCS) FindLatestCommonRevision(context.Context, string, string) (string, error) {
	return f.commonRev, nil
}

func (f *fakeVCS) HeadRev(context.Context) (string, error) { return f.headRev, nil }

func (f *fakeVCS) HeadRef(context.Context) (string, error) { return f.headRef, nil }

func (f *fakeVCS) GetFilesChanged(context.Context, string, string) ([]string, error) {
	return f.filesChanged, nil
}

func TestDefaultsFillsFromVCS(t *testing.T) {
	v := &fakeVCS{
		defaultBranch: "main",
		remoteName:    "origin",
		headRev:       "deadbeef",
		headRef:       "topic",
		commonRev:     "cafe1234",
		filesChanged:  []string{"a.go", "b.go"},
		existsLocally: true,
	}

	p, err := parameters.Defaults(context.Background(), v, "git", "https://example.invalid/repo")
	require.NoError(t, err)

	assert.Equal(t, "git", p.String("repository_type"))
	assert.Equal(t, "topic", p.String("head_ref"))
	assert.Equal(t, "deadbeef", p.String("head_rev"))
	assert.Equal(t, "origin/main", p.String("base_ref"))
	assert.Equal(t, "cafe1234", p.String("base_rev"))
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, p.StringList("files_changed"))
}

func TestDefaultsFallsBackToHeadRevWhenBaseRefMissingLocally(t *testing.T) {
	v := &fakeVCS{
		defaultBranch: "main",
		remoteName:    "origin",
		headRev:       "deadbeef",
		headRef:       "topic",
		existsLocally: false,
	}

	p, err := parameters.Defaults(context.Background(), v, "git", "https://example.invalid/repo")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", p.String("base_rev"))
}

func TestDefaultsAtPinsHeadRevWithoutConsultingTheCheckout(t *testing.T) {
	v := &fakeVCS{
		defaultBranch: "main",
		remoteName:    "origin",
		headRev:       "deadbeef",
		headRef:       "topic",
		commonRev:     "cafe1234",
		filesChanged:  []string{"a.go"},
		existsLocally: true,
	}

	p, err := parameters.DefaultsAt(context.Background(), v, "older-revspec", "git", "https://example.invalid/repo")
	require.NoError(t, err)

	// older-revspec isn't the checkout's actual HEAD, so head_ref falls back
	// to the revspec itself rather than resolving a branch name for it.
	assert.Equal(t, "older-revspec", p.String("head_rev"))
	assert.Equal(t, "older-revspec", p.String("head_ref"))
	assert.Equal(t, "origin/main", p.String("base_ref"))
	assert.Equal(t, "cafe1234", p.String("base_rev"))
}

func TestDefaultsAtResolvesHeadRefWhenPinnedRevMatchesActualHead(t *testing.T) {
	v := &fakeVCS{
		defaultBranch: "main",
		remoteName:    "origin",
		headRev:       "deadbeef",
		headRef:       "topic",
		commonRev:     "cafe1234",
		existsLocally: true,
	}

	p, err := parameters.DefaultsAt(context.Background(), v, "deadbeef", "git", "https://example.invalid/repo")
	require.NoError(t, err)
	assert.Equal(t, "topic", p.String("head_ref"))
}
