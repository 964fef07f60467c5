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

// Package batch pages a slice of items at a fixed size and dispatches the
// resulting pages concurrently, bounded by a semaphore, concatenating
// results in input order. It is the paging layer a real PlatformClient
// (pkg/platform/http) uses to keep any single GetTaskStatuses/CreateTasks
// call within the platform's own batch-size limit, distinct from
// pkg/optimize.Batch, which prefetches and caches results for one
// optimization pass rather than paging a bulk API call.
package batch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Page is one slice of items at its original starting index, handed to
// Dispatch's page function.
type Page[T any] struct {
	Items []T
	Start int
}

// Dispatch splits items into pages of at most pageSize, runs fn over each
// page concurrently (bounded by maxConcurrent), and returns the
// concatenated per-item results in input order. fn's results slice must be
// the same length as the page it was given.
func Dispatch[T, R any](ctx context.Context, items []T, pageSize, maxConcurrent int, fn func(ctx context.Context, page Page[T]) ([]R, error)) ([]R, error) {
	if pageSize <= 0 {
		pageSize = len(items)
	}
	if pageSize <= 0 {
		return nil, nil
	}

	var pages []Page[T]
	for start := 0; start < len(items); start += pageSize {
		end := start + pageSize
		if end > len(items) {
			end = len(items)
		}
		pages = append(pages, Page[T]{Items: items[start:end], Start: start})
	}

	results := make([]R, len(items))
	if len(pages) == 0 {
		return results, nil
	}

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	errs := make([]error, len(pages))

	done := make(chan struct{}, len(pages))
	for i, page := range pages {
		i, page := i, page
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			done <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			out, err := fn(ctx, page)
			if err != nil {
				errs[i] = err
				return
			}
			copy(results[page.Start:page.Start+len(page.Items)], out)
		}()
	}
	for range pages {
		<-done
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
