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

// Package timeutil parses the "<n> <unit>" relative time strings used by
// task deadlines and expirations ("1 day", "28 days", "1 year"). "m" is
// rejected as ambiguous between minute and month; callers must spell out
// "minute"/"minutes" or "month"/"months".
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var units = map[string]time.Duration{
	"s": time.Second, "second": time.Second, "seconds": time.Second,
	"min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"mo": 30 * 24 * time.Hour, "month": 30 * 24 * time.Hour, "months": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour, "year": 365 * 24 * time.Hour, "years": 365 * 24 * time.Hour,
}

// ParseDuration parses a relative-time string like "1 day" or "28 days"
// into a time.Duration. "1m" alone is rejected as ambiguous between minute
// and month, matching value_of's behavior.
func ParseDuration(spec string) (time.Duration, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return 0, fmt.Errorf("timeutil: empty duration string")
	}

	i := 0
	for i < len(s) && (s[i] == '-' || s[i] == '+' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("timeutil: invalid duration string %q", spec)
	}
	numPart := s[:i]
	unitPart := strings.ToLower(strings.TrimSpace(s[i:]))
	if unitPart == "" {
		return 0, fmt.Errorf("timeutil: invalid duration string %q: missing unit", spec)
	}
	if unitPart == "m" {
		return 0, fmt.Errorf("timeutil: ambiguous unit %q in %q (minute or month)", unitPart, spec)
	}

	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, fmt.Errorf("timeutil: invalid duration string %q: %w", spec, err)
	}
	unit, ok := units[unitPart]
	if !ok {
		return 0, fmt.Errorf("timeutil: unknown time measurement %q in %q", unitPart, spec)
	}
	return time.Duration(n) * unit, nil
}

// FromNow adds the relative duration described by spec to base.
func FromNow(spec string, base time.Time) (time.Time, error) {
	d, err := ParseDuration(spec)
	if err != nil {
		return time.Time{}, err
	}
	return base.Add(d), nil
}
