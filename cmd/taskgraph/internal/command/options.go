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

package command

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/taskcluster/taskgraph/cmd/taskgraph/internal/view"
	"github.com/taskcluster/taskgraph/internal/logging"
)

// globalOptions holds the flags every phase subcommand shares. They are
// registered as persistent flags on the root command so every subcommand
// sees the same set.
type globalOptions struct {
	root           string
	parameters     []string
	targetKinds    []string
	tasksPattern   string
	tasksRe        *regexp.Regexp
	jsonOutput     bool
	excludeKeys    []string
	fast           bool
	noVerify       bool
	diff           string
	decisionTaskID string
	trustDomain    string
	platformURL    string
	logLevel       logging.Level
	logFormat      view.Format
	maxConcurrent  int
	metrics        bool
}

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("root", "taskcluster", "root directory containing config.yml and kinds/")
	flags.StringArray("parameters", nil, "parameters source, repeatable: a file path, or task-id=<id>/project=<p>/index=<path>")
	flags.StringArray("target-kind", nil, "restrict kind loading to this kind and its dependencies, repeatable")
	flags.String("tasks", "", "regex; only emit tasks whose label matches")
	flags.Bool("json", false, "emit machine-readable JSON (default: human-readable)")
	flags.StringArray("exclude-key", nil, "dotted path into each task's definition to omit from output, repeatable")
	flags.Bool("fast", false, "skip verifications even when they would otherwise run")
	flags.Bool("no-verify", false, "alias for --fast")
	flags.String("diff", "", "diff this run's output against the given revspec's, using VCS.FindLatestCommonRevision")
	flags.String("decision-task-id", "", "the decision task's own id, stamped onto every surviving task (default: DECISION-TASK)")
	flags.String("trust-domain", "", "trust domain used to resolve project= parameters references")
	flags.String("platform-url", "", "base URL of a real platform HTTP API (default: an in-memory fake)")
	flags.String("log-level", "info", "debug, info, warn, error, or silent")
	flags.String("log-format", "human", "human or json")
	flags.Int("max-concurrent", 0, "max parameter sets generated concurrently when --parameters is repeated (0: unbounded)")
	flags.Bool("metrics", false, "print Prometheus exposition-format metrics for this run after the task graph")
}

func parseGlobalOptions(cmd *cobra.Command) (*globalOptions, error) {
	flags := cmd.Flags()
	opts := &globalOptions{}

	var err error
	if opts.root, err = flags.GetString("root"); err != nil {
		return nil, err
	}
	if opts.parameters, err = flags.GetStringArray("parameters"); err != nil {
		return nil, err
	}
	if opts.targetKinds, err = flags.GetStringArray("target-kind"); err != nil {
		return nil, err
	}
	if opts.tasksPattern, err = flags.GetString("tasks"); err != nil {
		return nil, err
	}
	if opts.jsonOutput, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.excludeKeys, err = flags.GetStringArray("exclude-key"); err != nil {
		return nil, err
	}
	if opts.fast, err = flags.GetBool("fast"); err != nil {
		return nil, err
	}
	noVerify, err := flags.GetBool("no-verify")
	if err != nil {
		return nil, err
	}
	opts.noVerify = opts.fast || noVerify
	if opts.diff, err = flags.GetString("diff"); err != nil {
		return nil, err
	}
	if opts.decisionTaskID, err = flags.GetString("decision-task-id"); err != nil {
		return nil, err
	}
	if opts.trustDomain, err = flags.GetString("trust-domain"); err != nil {
		return nil, err
	}
	if opts.platformURL, err = flags.GetString("platform-url"); err != nil {
		return nil, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return nil, err
	}
	if opts.logLevel, err = parseLogLevel(logLevel); err != nil {
		return nil, &usageError{err}
	}
	logFormat, err := flags.GetString("log-format")
	if err != nil {
		return nil, err
	}
	if opts.logFormat, err = view.ParseFormat(logFormat); err != nil {
		return nil, &usageError{err}
	}
	if opts.maxConcurrent, err = flags.GetInt("max-concurrent"); err != nil {
		return nil, err
	}
	if opts.metrics, err = flags.GetBool("metrics"); err != nil {
		return nil, err
	}

	if opts.tasksPattern != "" {
		opts.tasksRe, err = regexp.Compile(opts.tasksPattern)
		if err != nil {
			return nil, &usageError{fmt.Errorf("invalid --tasks regex %q: %w", opts.tasksPattern, err)}
		}
	}
	return opts, nil
}

func parseLogLevel(s string) (logging.Level, error) {
	switch s {
	case "debug":
		return logging.LevelDebug, nil
	case "", "info":
		return logging.LevelInfo, nil
	case "warn":
		return logging.LevelWarn, nil
	case "error":
		return logging.LevelError, nil
	case "silent":
		return logging.LevelSilent, nil
	default:
		return logging.LevelInfo, fmt.Errorf("unknown --log-level %q: want debug, info, warn, error, or silent", s)
	}
}
