// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/google/subcommands"

	"github.com/kwbridge/kwbridge/internal/bridge"
	"github.com/kwbridge/kwbridge/internal/logging"
	"github.com/kwbridge/kwbridge/internal/result"
)

// fullLogName is the name of the verbose run log written under the result
// directory.
const fullLogName = "full.txt"

// runCmd implements subcommands.Command to run configured native suites.
type runCmd struct {
	cfgPath      string
	resDir       string
	failForTests bool
	timeout      time.Duration
}

var _ = subcommands.Command(&runCmd{})

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run configured suites" }
func (*runCmd) Usage() string {
	return `Usage: run -config <file> [flag]...

Description:
    Runs the suites listed in the config file and writes streamed results,
    JUnit XML results and the control stream to the result directory. Exits
    with 0 if the run completed, even if some tests failed; pass
    -failfortests to exit with 1 on any test failure.

Flag:
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.cfgPath, "config", "", "run configuration file (required)")
	f.StringVar(&c.resDir, "resdir", "kwbridge_results", "directory for result files")
	f.BoolVar(&c.failForTests, "failfortests", false, "exit with 1 if any test fails")
	f.DurationVar(&c.timeout, "timeout", 0, "overall run timeout (0 for none)")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.cfgPath == "" {
		logging.Info(ctx, "-config is required")
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig(c.cfgPath)
	if err != nil {
		logging.Info(ctx, "Failed to load config: ", err)
		return subcommands.ExitFailure
	}
	hb, err := cfg.heartbeat()
	if err != nil {
		logging.Info(ctx, "Bad config: ", err)
		return subcommands.ExitFailure
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := os.MkdirAll(c.resDir, 0755); err != nil {
		logging.Info(ctx, "Failed to create result dir: ", err)
		return subcommands.ExitFailure
	}
	// Mirror everything, debug included, into a verbose log next to the
	// results.
	if lg, ok := logging.FromContext(ctx); ok {
		if ml, ok := lg.(*logging.MultiLogger); ok {
			f, err := os.Create(filepath.Join(c.resDir, fullLogName))
			if err != nil {
				logging.Info(ctx, "Failed to create log file: ", err)
				return subcommands.ExitFailure
			}
			defer f.Close()
			fileLogger := logging.NewSinkLogger(logging.LevelDebug, true, logging.NewWriterSink(f))
			ml.AddLogger(fileLogger)
			defer ml.RemoveLogger(fileLogger)
		}
	}

	coord := bridge.NewCoordinator(bridge.Options{
		OutputDir:         c.resDir,
		WorkerID:          cfg.WorkerID,
		LogPassingAsserts: cfg.LogPassingAsserts,
		HeartbeatInterval: hb,
	}, newBuiltinInterpreter())

	sess := cfg.session()
	if err := coord.SessionStart(ctx, sess, nil); err != nil {
		logging.Info(ctx, "Failed to start session: ", err)
		return subcommands.ExitFailure
	}
	for _, unit := range sess.Units {
		coord.EnterUnit(ctx, unit)
		for _, it := range sess.Items {
			if it.Unit == unit {
				coord.RunItem(ctx, it)
			}
		}
		coord.ExitUnit(ctx, unit)
	}
	if err := coord.SessionFinish(ctx); err != nil {
		logging.Info(ctx, "Failed to finalize session: ", err)
		return subcommands.ExitFailure
	}

	tests, err := result.ReadStreamedResults(filepath.Join(c.resDir, result.StreamedResultsFilename))
	if err != nil {
		logging.Info(ctx, "Failed to read results: ", err)
		return subcommands.ExitFailure
	}
	failed := 0
	for _, t := range tests {
		if t.Status == result.StatusFail {
			failed++
		}
	}
	logging.Infof(ctx, "Ran %d test(s), %d failed; results in %s", len(tests), failed, c.resDir)
	if c.failForTests && failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
