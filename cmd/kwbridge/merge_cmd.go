// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/kwbridge/kwbridge/internal/bridge"
	"github.com/kwbridge/kwbridge/internal/logging"
)

// mergeCmd implements subcommands.Command to combine parallel worker
// outputs into one result set.
type mergeCmd struct {
	resDir string
}

var _ = subcommands.Command(&mergeCmd{})

func (*mergeCmd) Name() string     { return "merge" }
func (*mergeCmd) Synopsis() string { return "merge parallel worker outputs" }
func (*mergeCmd) Usage() string {
	return `Usage: merge -resdir <dir> <worker-dir>...

Description:
    Combines the streamed results of the named worker directories into one
    result set, preserving suite paths. A failed merge is fatal: the
    combined report would be unusable.

Flag:
`
}

func (c *mergeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.resDir, "resdir", "kwbridge_results", "directory for merged result files")
}

func (c *mergeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		logging.Info(ctx, "No worker directories given")
		return subcommands.ExitUsageError
	}
	if err := bridge.MergeWorkerOutputs(ctx, c.resDir, f.Args()); err != nil {
		logging.Info(ctx, "Merge failed: ", err)
		return subcommands.ExitFailure
	}
	logging.Infof(ctx, "Merged %d worker(s) into %s", f.NArg(), c.resDir)
	return subcommands.ExitSuccess
}
