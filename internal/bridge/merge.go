// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bridge

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/event"
	"github.com/kwbridge/kwbridge/internal/result"
)

// crashReason is recorded against a test a crashed worker left unfinished.
const crashReason = "worker terminated before this test finished"

// MergeWorkerOutputs combines the streamed results of parallel workers into
// one result set under outDir, preserving suite paths. Worker dirs are read
// concurrently. A crashed worker's records are recovered from its control
// stream; only a worker that left neither file readable, or a merge
// conflict, is fatal to the caller, since then the final report would be
// unusable.
func MergeWorkerOutputs(ctx context.Context, outDir string, workerDirs []string) error {
	if len(workerDirs) == 0 {
		return errors.New("no worker outputs to merge")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output dir")
	}

	workers := make([][]*result.Test, len(workerDirs))
	g, _ := errgroup.WithContext(ctx)
	for i, dir := range workerDirs {
		i, dir := i, dir
		g.Go(func() error {
			tests, err := readWorkerResults(dir)
			if err != nil {
				return err
			}
			workers[i] = tests
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	root, err := result.Merge(workers...)
	if err != nil {
		return err
	}
	tests := root.AllTests()

	sw, err := result.NewStreamedWriter(filepath.Join(outDir, result.StreamedResultsFilename))
	if err != nil {
		return err
	}
	for _, t := range tests {
		if err := sw.Write(t, false); err != nil {
			sw.Close()
			return err
		}
	}
	sw.Close()

	return result.WriteJUnitXMLResults(filepath.Join(outDir, result.JUnitXMLFilename), tests)
}

// readWorkerResults reads one worker's finalized test records. The streamed
// results file is the primary source; a missing or corrupted file means the
// worker crashed, and the records are reconstructed from its control stream
// instead. Either way a test the worker never finished comes back failed
// with an error explaining the abnormal termination.
func readWorkerResults(dir string) ([]*result.Test, error) {
	tests, rerr := result.ReadStreamedResults(filepath.Join(dir, result.StreamedResultsFilename))
	if rerr == nil {
		for _, t := range tests {
			if !t.Finished() {
				t.AddError(result.Error{Time: t.Start, Reason: crashReason})
				t.Finish(result.StatusFail)
			}
		}
		return tests, nil
	}
	f, err := os.Open(filepath.Join(dir, EventsFilename))
	if err != nil {
		return nil, errors.Wrapf(rerr, "failed to read worker output %s", dir)
	}
	defer f.Close()
	msgs, err := event.Resolve(f, crashReason)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to recover worker output %s", dir)
	}
	return event.TestsFromMessages(msgs), nil
}
