// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package bridge drives one reporting-engine run from the host framework's
// session lifecycle. The coordinator owns the run from session start to the
// final result files; the per-item execution strategies live in item.go.
package bridge

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/diagnose"
	"github.com/kwbridge/kwbridge/internal/engine"
	"github.com/kwbridge/kwbridge/internal/event"
	"github.com/kwbridge/kwbridge/internal/host"
	"github.com/kwbridge/kwbridge/internal/logging"
	"github.com/kwbridge/kwbridge/internal/result"
	"github.com/kwbridge/kwbridge/internal/run"
)

// EventsFilename is the name of the control-message stream a worker writes
// under its output directory.
const EventsFilename = "events.jsonl"

// CrashReportFilename is the name of the diagnostics file written when a
// session finishes with nodes still open.
const CrashReportFilename = "crash.txt"

// State is the coordinator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateFinalizing
	StateClosed
)

// Options configures one session. The run-configuration hook may mutate
// them before activation, except for fields the coordinator fixes for
// correctness under parallel execution.
type Options struct {
	// OutputDir receives the result files and the control stream. Empty
	// means no files are written. Fixed by the coordinator.
	OutputDir string
	// WorkerID identifies this worker under parallel execution. Fixed by
	// the coordinator.
	WorkerID string
	// LogPassingAsserts records passing assertions as keyword events.
	LogPassingAsserts bool
	// HeartbeatInterval is how often the worker writes heartbeat messages
	// to the control stream. Zero disables heartbeats.
	HeartbeatInterval time.Duration
	// Listeners are notified of the finalized result tree.
	Listeners []result.Listener
	// Clock is used for heartbeats. Defaults to the wall clock.
	Clock clock.Clock
}

// Hook is the run-configuration hook, invoked once with the mutable options
// and the session before the run is activated.
type Hook func(opts *Options, s *host.Session)

// Coordinator synchronizes the host framework's session lifecycle with one
// reporting-engine run.
type Coordinator struct {
	opts  Options
	exec  engine.NativeExecutor
	state State

	rn        *run.Run
	eventFile *os.File
	hb        *event.HeartbeatWriter

	sw      *result.StreamedWriter
	pending *result.Test // test whose in-progress record is the last in sw
}

func NewCoordinator(opts Options, exec engine.NativeExecutor) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.NewClock()
	}
	return &Coordinator{opts: opts, exec: exec}
}

// Run returns the active run, or nil outside a session.
func (c *Coordinator) Run() *run.Run { return c.rn }

// State returns the coordinator's lifecycle state.
func (c *Coordinator) State() State { return c.state }

// SessionStart activates the run for a session. hook, if non-nil, may
// adjust the options first; the output directory and worker ID stay as the
// coordinator fixed them. Starting a session while one is active is an
// error, as is activating a second run in the process.
func (c *Coordinator) SessionStart(ctx context.Context, s *host.Session, hook Hook) error {
	if c.state != StateIdle {
		return errors.Errorf("session already started (state %d)", c.state)
	}
	if hook != nil {
		fixedDir, fixedWorker := c.opts.OutputDir, c.opts.WorkerID
		hook(&c.opts, s)
		c.opts.OutputDir = fixedDir
		c.opts.WorkerID = fixedWorker
	}

	var mw *event.MessageWriter
	if c.opts.OutputDir != "" {
		if err := os.MkdirAll(c.opts.OutputDir, 0755); err != nil {
			return errors.Wrap(err, "failed to create output dir")
		}
		f, err := os.Create(filepath.Join(c.opts.OutputDir, EventsFilename))
		if err != nil {
			return errors.Wrap(err, "failed to create control stream")
		}
		c.eventFile = f
		mw = event.NewMessageWriter(f)

		sw, err := result.NewStreamedWriter(filepath.Join(c.opts.OutputDir, result.StreamedResultsFilename))
		if err != nil {
			c.closeEventFile()
			return errors.Wrap(err, "failed to create streamed results file")
		}
		c.sw = sw
	}

	c.rn = run.New(c.opts.WorkerID, mw)
	c.rn.LogPassDefault = c.opts.LogPassingAsserts
	for _, l := range c.opts.Listeners {
		c.rn.RegisterListener(l)
	}
	if err := run.Activate(c.rn); err != nil {
		c.closeStreamedWriter()
		c.closeEventFile()
		c.rn = nil
		return err
	}
	if mw != nil && c.opts.HeartbeatInterval > 0 {
		c.hb = event.NewHeartbeatWriter(mw, c.opts.HeartbeatInterval, c.opts.Clock)
	}
	c.state = StateActive
	logging.Infof(ctx, "Started run %s (worker %q)", c.rn.ID, c.opts.WorkerID)
	return nil
}

// EnterUnit opens the suite node for a collection unit. Revisiting an open
// unit is a no-op.
func (c *Coordinator) EnterUnit(ctx context.Context, path string) {
	if c.state != StateActive {
		return
	}
	c.rn.OpenSuite(path)
	logging.Debugf(ctx, "Entered %s", path)
}

// ExitUnit closes the suite node for a collection unit. Exiting a closed or
// unknown unit is a no-op.
func (c *Coordinator) ExitUnit(ctx context.Context, path string) {
	if c.state != StateActive {
		return
	}
	c.rn.CloseSuite(path)
	logging.Debugf(ctx, "Exited %s", path)
}

// SessionFinish finalizes the run: force-closes anything still open, walks
// listeners and writes the JUnit XML file. Streamed records were already
// written as each test finished. If a test was still running the
// session is treated as crashed and a diagnostics report is written next to
// the results. The run is deactivated even when writing results fails.
func (c *Coordinator) SessionFinish(ctx context.Context) (retErr error) {
	if c.state != StateActive {
		return errors.Errorf("no active session (state %d)", c.state)
	}
	c.state = StateFinalizing

	cur := c.rn.CurrentTest()
	crashed := cur != nil
	const reason = "session terminated before this node finished"
	c.rn.ForceCloseAll(reason)
	if cur != nil {
		if err := c.streamEnd(cur); err != nil {
			logging.Infof(ctx, "Failed to stream aborted test: %v", err)
		}
	}

	c.rn.NotifyListeners(func(err error) {
		logging.Infof(ctx, "Result listener failed: %v", err)
	})

	if c.hb != nil {
		c.hb.Stop()
		c.hb = nil
	}
	defer func() {
		c.closeStreamedWriter()
		c.closeEventFile()
		run.Deactivate(c.rn)
		c.rn = nil
		c.state = StateClosed
	}()

	if err := c.rn.MirrorError(); err != nil {
		logging.Infof(ctx, "Control stream was incomplete: %v", err)
	}

	if c.opts.OutputDir == "" {
		return nil
	}
	if crashed {
		if err := c.writeCrashReport(reason); err != nil {
			logging.Infof(ctx, "Failed to write crash report: %v", err)
		}
	}
	return c.writeResults()
}

func (c *Coordinator) writeResults() error {
	return result.WriteJUnitXMLResults(
		filepath.Join(c.opts.OutputDir, result.JUnitXMLFilename), c.rn.Root().AllTests())
}

// streamStart writes an in-progress record for t. The record is replaced
// when the test finishes, so a crash mid-test still leaves t in the file.
func (c *Coordinator) streamStart(t *result.Test) error {
	if c.sw == nil {
		return nil
	}
	if err := c.sw.Write(t, false); err != nil {
		return err
	}
	c.pending = t
	return nil
}

// streamEnd writes t's finalized record, replacing its in-progress record
// if it is the last one written.
func (c *Coordinator) streamEnd(t *result.Test) error {
	if c.sw == nil {
		return nil
	}
	update := c.pending == t
	c.pending = nil
	return c.sw.Write(t, update)
}

func (c *Coordinator) writeCrashReport(reason string) error {
	f, err := os.Create(filepath.Join(c.opts.OutputDir, CrashReportFilename))
	if err != nil {
		return err
	}
	defer f.Close()
	return diagnose.WriteReport(f, reason)
}

func (c *Coordinator) closeStreamedWriter() {
	if c.sw != nil {
		c.sw.Close()
		c.sw = nil
		c.pending = nil
	}
}

func (c *Coordinator) closeEventFile() {
	if c.eventFile != nil {
		c.eventFile.Close()
		c.eventFile = nil
	}
}
