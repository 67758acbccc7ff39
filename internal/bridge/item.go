// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bridge

import (
	"context"
	"fmt"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/host"
	"github.com/kwbridge/kwbridge/internal/keyword"
	"github.com/kwbridge/kwbridge/internal/logging"
	"github.com/kwbridge/kwbridge/internal/result"
	"github.com/kwbridge/kwbridge/internal/run"
)

// itemState tracks one item through its run.
type itemState int

const (
	itemCollected itemState = iota
	itemStrategized
	itemExecuting
	itemFinalized
)

// itemRunner executes one collected item under the coordinator's run.
type itemRunner struct {
	rn    *run.Run
	c     *Coordinator
	it    *host.Item
	state itemState

	tags []string
	disp host.Disposition
}

// RunItem executes one collected item. Reporting-layer failures are
// contained: they are logged, recorded against the affected node and never
// abort the session loop, so unrelated items still get to run.
func (c *Coordinator) RunItem(ctx context.Context, it *host.Item) {
	if c.state != StateActive {
		logging.Infof(ctx, "Dropping item %q: no active session", it.Name)
		return
	}
	ir := &itemRunner{rn: c.rn, c: c, it: it}
	if err := ir.run(ctx); err != nil {
		logging.Infof(ctx, "Item %q: %v", it.Name, err)
		c.rn.AddTestError(result.NewError(fmt.Sprintf("item %q: %v", it.Name, err), 0))
	}
}

func (ir *itemRunner) run(ctx context.Context) error {
	ir.tags, ir.disp = host.DeriveTags(ir.it.Markers)
	ir.state = itemStrategized

	defer func() { ir.state = itemFinalized }()
	ir.state = itemExecuting
	if ir.it.Origin == result.OriginNative {
		return ir.runNative(ctx)
	}
	return ir.runHosted(ctx)
}

// runHosted runs the item's setup/call/teardown phases, each recorded as a
// top-level keyword on the test node. Teardown always runs and is always
// recorded, even when setup failed.
func (ir *itemRunner) runHosted(ctx context.Context) error {
	t := result.NewTest(ir.it.Name, ir.it.Unit, result.OriginHosted, ir.tags)

	if ir.disp.Skip {
		t.SkipReason = ir.disp.SkipReason
		if t.SkipReason == "" {
			t.SkipReason = "skipped"
		}
		if err := ir.rn.StartTest(t); err != nil {
			return err
		}
		ir.rn.EndTest(result.StatusSkip)
		return ir.c.streamEnd(t)
	}

	if err := ir.rn.StartTest(t); err != nil {
		return err
	}
	if err := ir.c.streamStart(t); err != nil {
		logging.Infof(ctx, "Failed to stream test record: %v", err)
	}

	setupErr := ir.phase(ctx, "Setup", ir.it.Setup)
	var callErr error
	if setupErr == nil {
		callErr = ir.phase(ctx, "Run Test", ir.it.Call)
	}
	teardownErr := ir.phase(ctx, "Teardown", ir.it.Teardown)

	st := result.StatusPass
	fail := func(err error) {
		ir.rn.AddTestError(result.NewError(err.Error(), 0))
		st = result.StatusFail
	}
	if setupErr != nil {
		fail(setupErr)
	}
	if ir.disp.XFail && setupErr == nil {
		if callErr != nil {
			reason := ir.disp.XFailReason
			if reason == "" {
				reason = callErr.Error()
			}
			logging.Debugf(ctx, "Item %q failed as expected: %s", ir.it.Name, reason)
		} else {
			fail(errors.Errorf("%q passed but was expected to fail", ir.it.Name))
		}
	} else if callErr != nil {
		fail(callErr)
	}
	if teardownErr != nil {
		fail(teardownErr)
	}
	ir.rn.EndTest(st)
	return ir.c.streamEnd(t)
}

// phase runs one execution phase as a named keyword. A nil setup or call is
// skipped entirely; a teardown is recorded even when absent, since its
// presence in the log is part of the cleanup contract. A panicking phase is
// recorded as failed and converted to an error.
func (ir *itemRunner) phase(ctx context.Context, name string, fn host.Phase) (err error) {
	if fn == nil {
		if name != "Teardown" {
			return nil
		}
		fn = func(ctx context.Context) error { return nil }
	}
	defer func() {
		if val := recover(); val != nil {
			err = errors.Errorf("panic: %v", val)
		}
	}()
	return keyword.Run(ir.rn, name, nil, func() error { return fn(ctx) })
}

// runNative suspends the hosted stack, delegates the pre-parsed model to the
// engine and adopts the returned test node unchanged.
func (ir *itemRunner) runNative(ctx context.Context) error {
	if ir.it.Native == nil {
		return errors.Errorf("native item %q has no parsed model", ir.it.Name)
	}
	if ir.c.exec == nil {
		return errors.New("no native executor configured")
	}
	if err := ir.rn.Suspend(); err != nil {
		return err
	}
	t, execErr := ir.c.exec.Execute(ctx, ir.it.Native)
	ir.rn.Resume()
	if execErr != nil {
		return errors.Wrapf(execErr, "native execution of %q failed", ir.it.Name)
	}
	if len(ir.tags) > 0 {
		t.Tags = append(t.Tags, ir.tags...)
	}
	if err := ir.rn.AdoptTest(t); err != nil {
		return err
	}
	return ir.c.streamEnd(t)
}
