// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/engine"
	"github.com/kwbridge/kwbridge/internal/event"
	"github.com/kwbridge/kwbridge/internal/host"
	"github.com/kwbridge/kwbridge/internal/result"
)

func passingItem(name, unit string) *host.Item {
	return &host.Item{
		Name:   name,
		Unit:   unit,
		Origin: result.OriginHosted,
		Call:   func(ctx context.Context) error { return nil },
	}
}

func TestCoordinatorLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewCoordinator(Options{OutputDir: dir, WorkerID: "w0"}, nil)

	if err := c.SessionStart(ctx, &host.Session{}, nil); err != nil {
		t.Fatal("SessionStart failed: ", err)
	}
	if c.State() != StateActive {
		t.Errorf("State = %d; want StateActive", c.State())
	}

	c.EnterUnit(ctx, "pkg")
	c.RunItem(ctx, passingItem("t1", "pkg"))
	c.ExitUnit(ctx, "pkg")

	if err := c.SessionFinish(ctx); err != nil {
		t.Fatal("SessionFinish failed: ", err)
	}
	if c.State() != StateClosed {
		t.Errorf("State = %d; want StateClosed", c.State())
	}

	tests, err := result.ReadStreamedResults(filepath.Join(dir, result.StreamedResultsFilename))
	if err != nil {
		t.Fatal("ReadStreamedResults failed: ", err)
	}
	if len(tests) != 1 {
		t.Fatalf("Got %d streamed tests; want 1", len(tests))
	}
	if tests[0].Name != "t1" || tests[0].Status != result.StatusPass {
		t.Errorf("Test = %s/%v; want t1/PASS", tests[0].Name, tests[0].Status)
	}

	if _, err := os.Stat(filepath.Join(dir, result.JUnitXMLFilename)); err != nil {
		t.Error("JUnit XML results missing: ", err)
	}

	f, err := os.Open(filepath.Join(dir, EventsFilename))
	if err != nil {
		t.Fatal("Control stream missing: ", err)
	}
	defer f.Close()
	msgs, err := event.Resolve(f, "crashed")
	if err != nil {
		t.Fatal("Resolve failed: ", err)
	}
	if _, ok := msgs[0].(*event.RunStart); !ok {
		t.Errorf("First control message is %T; want RunStart", msgs[0])
	}
	if _, ok := msgs[len(msgs)-1].(*event.RunEnd); !ok {
		t.Errorf("Last control message is %T; want RunEnd", msgs[len(msgs)-1])
	}
}

func TestSessionStartTwice(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(Options{}, nil)
	if err := c.SessionStart(ctx, &host.Session{}, nil); err != nil {
		t.Fatal("SessionStart failed: ", err)
	}
	defer c.SessionFinish(ctx)
	if err := c.SessionStart(ctx, &host.Session{}, nil); err == nil {
		t.Error("Second SessionStart succeeded; want error")
	}
}

func TestHookCannotOverrideFixedOptions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewCoordinator(Options{OutputDir: dir, WorkerID: "w3"}, nil)

	err := c.SessionStart(ctx, &host.Session{}, func(opts *Options, s *host.Session) {
		opts.LogPassingAsserts = true
		opts.OutputDir = "/elsewhere"
		opts.WorkerID = "hijacked"
	})
	if err != nil {
		t.Fatal("SessionStart failed: ", err)
	}
	defer c.SessionFinish(ctx)

	if !c.Run().LogPassDefault {
		t.Error("Hook's LogPassingAsserts change was not applied")
	}
	if c.opts.OutputDir != dir {
		t.Errorf("Hook overrode the output dir: %q", c.opts.OutputDir)
	}
	if c.opts.WorkerID != "w3" {
		t.Errorf("Hook overrode the worker ID: %q", c.opts.WorkerID)
	}
}

func TestHostedSetupFailureStillRecordsTeardown(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(Options{}, nil)
	if err := c.SessionStart(ctx, &host.Session{}, nil); err != nil {
		t.Fatal("SessionStart failed: ", err)
	}

	called := false
	it := &host.Item{
		Name:   "t1",
		Unit:   "pkg",
		Origin: result.OriginHosted,
		Setup:  func(ctx context.Context) error { return errors.New("setup broke") },
		Call:   func(ctx context.Context) error { called = true; return nil },
		Teardown: func(ctx context.Context) error {
			return nil
		},
	}
	c.RunItem(ctx, it)

	tests := c.Run().Root().AllTests()
	if len(tests) != 1 {
		t.Fatalf("Got %d tests; want 1", len(tests))
	}
	tst := tests[0]
	if tst.Status != result.StatusFail {
		t.Errorf("Status = %v; want FAIL", tst.Status)
	}
	if called {
		t.Error("Call phase ran despite setup failure")
	}
	var names []string
	for _, k := range tst.Keywords {
		names = append(names, k.Name)
	}
	if len(names) != 2 || names[0] != "Setup" || names[1] != "Teardown" {
		t.Errorf("Keywords = %v; want [Setup Teardown]", names)
	}

	if err := c.SessionFinish(ctx); err != nil {
		t.Fatal("SessionFinish failed: ", err)
	}
}

func TestSkipAndXFailMarkers(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(Options{}, nil)
	if err := c.SessionStart(ctx, &host.Session{}, nil); err != nil {
		t.Fatal("SessionStart failed: ", err)
	}
	defer c.SessionFinish(ctx)

	c.RunItem(ctx, &host.Item{
		Name:    "skipped",
		Unit:    "pkg",
		Origin:  result.OriginHosted,
		Markers: []host.Marker{{Name: host.MarkerSkip, Value: "not ready"}},
		Call:    func(ctx context.Context) error { t.Error("skipped item ran"); return nil },
	})
	c.RunItem(ctx, &host.Item{
		Name:    "expected failure",
		Unit:    "pkg",
		Origin:  result.OriginHosted,
		Markers: []host.Marker{{Name: host.MarkerXFail}},
		Call:    func(ctx context.Context) error { return errors.New("known bug") },
	})
	c.RunItem(ctx, &host.Item{
		Name:    "unexpected pass",
		Unit:    "pkg",
		Origin:  result.OriginHosted,
		Markers: []host.Marker{{Name: host.MarkerXFail}, {Name: "smoke"}},
		Call:    func(ctx context.Context) error { return nil },
	})

	tests := c.Run().Root().AllTests()
	if len(tests) != 3 {
		t.Fatalf("Got %d tests; want 3", len(tests))
	}
	if st := tests[0].Status; st != result.StatusSkip {
		t.Errorf("Skipped item status = %v; want SKIP", st)
	}
	if tests[0].SkipReason != "not ready" {
		t.Errorf("SkipReason = %q; want not ready", tests[0].SkipReason)
	}
	if st := tests[1].Status; st != result.StatusPass {
		t.Errorf("Expected failure status = %v; want PASS", st)
	}
	if st := tests[2].Status; st != result.StatusFail {
		t.Errorf("Unexpected pass status = %v; want FAIL", st)
	}
	if len(tests[2].Tags) != 1 || tests[2].Tags[0] != "smoke" {
		t.Errorf("Tags = %v; want [smoke]", tests[2].Tags)
	}
}

func TestNativeItem(t *testing.T) {
	ctx := context.Background()
	in := engine.NewInterpreter()
	in.Register("Ping", func(ctx context.Context, args []string) error { return nil })

	c := NewCoordinator(Options{}, in)
	if err := c.SessionStart(ctx, &host.Session{}, nil); err != nil {
		t.Fatal("SessionStart failed: ", err)
	}
	defer c.SessionFinish(ctx)

	c.RunItem(ctx, &host.Item{
		Name:   "native ping",
		Unit:   "suites",
		Origin: result.OriginNative,
		Native: &engine.NativeTest{
			Name:      "native ping",
			SuitePath: "suites",
			Keywords:  []*engine.NativeKeyword{{Name: "Ping"}},
		},
	})

	if c.Run().Suspended() {
		t.Error("Run left suspended after native execution")
	}
	tests := c.Run().Root().AllTests()
	if len(tests) != 1 {
		t.Fatalf("Got %d tests; want 1", len(tests))
	}
	if tests[0].Origin != result.OriginNative || tests[0].Status != result.StatusPass {
		t.Errorf("Test = %v/%v; want native/PASS", tests[0].Origin, tests[0].Status)
	}
}

func TestRunItemContainsReportingErrors(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(Options{}, nil)
	if err := c.SessionStart(ctx, &host.Session{}, nil); err != nil {
		t.Fatal("SessionStart failed: ", err)
	}
	defer c.SessionFinish(ctx)

	// A native item with no parsed model is a reporting-layer failure. The
	// session loop must survive it.
	c.RunItem(ctx, &host.Item{Name: "broken", Unit: "pkg", Origin: result.OriginNative})
	c.RunItem(ctx, passingItem("after", "pkg"))

	tests := c.Run().Root().AllTests()
	if len(tests) != 1 || tests[0].Name != "after" {
		t.Fatalf("Later item did not run; tests = %d", len(tests))
	}
	if tests[0].Status != result.StatusPass {
		t.Errorf("Later item status = %v; want PASS", tests[0].Status)
	}
}

func TestSessionFinishAfterCrash(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewCoordinator(Options{OutputDir: dir, WorkerID: "w1"}, nil)
	if err := c.SessionStart(ctx, &host.Session{}, nil); err != nil {
		t.Fatal("SessionStart failed: ", err)
	}

	// Simulate a worker dying mid-test: the test never gets an EndTest.
	tst := result.NewTest("hung", "pkg", result.OriginHosted, nil)
	if err := c.Run().StartTest(tst); err != nil {
		t.Fatal("StartTest failed: ", err)
	}
	c.Run().StartKeyword("Stuck", "", nil)

	if err := c.SessionFinish(ctx); err != nil {
		t.Fatal("SessionFinish failed: ", err)
	}

	tests, err := result.ReadStreamedResults(filepath.Join(dir, result.StreamedResultsFilename))
	if err != nil {
		t.Fatal("ReadStreamedResults failed: ", err)
	}
	if len(tests) != 1 || tests[0].Status != result.StatusFail {
		t.Fatalf("Crashed test not finalized as failed: %+v", tests)
	}
	if len(tests[0].Errors) == 0 {
		t.Error("Crashed test has no recorded error")
	}

	if _, err := os.Stat(filepath.Join(dir, CrashReportFilename)); err != nil {
		t.Error("Crash report missing: ", err)
	}
}

func TestStreamsRecordsAsTestsFinish(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewCoordinator(Options{OutputDir: dir, WorkerID: "w4"}, nil)
	if err := c.SessionStart(ctx, &host.Session{}, nil); err != nil {
		t.Fatal("SessionStart failed: ", err)
	}
	defer c.SessionFinish(ctx)
	path := filepath.Join(dir, result.StreamedResultsFilename)

	c.EnterUnit(ctx, "pkg")
	c.RunItem(ctx, passingItem("t1", "pkg"))

	c.RunItem(ctx, &host.Item{
		Name:   "t2",
		Unit:   "pkg",
		Origin: result.OriginHosted,
		Call: func(ctx context.Context) error {
			// While the test body runs its in-progress record is already
			// on disk after the finished one.
			tests, err := result.ReadStreamedResults(path)
			if err != nil {
				t.Fatal("ReadStreamedResults failed: ", err)
			}
			if len(tests) != 2 {
				t.Fatalf("Got %d records mid-test; want 2", len(tests))
			}
			if tests[1].Name != "t2" || tests[1].Finished() {
				t.Errorf("Trailing record = %+v; want an open t2", tests[1])
			}
			return nil
		},
	})

	// Before the session finishes both records are finalized; a crash
	// after this point cannot lose them.
	tests, err := result.ReadStreamedResults(path)
	if err != nil {
		t.Fatal("ReadStreamedResults failed: ", err)
	}
	if len(tests) != 2 {
		t.Fatalf("Got %d records mid-session; want 2", len(tests))
	}
	for _, tst := range tests {
		if tst.Status != result.StatusPass || !tst.Finished() {
			t.Errorf("Record %s = %v finished=%v; want finalized PASS", tst.Name, tst.Status, tst.Finished())
		}
	}
}
