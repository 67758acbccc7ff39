// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package run tracks one active reporting-engine execution per worker
// process.
//
// A Run owns the in-memory suite tree being built, the stack of open keyword
// events that new events attach to, the listener registry, and suite
// variables. The active Run and its event stack are process-wide mutable
// state with a strict single-writer discipline: only the coordinator and the
// item runner mutate them, and only one test is current at a time within a
// process, so methods other than activation take no locks.
package run

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/event"
	"github.com/kwbridge/kwbridge/internal/result"
)

// nowTime is the function to return the current time. This is altered in unit tests.
var nowTime = time.Now

// Run represents one active reporting-engine execution.
//
// Tests of this package construct independent Runs directly; production use
// goes through Activate so that exactly one Run is active per process.
type Run struct {
	// ID is the unique identifier of the run.
	ID string
	// WorkerID identifies the worker process that owns the run, or "" for a
	// single-process run.
	WorkerID string
	// LogPassDefault is the process-wide setting for whether passing
	// assertions are recorded as keyword events. Set once at session start.
	LogPassDefault bool

	root      *result.Suite
	byPath    map[string]*result.Suite
	curTest   *result.Test
	kwStack   []*result.Keyword
	suspended bool
	hideDepth int

	listeners []result.Listener
	vars      map[string]map[string]interface{}

	mw        *event.MessageWriter
	mirrorErr error
}

// New creates a new Run. If mw is non-nil, lifecycle events are mirrored to
// it as control messages for the controlling process.
func New(workerID string, mw *event.MessageWriter) *Run {
	r := &Run{
		ID:       uuid.NewString(),
		WorkerID: workerID,
		root:     result.NewSuite(""),
		byPath:   make(map[string]*result.Suite),
		vars:     make(map[string]map[string]interface{}),
		mw:       mw,
	}
	r.byPath[""] = r.root
	r.mirror(&event.RunStart{Time: r.root.Start, RunID: r.ID, WorkerID: workerID})
	return r
}

// Root returns the root suite node.
func (r *Run) Root() *result.Suite {
	return r.root
}

// mirror best-effort writes a control message. The control stream is a
// liveness/progress channel, not the result of record; a write failure must
// not abort the run, so only the first error is retained for reporting at
// finalization.
func (r *Run) mirror(msg event.Msg) {
	if r.mw == nil {
		return
	}
	if err := r.mw.WriteMessage(msg); err != nil && r.mirrorErr == nil {
		r.mirrorErr = err
	}
}

// MirrorError returns the first error encountered while writing control
// messages, or nil.
func (r *Run) MirrorError() error {
	return r.mirrorErr
}

// OpenSuite returns the suite node for the given collection path, creating
// it and any missing ancestors on first use. Opening an existing path is a
// no-op returning the existing node; collection units may be revisited in
// some host-framework traversal orders.
func (r *Run) OpenSuite(path string) *result.Suite {
	if s, ok := r.byPath[path]; ok {
		return s
	}
	parentPath := ""
	if i := strings.LastIndex(path, "/"); i >= 0 {
		parentPath = path[:i]
	}
	parent := r.OpenSuite(parentPath)
	s := result.NewSuite(path)
	parent.Suites = append(parent.Suites, s)
	r.byPath[path] = s
	r.mirror(&event.SuiteStart{Time: s.Start, Path: path})
	return s
}

// CloseSuite closes the suite node for path. Closing an already-closed or
// never-opened suite is a no-op.
func (r *Run) CloseSuite(path string) {
	s, ok := r.byPath[path]
	if !ok || s.Closed() {
		return
	}
	s.Close()
	r.mirror(&event.SuiteEnd{Time: s.End, Path: path})
}

// StartTest creates a test node under the suite for suitePath and makes it
// the current test. At most one test may be running per worker process at
// any instant; starting a second one is an error.
func (r *Run) StartTest(t *result.Test) error {
	if r.curTest != nil {
		return errors.Errorf("test %q is already running", r.curTest.Name)
	}
	s := r.OpenSuite(t.SuitePath)
	s.Tests = append(s.Tests, t)
	t.Start = nowTime()
	t.SetStatus(result.StatusRunning)
	r.curTest = t
	r.mirror(&event.TestStart{Time: t.Start, Name: t.Name, SuitePath: t.SuitePath, Origin: t.Origin})
	return nil
}

// CurrentTest returns the test currently running, or nil.
func (r *Run) CurrentTest() *result.Test {
	return r.curTest
}

// EndTest finalizes the current test with the given status. Keyword events
// left open are force-closed. EndTest is a no-op if no test is running.
func (r *Run) EndTest(st result.Status) {
	t := r.curTest
	if t == nil {
		return
	}
	r.kwStack = nil
	t.Finish(st)
	r.curTest = nil
	r.mirror(&event.TestEnd{Time: t.End, Name: t.Name, Status: t.Status, SkipReason: t.SkipReason})
}

// AdoptTest attaches an already-finished test node to the suite for its
// path. Used for tests executed outside the hosted stack, whose nodes are
// adopted unchanged.
func (r *Run) AdoptTest(t *result.Test) error {
	if !t.Finished() {
		return errors.Errorf("test %q is not finished", t.Name)
	}
	s := r.OpenSuite(t.SuitePath)
	s.Tests = append(s.Tests, t)
	r.mirror(&event.TestStart{Time: t.Start, Name: t.Name, SuitePath: t.SuitePath, Origin: t.Origin})
	r.mirror(&event.TestEnd{Time: t.End, Name: t.Name, Status: t.Status, SkipReason: t.SkipReason})
	return nil
}

// AddTestError records an error against the current test, or against the run
// if no test is running.
func (r *Run) AddTestError(e result.Error) {
	if r.curTest != nil {
		r.curTest.AddError(e)
		r.mirror(&event.TestError{Time: e.Time, Name: r.curTest.Name, Error: e})
		return
	}
	r.mirror(&event.RunError{Time: e.Time, Reason: e.Reason})
}

// StartKeyword opens a keyword event as a child of whatever event or test is
// currently active and pushes it onto the open-event stack. It returns nil
// when no test is running or the run is suspended for native execution;
// EndKeyword handles nil events, so materialized calls degrade to plain
// calls outside a test.
func (r *Run) StartKeyword(name, owner string, args []string) *result.Keyword {
	if r.suspended || r.curTest == nil {
		return nil
	}
	var k *result.Keyword
	if n := len(r.kwStack); n > 0 {
		k = r.kwStack[n-1].StartChild(name, owner, args)
	} else {
		k = r.curTest.StartKeyword(name, owner, args)
	}
	if k != nil {
		r.kwStack = append(r.kwStack, k)
	}
	return k
}

// EndKeyword closes k with the given status and pops it (and anything left
// above it) off the open-event stack. A nil k is a no-op.
func (r *Run) EndKeyword(k *result.Keyword, st result.Status) {
	if k == nil {
		return
	}
	for i := len(r.kwStack) - 1; i >= 0; i-- {
		if r.kwStack[i] == k {
			r.kwStack = r.kwStack[:i]
			break
		}
	}
	k.End(st)
}

// ActiveKeyword returns the innermost open keyword event, or nil.
func (r *Run) ActiveKeyword() *result.Keyword {
	if n := len(r.kwStack); n > 0 {
		return r.kwStack[n-1]
	}
	return nil
}

// Suspend pauses the hosted event stack so that the reporting engine's own
// execution path can run without the bridge intercepting it. Nested
// activation of a second run is forbidden; suspension is the only way to
// hand control to the engine.
func (r *Run) Suspend() error {
	if r.suspended {
		return errors.New("run is already suspended")
	}
	r.suspended = true
	return nil
}

// Resume reverses Suspend.
func (r *Run) Resume() {
	r.suspended = false
}

// Suspended reports whether the run is suspended.
func (r *Run) Suspended() bool {
	return r.suspended
}

// ForceCloseAll closes every open node bottom-up: open keyword events first
// (most specific), then the current test, then open suites deepest-first.
// Each force-closed node is marked failed with a synthetic log entry or
// error explaining the abnormal termination. It is safe to call
// ForceCloseAll on a fully closed run.
func (r *Run) ForceCloseAll(reason string) {
	for i := len(r.kwStack) - 1; i >= 0; i-- {
		k := r.kwStack[i]
		k.Log(result.LevelFail, reason)
		k.End(result.StatusFail)
	}
	r.kwStack = nil

	if r.curTest != nil {
		r.curTest.AddError(result.Error{Time: nowTime(), Reason: reason})
		r.mirror(&event.TestError{Time: nowTime(), Name: r.curTest.Name,
			Error: result.Error{Time: nowTime(), Reason: reason}})
		r.EndTest(result.StatusFail)
	}

	var open []string
	for path, s := range r.byPath {
		if path != "" && !s.Closed() {
			open = append(open, path)
		}
	}
	// Deepest first so that a child is always closed before its parent.
	slices.SortFunc(open, func(a, b string) int {
		return strings.Count(b, "/") - strings.Count(a, "/")
	})
	for _, path := range open {
		r.CloseSuite(path)
	}
	r.root.Close()
	r.mirror(&event.RunEnd{Time: r.root.End})
}

// RegisterListener adds a result visitor to be invoked during finalization.
// Registrations are deduplicated by identity, so registering the same
// listener twice is a no-op.
func (r *Run) RegisterListener(l result.Listener) {
	for _, e := range r.listeners {
		if e == l {
			return
		}
	}
	r.listeners = append(r.listeners, l)
}

// NotifyListeners walks the finalized result tree for every registered
// listener. Listener failures are reported via report (which may be nil) and
// never abort the walk.
func (r *Run) NotifyListeners(report func(err error)) {
	for _, l := range r.listeners {
		result.Visit(r.root, l, report)
	}
}

// SetSuiteVariables declares named values visible to the reporting engine's
// variable resolution for the suite at path. It may be used once per suite
// path; a second declaration for the same path is an error. Names must carry
// the scalar prefix "$"; scalar variables may hold composite values, so no
// separate list or mapping prefix exists.
func (r *Run) SetSuiteVariables(path string, vars map[string]interface{}) error {
	if _, ok := r.vars[path]; ok {
		return errors.Errorf("variables already declared for suite %q", path)
	}
	for name := range vars {
		if !strings.HasPrefix(name, "$") {
			return errors.Errorf("variable %q must have the scalar prefix $", name)
		}
	}
	r.vars[path] = vars
	return nil
}

// SuiteVariables returns the variables declared for the suite at path, or nil.
func (r *Run) SuiteVariables(path string) map[string]interface{} {
	return r.vars[path]
}

// PushHideAsserts enters a dynamic extent in which passing assertions are
// not recorded. Extents nest.
func (r *Run) PushHideAsserts() {
	r.hideDepth++
}

// PopHideAsserts leaves the innermost hiding extent.
func (r *Run) PopHideAsserts() {
	if r.hideDepth > 0 {
		r.hideDepth--
	}
}

// AssertsHidden reports whether the caller is inside a hiding extent.
func (r *Run) AssertsHidden() bool {
	return r.hideDepth > 0
}

var (
	activeMu sync.Mutex
	active   *Run
)

// Activate makes r the process-wide active run. Exactly one run may be
// active per process at a time; nested activation is forbidden.
func Activate(r *Run) error {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		return errors.Errorf("a run is already active (id %s)", active.ID)
	}
	active = r
	return nil
}

// Deactivate clears the process-wide active run. Deactivating a run that is
// not active is a no-op.
func Deactivate(r *Run) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active == r {
		active = nil
	}
}

// Active returns the process-wide active run, or nil.
func Active() *Run {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active
}
