// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package result

import (
	"strings"
	"time"
)

// Test corresponds to one host-framework test item. It holds an ordered
// sequence of top-level keyword events, a status, and a tag set derived from
// host-framework markers.
//
// The active run mutates a Test under a strict single-writer discipline:
// only one test is running per worker process at any instant, so no locking
// is needed.
type Test struct {
	Name       string     `json:"name"`
	SuitePath  string     `json:"suitePath"`
	Origin     Origin     `json:"origin"`
	Tags       []string   `json:"tags,omitempty"`
	Status     Status     `json:"status"`
	SkipReason string     `json:"skipReason,omitempty"`
	Keywords   []*Keyword `json:"keywords,omitempty"`
	Errors     []Error    `json:"errors,omitempty"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
}

// NewTest creates a Test in the not-started state.
func NewTest(name, suitePath string, origin Origin, tags []string) *Test {
	return &Test{
		Name:      name,
		SuitePath: suitePath,
		Origin:    origin,
		Tags:      tags,
		Status:    StatusNotStarted,
	}
}

// SetStatus transitions the test's status. The status is monotonic: once the
// test has failed, later transitions cannot revert it to StatusPass or
// StatusSkip.
func (t *Test) SetStatus(st Status) {
	if t.Status == StatusFail && st != StatusFail {
		return
	}
	t.Status = st
}

// AddError records an error against the test and marks it failed.
func (t *Test) AddError(e Error) {
	t.Errors = append(t.Errors, e)
	t.SetStatus(StatusFail)
}

// StartKeyword opens a new top-level keyword event on the test.
func (t *Test) StartKeyword(name, owner string, args []string) *Keyword {
	k := NewKeyword(name, owner, args)
	t.Keywords = append(t.Keywords, k)
	return k
}

// Finished reports whether the test has been finalized.
func (t *Test) Finished() bool {
	return !t.End.IsZero()
}

// Finish finalizes the test with the given status, closing any keyword
// events left open. Open keywords are force-closed as failed so that no node
// is ever left open in the output. Finish is idempotent.
func (t *Test) Finish(st Status) {
	if t.Finished() {
		return
	}
	for _, k := range t.Keywords {
		k.End(StatusFail)
	}
	t.SetStatus(st)
	t.End = now()
}

// Suite corresponds to a host-framework collection unit. Children are
// ordered by the host framework's collection order. Path is the
// slash-separated collection path of the unit; the root suite has an empty
// path.
type Suite struct {
	Name   string    `json:"name"`
	Path   string    `json:"path"`
	Suites []*Suite  `json:"suites,omitempty"`
	Tests  []*Test   `json:"tests,omitempty"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// NewSuite creates a suite node for the given collection path. The suite
// name is the last path segment, or "root" for an empty path.
func NewSuite(path string) *Suite {
	name := "root"
	if path != "" {
		segs := strings.Split(path, "/")
		name = segs[len(segs)-1]
	}
	return &Suite{Name: name, Path: path, Start: now()}
}

// Closed reports whether the suite has been closed.
func (s *Suite) Closed() bool {
	return !s.End.IsZero()
}

// Close closes the suite. Closing an already-closed suite is a no-op since
// collection units may be revisited in some host-framework traversal orders.
func (s *Suite) Close() {
	if s.Closed() {
		return
	}
	s.End = now()
}

// AllTests returns all tests in the suite tree in collection order.
func (s *Suite) AllTests() []*Test {
	tests := append([]*Test(nil), s.Tests...)
	for _, c := range s.Suites {
		tests = append(tests, c.AllTests()...)
	}
	return tests
}
