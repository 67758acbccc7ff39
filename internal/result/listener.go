// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package result

import (
	"fmt"
)

// Listener is a result visitor invoked as the finalized result tree is
// walked. It mirrors the reporting engine's listener interface.
type Listener interface {
	StartSuite(s *Suite)
	EndSuite(s *Suite)
	StartTest(t *Test)
	EndTest(t *Test)
	StartKeyword(k *Keyword)
	EndKeyword(k *Keyword)
}

// Visit walks the suite tree in collection order, invoking l for each node.
//
// Listener callbacks are run through a recover wrapper: a panicking listener
// must not be able to abort the walk, since unrelated listeners and nodes
// must still be visited. Recovered panics are reported via report, which may
// be nil to discard them.
func Visit(s *Suite, l Listener, report func(err error)) {
	safe(report, func() { l.StartSuite(s) })
	for _, t := range s.Tests {
		safe(report, func() { l.StartTest(t) })
		for _, k := range t.Keywords {
			visitKeyword(k, l, report)
		}
		safe(report, func() { l.EndTest(t) })
	}
	for _, c := range s.Suites {
		Visit(c, l, report)
	}
	safe(report, func() { l.EndSuite(s) })
}

func visitKeyword(k *Keyword, l Listener, report func(err error)) {
	safe(report, func() { l.StartKeyword(k) })
	for _, c := range k.Children {
		visitKeyword(c, l, report)
	}
	safe(report, func() { l.EndKeyword(k) })
}

func safe(report func(err error), f func()) {
	defer func() {
		if val := recover(); val != nil && report != nil {
			report(fmt.Errorf("panic in listener: %v", val))
		}
	}()
	f()
}
