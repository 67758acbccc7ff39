// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package assertion records assertion outcomes as keyword events.
//
// A failing assertion always produces exactly one failed event; hiding only
// affects passing assertions, so a scoping mistake can never suppress a
// failure. Passing assertions are recorded only when pass logging is enabled
// for the run and the assertion is not hidden.
package assertion

import (
	"fmt"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/result"
	"github.com/kwbridge/kwbridge/internal/run"
)

// Options adjusts how a single assertion is reported.
type Options struct {
	// LogPass overrides the run-wide pass-logging setting for this
	// assertion. It takes precedence over scoped hiding.
	LogPass *bool
	// Description replaces the rendered expression in the event name.
	Description string
	// FailMessage is appended to the failure log entry. It is never shown
	// for passing assertions.
	FailMessage string
}

// Bool returns a pointer to b, for use in Options.LogPass.
func Bool(b bool) *bool { return &b }

// Check records the outcome of one assertion on rn. ok is the evaluated
// condition and expr its rendered source form. On failure Check returns an
// error describing the assertion; on success it returns nil. rn may be nil,
// in which case only the error is produced.
func Check(rn *run.Run, ok bool, expr string, opts *Options) error {
	if opts == nil {
		opts = &Options{}
	}
	name := opts.Description
	if name == "" {
		name = expr
	}

	if ok {
		if rn != nil && logPass(rn, opts) {
			k := rn.StartKeyword(name, "", nil)
			k.Log(result.LevelInfo, "Assertion passed")
			rn.EndKeyword(k, result.StatusPass)
		}
		return nil
	}

	reason := "Assertion failed: " + name
	if opts.FailMessage != "" {
		reason += ": " + opts.FailMessage
	}
	if rn != nil {
		k := rn.StartKeyword(name, "", nil)
		k.Log(result.LevelFail, reason)
		rn.EndKeyword(k, result.StatusFail)
	}
	return errors.New(reason)
}

// Checkf is Check with a formatted fail message.
func Checkf(rn *run.Run, ok bool, expr string, format string, args ...interface{}) error {
	return Check(rn, ok, expr, &Options{FailMessage: fmt.Sprintf(format, args...)})
}

// logPass decides whether a passing assertion is recorded. A per-assertion
// override beats scoped hiding, which beats the run default.
func logPass(rn *run.Run, opts *Options) bool {
	if opts.LogPass != nil {
		return *opts.LogPass
	}
	if rn.AssertsHidden() {
		return false
	}
	return rn.LogPassDefault
}

// HideScope forces passing assertions within fn to go unrecorded. Failures
// within fn are still recorded.
func HideScope(rn *run.Run, fn func()) {
	if rn == nil {
		fn()
		return
	}
	rn.PushHideAsserts()
	defer rn.PopHideAsserts()
	fn()
}
