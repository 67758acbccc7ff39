// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package result defines the reporting engine's in-memory result model and
// the schema of result files written by the bridge.
//
// The model is a tree: a run owns a root Suite, suites own child suites and
// tests, and tests own an ordered sequence of Keyword events. Keyword events
// nest, so call stacks become log hierarchies.
package result

import (
	"runtime"
	"time"
)

// now is the function to return the current time. This is altered in unit tests.
var now = time.Now

// Status describes the outcome of a test or keyword.
type Status string

const (
	// StatusNotStarted indicates that execution has not begun.
	StatusNotStarted Status = "NOT_STARTED"
	// StatusRunning indicates that execution is in progress.
	StatusRunning Status = "RUNNING"
	// StatusPass indicates successful completion.
	StatusPass Status = "PASS"
	// StatusFail indicates failed completion. Once a test reaches this
	// status it never reverts to StatusPass.
	StatusFail Status = "FAIL"
	// StatusSkip indicates that the test was not executed.
	StatusSkip Status = "SKIP"
)

// Origin classifies where a test was authored.
type Origin string

const (
	// OriginHosted marks a test authored as a host-framework test function.
	OriginHosted Origin = "hosted"
	// OriginNative marks a test authored directly in the reporting engine's
	// own suite format.
	OriginNative Origin = "native"
)

// Message is one log entry attached to a keyword event.
type Message struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Text  string    `json:"text"`
}

// Message levels. These follow the reporting engine's log level names.
const (
	LevelInfo  = "INFO"
	LevelDebug = "DEBUG"
	LevelFail  = "FAIL"
)

// Error describes an error encountered while running a test.
type Error struct {
	Time   time.Time `json:"time"`
	Reason string    `json:"reason"`
	File   string    `json:"file"`
	Line   int       `json:"line"`
}

// NewError creates an Error with the location of the caller. skip has the
// same meaning as in runtime.Caller: skip=0 records the NewError call site.
func NewError(reason string, skip int) Error {
	e := Error{Time: now(), Reason: reason}
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		e.File = file
		e.Line = line
	}
	return e
}
