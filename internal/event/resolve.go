// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package event

import (
	"io"
	"time"

	"github.com/kwbridge/kwbridge/internal/result"
)

// Resolve reads all control messages from r and ensures their consistency by
// possibly appending artificial messages. In case of worker crashes the
// stream may end without TestEnd/SuiteEnd/RunEnd messages corresponding to
// Start messages received earlier. Resolve synthesizes the missing messages
// so that consumers don't need to handle such exceptional cases: any
// still-open test is ended as failed with an error explaining the abnormal
// termination, open suites are closed deepest-first, and the run is ended.
//
// A decode error mid-stream is treated the same way as a truncated stream; a
// crashed worker can leave a partially written trailing line.
func Resolve(r io.Reader, reason string) ([]Msg, error) {
	mr := NewMessageReader(r)

	var msgs []Msg
	var openSuites []string // innermost last
	var openTest string
	runStarted := false
	runEnded := false

	for mr.More() {
		msg, err := mr.ReadMessage()
		if err != nil {
			// Partial trailing line from a crashed worker.
			break
		}
		msgs = append(msgs, msg)
		switch v := msg.(type) {
		case *RunStart:
			runStarted = true
		case *RunEnd:
			runEnded = true
		case *SuiteStart:
			openSuites = append(openSuites, v.Path)
		case *SuiteEnd:
			for i := len(openSuites) - 1; i >= 0; i-- {
				if openSuites[i] == v.Path {
					openSuites = append(openSuites[:i], openSuites[i+1:]...)
					break
				}
			}
		case *TestStart:
			openTest = v.Name
		case *TestEnd:
			openTest = ""
		}
	}

	if runStarted && runEnded && openTest == "" && len(openSuites) == 0 {
		return msgs, nil
	}

	ts := lastTime(msgs)
	if openTest != "" {
		msgs = append(msgs,
			&TestError{Time: ts, Name: openTest, Error: result.Error{Time: ts, Reason: reason}},
			&TestEnd{Time: ts, Name: openTest, Status: result.StatusFail})
	}
	for i := len(openSuites) - 1; i >= 0; i-- {
		msgs = append(msgs, &SuiteEnd{Time: ts, Path: openSuites[i]})
	}
	if runStarted && !runEnded {
		msgs = append(msgs,
			&RunError{Time: ts, Reason: reason},
			&RunEnd{Time: ts})
	}
	return msgs, nil
}

// TestsFromMessages reconstructs finalized test records from a resolved
// control-message stream. The stream carries no keyword events, so the
// records hold only each test's identity, errors and final status; Resolve
// has already ended any test left open by a crash.
func TestsFromMessages(msgs []Msg) []*result.Test {
	var tests []*result.Test
	var cur *result.Test
	for _, msg := range msgs {
		switch v := msg.(type) {
		case *TestStart:
			cur = result.NewTest(v.Name, v.SuitePath, v.Origin, nil)
			cur.Start = v.Time
			cur.Status = result.StatusRunning
			tests = append(tests, cur)
		case *TestError:
			if cur != nil && cur.Name == v.Name {
				cur.AddError(v.Error)
			}
		case *TestEnd:
			if cur != nil && cur.Name == v.Name {
				cur.SetStatus(v.Status)
				cur.SkipReason = v.SkipReason
				cur.End = v.Time
				cur = nil
			}
		}
	}
	return tests
}

// lastTime returns the timestamp of the last message carrying one, or the
// current time if the stream is empty.
func lastTime(msgs []Msg) time.Time {
	for i := len(msgs) - 1; i >= 0; i-- {
		switch v := msgs[i].(type) {
		case *RunStart:
			return v.Time
		case *RunLog:
			return v.Time
		case *RunError:
			return v.Time
		case *RunEnd:
			return v.Time
		case *SuiteStart:
			return v.Time
		case *SuiteEnd:
			return v.Time
		case *TestStart:
			return v.Time
		case *TestLog:
			return v.Time
		case *TestError:
			return v.Time
		case *TestEnd:
			return v.Time
		case *Heartbeat:
			return v.Time
		}
	}
	return time.Now()
}
