// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package event writes and reads control messages describing the state of a
// bridged run.
//
// Control messages are JSON-marshaled and used for communication from worker
// processes to the controlling process. A typical sequence is as follows:
//
//	RunStart (run started)
//		RunLog (run logged a message)
//		SuiteStart (suite opened)
//			TestStart (first test started)
//				TestLog (first test logged a message)
//			TestEnd (first test ended)
//			TestStart (second test started)
//				TestError (second test encountered an error)
//			TestEnd (second test ended)
//		SuiteEnd (suite closed)
//	RunEnd (run ended)
//
// Control messages of different types are unmarshaled into a single
// messageUnion struct. To be able to infer a message's type, each message
// struct must contain a Time field with a message-type-prefixed JSON name
// (e.g. "runStartTime" for RunStart.Time), and all other fields must be
// similarly namespaced.
package event

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/result"
)

// Msg is an interface implemented by all message types.
type Msg interface {
	// isMsg indicates that a type is a message type. It is not intended to be
	// called. Since this method is unexported, no other packages can define
	// message types.
	isMsg()
}

// RunStart describes the start of a run.
type RunStart struct {
	// Time is the time at which the run started.
	Time time.Time `json:"runStartTime"`
	// RunID is the unique identifier of the run.
	RunID string `json:"runStartRunId"`
	// WorkerID identifies the worker process that owns the run.
	WorkerID string `json:"runStartWorkerId"`
}

func (*RunStart) isMsg() {}

// RunLog contains an informative, high-level logging message produced by a run.
type RunLog struct {
	// Time is the time at which the message was logged.
	Time time.Time `json:"runLogTime"`
	// Text is the actual message.
	Text string `json:"runLogText"`
}

func (*RunLog) isMsg() {}

// RunError describes a fatal, high-level error encountered during the run.
// This may be encountered at any time (including before RunStart) and
// indicates that the run has been aborted.
type RunError struct {
	// Time is the time at which the error occurred.
	Time time.Time `json:"runErrorTime"`
	// Reason describes the error that occurred.
	Reason string `json:"runErrorReason"`
}

func (*RunError) isMsg() {}

// RunEnd describes the completion of a run.
type RunEnd struct {
	// Time is the time at which the run ended.
	Time time.Time `json:"runEndTime"`
}

func (*RunEnd) isMsg() {}

// SuiteStart describes the opening of a suite node.
type SuiteStart struct {
	// Time is the time at which the suite opened.
	Time time.Time `json:"suiteStartTime"`
	// Path is the collection path of the suite.
	Path string `json:"suiteStartPath"`
}

func (*SuiteStart) isMsg() {}

// SuiteEnd describes the closing of a suite node.
type SuiteEnd struct {
	// Time is the time at which the suite closed.
	Time time.Time `json:"suiteEndTime"`
	// Path is the collection path of the suite, matching the earlier SuiteStart.Path.
	Path string `json:"suiteEndPath"`
}

func (*SuiteEnd) isMsg() {}

// TestStart describes the start of an individual test.
type TestStart struct {
	// Time is the time at which the test started.
	Time time.Time `json:"testStartTime"`
	// Name is the name of the test.
	Name string `json:"testStartName"`
	// SuitePath is the collection path of the suite owning the test.
	SuitePath string `json:"testStartSuitePath"`
	// Origin classifies the test as hosted or native.
	Origin result.Origin `json:"testStartOrigin"`
}

func (*TestStart) isMsg() {}

// TestLog contains an informative logging message produced by a test.
type TestLog struct {
	// Time is the time at which the message was logged.
	Time time.Time `json:"testLogTime"`
	// Text is the actual message.
	Text string `json:"testLogText"`
	// Name is the name of the test, matching the earlier TestStart.Name.
	Name string `json:"testLogName"`
}

func (*TestLog) isMsg() {}

// TestError contains an error produced by a test.
type TestError struct {
	// Time is the time at which the error occurred.
	Time time.Time `json:"testErrorTime"`
	// Error describes the error that occurred.
	Error result.Error `json:"testErrorError"`
	// Name is the name of the test, matching the earlier TestStart.Name.
	Name string `json:"testErrorName"`
}

func (*TestError) isMsg() {}

// TestEnd describes the end of an individual test.
type TestEnd struct {
	// Time is the time at which the test ended.
	Time time.Time `json:"testEndTime"`
	// Name is the name of the test, matching the earlier TestStart.Name.
	Name string `json:"testEndName"`
	// Status is the final status of the test.
	Status result.Status `json:"testEndStatus"`
	// SkipReason describes why the test was skipped, if it was.
	SkipReason string `json:"testEndSkipReason,omitempty"`
}

func (*TestEnd) isMsg() {}

// Heartbeat is sent periodically to assert that the worker is alive.
type Heartbeat struct {
	// Time is the time at which this message was generated.
	Time time.Time `json:"heartbeatTime"`
}

func (*Heartbeat) isMsg() {}

// messageUnion contains all message types. It aids in marshaling and
// unmarshaling heterogeneous messages.
type messageUnion struct {
	*RunStart
	*RunLog
	*RunError
	*RunEnd
	*SuiteStart
	*SuiteEnd
	*TestStart
	*TestLog
	*TestError
	*TestEnd
	*Heartbeat
}

// MessageWriter is used by worker processes to write messages describing the
// state of a run. It is safe to call its methods concurrently from multiple
// goroutines.
type MessageWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewMessageWriter returns a new MessageWriter for writing to w.
func NewMessageWriter(w io.Writer) *MessageWriter {
	return &MessageWriter{enc: json.NewEncoder(w)}
}

// WriteMessage writes msg.
func (mw *MessageWriter) WriteMessage(msg Msg) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	switch v := msg.(type) {
	case *RunStart:
		return mw.enc.Encode(&messageUnion{RunStart: v})
	case *RunLog:
		return mw.enc.Encode(&messageUnion{RunLog: v})
	case *RunError:
		return mw.enc.Encode(&messageUnion{RunError: v})
	case *RunEnd:
		return mw.enc.Encode(&messageUnion{RunEnd: v})
	case *SuiteStart:
		return mw.enc.Encode(&messageUnion{SuiteStart: v})
	case *SuiteEnd:
		return mw.enc.Encode(&messageUnion{SuiteEnd: v})
	case *TestStart:
		return mw.enc.Encode(&messageUnion{TestStart: v})
	case *TestLog:
		return mw.enc.Encode(&messageUnion{TestLog: v})
	case *TestError:
		return mw.enc.Encode(&messageUnion{TestError: v})
	case *TestEnd:
		return mw.enc.Encode(&messageUnion{TestEnd: v})
	case *Heartbeat:
		return mw.enc.Encode(&messageUnion{Heartbeat: v})
	default:
		return errors.New("unable to encode message of unknown type")
	}
}

// MessageReader is used by the controlling process to interpret output from
// workers.
type MessageReader json.Decoder

// NewMessageReader returns a new MessageReader for reading from r.
func NewMessageReader(r io.Reader) *MessageReader {
	return (*MessageReader)(json.NewDecoder(r))
}

// More returns true if more messages are available.
func (mr *MessageReader) More() bool {
	return (*json.Decoder)(mr).More()
}

// ReadMessage reads and returns the next message.
func (mr *MessageReader) ReadMessage() (Msg, error) {
	dec := (*json.Decoder)(mr)
	var mu messageUnion
	if err := dec.Decode(&mu); err != nil {
		return nil, fmt.Errorf("unable to decode message: %v", err)
	}
	switch {
	case mu.RunStart != nil:
		return mu.RunStart, nil
	case mu.RunLog != nil:
		return mu.RunLog, nil
	case mu.RunError != nil:
		return mu.RunError, nil
	case mu.RunEnd != nil:
		return mu.RunEnd, nil
	case mu.SuiteStart != nil:
		return mu.SuiteStart, nil
	case mu.SuiteEnd != nil:
		return mu.SuiteEnd, nil
	case mu.TestStart != nil:
		return mu.TestStart, nil
	case mu.TestLog != nil:
		return mu.TestLog, nil
	case mu.TestError != nil:
		return mu.TestError, nil
	case mu.TestEnd != nil:
		return mu.TestEnd, nil
	case mu.Heartbeat != nil:
		return mu.Heartbeat, nil
	default:
		return nil, errors.New("unable to decode message of unknown type")
	}
}
