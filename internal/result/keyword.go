// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package result

import (
	"time"
)

// Keyword records one materialized call: its name, argument snapshot, time
// span, status, log messages and the nested calls made during its execution.
//
// A Keyword is mutable while open and immutable once ended. A child's time
// span is always contained within its parent's span because children are
// started after and ended before their parent.
type Keyword struct {
	Name      string     `json:"name"`
	Owner     string     `json:"owner,omitempty"`
	Args      []string   `json:"args,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
	Children  []*Keyword `json:"children,omitempty"`
	Messages  []Message  `json:"messages,omitempty"`
}

// NewKeyword creates an open keyword event started at the current time.
func NewKeyword(name, owner string, args []string) *Keyword {
	return &Keyword{
		Name:      name,
		Owner:     owner,
		Args:      args,
		Status:    StatusRunning,
		StartTime: now(),
	}
}

// Ended reports whether the keyword event has been closed.
func (k *Keyword) Ended() bool {
	return !k.EndTime.IsZero()
}

// StartChild creates and returns a new keyword event as a child of k.
// It returns nil if k has already ended; End handles nil receivers so that
// callers do not need to check.
func (k *Keyword) StartChild(name, owner string, args []string) *Keyword {
	if k.Ended() {
		return nil
	}
	c := NewKeyword(name, owner, args)
	k.Children = append(k.Children, c)
	return c
}

// Log appends a log message to the keyword. Logging to an ended keyword is
// a no-op; the event is immutable once closed.
func (k *Keyword) Log(level, text string) {
	if k == nil || k.Ended() {
		return
	}
	k.Messages = append(k.Messages, Message{Time: now(), Level: level, Text: text})
}

// End closes the keyword with the given status. Open child events are
// recursively ended with the same status first, so a child's span never
// extends past its parent's. End is idempotent and handles nil receivers
// returned by StartChild on an ended parent.
func (k *Keyword) End(st Status) {
	if k == nil || k.Ended() {
		return
	}
	for _, c := range k.Children {
		c.End(st)
	}
	k.Status = st
	k.EndTime = now()
}

// Duration returns the keyword's elapsed time. For a still-open keyword it
// is measured against the current time.
func (k *Keyword) Duration() time.Duration {
	if !k.Ended() {
		return now().Sub(k.StartTime)
	}
	return k.EndTime.Sub(k.StartTime)
}
