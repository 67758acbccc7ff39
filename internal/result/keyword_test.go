// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package result

import (
	"testing"
	"time"
)

// fakeClock can be used to simulate the passage of time in tests.
type fakeClock struct{ sec int64 }

// install installs the fake clock as the function used to get the current
// time in this package.
func (c *fakeClock) install() {
	now = c.now
}

// uninstall uninstalls the fake clock.
func (c *fakeClock) uninstall() {
	now = time.Now
}

// now returns a time based on c.sec and increments it to simulate a second passing.
func (c *fakeClock) now() time.Time {
	t := time.Unix(c.sec, 0)
	c.sec++
	return t
}

func TestKeywordNesting(t *testing.T) {
	clk := &fakeClock{}
	clk.install()
	defer clk.uninstall()

	a := NewKeyword("a", "lib", nil)
	b := a.StartChild("b", "lib", []string{"arg"})
	b.End(StatusPass)
	a.End(StatusPass)

	if len(a.Children) != 1 || a.Children[0] != b {
		t.Fatalf("a has %d children; want exactly [b]", len(a.Children))
	}
	if b.StartTime.Before(a.StartTime) || b.EndTime.After(a.EndTime) {
		t.Errorf("Child span [%v, %v] not contained in parent span [%v, %v]",
			b.StartTime, b.EndTime, a.StartTime, a.EndTime)
	}
	if a.EndTime.Before(a.StartTime) {
		t.Errorf("End time %v precedes start time %v", a.EndTime, a.StartTime)
	}
}

func TestKeywordImmutableOnceEnded(t *testing.T) {
	k := NewKeyword("k", "", nil)
	k.End(StatusPass)

	if c := k.StartChild("c", "", nil); c != nil {
		t.Error("StartChild on an ended keyword returned non-nil")
	}
	k.Log(LevelInfo, "late")
	if len(k.Messages) != 0 {
		t.Error("Log on an ended keyword appended a message")
	}

	end := k.EndTime
	k.End(StatusFail)
	if k.Status != StatusPass || !k.EndTime.Equal(end) {
		t.Error("Second End mutated an ended keyword")
	}
}

func TestKeywordEndClosesOpenChildren(t *testing.T) {
	a := NewKeyword("a", "", nil)
	b := a.StartChild("b", "", nil)
	a.End(StatusFail)

	if !b.Ended() {
		t.Fatal("Ending the parent did not end the open child")
	}
	if b.Status != StatusFail {
		t.Errorf("Open child ended with status %v; want %v", b.Status, StatusFail)
	}
}

func TestKeywordNilReceivers(t *testing.T) {
	var k *Keyword
	// Both must be no-ops on the nil keyword StartChild returns after End.
	k.End(StatusPass)
	k.Log(LevelInfo, "msg")
}
