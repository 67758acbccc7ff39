// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMultiLogger(t *testing.T) {
	var got1, got2 []string
	l1 := NewSinkLogger(LevelDebug, false, NewFuncSink(func(msg string) { got1 = append(got1, msg) }))
	l2 := NewSinkLogger(LevelInfo, false, NewFuncSink(func(msg string) { got2 = append(got2, msg) }))

	ml := NewMultiLogger(l1)
	ml.Log(LevelDebug, time.Now(), "a")
	ml.AddLogger(l2)
	ml.Log(LevelInfo, time.Now(), "b")
	ml.RemoveLogger(l1)
	ml.Log(LevelInfo, time.Now(), "c")

	if diff := cmp.Diff(got1, []string{"a", "b"}); diff != "" {
		t.Errorf("First logger got unexpected logs (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(got2, []string{"b", "c"}); diff != "" {
		t.Errorf("Second logger got unexpected logs (-got +want):\n%s", diff)
	}
}

func TestSinkLoggerLevel(t *testing.T) {
	var got []string
	l := NewSinkLogger(LevelInfo, false, NewFuncSink(func(msg string) { got = append(got, msg) }))

	l.Log(LevelDebug, time.Now(), "debug")
	l.Log(LevelInfo, time.Now(), "info")

	if diff := cmp.Diff(got, []string{"info"}); diff != "" {
		t.Errorf("Got unexpected logs (-got +want):\n%s", diff)
	}
}

func TestSinkLoggerTimestamp(t *testing.T) {
	var b bytes.Buffer
	l := NewSinkLogger(LevelInfo, true, NewWriterSink(&b))

	ts := time.Date(2024, 3, 1, 12, 34, 56, 789000000, time.UTC)
	l.Log(LevelInfo, ts, "hello")

	const want = "2024-03-01T12:34:56.789000Z hello\n"
	if got := b.String(); got != want {
		t.Errorf("Got %q; want %q", got, want)
	}
}

func TestContext(t *testing.T) {
	var got []string
	logger := NewSinkLogger(LevelDebug, false, NewFuncSink(func(msg string) { got = append(got, msg) }))

	ctx := context.Background()
	if HasLogger(ctx) {
		t.Error("HasLogger = true for a plain context")
	}
	Info(ctx, "dropped") // no logger attached; must not panic

	ctx = AttachLogger(ctx, logger)
	if !HasLogger(ctx) {
		t.Error("HasLogger = false after AttachLogger")
	}
	Info(ctx, "a")
	Infof(ctx, "b%d", 1)
	Debug(ctx, "c")
	Debugf(ctx, "d%d", 2)

	if diff := cmp.Diff(got, []string{"a", "b1", "c", "d2"}); diff != "" {
		t.Errorf("Got unexpected logs (-got +want):\n%s", diff)
	}
}
