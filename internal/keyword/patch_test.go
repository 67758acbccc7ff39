// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package keyword

import (
	"testing"

	"github.com/kwbridge/kwbridge/internal/result"
	"github.com/kwbridge/kwbridge/internal/run"
)

type fakeClient struct {
	Fetch   func(url string) (string, error)
	Timeout int
}

func TestPatch(t *testing.T) {
	rn, tst := newTestRun(t)
	if err := run.Activate(rn); err != nil {
		t.Fatal("Activate failed: ", err)
	}
	defer run.Deactivate(rn)

	calls := 0
	c := &fakeClient{Fetch: func(url string) (string, error) {
		calls++
		return "body of " + url, nil
	}}

	if err := Patch(c, "Fetch", nil); err != nil {
		t.Fatal("Patch failed: ", err)
	}
	defer Unpatch(c, "Fetch")

	got, err := c.Fetch("http://example.com")
	if err != nil {
		t.Fatal("Fetch failed: ", err)
	}
	if want := "body of http://example.com"; got != want {
		t.Errorf("Fetch returned %q; want %q", got, want)
	}
	if calls != 1 {
		t.Errorf("Original called %d times; want 1", calls)
	}

	if len(tst.Keywords) != 1 {
		t.Fatalf("Got %d keywords; want 1", len(tst.Keywords))
	}
	k := tst.Keywords[0]
	if k.Name != "Fetch" {
		t.Errorf("Keyword name = %q; want Fetch", k.Name)
	}
	if k.Owner != "fakeClient" {
		t.Errorf("Keyword owner = %q; want fakeClient", k.Owner)
	}
	if k.Status != result.StatusPass {
		t.Errorf("Keyword status = %v; want PASS", k.Status)
	}
}

func TestPatchIdempotent(t *testing.T) {
	rn, tst := newTestRun(t)
	if err := run.Activate(rn); err != nil {
		t.Fatal("Activate failed: ", err)
	}
	defer run.Deactivate(rn)

	c := &fakeClient{Fetch: func(url string) (string, error) { return "", nil }}
	if err := Patch(c, "Fetch", nil); err != nil {
		t.Fatal("First Patch failed: ", err)
	}
	defer Unpatch(c, "Fetch")
	if err := Patch(c, "Fetch", nil); err != nil {
		t.Fatal("Second Patch failed: ", err)
	}

	if _, err := c.Fetch("x"); err != nil {
		t.Fatal("Fetch failed: ", err)
	}
	if len(tst.Keywords) != 1 {
		t.Errorf("One call produced %d keyword events; want 1", len(tst.Keywords))
	}
}

func TestUnpatchRestoresOriginal(t *testing.T) {
	rn, tst := newTestRun(t)
	if err := run.Activate(rn); err != nil {
		t.Fatal("Activate failed: ", err)
	}
	defer run.Deactivate(rn)

	orig := func(url string) (string, error) { return "orig", nil }
	c := &fakeClient{Fetch: orig}
	if err := Patch(c, "Fetch", nil); err != nil {
		t.Fatal("Patch failed: ", err)
	}
	if err := Unpatch(c, "Fetch"); err != nil {
		t.Fatal("Unpatch failed: ", err)
	}

	if got, _ := c.Fetch("x"); got != "orig" {
		t.Errorf("Fetch after Unpatch returned %q; want orig", got)
	}
	if len(tst.Keywords) != 0 {
		t.Errorf("Call after Unpatch produced %d keyword events; want 0", len(tst.Keywords))
	}

	if err := Unpatch(c, "Fetch"); err == nil {
		t.Error("Unpatch of an unpatched attribute succeeded; want error")
	}
}

func TestPatchErrors(t *testing.T) {
	c := &fakeClient{Fetch: func(url string) (string, error) { return "", nil }}

	if err := Patch(c, "NoSuchField", nil); err == nil {
		t.Error("Patch of a missing attribute succeeded; want error")
	}
	if err := Patch(c, "Timeout", nil); err == nil {
		t.Error("Patch of a non-function attribute succeeded; want error")
	}
	if err := Patch(*c, "Fetch", nil); err == nil {
		t.Error("Patch of a non-pointer target succeeded; want error")
	}
	if err := Patch(&fakeClient{}, "Fetch", nil); err == nil {
		t.Error("Patch of a nil function attribute succeeded; want error")
	}
}
