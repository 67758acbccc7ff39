// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package result

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteJUnitXMLResults(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	pass := NewTest("pass", "pkg", OriginHosted, nil)
	pass.Status = StatusPass
	pass.Start = start
	pass.End = start.Add(2 * time.Second)

	fail := NewTest("fail", "pkg", OriginHosted, nil)
	fail.AddError(Error{Time: start, Reason: "assertion failed", File: "foo.go", Line: 42})
	fail.Start = start
	fail.End = start.Add(time.Second)

	skip := NewTest("skip", "pkg", OriginHosted, nil)
	skip.Status = StatusSkip
	skip.SkipReason = "not supported"
	skip.Start = start
	skip.End = start

	path := filepath.Join(t.TempDir(), JUnitXMLFilename)
	if err := WriteJUnitXMLResults(path, []*Test{pass, fail, skip}); err != nil {
		t.Fatal("WriteJUnitXMLResults failed: ", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	for _, want := range []string{
		`tests="3"`,
		`failures="1"`,
		`skipped="1"`,
		`name="pkg/pass"`,
		`message="assertion failed"`,
		`message="not supported"`,
		`time="2.0"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output does not contain %q:\n%s", want, out)
		}
	}
}
