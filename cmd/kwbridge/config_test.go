// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kwbridge/kwbridge/internal/result"
)

const sampleConfig = `
worker_id: w0
log_passing_asserts: true
heartbeat_interval: 5s
suites:
  - path: suites/auth
    tests:
      - name: login
        markers:
          - name: smoke
        keywords:
          - name: Log
            args: [hello]
      - name: broken
        keywords:
          - name: Fail
            args: [known bug]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal("WriteFile failed: ", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal("loadConfig failed: ", err)
	}
	if cfg.WorkerID != "w0" || !cfg.LogPassingAsserts {
		t.Errorf("Config = %+v", cfg)
	}
	hb, err := cfg.heartbeat()
	if err != nil {
		t.Fatal("heartbeat failed: ", err)
	}
	if hb != 5*time.Second {
		t.Errorf("Heartbeat = %v; want 5s", hb)
	}

	s := cfg.session()
	if len(s.Units) != 1 || s.Units[0] != "suites/auth" {
		t.Errorf("Units = %v", s.Units)
	}
	if len(s.Items) != 2 {
		t.Fatalf("Got %d items; want 2", len(s.Items))
	}
	it := s.Items[0]
	if it.Origin != result.OriginNative || it.Native == nil {
		t.Error("Configured test is not a native item")
	}
	if len(it.Markers) != 1 || it.Markers[0].Name != "smoke" {
		t.Errorf("Markers = %v", it.Markers)
	}
	if len(it.Native.Keywords) != 1 || it.Native.Keywords[0].Name != "Log" {
		t.Errorf("Keywords = %+v", it.Native.Keywords)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	if _, err := loadConfig(writeConfig(t, "bogus_field: 1\n")); err == nil {
		t.Error("loadConfig accepted an unknown field")
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("loadConfig succeeded on a missing file")
	}
}

func TestBadHeartbeat(t *testing.T) {
	cfg := &config{HeartbeatInterval: "soon"}
	if _, err := cfg.heartbeat(); err == nil {
		t.Error("heartbeat accepted a malformed interval")
	}
}
