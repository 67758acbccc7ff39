// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package diagnose collects process state for crash reports. A worker that
// terminates abnormally attaches a snapshot to the force-closed nodes so the
// combined report explains what the process was doing.
package diagnose

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// maxStackSize bounds the goroutine dump. Larger dumps are truncated.
const maxStackSize = 512 * 1024

// Snapshot returns a human-readable description of the current process:
// memory and CPU usage, resource limits actually hit, and a full goroutine
// dump. It never fails; unavailable sections are noted inline.
func Snapshot() string {
	var b strings.Builder
	writeProcessStats(&b)
	writeRusage(&b)
	writeGoroutines(&b)
	return b.String()
}

// WriteReport writes the snapshot to w, prefixed with a reason line.
func WriteReport(w io.Writer, reason string) error {
	_, err := fmt.Fprintf(w, "Abnormal termination: %s\n\n%s", reason, Snapshot())
	return err
}

func writeProcessStats(b *strings.Builder) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		fmt.Fprintf(b, "Process stats unavailable: %v\n", err)
		return
	}
	if mi, err := proc.MemoryInfo(); err == nil {
		fmt.Fprintf(b, "Memory: rss=%d vms=%d\n", mi.RSS, mi.VMS)
	}
	if pct, err := proc.CPUPercent(); err == nil {
		fmt.Fprintf(b, "CPU: %.1f%%\n", pct)
	}
	if n, err := proc.NumThreads(); err == nil {
		fmt.Fprintf(b, "Threads: %d\n", n)
	}
	if fds, err := proc.NumFDs(); err == nil {
		fmt.Fprintf(b, "Open FDs: %d\n", fds)
	}
}

func writeRusage(b *strings.Builder) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		fmt.Fprintf(b, "Rusage unavailable: %v\n", err)
		return
	}
	fmt.Fprintf(b, "Rusage: utime=%d.%06ds stime=%d.%06ds maxrss=%dkB\n",
		ru.Utime.Sec, ru.Utime.Usec, ru.Stime.Sec, ru.Stime.Usec, ru.Maxrss)
}

func writeGoroutines(b *strings.Builder) {
	buf := make([]byte, maxStackSize)
	n := runtime.Stack(buf, true)
	fmt.Fprintf(b, "\nGoroutines (%d):\n%s\n", runtime.NumGoroutine(), buf[:n])
	if n == len(buf) {
		b.WriteString("(goroutine dump truncated)\n")
	}
}
