// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the kwbridge executable, used to run native suites
// and merge parallel worker outputs.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/kwbridge/kwbridge/internal/logging"
)

// Version is the version info of this command. It is filled in during build.
var Version = "<unknown>"

// doMain implements the main body of the program. It's a separate function
// so that its deferred functions run before os.Exit makes the program exit
// immediately.
func doMain() int {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&mergeCmd{}, "")

	version := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "use verbose logging")
	logTime := flag.Bool("logtime", true, "include date/time headers in logs")
	flag.Parse()

	if *version {
		os.Stdout.WriteString("kwbridge version " + Version + "\n")
		return 0
	}

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	// A MultiLogger so that subcommands can add per-run log files.
	logger := logging.NewMultiLogger(
		logging.NewSinkLogger(level, *logTime, logging.NewWriterSink(os.Stderr)))
	ctx := logging.AttachLogger(context.Background(), logger)

	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}
