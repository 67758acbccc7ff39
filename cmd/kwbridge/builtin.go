// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"strings"
	"time"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/engine"
	"github.com/kwbridge/kwbridge/internal/logging"
)

// newBuiltinInterpreter returns an interpreter with the built-in keywords
// available to configured suites.
func newBuiltinInterpreter() *engine.Interpreter {
	in := engine.NewInterpreter()
	in.Register("Log", func(ctx context.Context, args []string) error {
		logging.Info(ctx, strings.Join(args, " "))
		return nil
	})
	in.Register("Sleep", func(ctx context.Context, args []string) error {
		if len(args) != 1 {
			return errors.New("Sleep takes exactly one duration argument")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return errors.Wrap(err, "bad duration")
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	in.Register("Fail", func(ctx context.Context, args []string) error {
		return errors.New(strings.Join(args, " "))
	})
	in.Register("No Operation", func(ctx context.Context, args []string) error {
		return nil
	})
	return in
}
