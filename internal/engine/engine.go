// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package engine defines the integration surface of the reporting engine.
//
// Native suites are parsed elsewhere; this package only sees the pre-parsed
// model and runs it. The parser and HTML report writers stay external.
package engine

import (
	"context"

	"github.com/kwbridge/kwbridge/internal/result"
)

// NativeKeyword is one pre-parsed keyword call in a native test body.
type NativeKeyword struct {
	Name     string
	Owner    string
	Args     []string
	Children []*NativeKeyword
}

// NativeTest is a pre-parsed test authored in the engine's own suite format.
type NativeTest struct {
	Name      string
	SuitePath string
	Tags      []string
	Keywords  []*NativeKeyword
}

// NativeExecutor runs a pre-parsed native test to completion and returns the
// finished test node. Implementations must not require an active hosted run;
// the caller suspends it for the duration of the call.
type NativeExecutor interface {
	Execute(ctx context.Context, t *NativeTest) (*result.Test, error)
}

// Parser turns native suite sources into the pre-parsed model.
type Parser interface {
	Parse(path string) ([]*NativeTest, error)
}
