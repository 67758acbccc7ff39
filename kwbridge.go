// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package kwbridge bridges a host test framework with a keyword-based
// reporting engine: host lifecycle events build the engine's suite tree,
// and instrumented calls appear as keyword entries in its structured log
// without changing the host's pass/fail semantics.
//
// Known limitation: failures native to the reporting engine that mark a
// keyword failed without surfacing as a Go error cannot be both logged
// failed and caught by the caller. Use ordinary error-returning failures.
package kwbridge

import (
	"reflect"
	"sync"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/assertion"
	"github.com/kwbridge/kwbridge/internal/bridge"
	"github.com/kwbridge/kwbridge/internal/engine"
	"github.com/kwbridge/kwbridge/internal/host"
	"github.com/kwbridge/kwbridge/internal/keyword"
	"github.com/kwbridge/kwbridge/internal/result"
	"github.com/kwbridge/kwbridge/internal/run"
)

// Aliases exposing the integration surface without reaching into internal
// packages.
type (
	Suite        = result.Suite
	Test         = result.Test
	KeywordEvent = result.Keyword
	Listener     = result.Listener

	KeywordOptions = keyword.Options
	KeywordHandle  = keyword.Handle
	AssertOptions  = assertion.Options

	Coordinator = bridge.Coordinator
	Options     = bridge.Options
	Hook        = bridge.Hook

	Session = host.Session
	Item    = host.Item
	Marker  = host.Marker

	NativeExecutor = engine.NativeExecutor
	NativeTest     = engine.NativeTest
	NativeKeyword  = engine.NativeKeyword
)

// NewCoordinator returns a coordinator for one session.
func NewCoordinator(opts Options, exec NativeExecutor) *Coordinator {
	return bridge.NewCoordinator(opts, exec)
}

// NewInterpreter returns a registry-backed native executor.
func NewInterpreter() *engine.Interpreter {
	return engine.NewInterpreter()
}

// Keyword returns fn wrapped so that each invocation is recorded as a
// keyword event on the active run. The returned value has fn's exact
// signature. name may be empty to derive a display name from fn's own name.
func Keyword(fn interface{}, name string, opts *KeywordOptions) interface{} {
	return keyword.Wrap(fn, name, opts)
}

// OpenKeyword opens a keyword event on the active run and returns a handle
// that must be closed with Close. It is the block-scoped equivalent of
// Keyword for call sites that cannot express the body as a function value.
// Without an active run the handle's methods are no-ops.
func OpenKeyword(name string, opts *KeywordOptions) *KeywordHandle {
	return keyword.Open(run.Active(), name, opts)
}

// Patch replaces the func-typed field name of the struct pointed to by
// container with a Keyword-wrapped version, in place. Patching the same
// attribute twice is a no-op; a missing attribute is an error and should be
// treated as fatal at setup time.
func Patch(container interface{}, name string, opts *KeywordOptions) error {
	return keyword.Patch(container, name, opts)
}

// Unpatch restores a previously patched attribute.
func Unpatch(container interface{}, name string) error {
	return keyword.Unpatch(container, name)
}

var (
	factoryMu sync.Mutex
	factories = make(map[uintptr]result.Listener)
)

// RegisterListener registers a result listener with the active run. l is
// either a Listener or a func() Listener factory; a factory is invoked at
// most once per process, so registering the same factory twice registers one
// listener. Duplicate registrations are dropped by identity.
func RegisterListener(l interface{}) error {
	rn := run.Active()
	if rn == nil {
		return errors.New("no active run")
	}
	switch v := l.(type) {
	case result.Listener:
		rn.RegisterListener(v)
	case func() result.Listener:
		factoryMu.Lock()
		key := reflect.ValueOf(v).Pointer()
		inst, ok := factories[key]
		if !ok {
			inst = v()
			factories[key] = inst
		}
		factoryMu.Unlock()
		rn.RegisterListener(inst)
	default:
		return errors.Errorf("listener must be a Listener or a factory, got %T", l)
	}
	return nil
}

// SetSuiteVariables declares named values visible to the reporting engine's
// variable resolution for the suite at suitePath. Names carry the scalar
// prefix "$"; scalar variables may hold composite values. Each suite path
// may be declared once.
func SetSuiteVariables(suitePath string, vars map[string]interface{}) error {
	rn := run.Active()
	if rn == nil {
		return errors.New("no active run")
	}
	return rn.SetSuiteVariables(suitePath, vars)
}

// Assert records ok as an assertion event on the active run and returns an
// error when ok is false. A failing assertion is always recorded; a passing
// one only when pass logging is enabled and not hidden.
func Assert(ok bool, expr string, opts *AssertOptions) error {
	return assertion.Check(run.Active(), ok, expr, opts)
}

// Assertf is Assert with a formatted fail message.
func Assertf(ok bool, expr, format string, args ...interface{}) error {
	return assertion.Checkf(run.Active(), ok, expr, format, args...)
}

// HideAssertsFromLog runs fn with passing assertions hidden from the log.
// Failing assertions within fn are still recorded.
func HideAssertsFromLog(fn func()) {
	assertion.HideScope(run.Active(), fn)
}
