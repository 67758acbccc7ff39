// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package keyword materializes arbitrary calls as keyword events.
//
// A materialized call executes while a keyword event is open on the active
// run: nested materialized calls produce nested events, which is the
// mechanism by which call stacks become log hierarchies. The materializer
// only observes calls; it never swallows or alters errors and panics, which
// propagate to the caller unchanged.
//
// Known limitation: failures native to the reporting engine that mark a
// keyword failed without surfacing as a Go error cannot be supported. Such a
// call cannot both appear failed in the log and be catchable by the caller,
// because the engine's own error handling special-cases exactly these calls
// to auto-continue. Use ordinary error-returning failures instead.
package keyword

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kwbridge/kwbridge/internal/result"
	"github.com/kwbridge/kwbridge/internal/run"
)

// maxArgLen bounds the rendered length of one argument in the log. The full
// value is usually huge and adds nothing at a glance.
const maxArgLen = 50

// Options customizes how a materialized call appears in the log.
type Options struct {
	// Owner appears to the left of the keyword name in the log. Defaults to
	// the wrapped function's package for Wrap/Patch, empty otherwise.
	Owner string
	// Args is the argument snapshot shown on the event.
	Args []string
	// Tags are attached to the keyword event.
	Tags []string
	// Doc is recorded as the event's first log message if non-empty.
	Doc string
	// LogReturn records a summary of the return value as a log entry on
	// normal completion.
	LogReturn bool
}

// outcome is the result of observing one materialized call. Every call
// produces exactly one outcome internally; the host language's error
// propagation is only the final surfacing step.
type outcome struct {
	status   result.Status
	reason   string      // failure reason, empty on pass
	panicVal interface{} // non-nil if the call panicked
	panicked bool
}

// observe runs fn and categorizes how it completed without letting a panic
// escape. The caller re-raises the panic after closing the event.
func observe(fn func() error) (oc outcome) {
	defer func() {
		if val := recover(); val != nil {
			oc = outcome{status: result.StatusFail, reason: fmt.Sprint("panic: ", val), panicVal: val, panicked: true}
		}
	}()
	if err := fn(); err != nil {
		return outcome{status: result.StatusFail, reason: err.Error()}
	}
	return outcome{status: result.StatusPass}
}

// Run executes fn while a keyword event named name is open on rn. On normal
// return the event is closed as passed; if fn returns an error or panics the
// event is closed as failed with the failure recorded as a log entry, and
// the error or panic propagates to the caller unchanged. rn may be nil, in
// which case fn runs as a plain call.
func Run(rn *run.Run, name string, opts *Options, fn func() error) error {
	if opts == nil {
		opts = &Options{}
	}
	if rn == nil {
		return fn()
	}
	k := rn.StartKeyword(name, opts.Owner, opts.Args)
	if k != nil {
		k.Tags = opts.Tags
		if opts.Doc != "" {
			k.Log(result.LevelDebug, opts.Doc)
		}
	}

	var callErr error
	oc := observe(func() error {
		callErr = fn()
		return callErr
	})

	if oc.status == result.StatusFail {
		k.Log(result.LevelFail, oc.reason)
	}
	rn.EndKeyword(k, oc.status)
	if oc.panicked {
		panic(oc.panicVal)
	}
	return callErr
}

// Handle is an explicitly opened keyword event, the block-scoped equivalent
// of Run for callers that cannot express the body as a closure.
type Handle struct {
	rn *run.Run
	k  *result.Keyword
}

// Open opens a keyword event named name on rn and returns a handle that
// must be closed with Close.
func Open(rn *run.Run, name string, opts *Options) *Handle {
	if opts == nil {
		opts = &Options{}
	}
	h := &Handle{rn: rn}
	if rn != nil {
		h.k = rn.StartKeyword(name, opts.Owner, opts.Args)
		if h.k != nil {
			h.k.Tags = opts.Tags
		}
	}
	return h
}

// Log attaches a log message to the open event.
func (h *Handle) Log(level, text string) {
	if h.k != nil {
		h.k.Log(level, text)
	}
}

// Close closes the event: passed if err is nil, failed otherwise with the
// error recorded. It returns err unchanged for convenient use in return
// statements.
func (h *Handle) Close(err error) error {
	if h.rn == nil || h.k == nil {
		return err
	}
	if err != nil {
		h.k.Log(result.LevelFail, err.Error())
		h.rn.EndKeyword(h.k, result.StatusFail)
	} else {
		h.rn.EndKeyword(h.k, result.StatusPass)
	}
	return err
}

// Wrap returns a function with the identical signature to fn whose
// invocations are recorded as keyword events on the process-wide active run.
// The signature is preserved so that introspection-based machinery (fixture
// injection, parametrization) keeps working on the wrapped value. fn must be
// a function; name may be empty to derive a display name from the function's
// own name.
//
// If the wrapped function's last return value is an error, a non-nil error
// closes the event as failed; the error is still returned unchanged.
func Wrap(fn interface{}, name string, opts *Options) interface{} {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		panic(fmt.Sprintf("keyword.Wrap: not a function: %T", fn))
	}
	if opts == nil {
		opts = &Options{}
	}
	if name == "" {
		name = deriveName(fv)
	}
	owner := opts.Owner
	if owner == "" {
		owner = derivePackage(fv)
	}
	return wrapValue(fv, name, owner, opts).Interface()
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func wrapValue(fv reflect.Value, name, owner string, opts *Options) reflect.Value {
	t := fv.Type()
	returnsErr := t.NumOut() > 0 && t.Out(t.NumOut()-1) == errType

	impl := func(args []reflect.Value) []reflect.Value {
		call := func() []reflect.Value {
			if t.IsVariadic() {
				return fv.CallSlice(args)
			}
			return fv.Call(args)
		}

		rn := run.Active()
		if rn == nil {
			return call()
		}

		k := rn.StartKeyword(name, owner, formatArgs(args))
		if k != nil {
			k.Tags = opts.Tags
		}

		var outs []reflect.Value
		oc := observe(func() error {
			outs = call()
			if returnsErr {
				if errv := outs[len(outs)-1]; !errv.IsNil() {
					return errv.Interface().(error)
				}
			}
			return nil
		})

		if oc.status == result.StatusFail {
			k.Log(result.LevelFail, oc.reason)
		} else if opts.LogReturn && len(outs) > 0 {
			k.Log(result.LevelInfo, "Return: "+formatValues(outs))
		}
		rn.EndKeyword(k, oc.status)
		if oc.panicked {
			panic(oc.panicVal)
		}
		return outs
	}

	return reflect.MakeFunc(t, impl)
}

// formatArgs renders call arguments for the event's argument snapshot,
// truncated so that huge values do not bloat the log.
func formatArgs(args []reflect.Value) []string {
	var out []string
	for _, a := range args {
		out = append(out, truncate(fmt.Sprint(a.Interface())))
	}
	return out
}

func formatValues(vals []reflect.Value) string {
	var parts []string
	for _, v := range vals {
		parts = append(parts, truncate(fmt.Sprint(v.Interface())))
	}
	return strings.Join(parts, ", ")
}

// truncate shortens s to at most maxArgLen bytes, cutting only on a rune
// boundary so that a multi-byte character is never split.
func truncate(s string) string {
	if len(s) <= maxArgLen {
		return s
	}
	cut := maxArgLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// deriveName turns a function's symbol name into a display name:
// "mypkg.doThing" and "mypkg.do_thing" both become "Do Thing".
func deriveName(fv reflect.Value) string {
	sym := runtime.FuncForPC(fv.Pointer()).Name()
	if i := strings.LastIndex(sym, "."); i >= 0 {
		sym = sym[i+1:]
	}
	sym = strings.TrimSuffix(sym, "-fm") // bound method wrappers
	return displayName(sym)
}

// derivePackage returns the short package name of the function's symbol.
func derivePackage(fv reflect.Value) string {
	sym := runtime.FuncForPC(fv.Pointer()).Name()
	i := strings.LastIndex(sym, ".")
	if i < 0 {
		return ""
	}
	pkg := sym[:i]
	if j := strings.LastIndex(pkg, "/"); j >= 0 {
		pkg = pkg[j+1:]
	}
	// Strip a method's receiver type.
	if j := strings.Index(pkg, ".("); j >= 0 {
		pkg = pkg[:j]
	}
	return pkg
}

// displayName converts snake_case or camelCase to space-separated words with
// initial capitals, matching how the reporting engine prints keyword names.
func displayName(s string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			cur[0] = unicode.ToUpper(cur[0])
			words = append(words, string(cur))
			cur = nil
		}
	}
	for _, r := range s {
		switch {
		case r == '_':
			flush()
		case unicode.IsUpper(r) && len(cur) > 0 && unicode.IsLower(cur[len(cur)-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return strings.Join(words, " ")
}
