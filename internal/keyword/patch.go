// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package keyword

import (
	"reflect"
	"sync"

	"github.com/kwbridge/kwbridge/errors"
)

// The patch table records every instrumented (owner, name) pair so that
// patching is idempotent and reversible. It is an explicit registration API
// applied at configuration time, not implicit global rewriting, which keeps
// the instrumentation auditable.

type patchKey struct {
	owner interface{}
	name  string
}

var (
	patchMu sync.Mutex
	patched = make(map[patchKey]reflect.Value) // original values, for Unpatch
)

// Patch replaces the func-typed field name of the struct pointed to by
// container with a Wrap-ped version of its current value mutating the
// target in place. The wrapped version preserves the original signature.
//
// Patching an already-patched attribute is a no-op. A missing or
// non-function attribute is an error; such a failure indicates a programming
// error in user configuration and should be treated as fatal at setup time.
func Patch(container interface{}, name string, opts *Options) error {
	patchMu.Lock()
	defer patchMu.Unlock()

	f, err := fieldOf(container, name)
	if err != nil {
		return err
	}
	key := patchKey{container, name}
	if _, ok := patched[key]; ok {
		return nil
	}

	orig := reflect.ValueOf(f.Interface())
	owner := opts.ownerOr(reflect.TypeOf(container).Elem().Name())
	f.Set(wrapValue(orig, displayName(name), owner, optsOrEmpty(opts)))
	patched[key] = orig
	return nil
}

// Unpatch restores the original value of a previously patched attribute.
// Unpatching an attribute that was never patched is an error.
func Unpatch(container interface{}, name string) error {
	patchMu.Lock()
	defer patchMu.Unlock()

	f, err := fieldOf(container, name)
	if err != nil {
		return err
	}
	key := patchKey{container, name}
	orig, ok := patched[key]
	if !ok {
		return errors.Errorf("attribute %q was not patched", name)
	}
	f.Set(orig)
	delete(patched, key)
	return nil
}

// fieldOf resolves the settable func-typed field name on the struct pointed
// to by container.
func fieldOf(container interface{}, name string) (reflect.Value, error) {
	v := reflect.ValueOf(container)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, errors.Errorf("patch target must be a pointer to struct, got %T", container)
	}
	f := v.Elem().FieldByName(name)
	if !f.IsValid() {
		return reflect.Value{}, errors.Errorf("no attribute %q on %T", name, container)
	}
	if f.Kind() != reflect.Func {
		return reflect.Value{}, errors.Errorf("attribute %q on %T is %s, not a function", name, container, f.Kind())
	}
	if !f.CanSet() {
		return reflect.Value{}, errors.Errorf("attribute %q on %T is not settable", name, container)
	}
	if f.IsNil() {
		return reflect.Value{}, errors.Errorf("attribute %q on %T is nil", name, container)
	}
	return f, nil
}

func (o *Options) ownerOr(def string) string {
	if o != nil && o.Owner != "" {
		return o.Owner
	}
	return def
}

func optsOrEmpty(o *Options) *Options {
	if o == nil {
		return &Options{}
	}
	return o
}
