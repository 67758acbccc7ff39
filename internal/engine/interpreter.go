// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine

import (
	"context"

	"github.com/kwbridge/kwbridge/errors"
	"github.com/kwbridge/kwbridge/internal/result"
)

// KeywordFunc implements one native keyword.
type KeywordFunc func(ctx context.Context, args []string) error

// Interpreter is a NativeExecutor backed by a registry of keyword
// implementations. Keywords are resolved by name; a missing implementation
// fails the keyword, and as with any keyword failure the test fails and its
// remaining keywords are not run.
type Interpreter struct {
	kws map[string]KeywordFunc
}

func NewInterpreter() *Interpreter {
	return &Interpreter{kws: make(map[string]KeywordFunc)}
}

// Register binds name to fn, replacing any previous binding.
func (in *Interpreter) Register(name string, fn KeywordFunc) {
	in.kws[name] = fn
}

// Execute runs t's keywords in order and returns the finished test node. The
// first failing keyword fails the test and skips the rest of its siblings.
func (in *Interpreter) Execute(ctx context.Context, t *NativeTest) (*result.Test, error) {
	if t == nil {
		return nil, errors.New("no native test to execute")
	}
	rt := result.NewTest(t.Name, t.SuitePath, result.OriginNative, t.Tags)
	st := result.StatusPass
	for _, nk := range t.Keywords {
		if err := in.runKeyword(ctx, rt, nil, nk); err != nil {
			rt.AddError(result.NewError(err.Error(), 0))
			st = result.StatusFail
			break
		}
		if err := ctx.Err(); err != nil {
			rt.AddError(result.NewError(err.Error(), 0))
			st = result.StatusFail
			break
		}
	}
	rt.Finish(st)
	return rt, nil
}

// runKeyword opens a keyword event under parent (or rt when parent is nil),
// runs the implementation and children, and closes it.
func (in *Interpreter) runKeyword(ctx context.Context, rt *result.Test, parent *result.Keyword, nk *NativeKeyword) error {
	var k *result.Keyword
	if parent != nil {
		k = parent.StartChild(nk.Name, nk.Owner, nk.Args)
	} else {
		k = rt.StartKeyword(nk.Name, nk.Owner, nk.Args)
	}

	err := in.call(ctx, nk)
	if err == nil {
		for _, child := range nk.Children {
			if err = in.runKeyword(ctx, rt, k, child); err != nil {
				break
			}
		}
	}

	if err != nil {
		k.Log(result.LevelFail, err.Error())
		k.End(result.StatusFail)
		return err
	}
	k.End(result.StatusPass)
	return nil
}

func (in *Interpreter) call(ctx context.Context, nk *NativeKeyword) error {
	fn, ok := in.kws[nk.Name]
	if !ok {
		if len(nk.Children) > 0 {
			// A composite keyword needs no implementation of its own.
			return nil
		}
		return errors.Errorf("no keyword named %q", nk.Name)
	}
	return fn(ctx, nk.Args)
}
