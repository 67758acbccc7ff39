// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package host models the host test framework's side of the bridge: the
// session, its collection tree, and the items it yields in collection order.
package host

import (
	"context"

	"github.com/kwbridge/kwbridge/internal/engine"
	"github.com/kwbridge/kwbridge/internal/result"
)

// Session is one host framework invocation. Items appear in collection
// order; Units lists the collection units (directories, modules) in
// traversal order.
type Session struct {
	WorkerID string
	Units    []string
	Items    []*Item
}

// Phase is one stage of a hosted item's execution.
type Phase func(ctx context.Context) error

// Item is one collected test item.
type Item struct {
	// Name is the item's display name.
	Name string
	// Unit is the slash-separated collection path of the owning unit.
	Unit string
	// Markers are the item's host-framework markers in application order.
	Markers []Marker
	// Origin selects the execution strategy.
	Origin result.Origin

	// Setup, Call and Teardown are the hosted execution phases. Any of them
	// may be nil. They are ignored for native items.
	Setup    Phase
	Call     Phase
	Teardown Phase

	// Native is the pre-parsed model for native items.
	Native *engine.NativeTest
}
