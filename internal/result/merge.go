// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package result

import (
	"strings"

	"github.com/kwbridge/kwbridge/errors"
)

// Merge combines finalized test records from multiple workers into a single
// suite tree, preserving each test's original suite path. The inputs are
// already-finalized records; merging is a pure read-only operation over them.
//
// Tests keep their within-worker order, and workers are visited in argument
// order. Merge fails if two records share a suite path and test name, since
// a duplicate means the final report would be unusable.
func Merge(workers ...[]*Test) (*Suite, error) {
	root := NewSuite("")
	byPath := map[string]*Suite{"": root}
	seen := make(map[string]struct{})

	for _, tests := range workers {
		for _, t := range tests {
			key := t.SuitePath + "\x00" + t.Name
			if _, ok := seen[key]; ok {
				return nil, errors.Errorf("duplicate test %q in suite %q", t.Name, t.SuitePath)
			}
			seen[key] = struct{}{}
			s := ensureSuite(byPath, t.SuitePath)
			s.Tests = append(s.Tests, t)
		}
	}
	return root, nil
}

// ensureSuite returns the suite node for path, creating it and any missing
// ancestors.
func ensureSuite(byPath map[string]*Suite, path string) *Suite {
	if s, ok := byPath[path]; ok {
		return s
	}
	parentPath := ""
	if i := strings.LastIndex(path, "/"); i >= 0 {
		parentPath = path[:i]
	}
	parent := ensureSuite(byPath, parentPath)
	s := NewSuite(path)
	parent.Suites = append(parent.Suites, s)
	byPath[path] = s
	return s
}
