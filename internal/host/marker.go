// Copyright 2024 The kwbridge Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package host

// Marker is a host-framework marker: a name plus an optional value.
type Marker struct {
	Name  string
	Value string
}

// Reserved marker names. These map to status transitions instead of tags.
const (
	MarkerSkip  = "skip"
	MarkerXFail = "xfail"
)

// Tag renders the marker as a reporting-engine tag.
func (m Marker) Tag() string {
	if m.Value == "" {
		return m.Name
	}
	return m.Name + ":" + m.Value
}

// Disposition is what the reserved markers decided about an item before it
// runs.
type Disposition struct {
	// Skip marks the item to be reported skipped without running.
	Skip bool
	// SkipReason is the skip marker's value, if any.
	SkipReason string
	// XFail marks the item as expected to fail.
	XFail bool
	// XFailReason is the xfail marker's value, if any.
	XFailReason string
}

// DeriveTags translates markers into tags. Every non-reserved marker
// produces exactly one tag, in application order; reserved markers produce
// none and are returned as the item's Disposition instead.
func DeriveTags(markers []Marker) ([]string, Disposition) {
	var tags []string
	var d Disposition
	for _, m := range markers {
		switch m.Name {
		case MarkerSkip:
			d.Skip = true
			d.SkipReason = m.Value
		case MarkerXFail:
			d.XFail = true
			d.XFailReason = m.Value
		default:
			tags = append(tags, m.Tag())
		}
	}
	return tags, d
}
