// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import "slices"

// Selection is the ordered, duplicate-free list of selected ids plus a
// membership index over the same ids.
//
// # Invariant
//
// set holds exactly the ids in order, and order has no duplicates.
type Selection struct {
	order []int64
	set   map[int64]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{set: make(map[int64]struct{})}
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id int64) bool {
	_, ok := s.set[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	return len(s.order)
}

// Order returns a copy of the selection order.
func (s *Selection) Order() []int64 {
	return slices.Clone(s.order)
}

// Append selects id at the end of the order. It reports false and changes
// nothing if id was already selected.
func (s *Selection) Append(id int64) bool {
	if s.Contains(id) {
		return false
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Remove unselects id, keeping the relative order of the remaining ids.
// It reports false if id was not selected.
func (s *Selection) Remove(id int64) bool {
	if !s.Contains(id) {
		return false
	}
	delete(s.set, id)
	if idx := slices.Index(s.order, id); idx >= 0 {
		s.order = slices.Delete(s.order, idx, idx+1)
	}
	return true
}

// Replace installs a new order and rebuilds the set from it. Repeated ids
// keep their first position only.
func (s *Selection) Replace(order []int64) {
	set := make(map[int64]struct{}, len(order))
	canonical := make([]int64, 0, len(order))
	for _, id := range order {
		if _, seen := set[id]; seen {
			continue
		}
		set[id] = struct{}{}
		canonical = append(canonical, id)
	}
	s.order = canonical
	s.set = set
}

// Each calls fn for every selected id in selection order.
func (s *Selection) Each(fn func(id int64)) {
	for _, id := range s.order {
		fn(id)
	}
}
