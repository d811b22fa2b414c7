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

// ReorderStage holds at most one pending full reorder request.
type ReorderStage struct {
	pending []int64
	staged  bool
}

// Stage replaces any previously staged reorder with a copy of ids.
func (r *ReorderStage) Stage(ids []int64) {
	r.pending = slices.Clone(ids)
	r.staged = true
}

// Pending reports whether a reorder is staged.
func (r *ReorderStage) Pending() bool {
	return r.staged
}

// Take returns the staged reorder and clears the stage.
func (r *ReorderStage) Take() ([]int64, bool) {
	if !r.staged {
		return nil, false
	}
	ids := r.pending
	r.pending = nil
	r.staged = false
	return ids, true
}

// applyReorder moves subset to the front of the selection.
//
// Every other selected id keeps its relative order behind subset. Ids in
// subset that were not selected become selected, and repeated ids keep only
// their first position.
func applyReorder(sel *Selection, subset []int64) {
	moved := make(map[int64]struct{}, len(subset))
	for _, id := range subset {
		moved[id] = struct{}{}
	}

	next := make([]int64, 0, len(subset)+sel.Len())
	next = append(next, subset...)
	sel.Each(func(id int64) {
		if _, ok := moved[id]; !ok {
			next = append(next, id)
		}
	})
	sel.Replace(next)
}
