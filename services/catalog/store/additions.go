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

// AdditionStage accumulates ids requested for catalog insertion. Queuing
// the same id twice before a flush stages it once.
type AdditionStage struct {
	ids   map[int64]struct{}
	order []int64
}

// NewAdditionStage creates an empty stage.
func NewAdditionStage() *AdditionStage {
	return &AdditionStage{ids: make(map[int64]struct{})}
}

// Add stages id. It reports false if id was already staged.
func (a *AdditionStage) Add(id int64) bool {
	if _, ok := a.ids[id]; ok {
		return false
	}
	a.ids[id] = struct{}{}
	a.order = append(a.order, id)
	return true
}

// Contains reports whether id is staged.
func (a *AdditionStage) Contains(id int64) bool {
	_, ok := a.ids[id]
	return ok
}

// Len returns the number of staged ids.
func (a *AdditionStage) Len() int {
	return len(a.order)
}

// Drain returns the staged ids in first-queued order and empties the stage.
func (a *AdditionStage) Drain() []int64 {
	if len(a.order) == 0 {
		return nil
	}
	ids := a.order
	a.ids = make(map[int64]struct{})
	a.order = nil
	return ids
}
