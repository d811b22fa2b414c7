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

import "sync"

// =============================================================================
// Flush Results
// =============================================================================

// SelectionFlushResult summarises one selection flush pass.
//
// # Fields
//
//   - IntentsApplied: Distinct ids drained from the coalescer.
//   - Selected: Ids appended to the selection.
//   - Unselected: Ids removed from the selection.
//   - Reordered: True if a staged reorder was applied.
//   - ReorderLength: Length of the applied reorder request, verbatim.
//   - SelectionSize: Selection size after the pass.
type SelectionFlushResult struct {
	IntentsApplied int
	Selected       int
	Unselected     int
	Reordered      bool
	ReorderLength  int
	SelectionSize  int
}

// NoOps returns how many drained intents left the selection unchanged.
func (r SelectionFlushResult) NoOps() int {
	return r.IntentsApplied - r.Selected - r.Unselected
}

// DidWork reports whether either staging area was non-empty.
func (r SelectionFlushResult) DidWork() bool {
	return r.IntentsApplied > 0 || r.Reordered
}

// AdditionFlushResult summarises one catalog addition pass.
type AdditionFlushResult struct {
	Staged      int
	Inserted    int
	Skipped     int
	CatalogSize int
}

// DidWork reports whether anything was staged.
func (r AdditionFlushResult) DidWork() bool {
	return r.Staged > 0
}

// =============================================================================
// Store
// =============================================================================

// Store is the single shared-resource domain of the service: catalog,
// selection and the three staging areas behind one mutex.
//
// # Description
//
// Queue* methods record writes and return immediately. FlushSelection and
// FlushAdditions apply them. List* methods read the applied state.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Each call holds the store lock
// for its full duration; a flush never yields mid-pass.
type Store struct {
	mu        sync.Mutex
	catalog   *Catalog
	selection *Selection
	intents   *Coalescer
	reorder   ReorderStage
	additions *AdditionStage
}

// NewStore creates a store whose catalog holds ids 1..initialSize.
//
// # Inputs
//
//   - initialSize: Number of items to populate. Values < 1 give an empty
//     catalog.
//
// # Outputs
//
//   - *Store: Ready for use, nothing selected, nothing staged.
//
// # Examples
//
//	s := store.NewStore(1_000_000)
//	s.QueueSelect(42)
//	s.FlushSelection()
func NewStore(initialSize int) *Store {
	catalog := NewCatalog(initialSize)
	catalog.Populate(initialSize)
	return &Store{
		catalog:   catalog,
		selection: NewSelection(),
		intents:   NewCoalescer(),
		additions: NewAdditionStage(),
	}
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// QueueSelect records a select intent for id.
func (s *Store) QueueSelect(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents.Queue(id, IntentSelect)
}

// QueueUnselect records an unselect intent for id.
func (s *Store) QueueUnselect(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents.Queue(id, IntentUnselect)
}

// QueueReorder stages ids as the pending reorder, replacing any earlier one.
// The ids are neither filtered nor deduplicated at this point.
func (s *Store) QueueReorder(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reorder.Stage(ids)
}

// QueueAddition stages id for catalog insertion. Callers are expected to
// have checked that id is not in the catalog; see QueueAdditionIfAbsent.
func (s *Store) QueueAddition(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.additions.Add(id)
}

// QueueAdditionIfAbsent stages id unless it is already in the catalog.
//
// # Description
//
// Combines the existence check and the enqueue under one lock acquisition,
// so an addition flush cannot run between them.
//
// # Outputs
//
//   - bool: False if id is already in the catalog and nothing was staged.
//     Re-queuing an id that is staged but not yet inserted returns true.
func (s *Store) QueueAdditionIfAbsent(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog.Contains(id) {
		return false
	}
	s.additions.Add(id)
	return true
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// Contains reports whether id is in the catalog.
func (s *Store) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Contains(id)
}

// ListUnselected pages through catalog items that are not selected, in
// catalog order, keeping ids whose decimal form contains filter.
func (s *Store) ListUnselected(filter string, offset, limit int) Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := newPager(filter, offset, limit)
	s.catalog.Each(func(id int64) {
		if s.selection.Contains(id) {
			return
		}
		p.offer(id)
	})
	return p.page()
}

// ListSelected pages through the selection in selection order, keeping ids
// whose decimal form contains filter. Selected ids that are not in the
// catalog are skipped.
func (s *Store) ListSelected(filter string, offset, limit int) Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := newPager(filter, offset, limit)
	s.selection.Each(func(id int64) {
		if !s.catalog.Contains(id) {
			return
		}
		p.offer(id)
	})
	return p.page()
}

// SelectedIDs returns a copy of the selection order.
func (s *Store) SelectedIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Order()
}

// Stats returns a consistent snapshot of sizes.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		CatalogSize:      s.catalog.Len(),
		SelectionSize:    s.selection.Len(),
		PendingIntents:   s.intents.Len(),
		PendingReorder:   s.reorder.Pending(),
		PendingAdditions: s.additions.Len(),
	}
}

// -----------------------------------------------------------------------------
// Flushes
// -----------------------------------------------------------------------------

// FlushSelection applies the coalesced intents, then the staged reorder.
//
// # Description
//
// Intents are applied in first-queued order: select appends an unselected
// id, unselect removes a selected id, everything else is a no-op. The
// coalescer is emptied even when nothing changed. A staged reorder is then
// applied against the updated selection, so it sees the intents queued in
// the same interval.
//
// # Outputs
//
//   - SelectionFlushResult: Counts of what the pass did.
func (s *Store) FlushSelection() SelectionFlushResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result SelectionFlushResult
	for _, queued := range s.intents.Drain() {
		result.IntentsApplied++
		switch queued.Intent {
		case IntentSelect:
			if s.selection.Append(queued.ID) {
				result.Selected++
			}
		case IntentUnselect:
			if s.selection.Remove(queued.ID) {
				result.Unselected++
			}
		}
	}

	if subset, ok := s.reorder.Take(); ok {
		applyReorder(s.selection, subset)
		result.Reordered = true
		result.ReorderLength = len(subset)
	}

	result.SelectionSize = s.selection.Len()
	return result
}

// FlushAdditions inserts every staged id still absent from the catalog and
// empties the stage. Ids that reached the catalog another way are skipped.
func (s *Store) FlushAdditions() AdditionFlushResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result AdditionFlushResult
	for _, id := range s.additions.Drain() {
		result.Staged++
		if s.catalog.Insert(id) {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}
	result.CatalogSize = s.catalog.Len()
	return result
}
