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

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(page Page) []int64 {
	out := make([]int64, 0, len(page.Items))
	for _, item := range page.Items {
		out = append(out, item.ID)
	}
	return out
}

// =============================================================================
// Selection Flush Tests
// =============================================================================

func TestStore_WritesAreDeferredUntilFlush(t *testing.T) {
	s := NewStore(10)
	s.QueueSelect(3)
	s.QueueReorder([]int64{4})

	assert.Empty(t, s.SelectedIDs())
	assert.Equal(t, 10, s.ListUnselected("", 0, 20).Total)

	result := s.FlushSelection()

	assert.Equal(t, []int64{4, 3}, s.SelectedIDs())
	assert.Equal(t, 1, result.IntentsApplied)
	assert.Equal(t, 1, result.Selected)
	assert.True(t, result.Reordered)
	assert.Equal(t, 2, result.SelectionSize)
}

func TestStore_CoalescingSelectUnselectSelect(t *testing.T) {
	s := NewStore(10)
	s.QueueSelect(1)
	s.FlushSelection()

	s.QueueSelect(5)
	s.QueueSelect(2)
	s.QueueUnselect(5)
	s.QueueSelect(5)
	result := s.FlushSelection()

	assert.Equal(t, []int64{1, 5, 2}, s.SelectedIDs(), "5 keeps the position it was first queued at")
	assert.Equal(t, 2, result.IntentsApplied)
	assert.Equal(t, 2, result.Selected)

	single := NewStore(10)
	single.QueueSelect(1)
	single.FlushSelection()
	single.QueueSelect(5)
	single.QueueSelect(2)
	single.FlushSelection()

	assert.Equal(t, single.SelectedIDs(), s.SelectedIDs())
}

func TestStore_UnselectPreservesRemainingOrder(t *testing.T) {
	s := NewStore(10)
	for _, id := range []int64{4, 1, 7, 2} {
		s.QueueSelect(id)
	}
	s.FlushSelection()

	s.QueueUnselect(1)
	s.QueueUnselect(9) // not selected
	result := s.FlushSelection()

	assert.Equal(t, []int64{4, 7, 2}, s.SelectedIDs())
	assert.Equal(t, 1, result.Unselected)
	assert.Equal(t, 1, result.NoOps())
}

func TestStore_ReselectIsIdempotent(t *testing.T) {
	s := NewStore(10)
	s.QueueSelect(3)
	s.FlushSelection()
	s.QueueSelect(3)
	result := s.FlushSelection()

	assert.Equal(t, []int64{3}, s.SelectedIDs())
	assert.Equal(t, 0, result.Selected)
	assert.Equal(t, 1, result.NoOps())
}

func TestStore_ReorderSemantics(t *testing.T) {
	s := NewStore(10)
	for _, id := range []int64{1, 2, 3, 4} {
		s.QueueSelect(id)
	}
	s.FlushSelection()

	s.QueueReorder([]int64{3, 1})
	s.FlushSelection()

	assert.Equal(t, []int64{3, 1, 2, 4}, s.SelectedIDs())
}

func TestStore_ReorderGrowsSelection(t *testing.T) {
	s := NewStore(10)
	s.QueueSelect(1)
	s.QueueSelect(2)
	s.FlushSelection()

	s.QueueReorder([]int64{9})
	s.FlushSelection()

	assert.Equal(t, []int64{9, 1, 2}, s.SelectedIDs())
	assert.NotContains(t, ids(s.ListUnselected("", 0, 100)), int64(9))
	assertSelectionInvariant(t, s.selection)
}

func TestStore_ReorderWithRepeatedIDs(t *testing.T) {
	s := NewStore(10)
	for _, id := range []int64{1, 2, 3} {
		s.QueueSelect(id)
	}
	s.FlushSelection()

	s.QueueReorder([]int64{3, 3, 1})
	result := s.FlushSelection()

	assert.Equal(t, []int64{3, 1, 2}, s.SelectedIDs())
	assert.Equal(t, 3, result.ReorderLength)
	assert.Equal(t, 3, result.SelectionSize)
	assertSelectionInvariant(t, s.selection)
}

func TestStore_LatestReorderWins(t *testing.T) {
	s := NewStore(10)
	for _, id := range []int64{1, 2, 3} {
		s.QueueSelect(id)
	}
	s.FlushSelection()

	s.QueueReorder([]int64{2})
	s.QueueReorder([]int64{3})
	s.FlushSelection()

	assert.Equal(t, []int64{3, 1, 2}, s.SelectedIDs())
}

func TestStore_ReorderSeesSameIntervalIntents(t *testing.T) {
	s := NewStore(10)
	s.QueueSelect(1)
	s.QueueSelect(2)
	s.FlushSelection()

	s.QueueSelect(5)
	s.QueueUnselect(1)
	s.QueueReorder([]int64{5})
	s.FlushSelection()

	assert.Equal(t, []int64{5, 2}, s.SelectedIDs())
}

func TestStore_EmptyFlushesLeaveStateUnchanged(t *testing.T) {
	s := NewStore(10)
	s.QueueSelect(2)
	s.QueueSelect(1)
	s.FlushSelection()
	before := s.SelectedIDs()
	beforeStats := s.Stats()

	sel := s.FlushSelection()
	add := s.FlushAdditions()

	assert.False(t, sel.DidWork())
	assert.False(t, add.DidWork())
	assert.Equal(t, before, s.SelectedIDs())
	assert.Equal(t, beforeStats, s.Stats())
}

// =============================================================================
// Addition Flush Tests
// =============================================================================

func TestStore_AdditionBecomesVisibleAfterFlush(t *testing.T) {
	s := NewStore(5)
	require.True(t, s.QueueAdditionIfAbsent(2_000_000))
	require.True(t, s.QueueAdditionIfAbsent(2_000_000))

	assert.Equal(t, 5, s.ListUnselected("", 0, 100).Total)

	result := s.FlushAdditions()

	assert.Equal(t, 1, result.Staged)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 6, result.CatalogSize)
	page := s.ListUnselected("2000000", 0, 10)
	assert.Equal(t, []int64{2_000_000}, ids(page))
	assert.Equal(t, 1, page.Total)
}

func TestStore_QueueAdditionIfAbsentRejectsExisting(t *testing.T) {
	s := NewStore(5)

	assert.False(t, s.QueueAdditionIfAbsent(3))
	assert.Equal(t, 0, s.Stats().PendingAdditions)
}

func TestStore_AdditionSkipsIDsAlreadyPresent(t *testing.T) {
	s := NewStore(5)
	s.QueueAddition(4) // bypasses the existence check
	s.QueueAddition(8)

	result := s.FlushAdditions()

	assert.Equal(t, 2, result.Staged)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 8}, ids(s.ListUnselected("", 0, 100)))
}

func TestStore_ReorderedUnknownIDAppearsOnceAdded(t *testing.T) {
	s := NewStore(3)
	s.QueueReorder([]int64{50})
	s.FlushSelection()

	assert.Equal(t, 0, s.ListSelected("", 0, 10).Total, "ids missing from the catalog are not listed")

	s.QueueAddition(50)
	s.FlushAdditions()

	assert.Equal(t, []int64{50}, ids(s.ListSelected("", 0, 10)))
	assert.NotContains(t, ids(s.ListUnselected("", 0, 10)), int64(50))
}

// =============================================================================
// Listing Tests
// =============================================================================

func TestStore_ListUnselectedOnFullCatalog(t *testing.T) {
	if testing.Short() {
		t.Skip("populates one million items")
	}
	s := NewStore(1_000_000)

	page := s.ListUnselected("", 0, 20)

	assert.Equal(t, 1_000_000, page.Total)
	want := make([]int64, 0, 20)
	for id := int64(1); id <= 20; id++ {
		want = append(want, id)
	}
	assert.Equal(t, want, ids(page))
}

func TestStore_ListPagination(t *testing.T) {
	s := NewStore(30)
	for _, id := range []int64{2, 12, 22} {
		s.QueueSelect(id)
	}
	s.FlushSelection()

	tests := []struct {
		name      string
		filter    string
		offset    int
		limit     int
		wantIDs   []int64
		wantTotal int
	}{
		{"first page", "", 0, 3, []int64{1, 3, 4}, 27},
		{"offset", "", 25, 5, []int64{29, 30}, 27},
		{"offset past end", "", 100, 5, []int64{}, 27},
		{"zero limit", "", 0, 0, []int64{}, 27},
		{"filter", "2", 0, 10, []int64{20, 21, 23, 24, 25, 26, 27, 28, 29}, 9},
		{"filter with offset", "1", 1, 2, []int64{10, 11}, 11},
		{"filter no match", "99", 0, 10, []int64{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := s.ListUnselected(tt.filter, tt.offset, tt.limit)
			assert.Equal(t, tt.wantIDs, ids(page))
			assert.Equal(t, tt.wantTotal, page.Total)
		})
	}
}

func TestStore_ListSelectedFollowsSelectionOrder(t *testing.T) {
	s := NewStore(30)
	for _, id := range []int64{21, 3, 12, 2} {
		s.QueueSelect(id)
	}
	s.FlushSelection()

	assert.Equal(t, []int64{21, 3, 12, 2}, ids(s.ListSelected("", 0, 10)))

	page := s.ListSelected("2", 1, 1)
	assert.Equal(t, []int64{12}, ids(page))
	assert.Equal(t, 3, page.Total)
}

func TestStore_Stats(t *testing.T) {
	s := NewStore(10)
	s.QueueSelect(1)
	s.QueueUnselect(2)
	s.QueueReorder([]int64{1})
	s.QueueAddition(11)

	assert.Equal(t, Stats{
		CatalogSize:      10,
		SelectionSize:    0,
		PendingIntents:   2,
		PendingReorder:   true,
		PendingAdditions: 1,
	}, s.Stats())
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestStore_ConcurrentWritesReadsAndFlushes(t *testing.T) {
	s := NewStore(1000)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := int64((w*200+i)%1000 + 1)
				switch i % 4 {
				case 0, 1:
					s.QueueSelect(id)
				case 2:
					s.QueueUnselect(id)
				case 3:
					s.QueueReorder([]int64{id, id + 1})
				}
				_ = s.ListSelected("1", 0, 10)
				_ = s.ListUnselected("", 0, 10)
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.FlushSelection()
			s.FlushAdditions()
		}
	}()
	wg.Wait()
	s.FlushSelection()

	s.mu.Lock()
	defer s.mu.Unlock()
	assertSelectionInvariant(t, s.selection)
}
