// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store holds the in-memory catalog, the ordered selection and the
// staging areas for deferred writes.
//
// # Description
//
// Writes never touch the catalog or the selection directly. Select and
// unselect intents, reorder requests and catalog additions are staged and
// later applied by FlushSelection and FlushAdditions, which the scheduler
// calls on fixed intervals. Reads query the catalog and the selection as of
// the last completed flush.
//
// # Thread Safety
//
// Store guards every component with a single mutex. Each enqueue, each read
// and each flush pass holds it for its whole duration, so readers never see
// a partially applied flush.
package store

import (
	"strconv"
	"strings"
)

// Item is a catalog entry. Identity is the id; items carry no mutable state.
type Item struct {
	ID int64 `json:"id"`
}

// Intent is the queued effect of a select or unselect request.
type Intent int

const (
	// IntentSelect appends the id to the selection if it is not selected.
	IntentSelect Intent = iota + 1

	// IntentUnselect removes the id from the selection if it is selected.
	IntentUnselect
)

// String returns "select", "unselect" or "unknown".
func (i Intent) String() string {
	switch i {
	case IntentSelect:
		return "select"
	case IntentUnselect:
		return "unselect"
	default:
		return "unknown"
	}
}

// Page is one slice of a filtered listing.
//
// Total counts every match before the offset/limit window was applied.
type Page struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

// Stats is a consistent snapshot of store sizes.
type Stats struct {
	CatalogSize      int  `json:"catalog_size"`
	SelectionSize    int  `json:"selection_size"`
	PendingIntents   int  `json:"pending_intents"`
	PendingReorder   bool `json:"pending_reorder"`
	PendingAdditions int  `json:"pending_additions"`
}

// pager collects the [offset, offset+limit) window of a filtered walk while
// counting every match.
type pager struct {
	filter string
	offset int
	limit  int
	items  []Item
	total  int
}

func newPager(filter string, offset, limit int) *pager {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	return &pager{
		filter: filter,
		offset: offset,
		limit:  limit,
		items:  make([]Item, 0, min(limit, 256)),
	}
}

// offer considers one id in walk order.
func (p *pager) offer(id int64) {
	if !matchesFilter(id, p.filter) {
		return
	}
	if p.total >= p.offset && len(p.items) < p.limit {
		p.items = append(p.items, Item{ID: id})
	}
	p.total++
}

func (p *pager) page() Page {
	return Page{Items: p.items, Total: p.total}
}

// matchesFilter reports whether the decimal form of id contains filter.
// The empty filter matches everything.
func matchesFilter(id int64, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strconv.FormatInt(id, 10), filter)
}
