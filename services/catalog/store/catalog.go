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

// Catalog is the universe of known items, iterated in insertion order.
//
// The catalog only grows. It is not safe for concurrent use on its own;
// Store serialises access.
type Catalog struct {
	items map[int64]Item
	order []int64
}

// NewCatalog creates an empty catalog sized for capacity items.
func NewCatalog(capacity int) *Catalog {
	if capacity < 0 {
		capacity = 0
	}
	return &Catalog{
		items: make(map[int64]Item, capacity),
		order: make([]int64, 0, capacity),
	}
}

// Populate inserts the contiguous id range 1..n.
//
// Ids already present are left where they are.
func (c *Catalog) Populate(n int) {
	for id := int64(1); id <= int64(n); id++ {
		c.Insert(id)
	}
}

// Insert adds an item with the given id. It reports false if the id was
// already present.
func (c *Catalog) Insert(id int64) bool {
	if _, ok := c.items[id]; ok {
		return false
	}
	c.items[id] = Item{ID: id}
	c.order = append(c.order, id)
	return true
}

// Contains reports whether id is in the catalog.
func (c *Catalog) Contains(id int64) bool {
	_, ok := c.items[id]
	return ok
}

// Get returns the item for id.
func (c *Catalog) Get(id int64) (Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Each calls fn for every id in insertion order.
func (c *Catalog) Each(fn func(id int64)) {
	for _, id := range c.order {
		fn(id)
	}
}
