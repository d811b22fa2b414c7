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

// QueuedIntent is one coalesced entry of a selection batch.
type QueuedIntent struct {
	ID     int64
	Intent Intent
}

// Coalescer accumulates select/unselect intents between flushes.
//
// # Description
//
// The last intent queued for an id wins, but the id keeps the batch
// position it got when it was first queued in the current interval. Flush
// application order, and therefore selection insertion order, follows those
// positions.
type Coalescer struct {
	intents map[int64]Intent
	order   []int64
}

// NewCoalescer creates an empty coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{intents: make(map[int64]Intent)}
}

// Queue records intent for id, overwriting any earlier intent for the same
// id without moving its position.
func (c *Coalescer) Queue(id int64, intent Intent) {
	if _, ok := c.intents[id]; !ok {
		c.order = append(c.order, id)
	}
	c.intents[id] = intent
}

// Len returns the number of distinct ids with a pending intent.
func (c *Coalescer) Len() int {
	return len(c.order)
}

// Drain returns the pending intents in first-queued order and resets the
// coalescer to empty.
func (c *Coalescer) Drain() []QueuedIntent {
	if len(c.order) == 0 {
		return nil
	}
	batch := make([]QueuedIntent, 0, len(c.order))
	for _, id := range c.order {
		batch = append(batch, QueuedIntent{ID: id, Intent: c.intents[id]})
	}
	c.intents = make(map[int64]Intent)
	c.order = nil
	return batch
}
