// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response types for the catalog
// HTTP API.
package datatypes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/store"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultPageLimit is used when a list request omits limit.
	DefaultPageLimit = 20

	// MaxPageLimit bounds a single page.
	MaxPageLimit = 1000

	// MaxReorderLength bounds the ids accepted by one reorder request.
	MaxReorderLength = 100000
)

// ErrInvalidItemID is returned when an id is neither a JSON integer nor a
// string holding one.
var ErrInvalidItemID = errors.New("invalid item id")

// =============================================================================
// Shared Validator Instance
// =============================================================================

// catalogValidate is the validator instance for catalog datatypes.
var catalogValidate *validator.Validate

func init() {
	catalogValidate = validator.New()
}

// =============================================================================
// Item Identifiers
// =============================================================================

// ItemID is an item identifier as it arrives on the wire.
//
// # Description
//
// Browser clients send ids both as JSON numbers and as numeric strings
// (values read from form inputs). Both decode to the same integer. null
// decodes to 0 so the "required" rule reports it. Fractions, booleans,
// objects and non-numeric strings fail to decode.
type ItemID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidItemID, err)
		}
		text = strings.TrimSpace(s)
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		*id = ItemID(n)
		return nil
	}

	// Accept integral floats such as 5.0 or 1e3.
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return fmt.Errorf("%w: %s", ErrInvalidItemID, string(data))
	}
	*id = ItemID(int64(f))
	return nil
}

// Int64 returns the id as the store's key type.
func (id ItemID) Int64() int64 {
	return int64(id)
}

// =============================================================================
// Request Types
// =============================================================================

// ItemIDRequest is the body of /add, /select and /unselect.
//
// # Fields
//
//   - ID: Positive item id. Accepts numbers and numeric strings.
type ItemIDRequest struct {
	ID ItemID `json:"id" validate:"required,gt=0"`
}

// Validate validates the ItemIDRequest fields.
//
// # Examples
//
//	var req datatypes.ItemIDRequest
//	if err := c.ShouldBindJSON(&req); err != nil { ... }
//	if err := req.Validate(); err != nil { ... }
func (r *ItemIDRequest) Validate() error {
	return catalogValidate.Struct(r)
}

// ReorderRequest is the body of /reorder.
//
// # Fields
//
//   - NewOrder: Desired leading ids of the selection. Must be present and
//     an array; an empty array is valid and leaves the order unchanged.
type ReorderRequest struct {
	NewOrder []ItemID `json:"newOrder" validate:"required,max=100000,dive,gt=0"`
}

// Validate validates the ReorderRequest fields.
func (r *ReorderRequest) Validate() error {
	return catalogValidate.Struct(r)
}

// IDs converts the request to store keys, preserving order and repeats.
func (r *ReorderRequest) IDs() []int64 {
	ids := make([]int64, len(r.NewOrder))
	for i, id := range r.NewOrder {
		ids[i] = id.Int64()
	}
	return ids
}

// ListQuery is the query string of /items and /selected.
type ListQuery struct {
	Filter string `form:"filter"`
	Offset int    `form:"offset,default=0" validate:"gte=0"`
	Limit  int    `form:"limit,default=20" validate:"gte=0,lte=1000"`
}

// Validate validates the ListQuery fields.
func (q *ListQuery) Validate() error {
	return catalogValidate.Struct(q)
}

// Flush cycles accepted by /admin/flush.
const (
	FlushCycleSelection = "selection"
	FlushCycleAdditions = "additions"
)

// FlushRequest is the body of /admin/flush.
type FlushRequest struct {
	Cycle string `json:"cycle" validate:"required,oneof=selection additions"`
}

// Validate validates the FlushRequest fields.
func (r *FlushRequest) Validate() error {
	return catalogValidate.Struct(r)
}

// =============================================================================
// Response Types
// =============================================================================

// AcceptedResponse answers every write. The change is applied by a later
// flush, not by the request.
type AcceptedResponse struct {
	OK        bool   `json:"ok"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the body of every 4xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// FlushResponse reports what a manual flush applied. Exactly one of
// Selection and Additions is set.
type FlushResponse struct {
	Cycle     string                 `json:"cycle"`
	Selection *SelectionFlushSummary `json:"selection,omitempty"`
	Additions *AdditionFlushSummary  `json:"additions,omitempty"`
}

// SelectionFlushSummary mirrors store.SelectionFlushResult on the wire.
type SelectionFlushSummary struct {
	IntentsApplied int  `json:"intents_applied"`
	Selected       int  `json:"selected"`
	Unselected     int  `json:"unselected"`
	Reordered      bool `json:"reordered"`
	SelectionSize  int  `json:"selection_size"`
}

// AdditionFlushSummary mirrors store.AdditionFlushResult on the wire.
type AdditionFlushSummary struct {
	Staged      int `json:"staged"`
	Inserted    int `json:"inserted"`
	Skipped     int `json:"skipped"`
	CatalogSize int `json:"catalog_size"`
}

// NewSelectionFlushResponse wraps a selection pass result.
func NewSelectionFlushResponse(r store.SelectionFlushResult) FlushResponse {
	return FlushResponse{
		Cycle: FlushCycleSelection,
		Selection: &SelectionFlushSummary{
			IntentsApplied: r.IntentsApplied,
			Selected:       r.Selected,
			Unselected:     r.Unselected,
			Reordered:      r.Reordered,
			SelectionSize:  r.SelectionSize,
		},
	}
}

// NewAdditionFlushResponse wraps an addition pass result.
func NewAdditionFlushResponse(r store.AdditionFlushResult) FlushResponse {
	return FlushResponse{
		Cycle: FlushCycleAdditions,
		Additions: &AdditionFlushSummary{
			Staged:      r.Staged,
			Inserted:    r.Inserted,
			Skipped:     r.Skipped,
			CatalogSize: r.CatalogSize,
		},
	}
}
