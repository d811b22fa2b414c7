// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the gin handlers of the catalog HTTP API.
//
// Write handlers only stage intents in the store and answer 202 Accepted;
// the flush scheduler applies them later. Read handlers page through the
// store under its lock.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/middleware"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/observability"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/store"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// Interfaces
// =============================================================================

// CatalogStore is the part of store.Store the handlers use.
type CatalogStore interface {
	QueueSelect(id int64)
	QueueUnselect(id int64)
	QueueReorder(ids []int64)
	QueueAdditionIfAbsent(id int64) bool
	ListUnselected(filter string, offset, limit int) store.Page
	ListSelected(filter string, offset, limit int) store.Page
	Stats() store.Stats
}

// FlushRunner triggers flushes outside the tick schedule.
// scheduler.FlushScheduler implements it.
type FlushRunner interface {
	RunSelectionNow(ctx context.Context) store.SelectionFlushResult
	RunAdditionsNow(ctx context.Context) store.AdditionFlushResult
}

const (
	errInvalidID      = "Invalid ID"
	errIDExists       = "ID already exists"
	errNewOrderArray  = "newOrder must be an array"
	errInvalidQuery   = "invalid query parameters"
	errInvalidRequest = "invalid request body"
)

// =============================================================================
// Read Handlers
// =============================================================================

// ListItems returns the catalog items that are not selected.
//
// # Description
//
// GET /items?filter=&offset=&limit= answers with {"items":[...],"total":n}
// where total counts every match before pagination. Items come in catalog
// insertion order.
func ListItems(st CatalogStore, metrics *observability.Metrics) gin.HandlerFunc {
	return listHandler("/items", st.ListUnselected, metrics)
}

// ListSelected returns the selected items in selection order.
func ListSelected(st CatalogStore, metrics *observability.Metrics) gin.HandlerFunc {
	return listHandler("/selected", st.ListSelected, metrics)
}

func listHandler(endpoint string, list func(filter string, offset, limit int) store.Page, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q datatypes.ListQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			rejectBadRequest(c, endpoint, errInvalidQuery, err, metrics)
			return
		}
		if err := q.Validate(); err != nil {
			rejectBadRequest(c, endpoint, errInvalidQuery, err, metrics)
			return
		}
		c.JSON(http.StatusOK, list(q.Filter, q.Offset, q.Limit))
	}
}

// =============================================================================
// Write Handlers
// =============================================================================

// AddItem stages a new catalog id.
//
// # Description
//
// POST /add with {"id": n}. Answers 400 for a missing or non-positive id,
// 409 when the id is already in the catalog, otherwise 202. The item
// becomes visible after the next addition flush. Repeating the request
// before that flush is accepted again and still inserts once.
func AddItem(st CatalogStore, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ItemIDRequest
		if !bindItemID(c, "/add", &req, metrics) {
			return
		}

		id := req.ID.Int64()
		if !st.QueueAdditionIfAbsent(id) {
			metrics.RecordRejection("/add", observability.RejectConflict)
			c.JSON(http.StatusConflict, datatypes.ErrorResponse{Error: errIDExists})
			return
		}

		metrics.RecordIntent(observability.IntentAdd)
		slog.Debug("Queued catalog addition", "id", id, "request_id", middleware.GetRequestID(c))
		accepted(c)
	}
}

// SelectItem stages a select intent.
func SelectItem(st CatalogStore, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ItemIDRequest
		if !bindItemID(c, "/select", &req, metrics) {
			return
		}

		st.QueueSelect(req.ID.Int64())
		metrics.RecordIntent(observability.IntentSelect)
		slog.Debug("Queued select", "id", req.ID.Int64(), "request_id", middleware.GetRequestID(c))
		accepted(c)
	}
}

// UnselectItem stages an unselect intent.
func UnselectItem(st CatalogStore, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ItemIDRequest
		if !bindItemID(c, "/unselect", &req, metrics) {
			return
		}

		st.QueueUnselect(req.ID.Int64())
		metrics.RecordIntent(observability.IntentUnselect)
		slog.Debug("Queued unselect", "id", req.ID.Int64(), "request_id", middleware.GetRequestID(c))
		accepted(c)
	}
}

// ReorderSelection stages a reorder.
//
// # Description
//
// POST /reorder with {"newOrder": [...]}. The listed ids move to the front
// of the selection in the given order when the next selection flush runs;
// unlisted selected ids keep their relative order behind them. A later
// reorder in the same interval replaces this one.
//
// # Limitations
//
//   - Ids not currently selected are added to the selection by the flush.
func ReorderSelection(st CatalogStore, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ReorderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			rejectBadRequest(c, "/reorder", errNewOrderArray, err, metrics)
			return
		}
		if err := req.Validate(); err != nil {
			rejectBadRequest(c, "/reorder", errNewOrderArray, err, metrics)
			return
		}

		st.QueueReorder(req.IDs())
		metrics.RecordIntent(observability.IntentReorder)
		slog.Debug("Queued reorder", "length", len(req.NewOrder), "request_id", middleware.GetRequestID(c))
		accepted(c)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func bindItemID(c *gin.Context, endpoint string, req *datatypes.ItemIDRequest, metrics *observability.Metrics) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		rejectBadRequest(c, endpoint, errInvalidID, err, metrics)
		return false
	}
	if err := req.Validate(); err != nil {
		rejectBadRequest(c, endpoint, errInvalidID, err, metrics)
		return false
	}
	return true
}

func rejectBadRequest(c *gin.Context, endpoint, message string, err error, metrics *observability.Metrics) {
	metrics.RecordRejection(endpoint, observability.RejectValidation)
	slog.Debug("Rejected request", "endpoint", endpoint, "error", err, "request_id", middleware.GetRequestID(c))
	c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: message})
}

func accepted(c *gin.Context) {
	c.JSON(http.StatusAccepted, datatypes.AcceptedResponse{
		OK:        true,
		RequestID: middleware.GetRequestID(c),
	})
}
