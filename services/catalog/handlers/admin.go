// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/observability"
	"github.com/gin-gonic/gin"
)

// HealthCheck answers liveness probes.
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.HealthResponse{Status: "ok"})
	}
}

// Stats returns sizes of the catalog, the selection and every staging area.
func Stats(st CatalogStore, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := st.Stats()
		metrics.SetSizes(stats)
		c.JSON(http.StatusOK, stats)
	}
}

// AdminFlush runs one flush cycle immediately.
//
// # Description
//
// POST /admin/flush with {"cycle":"selection"} or {"cycle":"additions"}.
// The pass is identical to a scheduled one and is logged, traced and
// audited the same way. Answers 200 with what the pass applied.
//
// # Limitations
//
//   - The route carries no authentication; deploy behind a trusted proxy.
func AdminFlush(runner FlushRunner, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.FlushRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			rejectBadRequest(c, "/admin/flush", errInvalidRequest, err, metrics)
			return
		}
		if err := req.Validate(); err != nil {
			rejectBadRequest(c, "/admin/flush", errInvalidRequest, err, metrics)
			return
		}

		slog.Info("Manual flush requested", "cycle", req.Cycle)
		ctx := c.Request.Context()

		switch req.Cycle {
		case datatypes.FlushCycleSelection:
			c.JSON(http.StatusOK, datatypes.NewSelectionFlushResponse(runner.RunSelectionNow(ctx)))
		case datatypes.FlushCycleAdditions:
			c.JSON(http.StatusOK, datatypes.NewAdditionFlushResponse(runner.RunAdditionsNow(ctx)))
		}
	}
}
