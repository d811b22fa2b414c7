// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/handlers"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/middleware"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies carries everything the routes need.
//
// # Fields
//
//   - Store: Catalog store. Required.
//   - Runner: Manual flush trigger for /admin/flush. Required.
//   - Metrics: Prometheus collectors. May be nil.
//   - Gatherer: Registry served on /metrics. Nil serves the default registry.
//   - WriteRate: Sustained writes per second across all write routes. 0 disables limiting.
//   - WriteBurst: Token bucket size for write routes.
//   - CORSOrigins: Allowed browser origins. Empty or "*" allows any origin.
type Dependencies struct {
	Store       handlers.CatalogStore
	Runner      handlers.FlushRunner
	Metrics     *observability.Metrics
	Gatherer    prometheus.Gatherer
	WriteRate   float64
	WriteBurst  int
	CORSOrigins []string
}

// SetupRoutes registers the catalog API on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(corsMiddleware(deps.CORSOrigins))
	router.Use(middleware.RequestID())

	router.GET("/health", handlers.HealthCheck())
	router.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))

	// Reads
	router.GET("/items", handlers.ListItems(deps.Store, deps.Metrics))
	router.GET("/selected", handlers.ListSelected(deps.Store, deps.Metrics))
	router.GET("/stats", handlers.Stats(deps.Store, deps.Metrics))

	// Deferred writes
	writes := router.Group("/")
	writes.Use(middleware.RateLimit(deps.WriteRate, deps.WriteBurst, deps.Metrics))
	{
		writes.POST("/add", handlers.AddItem(deps.Store, deps.Metrics))
		writes.POST("/select", handlers.SelectItem(deps.Store, deps.Metrics))
		writes.POST("/unselect", handlers.UnselectItem(deps.Store, deps.Metrics))
		writes.POST("/reorder", handlers.ReorderSelection(deps.Store, deps.Metrics))
	}

	admin := router.Group("/admin")
	{
		admin.POST("/flush", handlers.AdminFlush(deps.Runner, deps.Metrics))
	}
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
