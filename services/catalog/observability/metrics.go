// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the catalog service.
//
// # Description
//
// Metrics cover the write path (intents accepted and rejected), the flush
// path (passes, applied changes, durations) and the size of the catalog and
// selection after each flush.
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint using the registry passed
// to NewMetrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every method is also safe to call on a nil *Metrics, which records nothing.
package observability

import (
	"time"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for catalog metrics
const catalogSubsystem = "catalog"

// IntentKind labels an accepted write.
type IntentKind string

const (
	IntentSelect   IntentKind = "select"
	IntentUnselect IntentKind = "unselect"
	IntentReorder  IntentKind = "reorder"
	IntentAdd      IntentKind = "add"
)

// RejectReason labels a refused write or read.
type RejectReason string

const (
	// RejectValidation indicates a malformed body or query.
	RejectValidation RejectReason = "validation"

	// RejectConflict indicates an addition for an id already in the catalog.
	RejectConflict RejectReason = "conflict"

	// RejectRateLimited indicates the write rate limiter refused the request.
	RejectRateLimited RejectReason = "rate_limited"
)

// Cycle labels a flush pass.
type Cycle string

const (
	CycleSelection Cycle = "selection"
	CycleReorder   Cycle = "reorder"
	CycleAdditions Cycle = "additions"
)

// Metrics holds all Prometheus collectors for the catalog service.
//
// # Fields
//
//   - IntentsQueuedTotal: Accepted writes by kind.
//   - RequestsRejectedTotal: Refused requests by endpoint and reason.
//   - FlushesTotal: Flush passes that found staged work, by cycle.
//   - ChangesAppliedTotal: Effective changes by kind (selected, unselected,
//     noop, inserted, skipped).
//   - FlushDurationSeconds: Time spent inside a flush, by timer.
//   - CatalogItems: Catalog size after the last addition flush.
//   - SelectedItems: Selection size after the last selection flush.
type Metrics struct {
	IntentsQueuedTotal    *prometheus.CounterVec
	RequestsRejectedTotal *prometheus.CounterVec
	FlushesTotal          *prometheus.CounterVec
	ChangesAppliedTotal   *prometheus.CounterVec
	FlushDurationSeconds  *prometheus.HistogramVec
	CatalogItems          prometheus.Gauge
	SelectedItems         prometheus.Gauge
}

// NewMetrics creates all collectors and registers them with reg.
//
// # Inputs
//
//   - reg: Registry to register with. Use prometheus.NewRegistry() in tests
//     to avoid clashing with other instances.
//
// # Outputs
//
//   - *Metrics: Ready to record.
//
// # Limitations
//
//   - Panics if the collectors are already registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IntentsQueuedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "intents_queued_total",
				Help:      "Total writes accepted into a staging area by kind",
			},
			[]string{"kind"},
		),

		RequestsRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "requests_rejected_total",
				Help:      "Total requests refused by endpoint and reason",
			},
			[]string{"endpoint", "reason"},
		),

		FlushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "flushes_total",
				Help:      "Total flush passes that applied staged work by cycle",
			},
			[]string{"cycle"},
		),

		ChangesAppliedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "changes_applied_total",
				Help:      "Total staged entries processed by flushes by outcome",
			},
			[]string{"change"},
		),

		FlushDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "flush_duration_seconds",
				Help:      "Time spent applying a flush in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"cycle"},
		),

		CatalogItems: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "items",
				Help:      "Number of items in the catalog",
			},
		),

		SelectedItems: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "selected_items",
				Help:      "Number of selected ids",
			},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordIntent counts one accepted write.
func (m *Metrics) RecordIntent(kind IntentKind) {
	if m == nil {
		return
	}
	m.IntentsQueuedTotal.WithLabelValues(string(kind)).Inc()
}

// RecordRejection counts one refused request.
func (m *Metrics) RecordRejection(endpoint string, reason RejectReason) {
	if m == nil {
		return
	}
	m.RequestsRejectedTotal.WithLabelValues(endpoint, string(reason)).Inc()
}

// SetSizes sets both size gauges from a store snapshot.
func (m *Metrics) SetSizes(stats store.Stats) {
	if m == nil {
		return
	}
	m.CatalogItems.Set(float64(stats.CatalogSize))
	m.SelectedItems.Set(float64(stats.SelectionSize))
}

// ObserveSelectionFlush records one selection timer pass.
//
// # Inputs
//
//   - result: What the pass applied.
//   - elapsed: Wall time spent in the pass.
func (m *Metrics) ObserveSelectionFlush(result store.SelectionFlushResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FlushDurationSeconds.WithLabelValues(string(CycleSelection)).Observe(elapsed.Seconds())
	m.SelectedItems.Set(float64(result.SelectionSize))

	if result.IntentsApplied > 0 {
		m.FlushesTotal.WithLabelValues(string(CycleSelection)).Inc()
		m.ChangesAppliedTotal.WithLabelValues("selected").Add(float64(result.Selected))
		m.ChangesAppliedTotal.WithLabelValues("unselected").Add(float64(result.Unselected))
		m.ChangesAppliedTotal.WithLabelValues("noop").Add(float64(result.NoOps()))
	}
	if result.Reordered {
		m.FlushesTotal.WithLabelValues(string(CycleReorder)).Inc()
	}
}

// ObserveAdditionFlush records one addition timer pass.
func (m *Metrics) ObserveAdditionFlush(result store.AdditionFlushResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FlushDurationSeconds.WithLabelValues(string(CycleAdditions)).Observe(elapsed.Seconds())
	m.CatalogItems.Set(float64(result.CatalogSize))

	if result.DidWork() {
		m.FlushesTotal.WithLabelValues(string(CycleAdditions)).Inc()
		m.ChangesAppliedTotal.WithLabelValues("inserted").Add(float64(result.Inserted))
		m.ChangesAppliedTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	}
}
