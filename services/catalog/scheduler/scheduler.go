// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scheduler drives the periodic flush cycles of the catalog store.
//
// Two independent tickers run in their own goroutines: a short one that
// applies queued select/unselect intents followed by any staged reorder, and
// a longer one that inserts staged catalog additions. Each tick runs to
// completion before the same ticker is serviced again.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.catalog.scheduler")
	meter  = otel.Meter("aleutian.catalog.scheduler")
)

// ErrAlreadyRunning is returned by Start when the loops are active.
var ErrAlreadyRunning = errors.New("flush scheduler is already running")

// =============================================================================
// Interfaces
// =============================================================================

// Flusher applies staged work. store.Store implements it.
type Flusher interface {
	FlushSelection() store.SelectionFlushResult
	FlushAdditions() store.AdditionFlushResult
}

// FlushObserver is told about every pass, including empty ones.
type FlushObserver interface {
	ObserveSelectionFlush(result store.SelectionFlushResult, elapsed time.Duration)
	ObserveAdditionFlush(result store.AdditionFlushResult, elapsed time.Duration)
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds the tick periods.
//
// # Fields
//
//   - SelectionInterval: Period of the intent + reorder flush. Default: 1s.
//   - AdditionInterval: Period of the catalog addition flush. Default: 10s.
type Config struct {
	SelectionInterval time.Duration
	AdditionInterval  time.Duration
}

// DefaultSchedulerConfig returns the production periods.
//
// # Examples
//
//	config := DefaultSchedulerConfig()
//	config.AdditionInterval = 30 * time.Second
//	sched := NewFlushScheduler(st, metrics, nil, config)
func DefaultSchedulerConfig() Config {
	return Config{
		SelectionInterval: 1 * time.Second,
		AdditionInterval:  10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultSchedulerConfig()
	if c.SelectionInterval <= 0 {
		c.SelectionInterval = def.SelectionInterval
	}
	if c.AdditionInterval <= 0 {
		c.AdditionInterval = def.AdditionInterval
	}
	return c
}

// =============================================================================
// Flush Scheduler Implementation
// =============================================================================

// FlushScheduler owns the two flush loops.
//
// # Description
//
// Uses the ticker + done channel pattern for shutdown. A WaitGroup tracks
// both loops so Stop returns only after the in-flight pass, if any, has
// finished.
//
// # Fields
//
//   - flusher: The store being flushed.
//   - observer: Metrics sink. May be nil.
//   - auditor: Audit log. May be nil.
//   - config: Tick periods.
//   - done: Closed to request shutdown.
//   - wg: Tracks running loops.
//   - mu: Protects running and done.
//
// # Thread Safety
//
// All public methods are thread-safe. RunSelectionNow may race a tick; the
// store serializes them, so one of the two simply finds nothing staged.
type FlushScheduler struct {
	flusher  Flusher
	observer FlushObserver
	auditor  FlushAuditor
	config   Config

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	instrumentsOnce sync.Once
	passCounter     metric.Int64Counter
	changeCounter   metric.Int64Counter
}

// NewFlushScheduler creates a scheduler over flusher.
//
// # Inputs
//
//   - flusher: Store to flush. Must not be nil.
//   - observer: Optional metrics sink.
//   - auditor: Optional audit log. Write failures are logged and ignored.
//   - config: Tick periods. Zero values fall back to the defaults.
//
// # Outputs
//
//   - *FlushScheduler: Ready to Start().
//
// # Examples
//
//	sched := NewFlushScheduler(st, metrics, audit, DefaultSchedulerConfig())
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop()
func NewFlushScheduler(flusher Flusher, observer FlushObserver, auditor FlushAuditor, config Config) *FlushScheduler {
	return &FlushScheduler{
		flusher:  flusher,
		observer: observer,
		auditor:  auditor,
		config:   config.withDefaults(),
		done:     make(chan struct{}),
	}
}

// Config returns the effective tick periods.
func (s *FlushScheduler) Config() Config {
	return s.config
}

// Start launches both flush loops.
//
// # Description
//
// Loops run until Stop is called or ctx is cancelled. The first flush of
// each loop happens one full period after Start; staging is empty at
// startup so there is nothing to apply earlier.
//
// # Inputs
//
//   - ctx: Cancelling it stops both loops.
//
// # Outputs
//
//   - error: ErrAlreadyRunning if Start was called without a matching Stop.
func (s *FlushScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.done = make(chan struct{})

	slog.Info("Flush scheduler starting",
		"selection_interval", s.config.SelectionInterval.String(),
		"addition_interval", s.config.AdditionInterval.String(),
	)

	s.wg.Add(2)
	go s.runLoop(ctx, "selection", s.config.SelectionInterval, s.done, func(ctx context.Context) {
		s.RunSelectionNow(ctx)
	})
	go s.runLoop(ctx, "additions", s.config.AdditionInterval, s.done, func(ctx context.Context) {
		s.RunAdditionsNow(ctx)
	})
	return nil
}

// Stop signals both loops and waits for them to exit. Safe to call more
// than once and on a scheduler that was never started.
func (s *FlushScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	slog.Info("Flush scheduler stopping")
	close(s.done)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
}

// Running reports whether Start has been called without Stop.
func (s *FlushScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunSelectionNow performs one selection pass immediately.
//
// # Description
//
// Applies queued intents, then the staged reorder, exactly as a tick would.
// Does not affect the ticker's timing.
//
// # Outputs
//
//   - store.SelectionFlushResult: What the pass applied.
func (s *FlushScheduler) RunSelectionNow(ctx context.Context) store.SelectionFlushResult {
	s.initInstruments()

	_, span := tracer.Start(ctx, "catalog.flush.selection",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := time.Now()
	result := s.flusher.FlushSelection()
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("flush.intents_applied", result.IntentsApplied),
		attribute.Int("flush.selected", result.Selected),
		attribute.Int("flush.unselected", result.Unselected),
		attribute.Bool("flush.reordered", result.Reordered),
		attribute.Int("selection.size", result.SelectionSize),
	)

	if s.observer != nil {
		s.observer.ObserveSelectionFlush(result, elapsed)
	}
	if !result.DidWork() {
		return result
	}

	if result.IntentsApplied > 0 {
		slog.Info("Applied selection batch",
			"intents", result.IntentsApplied,
			"selected", result.Selected,
			"unselected", result.Unselected,
			"selection_size", result.SelectionSize,
		)
		s.recordPass(ctx, "selection", result.Selected+result.Unselected)
	}
	if result.Reordered {
		slog.Info("Applied reorder batch",
			"requested", result.ReorderLength,
			"selection_size", result.SelectionSize,
		)
		s.recordPass(ctx, "reorder", result.ReorderLength)
	}
	if s.auditor != nil {
		if err := s.auditor.LogSelectionFlush(result, elapsed); err != nil {
			slog.Warn("Failed to write flush audit record", "cycle", "selection", "error", err)
		}
	}
	return result
}

// RunAdditionsNow performs one addition pass immediately.
func (s *FlushScheduler) RunAdditionsNow(ctx context.Context) store.AdditionFlushResult {
	s.initInstruments()

	_, span := tracer.Start(ctx, "catalog.flush.additions",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	start := time.Now()
	result := s.flusher.FlushAdditions()
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("flush.staged", result.Staged),
		attribute.Int("flush.inserted", result.Inserted),
		attribute.Int("flush.skipped", result.Skipped),
		attribute.Int("catalog.size", result.CatalogSize),
	)

	if s.observer != nil {
		s.observer.ObserveAdditionFlush(result, elapsed)
	}
	if !result.DidWork() {
		return result
	}

	slog.Info("Added new items batch",
		"staged", result.Staged,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"catalog_size", result.CatalogSize,
	)
	s.recordPass(ctx, "additions", result.Inserted)

	if s.auditor != nil {
		if err := s.auditor.LogAdditionFlush(result, elapsed); err != nil {
			slog.Warn("Failed to write flush audit record", "cycle", "additions", "error", err)
		}
	}
	return result
}

// =============================================================================
// Internal Methods
// =============================================================================

// runLoop services one ticker until done is closed or ctx is cancelled.
// done is passed in so a restart cannot hand an old loop the new channel.
func (s *FlushScheduler) runLoop(ctx context.Context, cycle string, interval time.Duration, done <-chan struct{}, flush func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Flush loop stopped (context cancelled)", "cycle", cycle)
			return
		case <-done:
			slog.Debug("Flush loop stopped (stop requested)", "cycle", cycle)
			return
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// initInstruments lazily creates the OpenTelemetry instruments. Creation
// failures are logged and the scheduler keeps running without them.
func (s *FlushScheduler) initInstruments() {
	s.instrumentsOnce.Do(func() {
		var err error
		s.passCounter, err = meter.Int64Counter("catalog.flush.passes",
			metric.WithDescription("Flush passes that applied staged work"),
		)
		if err != nil {
			slog.Warn("Failed to create flush pass counter", "error", err)
		}

		s.changeCounter, err = meter.Int64Counter("catalog.flush.changes",
			metric.WithDescription("Effective changes applied by flush passes"),
		)
		if err != nil {
			slog.Warn("Failed to create flush change counter", "error", err)
		}
	})
}

func (s *FlushScheduler) recordPass(ctx context.Context, cycle string, changes int) {
	attrs := metric.WithAttributes(attribute.String("cycle", cycle))
	if s.passCounter != nil {
		s.passCounter.Add(ctx, 1, attrs)
	}
	if s.changeCounter != nil {
		s.changeCounter.Add(ctx, int64(changes), attrs)
	}
}
