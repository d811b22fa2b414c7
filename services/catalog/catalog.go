// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog provides the catalog selection service.
//
// The service keeps a large in-memory catalog of items and an ordered
// selection of them. Writes (select, unselect, reorder, add) are accepted
// immediately and applied by two periodic flush cycles; reads page through
// the current state.
//
// # Usage
//
//	svc, err := catalog.New(catalog.Config{Port: 3001})
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	return svc.Run(ctx)
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/observability"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/routes"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/scheduler"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/store"
	"github.com/AleutianAI/AleutianCatalog/services/catalog/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
)

// serviceName identifies the service in traces and request spans.
const serviceName = "catalog-service"

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the catalog service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the flush scheduler and the HTTP server and blocks until
	// ctx is cancelled or the server fails. Resources are released on
	// return.
	Run(ctx context.Context) error

	// Router returns the configured gin engine for testing.
	Router() *gin.Engine

	// Store returns the catalog store.
	Store() *store.Store

	// Scheduler returns the flush scheduler.
	Scheduler() *scheduler.FlushScheduler
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds service configuration.
//
// # Examples
//
//	// Minimal configuration (uses defaults)
//	cfg := Config{}
//
//	// Small catalog with fast flushes for local development
//	cfg := Config{
//	    CatalogSize:       1000,
//	    SelectionInterval: 200 * time.Millisecond,
//	    AdditionInterval:  time.Second,
//	    OTelEndpoint:      "stdout",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 3001
	Port int

	// CatalogSize is how many items (ids 1..N) exist at startup.
	// Default: 1,000,000. A negative value starts with an empty catalog.
	CatalogSize int

	// SelectionInterval is the period of the select/unselect/reorder flush.
	// Default: 1s
	SelectionInterval time.Duration

	// AdditionInterval is the period of the catalog addition flush.
	// Default: 10s
	AdditionInterval time.Duration

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Empty disables tracing; "stdout" prints spans.
	OTelEndpoint string

	// AuditLogPath is the flush audit log file. Empty disables it.
	AuditLogPath string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Empty leaves gin's own default (GIN_MODE env var).
	GinMode string

	// WriteRate limits write requests per second. 0 disables limiting.
	WriteRate float64

	// WriteBurst is the write rate limiter's bucket size. Default: 100
	WriteBurst int

	// CORSOrigins lists allowed browser origins. Empty allows any.
	CORSOrigins []string

	// ShutdownTimeout bounds graceful HTTP shutdown. Default: 10s
	ShutdownTimeout time.Duration
}

// Default values applied by applyConfigDefaults.
const (
	DefaultPort            = 3001
	DefaultCatalogSize     = 1_000_000
	DefaultWriteBurst      = 100
	DefaultShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Implementation
// =============================================================================

// service implements Service.
//
// # Fields
//
//   - config: Service configuration with defaults applied
//   - registry: Private Prometheus registry served on /metrics
//   - metrics: Prometheus collectors
//   - store: Catalog, selection and staging areas
//   - scheduler: Flush loops
//   - auditLog: Flush audit log (may be nil)
//   - router: Gin HTTP engine
//   - telemetryShutdown: Flushes OTel providers on exit
type service struct {
	config            Config
	registry          *prometheus.Registry
	metrics           *observability.Metrics
	store             *store.Store
	scheduler         *scheduler.FlushScheduler
	auditLog          *scheduler.AuditLog
	router            *gin.Engine
	telemetryShutdown func(context.Context) error
	cleanupOnce       sync.Once
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a catalog Service.
//
// # Description
//
// New initializes every component in dependency order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing and metrics
//  3. Registers Prometheus collectors on a private registry
//  4. Populates the catalog with ids 1..CatalogSize
//  5. Opens the flush audit log if configured
//  6. Creates the flush scheduler (started by Run)
//  7. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Non-nil if telemetry cannot be initialized.
//
// # Limitations
//
//   - Populating the default catalog takes a noticeable fraction of a second
//     and roughly 100MB of memory.
//   - An unwritable audit log path is logged and ignored.
func New(cfg Config) (Service, error) {
	s := &service{
		config:   applyConfigDefaults(cfg),
		registry: prometheus.NewRegistry(),
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	shutdown, err := telemetry.Init(context.Background(),
		telemetry.ConfigForEndpoint(serviceName, s.config.OTelEndpoint, s.registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = observability.NewMetrics(s.registry)

	s.initStore()
	s.initAuditLog()

	var auditor scheduler.FlushAuditor
	if s.auditLog != nil {
		auditor = s.auditLog
	}
	s.scheduler = scheduler.NewFlushScheduler(s.store, s.metrics, auditor, scheduler.Config{
		SelectionInterval: s.config.SelectionInterval,
		AdditionInterval:  s.config.AdditionInterval,
	})

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the scheduler and HTTP server and blocks until ctx is done.
//
// # Description
//
// The listener is bound before the scheduler starts so a port conflict
// fails fast. When ctx is cancelled the server drains in-flight requests
// for up to ShutdownTimeout, then the scheduler and telemetry are stopped.
// Staged but unflushed writes are discarded; state is not persisted.
//
// # Outputs
//
//   - error: Non-nil if the port cannot be bound or the server fails.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if err := s.scheduler.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start flush scheduler: %w", err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting catalog server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("catalog server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down catalog server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("catalog server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Store returns the catalog store.
func (s *service) Store() *store.Store {
	return s.store
}

// Scheduler returns the flush scheduler.
func (s *service) Scheduler() *scheduler.FlushScheduler {
	return s.scheduler
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.CatalogSize == 0 {
		cfg.CatalogSize = DefaultCatalogSize
	} else if cfg.CatalogSize < 0 {
		cfg.CatalogSize = 0
	}

	schedDefaults := scheduler.DefaultSchedulerConfig()
	if cfg.SelectionInterval <= 0 {
		cfg.SelectionInterval = schedDefaults.SelectionInterval
	}
	if cfg.AdditionInterval <= 0 {
		cfg.AdditionInterval = schedDefaults.AdditionInterval
	}

	if cfg.WriteRate < 0 {
		cfg.WriteRate = 0
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteBurst = DefaultWriteBurst
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return cfg
}

// initStore builds the store and logs how long population took.
func (s *service) initStore() {
	start := time.Now()
	s.store = store.NewStore(s.config.CatalogSize)
	s.metrics.SetSizes(s.store.Stats())

	slog.Info("Initialized catalog",
		"items", s.config.CatalogSize,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// initAuditLog opens the flush audit log. Failures leave s.auditLog nil;
// slog still records every flush.
func (s *service) initAuditLog() {
	if s.config.AuditLogPath == "" {
		return
	}

	if dir := filepath.Dir(s.config.AuditLogPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			slog.Warn("Failed to create flush audit log directory, continuing without audit log",
				"log_path", s.config.AuditLogPath,
				"error", err)
			return
		}
	}

	audit, err := scheduler.NewAuditLog(s.config.AuditLogPath)
	if err != nil {
		slog.Warn("Failed to create flush audit log, continuing without audit log",
			"log_path", s.config.AuditLogPath,
			"error", err)
		return
	}
	s.auditLog = audit
	slog.Info("Flush audit log enabled", "log_path", s.config.AuditLogPath)
}

// initRouter creates the Gin router and registers routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(serviceName))

	routes.SetupRoutes(s.router, routes.Dependencies{
		Store:       s.store,
		Runner:      s.scheduler,
		Metrics:     s.metrics,
		Gatherer:    s.registry,
		WriteRate:   s.config.WriteRate,
		WriteBurst:  s.config.WriteBurst,
		CORSOrigins: s.config.CORSOrigins,
	})
}

// cleanup releases all resources held by the service. Safe to call more
// than once.
func (s *service) cleanup() {
	s.cleanupOnce.Do(func() {
		if s.scheduler != nil {
			s.scheduler.Stop()
		}

		if s.auditLog != nil {
			if err := s.auditLog.Close(); err != nil {
				slog.Warn("Flush audit log close error", "error", err)
			}
		}

		if s.telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.telemetryShutdown(ctx); err != nil {
				slog.Warn("Telemetry shutdown error", "error", err)
			}
		}
	})
}
