// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads catalogd settings from a YAML file and the
// environment.
//
// Precedence, lowest first: DefaultConfig, the YAML file, environment
// variables, then command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianCatalog/pkg/logging"
	"github.com/AleutianAI/AleutianCatalog/services/catalog"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned by Load when the named file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads path on top of DefaultConfig. An empty path returns the
// defaults. Unknown keys are rejected so typos do not pass silently.
func Load(path string) (CatalogConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg CatalogConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// ApplyEnv overrides cfg from environment variables.
//
// # Variables
//
//   - CATALOG_PORT, then PORT: server.port
//   - CATALOG_SIZE: catalog.initial_size
//   - CATALOG_SELECTION_INTERVAL, CATALOG_ADDITION_INTERVAL: Go durations
//   - CATALOG_AUDIT_LOG: catalog.audit_log
//   - CATALOG_LOG_LEVEL, CATALOG_LOG_DIR, CATALOG_LOG_FORMAT: logging.*
//   - CATALOG_WRITE_RATE, CATALOG_WRITE_BURST: server.write_rate / write_burst
//   - CATALOG_CORS_ORIGINS: comma separated list
//   - GIN_MODE: server.gin_mode
//   - OTEL_EXPORTER_OTLP_ENDPOINT: telemetry.otlp_endpoint
//
// # Outputs
//
//   - error: Names the first variable whose value cannot be parsed.
func ApplyEnv(cfg *CatalogConfig, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := envReader{lookup: lookup}

	// PORT is the generic platform convention; the prefixed variable wins.
	env.int("PORT", &cfg.Server.Port)
	env.int("CATALOG_PORT", &cfg.Server.Port)
	env.int("CATALOG_SIZE", &cfg.Catalog.InitialSize)
	env.duration("CATALOG_SELECTION_INTERVAL", &cfg.Catalog.SelectionInterval)
	env.duration("CATALOG_ADDITION_INTERVAL", &cfg.Catalog.AdditionInterval)
	env.string("CATALOG_AUDIT_LOG", &cfg.Catalog.AuditLog)
	env.string("CATALOG_LOG_LEVEL", &cfg.Logging.Level)
	env.string("CATALOG_LOG_DIR", &cfg.Logging.Dir)
	env.string("CATALOG_LOG_FORMAT", &cfg.Logging.Format)
	env.float("CATALOG_WRITE_RATE", &cfg.Server.WriteRate)
	env.int("CATALOG_WRITE_BURST", &cfg.Server.WriteBurst)
	env.list("CATALOG_CORS_ORIGINS", &cfg.Server.CORSOrigins)
	env.string("GIN_MODE", &cfg.Server.GinMode)
	env.string("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	return env.err
}

// Validate reports the first invalid setting.
func (c CatalogConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Catalog.InitialSize < 0 {
		return fmt.Errorf("catalog.initial_size must not be negative, got %d", c.Catalog.InitialSize)
	}
	if c.Catalog.SelectionInterval <= 0 {
		return fmt.Errorf("catalog.selection_interval must be positive, got %s", c.Catalog.SelectionInterval)
	}
	if c.Catalog.AdditionInterval <= 0 {
		return fmt.Errorf("catalog.addition_interval must be positive, got %s", c.Catalog.AdditionInterval)
	}
	if c.Server.WriteRate < 0 {
		return fmt.Errorf("server.write_rate must not be negative, got %g", c.Server.WriteRate)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatAuto, logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Server.GinMode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode must be debug, release or test, got %q", c.Server.GinMode)
	}
	return nil
}

// ServiceConfig converts to the service's configuration.
func (c CatalogConfig) ServiceConfig() catalog.Config {
	size := c.Catalog.InitialSize
	if size == 0 {
		// catalog.Config treats 0 as "use the default".
		size = -1
	}
	return catalog.Config{
		Port:              c.Server.Port,
		CatalogSize:       size,
		SelectionInterval: c.Catalog.SelectionInterval,
		AdditionInterval:  c.Catalog.AdditionInterval,
		OTelEndpoint:      c.Telemetry.OTLPEndpoint,
		AuditLogPath:      c.Catalog.AuditLog,
		GinMode:           c.Server.GinMode,
		WriteRate:         c.Server.WriteRate,
		WriteBurst:        c.Server.WriteBurst,
		CORSOrigins:       c.Server.CORSOrigins,
		ShutdownTimeout:   c.Server.ShutdownTimeout,
	}
}

// LoggerConfig converts to the logger's configuration. Validate first;
// an unparseable level falls back to info.
func (c CatalogConfig) LoggerConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: "catalog",
		Format:  logging.Format(c.Logging.Format),
	}
}

// =============================================================================
// Environment Parsing
// =============================================================================

// envReader applies set variables and remembers the first parse error.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (r *envReader) string(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) int(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v, ok := r.get(key); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}
