// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"
)

// CatalogConfig is the on-disk configuration of catalogd.
//
// Every field is optional; DefaultConfig supplies the values a missing
// field keeps.
type CatalogConfig struct {
	// Server: HTTP listener and request handling
	Server ServerConfig `yaml:"server"`

	// Catalog: initial population and flush periods
	Catalog CatalogSection `yaml:"catalog"`

	// Logging: level, format and optional log directory
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: OpenTelemetry export
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`                   // e.g. 3001
	GinMode         string        `yaml:"gin_mode"`               // debug, release, test
	CORSOrigins     []string      `yaml:"cors_origins,omitempty"` // e.g. ["http://localhost:5173"]
	WriteRate       float64       `yaml:"write_rate"`             // writes/second, 0 = unlimited
	WriteBurst      int           `yaml:"write_burst"`            // e.g. 100
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`       // e.g. 10s
}

type CatalogSection struct {
	InitialSize       int           `yaml:"initial_size"`       // ids 1..N at startup
	SelectionInterval time.Duration `yaml:"selection_interval"` // e.g. 1s
	AdditionInterval  time.Duration `yaml:"addition_interval"`  // e.g. 10s
	AuditLog          string        `yaml:"audit_log,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`            // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text, json; empty = auto
	Dir    string `yaml:"dir,omitempty"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is a collector host:port, "stdout", or empty to disable.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() CatalogConfig {
	return CatalogConfig{
		Server: ServerConfig{
			Port:            3001,
			GinMode:         "release",
			WriteBurst:      100,
			ShutdownTimeout: 10 * time.Second,
		},
		Catalog: CatalogSection{
			InitialSize:       1_000_000,
			SelectionInterval: 1 * time.Second,
			AdditionInterval:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
