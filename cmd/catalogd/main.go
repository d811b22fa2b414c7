// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command catalogd serves the deferred-write item catalog over HTTP.
//
// Settings are resolved lowest to highest: built-in defaults, the YAML file
// named by --config, CATALOG_* environment variables, then flags.
//
// # Usage
//
//	# Build
//	go build -o catalogd ./cmd/catalogd
//
//	# Run with defaults (port 3001, 1,000,000 items)
//	./catalogd
//
//	# Small catalog, fast flushes, JSON logs
//	./catalogd --catalog-size 1000 --selection-interval 200ms --log-format json
//
//	# Print the effective configuration as YAML
//	./catalogd config --config catalogd.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianCatalog/cmd/catalogd/config"
	"github.com/AleutianAI/AleutianCatalog/pkg/logging"
	"github.com/AleutianAI/AleutianCatalog/services/catalog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// flagValues holds raw flag destinations. Only flags the user actually set
// are copied over the file and environment settings.
type flagValues struct {
	configPath        string
	port              int
	catalogSize       int
	selectionInterval time.Duration
	additionInterval  time.Duration
	otelEndpoint      string
	auditLog          string
	logLevel          string
	logDir            string
	logFormat         string
	writeRate         float64
	writeBurst        int
	corsOrigins       []string
}

func newRootCmd(lookup config.LookupFunc) *cobra.Command {
	flags := &flagValues{}

	rootCmd := &cobra.Command{
		Use:   "catalogd",
		Short: "Serve the item catalog with deferred select, reorder and add writes",
		Long: `catalogd keeps an in-memory catalog of numeric items and an ordered
selection. Writes are accepted immediately and applied by two background
flushes: select/unselect/reorder every selection interval, catalog additions
every addition interval.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags, lookup)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	pf.IntVar(&flags.port, "port", 0, "HTTP listen port (default 3001)")
	pf.IntVar(&flags.catalogSize, "catalog-size", 0, "number of items at startup, 0 for an empty catalog")
	pf.DurationVar(&flags.selectionInterval, "selection-interval", 0, "select/unselect/reorder flush period (default 1s)")
	pf.DurationVar(&flags.additionInterval, "addition-interval", 0, "catalog addition flush period (default 10s)")
	pf.StringVar(&flags.otelEndpoint, "otel-endpoint", "", "OTLP collector host:port, or \"stdout\"")
	pf.StringVar(&flags.auditLog, "audit-log", "", "append flush audit records to this JSON-lines file")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.StringVar(&flags.logFormat, "log-format", "", "console log format: text or json (default auto)")
	pf.Float64Var(&flags.writeRate, "write-rate", 0, "write requests per second, 0 for unlimited")
	pf.IntVar(&flags.writeBurst, "write-burst", 0, "write request burst size (default 100)")
	pf.StringSliceVar(&flags.corsOrigins, "cors-origin", nil, "allowed CORS origin, repeatable (default any)")

	rootCmd.AddCommand(newConfigCmd(flags, lookup))
	return rootCmd
}

func newConfigCmd(flags *flagValues, lookup config.LookupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, flags, lookup)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// resolveConfig layers the config file, the environment and changed flags,
// then validates the result.
func resolveConfig(cmd *cobra.Command, flags *flagValues, lookup config.LookupFunc) (config.CatalogConfig, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	applyFlags(cmd, flags, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, flags *flagValues, cfg *config.CatalogConfig) {
	changed := cmd.Flags().Changed

	if changed("port") {
		cfg.Server.Port = flags.port
	}
	if changed("catalog-size") {
		cfg.Catalog.InitialSize = flags.catalogSize
	}
	if changed("selection-interval") {
		cfg.Catalog.SelectionInterval = flags.selectionInterval
	}
	if changed("addition-interval") {
		cfg.Catalog.AdditionInterval = flags.additionInterval
	}
	if changed("otel-endpoint") {
		cfg.Telemetry.OTLPEndpoint = flags.otelEndpoint
	}
	if changed("audit-log") {
		cfg.Catalog.AuditLog = flags.auditLog
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
	if changed("log-dir") {
		cfg.Logging.Dir = flags.logDir
	}
	if changed("log-format") {
		cfg.Logging.Format = flags.logFormat
	}
	if changed("write-rate") {
		cfg.Server.WriteRate = flags.writeRate
	}
	if changed("write-burst") {
		cfg.Server.WriteBurst = flags.writeBurst
	}
	if changed("cors-origin") {
		cfg.Server.CORSOrigins = flags.corsOrigins
	}
}

// serve installs the logger, builds the service and runs it until SIGINT
// or SIGTERM.
func serve(parent context.Context, cfg config.CatalogConfig) error {
	logger, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Close()
	logger.Install()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting catalogd",
		"port", cfg.Server.Port,
		"catalog_size", cfg.Catalog.InitialSize,
		"selection_interval", cfg.Catalog.SelectionInterval.String(),
		"addition_interval", cfg.Catalog.AdditionInterval.String(),
		"write_rate", cfg.Server.WriteRate,
	)

	svc, err := catalog.New(cfg.ServiceConfig())
	if err != nil {
		slog.Error("Failed to create catalog service", "error", err)
		return err
	}
	if err := svc.Run(ctx); err != nil {
		slog.Error("Catalog service stopped with error", "error", err)
		return err
	}
	slog.Info("Catalog service stopped")
	return nil
}
