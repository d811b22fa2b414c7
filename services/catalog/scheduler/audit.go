// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/store"
)

// =============================================================================
// Flush Audit Log
// =============================================================================

// auditLogFileMode restricts read/write to owner only (0600).
const auditLogFileMode = 0600

// ErrAuditLogClosed is returned by writes after Close.
var ErrAuditLogClosed = errors.New("flush audit log is closed")

// FlushAuditor records applied flushes somewhere durable.
type FlushAuditor interface {
	LogSelectionFlush(result store.SelectionFlushResult, elapsed time.Duration) error
	LogAdditionFlush(result store.AdditionFlushResult, elapsed time.Duration) error
	Close() error
}

// AuditLog writes one JSON object per line for every flush that did work.
//
// # Description
//
// The file is opened in append mode so restarts extend the same log. Each
// line is self-contained, which keeps the file greppable and easy to feed
// into jq or a log shipper.
//
// # Thread Safety
//
// All methods are thread-safe. Writes are serialized via mutex.
type AuditLog struct {
	logFile *os.File
	logPath string
	fileMu  sync.Mutex
}

// NewAuditLog opens (or creates) the audit file at logPath.
//
// # Inputs
//
//   - logPath: Path to the audit file. Created with mode 0600 if missing.
//
// # Outputs
//
//   - *AuditLog: Ready to use.
//   - error: Non-nil if the file cannot be opened.
//
// # Examples
//
//	audit, err := NewAuditLog("/var/log/aleutian/catalog_flush.log")
//	if err != nil {
//	    return fmt.Errorf("failed to open flush audit log: %w", err)
//	}
//	defer audit.Close()
//
// # Limitations
//
//   - Log rotation must be handled externally (e.g., logrotate).
func NewAuditLog(logPath string) (*AuditLog, error) {
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, auditLogFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open flush audit log: %w", err)
	}
	return &AuditLog{logFile: file, logPath: logPath}, nil
}

// Path returns the file the log appends to.
func (l *AuditLog) Path() string {
	return l.logPath
}

// LogSelectionFlush appends a selection flush record.
func (l *AuditLog) LogSelectionFlush(result store.SelectionFlushResult, elapsed time.Duration) error {
	return l.write(flushAuditRecord{
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
		Cycle:          "selection",
		IntentsApplied: result.IntentsApplied,
		Selected:       result.Selected,
		Unselected:     result.Unselected,
		Reordered:      result.Reordered,
		ReorderLength:  result.ReorderLength,
		SelectionSize:  result.SelectionSize,
		DurationUs:     elapsed.Microseconds(),
	})
}

// LogAdditionFlush appends an addition flush record.
func (l *AuditLog) LogAdditionFlush(result store.AdditionFlushResult, elapsed time.Duration) error {
	return l.write(flushAuditRecord{
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Cycle:       "additions",
		Staged:      result.Staged,
		Inserted:    result.Inserted,
		Skipped:     result.Skipped,
		CatalogSize: result.CatalogSize,
		DurationUs:  elapsed.Microseconds(),
	})
}

// Close flushes and closes the underlying file. Safe to call twice.
func (l *AuditLog) Close() error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			return fmt.Errorf("failed to close flush audit log: %w", err)
		}
		l.logFile = nil
	}
	return nil
}

func (l *AuditLog) write(record flushAuditRecord) error {
	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal flush record: %w", err)
	}

	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.logFile == nil {
		return ErrAuditLogClosed
	}
	if _, err := l.logFile.Write(append(jsonBytes, '\n')); err != nil {
		return fmt.Errorf("failed to write flush record: %w", err)
	}
	return nil
}

// flushAuditRecord is the on-disk shape of one audit line. Fields that do
// not apply to a cycle are omitted.
type flushAuditRecord struct {
	Timestamp      string `json:"timestamp"`
	Cycle          string `json:"cycle"`
	IntentsApplied int    `json:"intents_applied,omitempty"`
	Selected       int    `json:"selected,omitempty"`
	Unselected     int    `json:"unselected,omitempty"`
	Reordered      bool   `json:"reordered,omitempty"`
	ReorderLength  int    `json:"reorder_length,omitempty"`
	SelectionSize  int    `json:"selection_size,omitempty"`
	Staged         int    `json:"staged,omitempty"`
	Inserted       int    `json:"inserted,omitempty"`
	Skipped        int    `json:"skipped,omitempty"`
	CatalogSize    int    `json:"catalog_size,omitempty"`
	DurationUs     int64  `json:"duration_us"`
}
