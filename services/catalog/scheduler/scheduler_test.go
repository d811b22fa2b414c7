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
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianCatalog/services/catalog/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingFlusher wraps a real store and counts passes.
type countingFlusher struct {
	*store.Store
	selectionPasses atomic.Int64
	additionPasses  atomic.Int64
}

func (f *countingFlusher) FlushSelection() store.SelectionFlushResult {
	f.selectionPasses.Add(1)
	return f.Store.FlushSelection()
}

func (f *countingFlusher) FlushAdditions() store.AdditionFlushResult {
	f.additionPasses.Add(1)
	return f.Store.FlushAdditions()
}

type recordingObserver struct {
	mu         sync.Mutex
	selections []store.SelectionFlushResult
	additions  []store.AdditionFlushResult
}

func (o *recordingObserver) ObserveSelectionFlush(result store.SelectionFlushResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selections = append(o.selections, result)
}

func (o *recordingObserver) ObserveAdditionFlush(result store.AdditionFlushResult, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.additions = append(o.additions, result)
}

type recordingAuditor struct {
	mu         sync.Mutex
	selections int
	additions  int
	err        error
}

func (a *recordingAuditor) LogSelectionFlush(store.SelectionFlushResult, time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selections++
	return a.err
}

func (a *recordingAuditor) LogAdditionFlush(store.AdditionFlushResult, time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.additions++
	return a.err
}

func (a *recordingAuditor) Close() error { return nil }

func fastConfig() Config {
	return Config{
		SelectionInterval: 5 * time.Millisecond,
		AdditionInterval:  20 * time.Millisecond,
	}
}

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	assert.Equal(t, time.Second, cfg.SelectionInterval)
	assert.Equal(t, 10*time.Second, cfg.AdditionInterval)
}

func TestNewFlushScheduler_ZeroConfigUsesDefaults(t *testing.T) {
	s := NewFlushScheduler(store.NewStore(0), nil, nil, Config{})
	assert.Equal(t, DefaultSchedulerConfig(), s.Config())
}

func TestFlushScheduler_TicksApplyStagedWork(t *testing.T) {
	st := store.NewStore(5)
	s := NewFlushScheduler(st, nil, nil, fastConfig())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	st.QueueSelect(3)
	st.QueueSelect(1)
	require.True(t, st.QueueAdditionIfAbsent(6))

	require.Eventually(t, func() bool {
		return len(st.SelectedIDs()) == 2 && st.Contains(6)
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []int64{3, 1}, st.SelectedIDs())
}

func TestFlushScheduler_TimersAreIndependent(t *testing.T) {
	f := &countingFlusher{Store: store.NewStore(1)}
	s := NewFlushScheduler(f, nil, nil, Config{
		SelectionInterval: 5 * time.Millisecond,
		AdditionInterval:  time.Hour,
	})

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return f.selectionPasses.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Zero(t, f.additionPasses.Load())
}

func TestFlushScheduler_StartTwice(t *testing.T) {
	s := NewFlushScheduler(store.NewStore(0), nil, nil, fastConfig())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, s.Running())
}

func TestFlushScheduler_StopIsIdempotent(t *testing.T) {
	s := NewFlushScheduler(store.NewStore(0), nil, nil, fastConfig())

	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestFlushScheduler_RestartAfterStop(t *testing.T) {
	st := store.NewStore(3)
	s := NewFlushScheduler(st, nil, nil, fastConfig())

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	st.QueueSelect(2)
	require.Eventually(t, func() bool {
		return len(st.SelectedIDs()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFlushScheduler_ContextCancelStopsLoops(t *testing.T) {
	f := &countingFlusher{Store: store.NewStore(0)}
	s := NewFlushScheduler(f, nil, nil, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	// Stop must still return once the loops have seen the cancellation.
	s.Stop()

	passes := f.selectionPasses.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, passes, f.selectionPasses.Load())
}

func TestFlushScheduler_RunSelectionNow(t *testing.T) {
	st := store.NewStore(4)
	obs := &recordingObserver{}
	audit := &recordingAuditor{}
	s := NewFlushScheduler(st, obs, audit, DefaultSchedulerConfig())

	st.QueueSelect(1)
	st.QueueSelect(2)
	st.QueueReorder([]int64{2, 1})

	result := s.RunSelectionNow(context.Background())

	assert.Equal(t, 2, result.IntentsApplied)
	assert.True(t, result.Reordered)
	assert.Equal(t, []int64{2, 1}, st.SelectedIDs())
	require.Len(t, obs.selections, 1)
	assert.Equal(t, 1, audit.selections)
}

func TestFlushScheduler_EmptyPassObservedNotAudited(t *testing.T) {
	st := store.NewStore(4)
	obs := &recordingObserver{}
	audit := &recordingAuditor{}
	s := NewFlushScheduler(st, obs, audit, DefaultSchedulerConfig())

	sel := s.RunSelectionNow(context.Background())
	add := s.RunAdditionsNow(context.Background())

	assert.False(t, sel.DidWork())
	assert.False(t, add.DidWork())
	assert.Len(t, obs.selections, 1)
	assert.Len(t, obs.additions, 1)
	assert.Zero(t, audit.selections)
	assert.Zero(t, audit.additions)
}

func TestFlushScheduler_RunAdditionsNow(t *testing.T) {
	st := store.NewStore(2)
	audit := &recordingAuditor{}
	s := NewFlushScheduler(st, nil, audit, DefaultSchedulerConfig())

	st.QueueAddition(3)
	st.QueueAddition(3)
	st.QueueAddition(2)

	result := s.RunAdditionsNow(context.Background())

	assert.Equal(t, 2, result.Staged)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.CatalogSize)
	assert.Equal(t, 1, audit.additions)
}

func TestFlushScheduler_AuditFailureDoesNotStopFlush(t *testing.T) {
	st := store.NewStore(2)
	audit := &recordingAuditor{err: ErrAuditLogClosed}
	s := NewFlushScheduler(st, nil, audit, DefaultSchedulerConfig())

	st.QueueSelect(1)
	result := s.RunSelectionNow(context.Background())

	assert.Equal(t, 1, result.Selected)
	assert.Equal(t, []int64{1}, st.SelectedIDs())
}
