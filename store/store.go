//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package store persists chain runs and transform records. The executor only
// depends on the narrow saver/recorder interfaces; this package carries the
// full read side for the debug server and offline recipe mining.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/gptgram/chaincore/chain"
	"github.com/gptgram/chaincore/transform"
)

// ErrRunNotFound is returned when a run ID does not exist in the store.
var ErrRunNotFound = errors.New("store: run not found")

// RunStore persists and retrieves chain runs.
type RunStore interface {
	chain.RunSaver

	// GetRun returns a run by ID, or ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*chain.Run, error)
	// ListRuns returns the runs for a chain, newest first. An empty chainID
	// lists every run.
	ListRuns(ctx context.Context, chainID string) ([]*chain.Run, error)
}

// RecordStore persists and retrieves transform audit records.
type RecordStore interface {
	transform.Recorder

	// ListRecords returns the records for a chain run in append order.
	ListRecords(ctx context.Context, chainRunID string) ([]transform.Record, error)
}

// Store is the combined persistence surface.
type Store interface {
	RunStore
	RecordStore
}

// MemoryStore is an in-memory Store for tests and single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*chain.Run
	order   []string
	records map[string][]transform.Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:    make(map[string]*chain.Run),
		records: make(map[string][]transform.Record),
	}
}

// SaveRun implements chain.RunSaver. Saving the same run ID again replaces
// the stored copy, so callers can persist in-flight snapshots.
func (s *MemoryStore) SaveRun(_ context.Context, run *chain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.RunID]; !exists {
		s.order = append(s.order, run.RunID)
	}
	s.runs[run.RunID] = run
	return nil
}

// GetRun implements RunStore.
func (s *MemoryStore) GetRun(_ context.Context, runID string) (*chain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// ListRuns implements RunStore.
func (s *MemoryStore) ListRuns(_ context.Context, chainID string) ([]*chain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*chain.Run
	for _, id := range s.order {
		run := s.runs[id]
		if chainID != "" && run.ChainID != chainID {
			continue
		}
		out = append(out, run)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Append implements transform.Recorder.
func (s *MemoryStore) Append(_ context.Context, rec transform.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ChainRunID] = append(s.records[rec.ChainRunID], rec)
	return nil
}

// ListRecords implements RecordStore.
func (s *MemoryStore) ListRecords(_ context.Context, chainRunID string) ([]transform.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transform.Record(nil), s.records[chainRunID]...), nil
}
