//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package transform

import (
	"context"
	"sync"
	"time"
)

// RecordStatus is the terminal status of one transform attempt.
type RecordStatus string

const (
	// RecordStatusSuccess marks a transform attempt that produced a valid payload.
	RecordStatusSuccess RecordStatus = "success"
	// RecordStatusFailed marks a transform attempt that did not.
	RecordStatusFailed RecordStatus = "failed"
)

// Record is one append-only audit entry per transform attempt. Records are
// created once and never mutated.
type Record struct {
	TransformID        string         `json:"transform_id"`
	ChainRunID         string         `json:"chain_run_id"`
	Method             Method         `json:"method"`
	PayloadBefore      map[string]any `json:"payload_before"`
	PayloadAfter       map[string]any `json:"payload_after"`
	CompatibilityScore float64        `json:"compatibility_score"`
	CostUnits          int            `json:"cost_units"`
	IdempotencyKey     string         `json:"idempotency_key,omitempty"`
	Status             RecordStatus   `json:"status"`
	Timestamp          time.Time      `json:"timestamp"`
}

// Recorder receives transform audit entries. Implementations must tolerate
// concurrent appenders, one per concurrently-executing node; nothing ever
// updates an existing record in place.
type Recorder interface {
	Append(ctx context.Context, rec Record) error
}

// MemoryRecorder is an in-memory append-only Recorder.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryRecorder creates an empty MemoryRecorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Append adds one record.
func (r *MemoryRecorder) Append(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of the recorded entries in append order.
func (r *MemoryRecorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
