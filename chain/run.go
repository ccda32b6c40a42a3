//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gptgram/chaincore/transform"
)

// RunStatus is the lifecycle status of a chain run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// NodeState is a node's state within a run.
type NodeState string

const (
	NodeStatePending      NodeState = "pending"
	NodeStateReady        NodeState = "ready"
	NodeStateTransforming NodeState = "transforming"
	NodeStateCallingAgent NodeState = "calling-agent"
	NodeStateCompleted    NodeState = "completed"
	NodeStateFailed       NodeState = "failed"
	NodeStateSkipped      NodeState = "skipped"
)

// Terminal reports whether the state is terminal.
func (s NodeState) Terminal() bool {
	switch s {
	case NodeStateCompleted, NodeStateFailed, NodeStateSkipped:
		return true
	default:
		return false
	}
}

// ProvenanceEntry records which node produced an output field and by what
// method.
type ProvenanceEntry struct {
	OriginNodeID string           `json:"origin_node_id"`
	Method       transform.Method `json:"method"`
	Confidence   float64          `json:"confidence"`
	// TransformChain is the ordered list of steps the value went through,
	// including inputs that were considered but not used by a merge.
	TransformChain []string `json:"transform_chain"`
}

// NodeFailure describes why a node ended in a non-completed terminal state.
type NodeFailure struct {
	NodeID string `json:"node_id"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Run is one execution instance of a chain. It is mutated incrementally by
// the executor as nodes complete and becomes immutable once Status is
// terminal. All mutators are safe for concurrent node goroutines.
type Run struct {
	mu sync.RWMutex

	RunID       string    `json:"run_id"`
	ChainID     string    `json:"chain_id"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// NodeOutputs maps node ID to the node's JSON output.
	NodeOutputs map[string]map[string]any `json:"node_outputs"`
	// NodeStates maps node ID to its current state.
	NodeStates map[string]NodeState `json:"node_states"`
	// TotalCostUnits accumulates transform and agent costs.
	TotalCostUnits int `json:"total_cost_units"`
	// Provenance maps "<nodeID>.<field>" paths to their origin records.
	Provenance map[string]ProvenanceEntry `json:"provenance"`
	// Failures lists per-node failure reasons, enough to show which
	// edge/transform/agent failed and why.
	Failures []NodeFailure `json:"failures,omitempty"`
}

// NewRun creates a pending run for a chain.
func NewRun(chainID string, nodeIDs []string) *Run {
	states := make(map[string]NodeState, len(nodeIDs))
	for _, id := range nodeIDs {
		states[id] = NodeStatePending
	}
	return &Run{
		RunID:       uuid.NewString(),
		ChainID:     chainID,
		Status:      RunStatusPending,
		NodeOutputs: make(map[string]map[string]any),
		NodeStates:  states,
		Provenance:  make(map[string]ProvenanceEntry),
	}
}

func (r *Run) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartedAt = time.Now().UTC()
}

// finish moves the run to its terminal status. CompletedAt is set exactly
// when the status is terminal, and never before StartedAt.
func (r *Run) finish(status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	now := time.Now().UTC()
	if now.Before(r.StartedAt) {
		now = r.StartedAt
	}
	r.CompletedAt = now
}

func (r *Run) setNodeState(nodeID string, state NodeState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NodeStates[nodeID] = state
}

// NodeState returns the node's current state.
func (r *Run) NodeState(nodeID string) NodeState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.NodeStates[nodeID]
}

func (r *Run) setNodeOutput(nodeID string, output map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.NodeOutputs[nodeID] = output
}

// NodeOutput returns a node's output, if it completed.
func (r *Run) NodeOutput(nodeID string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out, ok := r.NodeOutputs[nodeID]
	return out, ok
}

func (r *Run) addCost(units int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TotalCostUnits += units
}

func (r *Run) addFailure(nodeID, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, NodeFailure{
		NodeID: nodeID,
		Stage:  stage,
		Reason: err.Error(),
	})
}

// recordProvenance writes one provenance entry per top-level output field.
func (r *Run) recordProvenance(nodeID string, output map[string]any, entry ProvenanceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for field := range output {
		r.Provenance[fmt.Sprintf("%s.%s", nodeID, field)] = entry
	}
}

// FieldProvenance returns the provenance entry for a node output field.
func (r *Run) FieldProvenance(nodeID, field string) (ProvenanceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.Provenance[fmt.Sprintf("%s.%s", nodeID, field)]
	return entry, ok
}

// Snapshot returns a copy of the run safe to serialize while execution is in
// flight.
func (r *Run) Snapshot() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := &Run{
		RunID:          r.RunID,
		ChainID:        r.ChainID,
		Status:         r.Status,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		NodeOutputs:    make(map[string]map[string]any, len(r.NodeOutputs)),
		NodeStates:     make(map[string]NodeState, len(r.NodeStates)),
		TotalCostUnits: r.TotalCostUnits,
		Provenance:     make(map[string]ProvenanceEntry, len(r.Provenance)),
		Failures:       append([]NodeFailure(nil), r.Failures...),
	}
	for k, v := range r.NodeOutputs {
		snap.NodeOutputs[k] = v
	}
	for k, v := range r.NodeStates {
		snap.NodeStates[k] = v
	}
	for k, v := range r.Provenance {
		snap.Provenance[k] = v
	}
	return snap
}
