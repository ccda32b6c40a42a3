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
	"context"
	"fmt"
	"sync"
)

// AgentCaller invokes an external agent with a schema-valid payload and
// returns its JSON output. The pipeline never constructs HTTP requests,
// signatures or agent auth; all of that lives behind this interface.
// Implementations must honor ctx cancellation and deadlines.
type AgentCaller interface {
	Call(ctx context.Context, agent *AgentDescriptor, payload map[string]any) (map[string]any, error)
}

// AgentCallError wraps a failed agent invocation (network error, non-2xx,
// timeout). The failing node's FailurePolicy governs the outcome.
type AgentCallError struct {
	AgentID string
	Err     error
}

// Error implements the error interface.
func (e *AgentCallError) Error() string {
	return fmt.Sprintf("agent %q call failed: %v", e.AgentID, e.Err)
}

// Unwrap returns the underlying error.
func (e *AgentCallError) Unwrap() error {
	return e.Err
}

// Registry holds the agents a chain may reference. It is an explicit,
// injected repository with caller-scoped lifetime, not a process global.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*AgentDescriptor
}

// NewRegistry creates a registry pre-populated with the given agents.
func NewRegistry(agents ...*AgentDescriptor) *Registry {
	r := &Registry{agents: make(map[string]*AgentDescriptor, len(agents))}
	for _, a := range agents {
		r.agents[a.ID] = a
	}
	return r
}

// Register adds or replaces an agent descriptor.
func (r *Registry) Register(a *AgentDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

// Agent returns the descriptor for an agent ID.
func (r *Registry) Agent(id string) (*AgentDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}
