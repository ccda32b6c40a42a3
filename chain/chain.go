//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package chain models multi-agent workflows as directed acyclic graphs and
// executes them, bridging incompatible edges through the transform hierarchy.
package chain

import (
	"errors"
	"fmt"

	"github.com/gptgram/chaincore/merge"
	"github.com/gptgram/chaincore/schema"
	"github.com/gptgram/chaincore/transform"
)

// ErrCyclicDependency is returned when the node/edge graph contains a cycle.
// It is detected before any node executes and aborts the whole run.
var ErrCyclicDependency = errors.New("chain: cyclic dependency detected")

// AgentKind classifies a callable agent.
type AgentKind string

const (
	// AgentKindWebhook is an external webhook-backed agent.
	AgentKindWebhook AgentKind = "webhook"
	// AgentKindLLM is an LLM-backed agent.
	AgentKindLLM AgentKind = "llm-backed"
	// AgentKindSystem is a platform-internal agent.
	AgentKindSystem AgentKind = "system"
)

// VerificationLevel is the marketplace verification tier of an agent.
type VerificationLevel string

const (
	VerificationUnverified VerificationLevel = "UNVERIFIED"
	VerificationL1         VerificationLevel = "L1"
	VerificationL2         VerificationLevel = "L2"
	VerificationL3         VerificationLevel = "L3"
)

// AgentDescriptor is the identity and contract of a callable agent. It is
// created by the agent registry before a chain references it and immutable
// for the duration of a run; chains reference descriptors, never own them.
type AgentDescriptor struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Kind              AgentKind         `json:"kind"`
	InputSchema       *schema.Schema    `json:"input_schema"`
	OutputSchema      *schema.Schema    `json:"output_schema"`
	PriceUnits        int               `json:"price_units"`
	VerificationLevel VerificationLevel `json:"verification_level"`
}

// NodeKind classifies a chain vertex.
type NodeKind string

const (
	// NodeKindAgent invokes an external agent.
	NodeKindAgent NodeKind = "agent"
	// NodeKindTransformer reshapes data without an agent call.
	NodeKindTransformer NodeKind = "transformer"
	// NodeKindInput feeds the run's initial payload into the chain.
	NodeKindInput NodeKind = "input"
)

// FailurePolicy governs what a node's failure does to the rest of the run.
type FailurePolicy string

const (
	// FailureAbort fails the whole run.
	FailureAbort FailurePolicy = "abort"
	// FailureContinuePartial keeps going; nodes fed only by the failed one
	// are skipped.
	FailureContinuePartial FailurePolicy = "continue_partial"
	// FailureSkip drops only this node's contribution from downstream merges.
	FailureSkip FailurePolicy = "skip"
)

// Node is one vertex in a chain. Nodes are owned exclusively by their chain
// and immutable during execution; runtime status lives on the Run.
type Node struct {
	NodeID string   `json:"node_id"`
	Kind   NodeKind `json:"kind"`
	// AgentID references a registered agent when Kind is NodeKindAgent.
	AgentID string `json:"agent_id,omitempty"`
	// InputTemplate optionally rewrites the node input using @Alias.path
	// tokens resolved against upstream outputs. A string or any JSON shape.
	InputTemplate any `json:"input_template,omitempty"`
	// MergePolicy combines multiple upstream outputs. Defaults to
	// json_merge_by_key when empty.
	MergePolicy merge.Policy `json:"merge_policy,omitempty"`
	// FailurePolicy defaults to abort when empty.
	FailurePolicy FailurePolicy `json:"failure_policy,omitempty"`
}

// Edge is a directed connection between two nodes. CompatibilityScore and
// TransformMethod are filled in during execution; a Chain instance therefore
// serves one run at a time.
type Edge struct {
	From               string           `json:"from"`
	To                 string           `json:"to"`
	CompatibilityScore float64          `json:"compatibility_score,omitempty"`
	TransformMethod    transform.Method `json:"transform_method,omitempty"`
}

// Chain is a DAG of nodes representing a multi-agent workflow. The chain
// builder validates chains before execution; the executor still defensively
// re-checks acyclicity.
type Chain struct {
	ID    string
	nodes map[string]*Node
	// nodeOrder preserves insertion order for deterministic scheduling.
	nodeOrder []string
	edges     []*Edge
}

// NewChain creates an empty chain.
func NewChain(id string) *Chain {
	return &Chain{
		ID:    id,
		nodes: make(map[string]*Node),
	}
}

// AddNode adds a node. Node IDs must be unique within the chain.
func (c *Chain) AddNode(node *Node) error {
	if node == nil || node.NodeID == "" {
		return errors.New("chain: node must have an ID")
	}
	if _, exists := c.nodes[node.NodeID]; exists {
		return fmt.Errorf("chain: duplicate node ID %q", node.NodeID)
	}
	if node.MergePolicy == "" {
		node.MergePolicy = merge.PolicyJSONMergeByKey
	}
	if node.FailurePolicy == "" {
		node.FailurePolicy = FailureAbort
	}
	c.nodes[node.NodeID] = node
	c.nodeOrder = append(c.nodeOrder, node.NodeID)
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Edge declaration
// order defines upstream precedence for merges.
func (c *Chain) AddEdge(from, to string) error {
	if _, ok := c.nodes[from]; !ok {
		return fmt.Errorf("chain: unknown from node %q", from)
	}
	if _, ok := c.nodes[to]; !ok {
		return fmt.Errorf("chain: unknown to node %q", to)
	}
	c.edges = append(c.edges, &Edge{From: from, To: to})
	return nil
}

// Node returns a node by ID.
func (c *Chain) Node(id string) (*Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// Nodes returns all node IDs in insertion order.
func (c *Chain) Nodes() []string {
	out := make([]string, len(c.nodeOrder))
	copy(out, c.nodeOrder)
	return out
}

// Edges returns the edges in declaration order.
func (c *Chain) Edges() []*Edge {
	out := make([]*Edge, len(c.edges))
	copy(out, c.edges)
	return out
}

// UpstreamEdges returns the edges feeding a node, in declaration order.
func (c *Chain) UpstreamEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range c.edges {
		if e.To == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// DownstreamEdges returns the edges leaving a node, in declaration order.
func (c *Chain) DownstreamEdges(nodeID string) []*Edge {
	var out []*Edge
	for _, e := range c.edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// TerminalNodes returns the nodes with no outgoing edges, in insertion order.
func (c *Chain) TerminalNodes() []string {
	var out []string
	for _, id := range c.nodeOrder {
		if len(c.DownstreamEdges(id)) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// TopologicalOrder sorts the nodes with Kahn's algorithm. It returns
// ErrCyclicDependency when the graph has a cycle; the order is deterministic,
// following node insertion order among ready nodes.
func (c *Chain) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(c.nodes))
	for _, id := range c.nodeOrder {
		indegree[id] = 0
	}
	for _, e := range c.edges {
		indegree[e.To]++
	}

	var queue []string
	for _, id := range c.nodeOrder {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(c.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, e := range c.DownstreamEdges(id) {
			indegree[e.To]--
			if indegree[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}

	if len(order) != len(c.nodes) {
		return nil, fmt.Errorf("%w in chain %q", ErrCyclicDependency, c.ID)
	}
	return order, nil
}
