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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gptgram/chaincore/internal/telemetry"
	"github.com/gptgram/chaincore/log"
	"github.com/gptgram/chaincore/merge"
	"github.com/gptgram/chaincore/schema"
	"github.com/gptgram/chaincore/token"
	"github.com/gptgram/chaincore/transform"
)

// RunSaver receives run updates from the executor. Implementations decide
// the storage schema.
type RunSaver interface {
	SaveRun(ctx context.Context, run *Run) error
}

// Executor orders a chain's nodes topologically and executes them, bridging
// incompatible edges through the transform hierarchy: deterministic mapper,
// recipe recommender, LLM synthesizer.
type Executor struct {
	caller      AgentCaller
	agents      *Registry
	matcher     *schema.Matcher
	mapper      *transform.Mapper
	recommender *transform.Recommender
	synthesizer *transform.Synthesizer
	recorder    transform.Recorder
	saver       RunSaver

	directThreshold float64
	workers         int
	agentTimeout    time.Duration
	llmTimeout      time.Duration
}

// NewExecutor creates an Executor. caller and agents are required; the
// transform strategies default to a bare matcher and mapper, with recipes and
// synthesis opt-in.
func NewExecutor(caller AgentCaller, agents *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		caller:          caller,
		agents:          agents,
		matcher:         schema.NewMatcher(),
		mapper:          transform.NewMapper(),
		recorder:        transform.NewMemoryRecorder(),
		directThreshold: defaultDirectThreshold,
		workers:         defaultWorkerPoolSize,
		agentTimeout:    defaultAgentTimeout,
		llmTimeout:      defaultLLMTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a chain with the given initial input payload. A cycle in the
// graph aborts before any node executes, returning ErrCyclicDependency.
// Per-node failures never propagate as errors; they surface on the returned
// Run as node states and failure reasons.
func (e *Executor) Execute(ctx context.Context, c *Chain, input map[string]any) (*Run, error) {
	if _, err := c.TopologicalOrder(); err != nil {
		return nil, err
	}

	run := NewRun(c.ID, c.Nodes())
	run.start()

	ctx, span := telemetry.StartSpan(ctx, telemetry.OperationExecuteChain,
		attribute.String("chain_id", c.ID),
		attribute.String("run_id", run.RunID),
	)
	err := e.schedule(ctx, c, run, input)
	telemetry.EndSpan(span, err)

	if e.saver != nil {
		// Persist with a fresh context so a cancelled run is still saved.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if saveErr := e.saver.SaveRun(saveCtx, run.Snapshot()); saveErr != nil {
			log.Errorf("executor: save run %s: %v", run.RunID, saveErr)
		}
	}
	return run, nil
}

// schedule dispatches ready nodes onto a bounded worker pool. A node starts
// only when all of its direct upstream nodes are terminal; sibling branches
// are otherwise unordered.
func (e *Executor) schedule(ctx context.Context, c *Chain, run *Run, input map[string]any) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(e.workers)
	if err != nil {
		run.finish(RunStatusFailed)
		return fmt.Errorf("executor: create worker pool: %w", err)
	}
	defer pool.Release()

	remaining := make(map[string]int, len(c.Nodes()))
	for _, id := range c.Nodes() {
		remaining[id] = len(c.UpstreamEdges(id))
	}

	var mu sync.Mutex
	submitted := 0
	finished := 0
	aborted := false
	done := make(chan string, len(c.Nodes()))

	submit := func(nodeID string) {
		submitted++
		run.setNodeState(nodeID, NodeStateReady)
		task := func() {
			e.runNode(ctx, c, run, input, nodeID)
			done <- nodeID
		}
		if err := pool.Submit(task); err != nil {
			// Pool rejected the task (released or overloaded); run inline
			// rather than losing the node.
			go task()
		}
	}

	handleDone := func(nodeID string) {
		mu.Lock()
		defer mu.Unlock()
		finished++
		node, _ := c.Node(nodeID)
		if run.NodeState(nodeID) == NodeStateFailed &&
			node.FailurePolicy == FailureAbort && !aborted {
			aborted = true
			cancel()
		}
		if aborted {
			return
		}
		for _, edge := range c.DownstreamEdges(nodeID) {
			remaining[edge.To]--
			if remaining[edge.To] == 0 {
				submit(edge.To)
			}
		}
	}

	mu.Lock()
	for _, id := range c.Nodes() {
		if remaining[id] == 0 {
			submit(id)
		}
	}
	mu.Unlock()

	for {
		mu.Lock()
		pending := finished < submitted
		drainOnly := aborted
		mu.Unlock()
		if !pending {
			break
		}

		if drainOnly {
			// Everything left is already in flight; just drain it.
			handleDone(<-done)
			continue
		}
		select {
		case <-ctx.Done():
			mu.Lock()
			if !aborted {
				aborted = true
				run.addFailure("", "run", ctx.Err())
			}
			mu.Unlock()
		case nodeID := <-done:
			handleDone(nodeID)
		}
	}

	// Nodes never submitted stay out of the terminal count; mark them.
	for _, id := range c.Nodes() {
		if !run.NodeState(id).Terminal() {
			run.setNodeState(id, NodeStateSkipped)
		}
	}

	run.finish(e.finalStatus(c, run, aborted))
	return nil
}

// finalStatus decides the run's terminal status: aborts fail the run, and a
// partial run only counts as completed when at least one terminal node of the
// chain actually produced output.
func (e *Executor) finalStatus(c *Chain, run *Run, aborted bool) RunStatus {
	if aborted {
		return RunStatusFailed
	}
	for _, id := range c.TerminalNodes() {
		if run.NodeState(id) == NodeStateCompleted {
			return RunStatusCompleted
		}
	}
	return RunStatusFailed
}

// runNode executes a single node end to end: merge upstream outputs, score,
// bridge the edge if needed, call the agent, record output and provenance.
func (e *Executor) runNode(ctx context.Context, c *Chain, run *Run, input map[string]any, nodeID string) {
	node, ok := c.Node(nodeID)
	if !ok {
		run.addFailure(nodeID, "lookup", fmt.Errorf("node %q not in chain", nodeID))
		run.setNodeState(nodeID, NodeStateFailed)
		return
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.OperationExecuteNode,
		attribute.String("node_id", nodeID),
		attribute.String("node_kind", string(node.Kind)),
	)
	err := e.executeNode(ctx, c, run, input, node)
	telemetry.EndSpan(span, err)
}

func (e *Executor) executeNode(ctx context.Context, c *Chain, run *Run, input map[string]any, node *Node) error {
	if err := ctx.Err(); err != nil {
		run.setNodeState(node.NodeID, NodeStateSkipped)
		return nil
	}

	if node.Kind == NodeKindInput {
		output := input
		if output == nil {
			output = map[string]any{}
		}
		run.setNodeOutput(node.NodeID, output)
		run.recordProvenance(node.NodeID, output, ProvenanceEntry{
			OriginNodeID:   node.NodeID,
			Method:         transform.MethodDirect,
			Confidence:     1.0,
			TransformChain: []string{"input"},
		})
		run.setNodeState(node.NodeID, NodeStateCompleted)
		return nil
	}

	sources, steps, feedsEmpty := e.gatherUpstream(c, run, input, node)
	if feedsEmpty {
		// Every upstream contribution is absent; this is not an error, the
		// node simply does not run.
		log.Debugf("executor: node %s skipped, no completed upstream", node.NodeID)
		run.setNodeState(node.NodeID, NodeStateSkipped)
		return nil
	}

	payload, outcome, err := e.buildPayload(node, sources)
	if err != nil {
		return e.failNode(run, node, "merge", err)
	}
	steps = append(steps, outcome...)

	method := transform.MethodDirect
	confidence := 1.0
	score := 1.0
	synthCost := 0

	agent, hasAgent := e.lookupAgent(node)
	if node.Kind == NodeKindAgent && !hasAgent {
		return e.failNode(run, node, "agent-lookup",
			fmt.Errorf("agent %q not registered", node.AgentID))
	}

	if hasAgent && agent.InputSchema != nil {
		match := e.matcher.Score(payload, agent.InputSchema)
		score = match.Score
		confidence = match.Score
		if match.Score < e.directThreshold {
			run.setNodeState(node.NodeID, NodeStateTransforming)
			bridged, bridgeErr := e.bridge(ctx, c, run, node, agent, sources, payload)
			if bridgeErr != nil {
				return e.failNode(run, node, "transform", bridgeErr)
			}
			payload = bridged.Payload
			method = bridged.Method
			confidence = bridged.Score
			synthCost = bridged.CostUnits
			steps = append(steps, "transform:"+string(method))
		}
	}
	e.markEdges(c, node.NodeID, score, method)

	output := payload
	if hasAgent {
		run.setNodeState(node.NodeID, NodeStateCallingAgent)
		callCtx, cancel := context.WithTimeout(ctx, e.agentTimeout)
		defer cancel()

		agentCtx, agentSpan := telemetry.StartSpan(callCtx, telemetry.OperationCallAgent,
			attribute.String("agent_id", agent.ID))
		result, callErr := e.caller.Call(agentCtx, agent, payload)
		telemetry.EndSpan(agentSpan, callErr)
		if callErr != nil {
			var agentErr *AgentCallError
			if !errors.As(callErr, &agentErr) {
				callErr = &AgentCallError{AgentID: agent.ID, Err: callErr}
			}
			return e.failNode(run, node, "agent-call", callErr)
		}
		run.addCost(agent.PriceUnits)
		output = result
		steps = append(steps, "agent:"+agent.ID)
	}
	if synthCost > 0 {
		run.addCost(synthCost)
	}

	run.setNodeOutput(node.NodeID, output)
	run.recordProvenance(node.NodeID, output, ProvenanceEntry{
		OriginNodeID:   node.NodeID,
		Method:         method,
		Confidence:     confidence,
		TransformChain: steps,
	})
	run.setNodeState(node.NodeID, NodeStateCompleted)
	return nil
}

// gatherUpstream collects completed upstream outputs in edge-declaration
// order. feedsEmpty is true when the node has upstream edges but none of them
// contributed output.
func (e *Executor) gatherUpstream(c *Chain, run *Run, input map[string]any, node *Node) (
	sources []transform.SourceOutput, steps []string, feedsEmpty bool,
) {
	upstream := c.UpstreamEdges(node.NodeID)
	if len(upstream) == 0 {
		// Source-less nodes consume the run's initial input.
		if input == nil {
			input = map[string]any{}
		}
		return []transform.SourceOutput{{Alias: node.NodeID, Output: input}}, nil, false
	}
	for _, edge := range upstream {
		if run.NodeState(edge.From) == NodeStateCompleted {
			output, _ := run.NodeOutput(edge.From)
			sources = append(sources, transform.SourceOutput{Alias: edge.From, Output: output})
			continue
		}
		// Absent contribution: recorded as considered, not used.
		steps = append(steps, "considered_not_used:"+edge.From)
	}
	return sources, steps, len(sources) == 0
}

// buildPayload merges the upstream outputs per the node's policy, then
// applies the node's input template when one is declared and fully resolves.
func (e *Executor) buildPayload(node *Node, sources []transform.SourceOutput) (map[string]any, []string, error) {
	inputs := make([]map[string]any, len(sources))
	outputsByAlias := make(map[string]any, len(sources))
	for i, src := range sources {
		inputs[i] = src.Output
		outputsByAlias[src.Alias] = src.Output
	}

	outcome, err := merge.Apply(inputs, node.MergePolicy)
	if err != nil {
		return nil, nil, err
	}
	steps := []string{"merge:" + string(node.MergePolicy)}
	for _, idx := range outcome.ConsideredInputs {
		steps = append(steps, "considered_not_used:"+sources[idx].Alias)
	}

	payload := outcome.Output
	if node.InputTemplate != nil {
		resolved := token.Resolve(node.InputTemplate, outputsByAlias)
		if len(resolved.Unresolved) > 0 {
			// Unresolved tokens fall back to the merged payload; the
			// transform hierarchy takes it from there.
			log.Warnf("executor: node %s template has unresolved tokens %v",
				node.NodeID, resolved.Unresolved)
		} else if templated, ok := resolved.Resolved.(map[string]any); ok {
			payload = templated
			steps = append(steps, "template")
		}
	}
	return payload, steps, nil
}

// bridgeResult is the winning transform candidate for an edge.
type bridgeResult struct {
	Payload   map[string]any
	Method    transform.Method
	Score     float64
	CostUnits int
}

// bridge tries the transform hierarchy in order and stops at the first
// candidate that clears its strategy's threshold.
func (e *Executor) bridge(
	ctx context.Context,
	c *Chain,
	run *Run,
	node *Node,
	agent *AgentDescriptor,
	sources []transform.SourceOutput,
	merged map[string]any,
) (*bridgeResult, error) {
	var attempts []string

	if candidate := e.mapper.TryMap(sources, agent.InputSchema); candidate != nil {
		e.recordAttempt(ctx, run, candidate, merged)
		if candidate.Accepted {
			return &bridgeResult{
				Payload: candidate.Payload,
				Method:  transform.MethodDeterministic,
				Score:   candidate.Score,
			}, nil
		}
		attempts = append(attempts,
			fmt.Sprintf("deterministic: score %.2f below threshold", candidate.Score))
	} else {
		attempts = append(attempts, "deterministic: no candidate")
	}

	if e.recommender != nil {
		sourceAgentID := e.primaryUpstreamAgent(c, node)
		candidates, err := e.recommender.Suggest(ctx, sourceAgentID, agent.ID, sources, agent.InputSchema)
		if err != nil {
			attempts = append(attempts, "gat: "+err.Error())
		} else if len(candidates) == 0 {
			attempts = append(attempts, "gat: no recipe")
		} else {
			for _, candidate := range candidates {
				e.recordAttempt(ctx, run, candidate, merged)
				if candidate.Accepted {
					return &bridgeResult{
						Payload: candidate.Payload,
						Method:  transform.MethodGAT,
						Score:   candidate.Score,
					}, nil
				}
			}
			attempts = append(attempts, "gat: candidates below threshold")
		}
	} else {
		attempts = append(attempts, "gat: recommender not configured")
	}

	if e.synthesizer != nil {
		llmCtx, cancel := context.WithTimeout(ctx, e.llmTimeout)
		defer cancel()
		result, err := e.synthesizer.Synthesize(llmCtx, &transform.SynthesisRequest{
			ChainRunID:     run.RunID,
			IdempotencyKey: run.RunID + ":" + node.NodeID,
			Combined:       merged,
			Target:         agent.InputSchema,
		})
		if err != nil {
			var budgetErr *transform.BudgetExceededError
			if errors.As(err, &budgetErr) {
				// Hard failure for this edge; cannot retry without raising
				// the cap.
				return nil, err
			}
			attempts = append(attempts, "llm: "+err.Error())
		} else if result.Valid {
			return &bridgeResult{
				Payload:   result.Payload,
				Method:    transform.MethodLLM,
				Score:     result.Score,
				CostUnits: result.CostUnits,
			}, nil
		} else {
			attempts = append(attempts, "llm: output failed schema validation")
		}
	} else {
		attempts = append(attempts, "llm: synthesizer not configured")
	}

	return nil, &transform.ExhaustedError{NodeID: node.NodeID, Attempts: attempts}
}

// primaryUpstreamAgent returns the agent ID of the first upstream agent node,
// which keys the recipe lookup for multi-upstream nodes.
func (e *Executor) primaryUpstreamAgent(c *Chain, node *Node) string {
	for _, edge := range c.UpstreamEdges(node.NodeID) {
		if upstream, ok := c.Node(edge.From); ok && upstream.AgentID != "" {
			return upstream.AgentID
		}
	}
	return ""
}

func (e *Executor) lookupAgent(node *Node) (*AgentDescriptor, bool) {
	if node.Kind != NodeKindAgent || node.AgentID == "" || e.agents == nil {
		return nil, false
	}
	return e.agents.Agent(node.AgentID)
}

func (e *Executor) markEdges(c *Chain, nodeID string, score float64, method transform.Method) {
	for _, edge := range c.UpstreamEdges(nodeID) {
		edge.CompatibilityScore = score
		edge.TransformMethod = method
	}
}

func (e *Executor) recordAttempt(ctx context.Context, run *Run, candidate *transform.Candidate, before map[string]any) {
	if e.recorder == nil {
		return
	}
	status := transform.RecordStatusFailed
	if candidate.Accepted {
		status = transform.RecordStatusSuccess
	}
	rec := transform.Record{
		TransformID:        uuid.NewString(),
		ChainRunID:         run.RunID,
		Method:             candidate.Method,
		PayloadBefore:      before,
		PayloadAfter:       candidate.Payload,
		CompatibilityScore: candidate.Score,
		Status:             status,
		Timestamp:          time.Now().UTC(),
	}
	if err := e.recorder.Append(ctx, rec); err != nil {
		log.Warnf("executor: append transform record: %v", err)
	}
}

func (e *Executor) failNode(run *Run, node *Node, stage string, err error) error {
	log.Errorf("executor: node %s failed at %s: %v", node.NodeID, stage, err)
	run.addFailure(node.NodeID, stage, err)
	run.setNodeState(node.NodeID, NodeStateFailed)
	return err
}
