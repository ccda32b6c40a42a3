//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package transform bridges incompatible edges between chain nodes. The
// strategies form a hierarchy tried in order: deterministic field mapping,
// historical recipes, and finally LLM synthesis.
package transform

import (
	"fmt"
	"strings"
)

// Method identifies how an edge was bridged.
type Method string

const (
	// MethodDirect means the upstream payload was used as-is.
	MethodDirect Method = "direct"
	// MethodDeterministic means the static alias dictionary produced the payload.
	MethodDeterministic Method = "deterministic"
	// MethodGAT means a historical recipe produced the payload.
	MethodGAT Method = "gat"
	// MethodLLM means the payload was synthesized by an LLM call.
	MethodLLM Method = "llm"
)

// FieldMapping records which source field fed each target field.
// Keys are target field names, values are source field names.
type FieldMapping map[string]string

// SourceOutput is one upstream output, tagged with its node alias. Sources
// are always supplied in node-declaration order.
type SourceOutput struct {
	Alias  string
	Output map[string]any
}

// Candidate is a proposed payload for a target schema.
type Candidate struct {
	// Payload is the produced target payload.
	Payload map[string]any
	// Score is the candidate's confidence: a Schema Matcher score for the
	// deterministic mapper, historical confidence for recipes.
	Score float64
	// Method is the strategy that produced the candidate.
	Method Method
	// Recipe is the field-to-field mapping used, for audit and potential
	// promotion into the recipe store.
	Recipe FieldMapping
	// Accepted reports whether Score cleared the producing strategy's
	// auto-accept threshold.
	Accepted bool
}

// ExhaustedError reports that every strategy failed to produce a valid
// payload for an edge. The node's failure policy governs the outcome.
type ExhaustedError struct {
	// NodeID is the downstream node whose input could not be satisfied.
	NodeID string
	// Attempts lists one reason per strategy tried.
	Attempts []string
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("transform exhausted for node %q: %s",
		e.NodeID, strings.Join(e.Attempts, "; "))
}

// BudgetExceededError reports that the cumulative LLM spend cap was reached.
// It cannot be retried without raising the cap.
type BudgetExceededError struct {
	// CapUnits is the configured spending cap.
	CapUnits int
	// RequestedUnits is the charge that would have crossed the cap.
	RequestedUnits int
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("llm budget exceeded: cap %d units, requested %d more",
		e.CapUnits, e.RequestedUnits)
}
