//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package schema

import (
	"fmt"
	"sort"
)

// Default weights of the compatibility score. Tunable via options; the
// defaults match the product's historical behavior.
const (
	defaultCoverageWeight   = 0.6
	defaultTypeMatchWeight  = 0.2
	defaultValidationWeight = 0.2
)

// MatchResult is the outcome of scoring a source sample against a target
// input schema.
type MatchResult struct {
	// Score is the compatibility estimate in [0, 1].
	Score float64
	// Reasons lists human-readable deductions, empty for a perfect match.
	Reasons []string
}

// Matcher computes compatibility scores between source output samples and
// target input schemas. It is pure; callers may cache results per
// (sourceAgentID, targetAgentID) pair since schemas are static per agent.
type Matcher struct {
	coverageWeight   float64
	typeMatchWeight  float64
	validationWeight float64
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithWeights overrides the coverage/type/validation weights. The weights
// should sum to 1 for the score to stay in [0, 1]; Score clamps regardless.
func WithWeights(coverage, typeMatch, validation float64) MatcherOption {
	return func(m *Matcher) {
		m.coverageWeight = coverage
		m.typeMatchWeight = typeMatch
		m.validationWeight = validation
	}
}

// NewMatcher creates a Matcher with the default weights.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		coverageWeight:   defaultCoverageWeight,
		typeMatchWeight:  defaultTypeMatchWeight,
		validationWeight: defaultValidationWeight,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Score computes the weighted compatibility score of a source output sample
// against a target input schema:
//
//	coverageWeight*requiredFieldCoverage +
//	typeMatchWeight*typeMatchRatio +
//	validationWeight*schemaValidationPass
//
// A target with no required fields has coverage 1.0 by definition.
func (m *Matcher) Score(sample map[string]any, target *Schema) MatchResult {
	result := MatchResult{}

	coverage, missing := requiredCoverage(sample, target)
	for _, name := range missing {
		result.Reasons = append(result.Reasons, fmt.Sprintf("missing_required_key: %q", name))
	}

	typeRatio, mismatches := typeMatchRatio(sample, target)
	result.Reasons = append(result.Reasons, mismatches...)

	validationPass := 1.0
	if err := target.Validate(sample); err != nil {
		validationPass = 0.0
		result.Reasons = append(result.Reasons, "schema_validation_failed: "+err.Error())
	}

	score := m.coverageWeight*coverage +
		m.typeMatchWeight*typeRatio +
		m.validationWeight*validationPass
	result.Score = clamp01(score)
	return result
}

func requiredCoverage(sample map[string]any, target *Schema) (float64, []string) {
	required := target.Required()
	if len(required) == 0 {
		return 1.0, nil
	}
	present := 0
	var missing []string
	for _, name := range required {
		if _, ok := sample[name]; ok {
			present++
		} else {
			missing = append(missing, name)
		}
	}
	return float64(present) / float64(len(required)), missing
}

// typeMatchRatio is computed over the matched fields: sample keys declared in
// the target's properties. A sample matching none of the declared properties
// scores zero unless the target declares no properties at all.
func typeMatchRatio(sample map[string]any, target *Schema) (float64, []string) {
	if target == nil || target.Spec == nil || len(target.Spec.Properties) == 0 {
		return 1.0, nil
	}
	var matched []string
	for name := range sample {
		if target.HasProperty(name) {
			matched = append(matched, name)
		}
	}
	if len(matched) == 0 {
		return 0.0, []string{"no_matched_fields"}
	}
	sort.Strings(matched)
	agreed := 0
	var reasons []string
	for _, name := range matched {
		declared := target.PropertyType(name)
		inferred := JSONType(sample[name])
		if TypeAgrees(declared, inferred) {
			agreed++
			continue
		}
		reasons = append(reasons,
			fmt.Sprintf("type_mismatch: %q expected %s, got %s", name, declared, inferred))
	}
	return float64(agreed) / float64(len(matched)), reasons
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
