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

	"github.com/gptgram/chaincore/schema"
)

// defaultRecipeThreshold is the auto-accept confidence for recipe mappings.
const defaultRecipeThreshold = 0.70

// Recipe is a previously recorded field mapping between two specific agents.
// Confidence is the fraction of past applications that succeeded. Recipes are
// produced by an offline process; this package only reads them.
type Recipe struct {
	SourceAgentID string       `json:"source_agent_id"`
	TargetAgentID string       `json:"target_agent_id"`
	Mapping       FieldMapping `json:"mapping"`
	Confidence    float64      `json:"confidence"`
}

// RecipeStore is the read-only lookup over recorded recipes.
type RecipeStore interface {
	// Lookup returns the recipe for the agent pair, or nil when none exists.
	Lookup(ctx context.Context, sourceAgentID, targetAgentID string) (*Recipe, error)
}

// MemoryRecipeStore is an in-memory RecipeStore seeded at construction.
type MemoryRecipeStore struct {
	mu      sync.RWMutex
	recipes map[recipeKey]*Recipe
}

type recipeKey struct {
	source string
	target string
}

// NewMemoryRecipeStore creates a store pre-populated with the given recipes.
func NewMemoryRecipeStore(recipes ...*Recipe) *MemoryRecipeStore {
	s := &MemoryRecipeStore{recipes: make(map[recipeKey]*Recipe, len(recipes))}
	for _, r := range recipes {
		s.recipes[recipeKey{r.SourceAgentID, r.TargetAgentID}] = r
	}
	return s
}

// Lookup implements RecipeStore.
func (s *MemoryRecipeStore) Lookup(_ context.Context, sourceAgentID, targetAgentID string) (*Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recipes[recipeKey{sourceAgentID, targetAgentID}], nil
}

// Recommender applies historical recipes between agent pairs. The product
// docs call this the "GAT" recommender; observably it is a lookup table and
// is treated as one here.
type Recommender struct {
	store     RecipeStore
	threshold float64
}

// RecommenderOption configures a Recommender.
type RecommenderOption func(*Recommender)

// WithRecipeThreshold overrides the auto-accept confidence (default 0.70).
func WithRecipeThreshold(threshold float64) RecommenderOption {
	return func(r *Recommender) {
		r.threshold = threshold
	}
}

// NewRecommender creates a Recommender over the given store.
func NewRecommender(store RecipeStore, opts ...RecommenderOption) *Recommender {
	r := &Recommender{store: store, threshold: defaultRecipeThreshold}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Threshold returns the configured auto-accept threshold.
func (r *Recommender) Threshold() float64 {
	return r.threshold
}

// Suggest applies the stored recipe for the agent pair, if any, against the
// source outputs. A candidate is only accepted when the recipe's historical
// confidence clears the threshold and the produced payload validates against
// the target schema; below that, callers fall through to LLM synthesis.
func (r *Recommender) Suggest(
	ctx context.Context,
	sourceAgentID, targetAgentID string,
	sources []SourceOutput,
	target *schema.Schema,
) ([]*Candidate, error) {
	recipe, err := r.store.Lookup(ctx, sourceAgentID, targetAgentID)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, nil
	}

	payload := map[string]any{}
	used := FieldMapping{}
	for targetField, sourceField := range recipe.Mapping {
		declared := target.PropertyType(targetField)
		for _, src := range sources {
			raw, ok := src.Output[sourceField]
			if !ok {
				continue
			}
			if value, ok := coerce(raw, declared); ok {
				payload[targetField] = value
				used[targetField] = sourceField
			}
			break
		}
	}

	// A recipe that leaves any required field unfilled is no candidate.
	for _, field := range target.Required() {
		if _, ok := payload[field]; !ok {
			return nil, nil
		}
	}

	accepted := recipe.Confidence >= r.threshold && target.Validate(payload) == nil
	return []*Candidate{{
		Payload:  payload,
		Score:    recipe.Confidence,
		Method:   MethodGAT,
		Recipe:   used,
		Accepted: accepted,
	}}, nil
}
