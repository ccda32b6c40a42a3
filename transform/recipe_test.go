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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestNoRecipe(t *testing.T) {
	r := NewRecommender(NewMemoryRecipeStore())

	candidates, err := r.Suggest(context.Background(), "src", "dst", nil, textSchema("text"))
	require.NoError(t, err)
	assert.Nil(t, candidates)
}

func TestSuggestAppliesRecipe(t *testing.T) {
	store := NewMemoryRecipeStore(&Recipe{
		SourceAgentID: "summarizer-v2",
		TargetAgentID: "translator-v1",
		Mapping:       FieldMapping{"text": "summary", "target": "lang"},
		Confidence:    0.92,
	})
	r := NewRecommender(store)

	sources := []SourceOutput{
		{Alias: "Summarizer", Output: map[string]any{"summary": "hola", "lang": "es"}},
	}
	candidates, err := r.Suggest(context.Background(), "summarizer-v2", "translator-v1",
		sources, textSchema("text", "target"))
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, map[string]any{"text": "hola", "target": "es"}, c.Payload)
	assert.Equal(t, 0.92, c.Score, "recipe confidence becomes the candidate score")
	assert.Equal(t, MethodGAT, c.Method)
	assert.True(t, c.Accepted)
}

func TestSuggestBelowThresholdNotAccepted(t *testing.T) {
	store := NewMemoryRecipeStore(&Recipe{
		SourceAgentID: "a",
		TargetAgentID: "b",
		Mapping:       FieldMapping{"text": "summary"},
		Confidence:    0.55,
	})
	r := NewRecommender(store)

	sources := []SourceOutput{{Alias: "A", Output: map[string]any{"summary": "x"}}}
	candidates, err := r.Suggest(context.Background(), "a", "b", sources, textSchema("text"))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.False(t, candidates[0].Accepted, "0.55 < default 0.70 threshold")
}

func TestSuggestMissingRequiredField(t *testing.T) {
	store := NewMemoryRecipeStore(&Recipe{
		SourceAgentID: "a",
		TargetAgentID: "b",
		Mapping:       FieldMapping{"text": "summary"},
		Confidence:    0.9,
	})
	r := NewRecommender(store)

	// The recipe covers "text" but nothing supplies "target".
	sources := []SourceOutput{{Alias: "A", Output: map[string]any{"summary": "x"}}}
	candidates, err := r.Suggest(context.Background(), "a", "b", sources, textSchema("text", "target"))
	require.NoError(t, err)
	assert.Nil(t, candidates)
}

func TestSuggestCustomThreshold(t *testing.T) {
	store := NewMemoryRecipeStore(&Recipe{
		SourceAgentID: "a",
		TargetAgentID: "b",
		Mapping:       FieldMapping{"text": "summary"},
		Confidence:    0.55,
	})
	r := NewRecommender(store, WithRecipeThreshold(0.5))

	sources := []SourceOutput{{Alias: "A", Output: map[string]any{"summary": "x"}}}
	candidates, err := r.Suggest(context.Background(), "a", "b", sources, textSchema("text"))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].Accepted)
	assert.Equal(t, 0.5, r.Threshold())
}
