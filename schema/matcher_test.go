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
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textTargetSchema() *Schema {
	return ObjectOf(map[string]*openapi3.Schema{
		"text":   openapi3.NewStringSchema(),
		"target": openapi3.NewStringSchema(),
	}, "text", "target")
}

func TestScorePerfectMatch(t *testing.T) {
	m := NewMatcher()
	sample := map[string]any{"text": "hello", "target": "es"}

	result := m.Score(sample, textTargetSchema())

	assert.Equal(t, 1.0, result.Score, "full coverage, agreeing types and a valid payload score exactly 1.0")
	assert.Empty(t, result.Reasons)
}

func TestScoreMissingRequiredKey(t *testing.T) {
	m := NewMatcher()
	sample := map[string]any{"text": "hello"}

	result := m.Score(sample, textTargetSchema())

	assert.Less(t, result.Score, 1.0)
	assert.Contains(t, result.Reasons, `missing_required_key: "target"`)
}

func TestScoreTypeMismatch(t *testing.T) {
	m := NewMatcher()
	sample := map[string]any{"text": 42, "target": "es"}

	result := m.Score(sample, textTargetSchema())

	// Coverage is full, but the type ratio and validation both take a hit.
	assert.InDelta(t, 0.6+0.2*0.5, result.Score, 1e-9)
	assert.Contains(t, result.Reasons, `type_mismatch: "text" expected string, got integer`)
}

func TestScoreNoRequiredFields(t *testing.T) {
	m := NewMatcher()
	target := ObjectOf(map[string]*openapi3.Schema{
		"note": openapi3.NewStringSchema(),
	})

	result := m.Score(map[string]any{"note": "x"}, target)
	assert.Equal(t, 1.0, result.Score, "no required fields means coverage 1.0")
}

func TestScoreBounds(t *testing.T) {
	m := NewMatcher()
	target := textTargetSchema()
	samples := []map[string]any{
		{},
		{"text": "a"},
		{"text": "a", "target": "b"},
		{"text": 1, "target": 2},
		{"unrelated": true},
		{"text": nil, "target": []any{"x"}},
	}
	for _, sample := range samples {
		result := m.Score(sample, target)
		assert.GreaterOrEqual(t, result.Score, 0.0)
		assert.LessOrEqual(t, result.Score, 1.0)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	m := NewMatcher()
	sample := map[string]any{"text": 42, "extra": true}
	target := textTargetSchema()

	first := m.Score(sample, target)
	second := m.Score(sample, target)
	assert.Equal(t, first, second)
}

func TestWithWeights(t *testing.T) {
	m := NewMatcher(WithWeights(1.0, 0.0, 0.0))
	sample := map[string]any{"text": 99, "target": true}

	result := m.Score(sample, textTargetSchema())
	assert.Equal(t, 1.0, result.Score, "coverage-only weighting ignores types and validation")
}

func TestValidate(t *testing.T) {
	target := textTargetSchema()

	require.NoError(t, target.Validate(map[string]any{"text": "a", "target": "b"}))

	err := target.Validate(map[string]any{"text": "a"})
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.NotEmpty(t, verr.Failures)
}

func TestParse(t *testing.T) {
	raw := []byte(`{
		"type": "object",
		"required": ["text"],
		"properties": {"text": {"type": "string"}}
	}`)
	s, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, s.Required())
	assert.Equal(t, "string", s.PropertyType("text"))

	_, err = Parse([]byte(`{"type": `))
	assert.Error(t, err)
}

func TestJSONType(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, "null"},
		{true, "boolean"},
		{"s", "string"},
		{3, "integer"},
		{3.0, "integer"},
		{3.5, "number"},
		{[]any{1}, "array"},
		{[]string{"a"}, "array"},
		{map[string]any{}, "object"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JSONType(tt.value), "value %v", tt.value)
	}
}

func TestTypeAgrees(t *testing.T) {
	assert.True(t, TypeAgrees("string", "string"))
	assert.True(t, TypeAgrees("number", "integer"))
	assert.True(t, TypeAgrees("", "string"))
	assert.False(t, TypeAgrees("string", "integer"))
	assert.False(t, TypeAgrees("integer", "number"))
}
