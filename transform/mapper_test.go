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
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gptgram/chaincore/schema"
)

func textSchema(required ...string) *schema.Schema {
	props := map[string]*openapi3.Schema{
		"text":   openapi3.NewStringSchema(),
		"target": openapi3.NewStringSchema(),
	}
	return schema.ObjectOf(props, required...)
}

func TestTryMapAliasMatch(t *testing.T) {
	m := NewMapper()
	sources := []SourceOutput{
		{Alias: "Summarizer", Output: map[string]any{"summary_text": "AI is great"}},
	}

	candidate := m.TryMap(sources, textSchema("text"))
	require.NotNil(t, candidate)
	assert.Equal(t, map[string]any{"text": "AI is great"}, candidate.Payload)
	assert.GreaterOrEqual(t, candidate.Score, 0.85)
	assert.True(t, candidate.Accepted)
	assert.Equal(t, MethodDeterministic, candidate.Method)
	assert.Equal(t, FieldMapping{"text": "summary_text"}, candidate.Recipe)
}

func TestTryMapTotalOrNull(t *testing.T) {
	m := NewMapper()
	sources := []SourceOutput{
		{Alias: "Summarizer", Output: map[string]any{"summary": "short version"}},
	}

	// "summary" maps to "text", but nothing supplies "target": no candidate,
	// never a partially-valid payload.
	candidate := m.TryMap(sources, textSchema("text", "target"))
	assert.Nil(t, candidate)
}

func TestTryMapExactNameBeatsAlias(t *testing.T) {
	m := NewMapper()
	sources := []SourceOutput{
		{Alias: "A", Output: map[string]any{"text": "exact", "content": "alias"}},
	}

	candidate := m.TryMap(sources, textSchema("text"))
	require.NotNil(t, candidate)
	assert.Equal(t, "exact", candidate.Payload["text"])
	assert.Equal(t, FieldMapping{"text": "text"}, candidate.Recipe)
}

func TestTryMapSourceDeclarationOrder(t *testing.T) {
	m := NewMapper()
	sources := []SourceOutput{
		{Alias: "First", Output: map[string]any{"body": "from first"}},
		{Alias: "Second", Output: map[string]any{"text": "from second"}},
	}

	candidate := m.TryMap(sources, textSchema("text"))
	require.NotNil(t, candidate)
	// First source wins even though the second has the exact name.
	assert.Equal(t, "from first", candidate.Payload["text"])
}

func TestTryMapCoercions(t *testing.T) {
	m := NewMapper()
	target := schema.ObjectOf(map[string]*openapi3.Schema{
		"count":   openapi3.NewIntegerSchema(),
		"ratio":   openapi3.NewFloat64Schema(),
		"enabled": openapi3.NewBoolSchema(),
		"label":   openapi3.NewStringSchema(),
		"tags":    openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()),
	}, "count", "ratio", "enabled", "label", "tags")

	sources := []SourceOutput{{Alias: "A", Output: map[string]any{
		"count":   "42",
		"ratio":   "0.5",
		"enabled": "true",
		"label":   7,
		"tags":    "solo",
	}}}

	candidate := m.TryMap(sources, target)
	require.NotNil(t, candidate)
	assert.Equal(t, int64(42), candidate.Payload["count"])
	assert.Equal(t, 0.5, candidate.Payload["ratio"])
	assert.Equal(t, true, candidate.Payload["enabled"])
	assert.Equal(t, "7", candidate.Payload["label"])
	assert.Equal(t, []any{"solo"}, candidate.Payload["tags"])
	assert.True(t, candidate.Accepted)
}

func TestTryMapUncoercibleValue(t *testing.T) {
	m := NewMapper()
	target := schema.ObjectOf(map[string]*openapi3.Schema{
		"count": openapi3.NewIntegerSchema(),
	}, "count")
	sources := []SourceOutput{{Alias: "A", Output: map[string]any{"count": "not a number"}}}

	assert.Nil(t, m.TryMap(sources, target))
}

func TestTryMapCarriesOptionalExactMatches(t *testing.T) {
	m := NewMapper()
	target := textSchema("text")
	sources := []SourceOutput{
		{Alias: "A", Output: map[string]any{"text": "hello", "target": "es", "irrelevant": 1}},
	}

	candidate := m.TryMap(sources, target)
	require.NotNil(t, candidate)
	assert.Equal(t, "es", candidate.Payload["target"], "optional declared property copied on exact name")
	_, hasIrrelevant := candidate.Payload["irrelevant"]
	assert.False(t, hasIrrelevant, "undeclared fields are not carried")
}

func TestTryMapCustomDictionaryAndThreshold(t *testing.T) {
	m := NewMapper(
		WithAliasDictionary(AliasDictionary{"text": {"blurb"}}),
		WithMapperThreshold(0.99),
	)
	sources := []SourceOutput{{Alias: "A", Output: map[string]any{"blurb": "hi"}}}

	candidate := m.TryMap(sources, textSchema("text"))
	require.NotNil(t, candidate)
	assert.Equal(t, "hi", candidate.Payload["text"])
	assert.Equal(t, 0.99, m.Threshold())
}
