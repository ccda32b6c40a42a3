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
	"strconv"

	"github.com/gptgram/chaincore/schema"
)

// defaultMapperThreshold is the auto-accept score for deterministic mappings.
const defaultMapperThreshold = 0.85

// AliasDictionary maps a target field name to the ordered list of acceptable
// source field synonyms. This is configuration, never inferred.
type AliasDictionary map[string][]string

// DefaultAliasDictionary returns the dictionary shipped with the product,
// covering the field families marketplace agents most commonly disagree on.
func DefaultAliasDictionary() AliasDictionary {
	return AliasDictionary{
		"text":    {"content", "body", "summary", "message", "description", "summary_text", "output"},
		"content": {"text", "body", "message", "description"},
		"summary": {"summary_text", "text", "abstract", "digest"},
		"url":     {"link", "href", "uri", "source_url"},
		"title":   {"name", "heading", "subject", "headline"},
		"value":   {"result", "data", "output", "answer"},
		"query":   {"question", "prompt", "input", "search"},
		"items":   {"results", "entries", "list", "data"},
	}
}

// Mapper produces target payloads from source outputs using the static alias
// dictionary and type coercion, with no ML or LLM involvement.
type Mapper struct {
	aliases   AliasDictionary
	matcher   *schema.Matcher
	threshold float64
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithAliasDictionary replaces the default alias dictionary.
func WithAliasDictionary(aliases AliasDictionary) MapperOption {
	return func(m *Mapper) {
		m.aliases = aliases
	}
}

// WithMapperThreshold overrides the auto-accept score threshold (default 0.85).
func WithMapperThreshold(threshold float64) MapperOption {
	return func(m *Mapper) {
		m.threshold = threshold
	}
}

// WithMapperMatcher overrides the Schema Matcher used to score produced
// payloads.
func WithMapperMatcher(matcher *schema.Matcher) MapperOption {
	return func(m *Mapper) {
		m.matcher = matcher
	}
}

// NewMapper creates a Mapper with the default dictionary and thresholds.
func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{
		aliases:   DefaultAliasDictionary(),
		matcher:   schema.NewMatcher(),
		threshold: defaultMapperThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured auto-accept threshold.
func (m *Mapper) Threshold() float64 {
	return m.threshold
}

// TryMap attempts to produce a payload satisfying every required field of the
// target schema. It returns nil when any required field has no match after
// alias lookup and coercion; it never returns a partially-valid payload.
func (m *Mapper) TryMap(sources []SourceOutput, target *schema.Schema) *Candidate {
	required := target.Required()
	if len(required) == 0 && !hasProperties(target) {
		return nil
	}

	payload := map[string]any{}
	recipe := FieldMapping{}
	for _, field := range required {
		value, sourceField, ok := m.findField(field, target, sources)
		if !ok {
			return nil
		}
		payload[field] = value
		recipe[field] = sourceField
	}

	// Optional declared properties are carried over on an exact name match
	// only; synonyms apply to required fields alone.
	if target.Spec != nil {
		for name := range target.Spec.Properties {
			if _, done := payload[name]; done {
				continue
			}
			for _, src := range sources {
				if raw, ok := src.Output[name]; ok {
					if value, ok := coerce(raw, target.PropertyType(name)); ok {
						payload[name] = value
						recipe[name] = name
					}
					break
				}
			}
		}
	}

	result := m.matcher.Score(payload, target)
	return &Candidate{
		Payload:  payload,
		Score:    result.Score,
		Method:   MethodDeterministic,
		Recipe:   recipe,
		Accepted: result.Score >= m.threshold,
	}
}

// findField looks a target field up across all sources in declaration order,
// preferring the exact name over dictionary synonyms within each source.
func (m *Mapper) findField(field string, target *schema.Schema, sources []SourceOutput) (any, string, bool) {
	names := append([]string{field}, m.aliases[field]...)
	declared := target.PropertyType(field)
	for _, src := range sources {
		for _, name := range names {
			raw, ok := src.Output[name]
			if !ok {
				continue
			}
			if value, ok := coerce(raw, declared); ok {
				return value, name, true
			}
		}
	}
	return nil, "", false
}

func hasProperties(target *schema.Schema) bool {
	return target != nil && target.Spec != nil && len(target.Spec.Properties) > 0
}

// coerce converts a source value into the declared target type where a safe
// conversion exists: numeric strings to numbers and back, "true"/"false" to
// booleans and back, and single values into single-element arrays.
func coerce(value any, declared string) (any, bool) {
	if declared == "" || schema.TypeAgrees(declared, schema.JSONType(value)) {
		return value, true
	}
	switch declared {
	case "string":
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case int:
			return strconv.Itoa(v), true
		case int64:
			return strconv.FormatInt(v, 10), true
		case bool:
			return strconv.FormatBool(v), true
		}
	case "number", "integer":
		if s, ok := value.(string); ok {
			if declared == "integer" {
				if n, err := strconv.ParseInt(s, 10, 64); err == nil {
					return n, true
				}
				return nil, false
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	case "boolean":
		if s, ok := value.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b, true
			}
		}
	case "array":
		return []any{value}, true
	}
	return nil, false
}
