//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package schema represents agent input/output contracts and scores payloads
// against them.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Schema is the declared JSON contract of an agent input or output.
// Schemas are data supplied at chain-build time, never compile-time types.
type Schema struct {
	// Spec is the underlying JSON-schema definition.
	Spec *openapi3.Schema
}

// New wraps an openapi3 schema definition.
func New(spec *openapi3.Schema) *Schema {
	return &Schema{Spec: spec}
}

// ObjectOf builds an object schema from named property schemas plus the list
// of required property names.
func ObjectOf(props map[string]*openapi3.Schema, required ...string) *Schema {
	spec := openapi3.NewObjectSchema()
	for name, prop := range props {
		spec = spec.WithProperty(name, prop)
	}
	spec.Required = required
	return New(spec)
}

// Parse decodes a JSON-serialized schema definition.
func Parse(raw []byte) (*Schema, error) {
	spec := &openapi3.Schema{}
	if err := json.Unmarshal(raw, spec); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return New(spec), nil
}

// Required returns the target's required property names, in declared order.
func (s *Schema) Required() []string {
	if s == nil || s.Spec == nil {
		return nil
	}
	return s.Spec.Required
}

// PropertyType returns the declared JSON type of a top-level property, or ""
// when the property or its type is not declared.
func (s *Schema) PropertyType(name string) string {
	if s == nil || s.Spec == nil {
		return ""
	}
	ref, ok := s.Spec.Properties[name]
	if !ok || ref == nil || ref.Value == nil || ref.Value.Type == nil {
		return ""
	}
	types := *ref.Value.Type
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// HasProperty reports whether the schema declares a top-level property.
func (s *Schema) HasProperty(name string) bool {
	if s == nil || s.Spec == nil {
		return false
	}
	_, ok := s.Spec.Properties[name]
	return ok
}

// Validate checks a payload against the schema. It returns nil when the
// payload conforms, otherwise a *ValidationError listing every failure.
func (s *Schema) Validate(value any) error {
	if s == nil || s.Spec == nil {
		return nil
	}
	// Round-trip through JSON so Go-native values (int, typed slices) take
	// the shapes openapi3 validation expects.
	normalized, err := normalize(value)
	if err != nil {
		return &ValidationError{Failures: []string{err.Error()}}
	}
	err = s.Spec.VisitJSON(normalized, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	verr := &ValidationError{}
	var multi openapi3.MultiError
	if ok := asMultiError(err, &multi); ok {
		for _, e := range multi {
			verr.Failures = append(verr.Failures, e.Error())
		}
	} else {
		verr.Failures = append(verr.Failures, err.Error())
	}
	return verr
}

func asMultiError(err error, target *openapi3.MultiError) bool {
	multi, ok := err.(openapi3.MultiError)
	if ok {
		*target = multi
	}
	return ok
}

func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("payload is not JSON-shaped: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload is not JSON-shaped: %w", err)
	}
	return out, nil
}

// ValidationError reports why a payload does not conform to a schema.
// It is recovered locally by the transform hierarchy and only surfaces when
// every strategy is exhausted.
type ValidationError struct {
	Failures []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Failures) == 0 {
		return "schema validation failed"
	}
	return "schema validation failed: " + strings.Join(e.Failures, "; ")
}

// JSONType infers the JSON type name of a decoded value.
func JSONType(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case int, int32, int64:
		return "integer"
	case float32:
		return numberType(float64(v))
	case float64:
		return numberType(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		// Typed slices, maps and structs round-trip through JSON as arrays
		// or objects; classify by marshalled shape.
		raw, err := json.Marshal(value)
		if err != nil || len(raw) == 0 {
			return "unknown"
		}
		switch raw[0] {
		case '[':
			return "array"
		case '{':
			return "object"
		case '"':
			return "string"
		case 't', 'f':
			return "boolean"
		default:
			return "number"
		}
	}
}

func numberType(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return "integer"
	}
	return "number"
}

// TypeAgrees reports whether an inferred JSON type satisfies a declared one.
// Integers satisfy a declared "number"; everything else matches exactly.
func TypeAgrees(declared, inferred string) bool {
	if declared == "" || inferred == "unknown" {
		return true
	}
	if declared == inferred {
		return true
	}
	return declared == "number" && inferred == "integer"
}
