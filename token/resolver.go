//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package token resolves @AgentAlias.path references in node input templates
// against upstream node outputs.
package token

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Token grammar: @Alias, @Alias.field, @Alias.nested.field, @Alias.items[2],
// and any nesting of .name and [index] segments.
var tokenPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_-]*)((?:\.[A-Za-z0-9_]+|\[\d+\])*)`)

// Result holds a resolved template plus the tokens that could not be
// resolved. Unresolved tokens are left verbatim in the output; the caller
// decides whether that fails the transform or falls through to the next
// strategy.
type Result struct {
	Resolved   any
	Unresolved []string
}

// Resolver substitutes tokens in templates using upstream outputs keyed by
// agent alias. Resolution is deterministic and side-effect free.
type Resolver struct {
	// raw caches the JSON encoding of each alias output for path lookup.
	raw map[string][]byte
}

// NewResolver creates a Resolver over the given outputs-by-alias map.
func NewResolver(outputsByAlias map[string]any) *Resolver {
	raw := make(map[string][]byte, len(outputsByAlias))
	for alias, output := range outputsByAlias {
		if encoded, err := json.Marshal(output); err == nil {
			raw[alias] = encoded
		}
	}
	return &Resolver{raw: raw}
}

// Resolve walks a template (a string or any JSON-shaped structure) and
// substitutes every token in place, preserving non-token values unchanged.
// A string value consisting of exactly one token is replaced by the
// referenced JSON value; tokens embedded in longer strings are replaced by
// their text rendering.
func Resolve(template any, outputsByAlias map[string]any) Result {
	r := NewResolver(outputsByAlias)
	result := Result{}
	result.Resolved = r.resolveValue(template, &result.Unresolved)
	return result
}

func (r *Resolver) resolveValue(value any, unresolved *[]string) any {
	switch v := value.(type) {
	case string:
		return r.resolveString(v, unresolved)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			out[key] = r.resolveValue(elem, unresolved)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = r.resolveValue(elem, unresolved)
		}
		return out
	default:
		return value
	}
}

func (r *Resolver) resolveString(s string, unresolved *[]string) any {
	matches := tokenPattern.FindAllString(s, -1)
	if len(matches) == 0 {
		return s
	}
	// A string that is exactly one token keeps the referenced value's type.
	if len(matches) == 1 && matches[0] == s {
		value, ok := r.lookup(s)
		if !ok {
			*unresolved = append(*unresolved, s)
			return s
		}
		return value
	}
	return tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		value, ok := r.lookup(tok)
		if !ok {
			*unresolved = append(*unresolved, tok)
			return tok
		}
		return render(value)
	})
}

// lookup resolves a single token against the alias outputs. A missing alias,
// missing key or out-of-range index yields ok=false rather than an error.
func (r *Resolver) lookup(tok string) (any, bool) {
	groups := tokenPattern.FindStringSubmatch(tok)
	if groups == nil {
		return nil, false
	}
	alias, path := groups[1], groups[2]
	raw, ok := r.raw[alias]
	if !ok {
		return nil, false
	}
	if path == "" {
		var whole any
		if err := json.Unmarshal(raw, &whole); err != nil {
			return nil, false
		}
		return whole, true
	}
	result := gjson.GetBytes(raw, toGJSONPath(path))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// toGJSONPath rewrites ".a.b[2].c" into the gjson form "a.b.2.c".
func toGJSONPath(path string) string {
	replaced := strings.NewReplacer("[", ".", "]", "").Replace(path)
	return strings.TrimPrefix(replaced, ".")
}

func render(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
