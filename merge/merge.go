//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

// Package merge combines outputs from multiple upstream nodes feeding a
// single downstream node, per a declared merge policy. Merging is pure: no
// network, no LLM, no clock.
package merge

import (
	"fmt"
	"sort"
	"strings"
)

// Policy selects how upstream outputs are combined.
type Policy string

const (
	// PolicyConcatText concatenates every string-valued field found
	// depth-first across inputs into a single "text" field.
	PolicyConcatText Policy = "concat_text"
	// PolicyJSONMergeByKey deep-merges all inputs; later inputs overwrite
	// earlier ones on key collision, arrays are replaced, not concatenated.
	PolicyJSONMergeByKey Policy = "json_merge_by_key"
	// PolicyPreferConfidence selects the single input with the highest
	// "confidence" value wholesale; ties break toward the earliest input.
	PolicyPreferConfidence Policy = "prefer_confidence"
	// PolicyAuthoritative uses the first declared input as-is; other inputs
	// are discarded but still reported as considered.
	PolicyAuthoritative Policy = "authoritative"
)

// Valid reports whether the policy is one of the defined constants.
func (p Policy) Valid() bool {
	switch p {
	case PolicyConcatText, PolicyJSONMergeByKey, PolicyPreferConfidence, PolicyAuthoritative:
		return true
	default:
		return false
	}
}

// Outcome is the result of applying a merge policy.
type Outcome struct {
	// Output is the merged payload.
	Output map[string]any
	// UsedInputs holds the indexes of inputs whose data made it into Output.
	UsedInputs []int
	// ConsideredInputs holds the indexes of inputs that were inspected but
	// discarded ("considered, not used" in provenance).
	ConsideredInputs []int
}

// Apply merges the upstream outputs per the policy. Inputs are given in
// declared edge order. A single input passes through unchanged under any
// policy.
func Apply(inputs []map[string]any, policy Policy) (Outcome, error) {
	if !policy.Valid() {
		return Outcome{}, fmt.Errorf("unknown merge policy %q", policy)
	}
	switch len(inputs) {
	case 0:
		return Outcome{Output: map[string]any{}}, nil
	case 1:
		return Outcome{Output: inputs[0], UsedInputs: []int{0}}, nil
	}
	switch policy {
	case PolicyConcatText:
		return concatText(inputs), nil
	case PolicyJSONMergeByKey:
		return jsonMergeByKey(inputs), nil
	case PolicyPreferConfidence:
		return preferConfidence(inputs), nil
	default:
		return authoritative(inputs), nil
	}
}

func concatText(inputs []map[string]any) Outcome {
	outcome := Outcome{}
	var parts []string
	for i, input := range inputs {
		collected := collectStrings(input)
		if len(collected) > 0 {
			outcome.UsedInputs = append(outcome.UsedInputs, i)
			parts = append(parts, collected...)
		} else {
			outcome.ConsideredInputs = append(outcome.ConsideredInputs, i)
		}
	}
	outcome.Output = map[string]any{"text": strings.Join(parts, " ")}
	return outcome
}

// collectStrings walks a value depth-first and gathers every string field.
// Map keys are visited in sorted order so the result is deterministic.
func collectStrings(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, collectStrings(v[k])...)
		}
		return out
	case []any:
		var out []string
		for _, elem := range v {
			out = append(out, collectStrings(elem)...)
		}
		return out
	default:
		return nil
	}
}

func jsonMergeByKey(inputs []map[string]any) Outcome {
	outcome := Outcome{Output: map[string]any{}}
	for i, input := range inputs {
		outcome.Output = deepMerge(outcome.Output, input)
		outcome.UsedInputs = append(outcome.UsedInputs, i)
	}
	return outcome
}

// deepMerge overlays src onto dst, recursing into nested objects. Arrays and
// scalars are replaced wholesale. dst is not mutated.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		existing, ok := out[k]
		existingMap, okDst := existing.(map[string]any)
		srcMap, okSrc := v.(map[string]any)
		if ok && okDst && okSrc {
			out[k] = deepMerge(existingMap, srcMap)
			continue
		}
		out[k] = v
	}
	return out
}

func preferConfidence(inputs []map[string]any) Outcome {
	winner := 0
	best := confidenceOf(inputs[0])
	for i := 1; i < len(inputs); i++ {
		// Strict greater-than keeps the earliest input on ties.
		if c := confidenceOf(inputs[i]); c > best {
			best = c
			winner = i
		}
	}
	outcome := Outcome{Output: inputs[winner], UsedInputs: []int{winner}}
	for i := range inputs {
		if i != winner {
			outcome.ConsideredInputs = append(outcome.ConsideredInputs, i)
		}
	}
	return outcome
}

// confidenceOf reads the input's confidence value; inputs without one rank
// lowest.
func confidenceOf(input map[string]any) float64 {
	switch v := input["confidence"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func authoritative(inputs []map[string]any) Outcome {
	outcome := Outcome{Output: inputs[0], UsedInputs: []int{0}}
	for i := 1; i < len(inputs); i++ {
		outcome.ConsideredInputs = append(outcome.ConsideredInputs, i)
	}
	return outcome
}
