// Package merge implements the state merger (§3, testable property 1): the
// per-property rules that combine concurrent node deltas into a single
// state object, independent of completion order. The merge contract is
// grounded on the Reducer[S] shape from the langgraph-go reference engine
// (a pure fold over the previous state and a delta), specialized to the
// four named rules instead of an arbitrary user function, plus dario.cat/
// mergo for the two rules that are genuine structural merges.
package merge

import (
	"sort"

	"dario.cat/mergo"

	"github.com/flowstack/orchestrator/core"
)

// NodeDelta pairs a node id with the partial state update it produced, the
// unit the scheduler collects per super-step before calling Apply.
type NodeDelta struct {
	NodeID string
	Delta  core.Delta
}

// Apply folds deltas into base under schema's per-property merge rules,
// always processing deltas in lexicographic order by NodeID regardless of
// the slice's incoming order. That ordering, not completion order, is
// what makes the result deterministic: two callers handed the same delta
// set in different slice orders produce byte-identical state.
func Apply(base core.State, deltas []NodeDelta, schema core.StateSchema) (core.State, error) {
	ordered := make([]NodeDelta, len(deltas))
	copy(ordered, deltas)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].NodeID < ordered[j].NodeID })

	out := base.Clone()
	for _, nd := range ordered {
		for key, val := range nd.Delta {
			merged, err := applyOne(out[key], val, schema.RuleFor(key))
			if err != nil {
				return nil, err
			}
			out[key] = merged
		}
	}
	return out, nil
}

// applyOne merges a single property's existing value with an incoming
// delta value under rule.
func applyOne(existing, incoming any, rule core.MergeRule) (any, error) {
	switch rule {
	case core.MergeAppendList:
		return appendList(existing, incoming)
	case core.MergeObject:
		return mergeObject(existing, incoming)
	case core.MergeMap:
		return mergeMap(existing, incoming)
	case core.MergeReplace:
		fallthrough
	default:
		return incoming, nil
	}
}

// appendList concatenates existing and incoming as []any, tolerating a nil
// or absent existing value (first writer) and a non-slice incoming value
// (treated as a single-element append).
func appendList(existing, incoming any) (any, error) {
	base := toSlice(existing)
	add := toSlice(incoming)
	out := make([]any, 0, len(base)+len(add))
	out = append(out, base...)
	out = append(out, add...)
	return out, nil
}

func toSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}

// mergeObject shallow key-wise merges incoming over existing: incoming
// keys win, keys only in existing are preserved. Delegated to mergo with
// WithOverride so the delta's values take precedence, matching "last
// writer wins" at the key level within one merge_object property. A
// non-object incoming value replaces the existing value whole.
func mergeObject(existing, incoming any) (any, error) {
	base := toMap(existing)
	add := toMap(incoming)
	if add == nil {
		return incoming, nil
	}
	if base == nil {
		return add, nil
	}
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	if err := mergo.Merge(&out, add, mergo.WithOverride); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeMap per-key replaces across two maps: identical to mergeObject at
// this layer (both are "last delta's keys win, others survive") but kept
// as a distinct rule per the spec so schemas can name map-valued
// properties without implying object-schema semantics.
func mergeMap(existing, incoming any) (any, error) {
	return mergeObject(existing, incoming)
}

func toMap(v any) map[string]any {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
