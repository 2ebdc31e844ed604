// Package predicate implements the sandboxed router-condition language:
// a small expression AST evaluated against live state by lifting Go values
// into go-cty's typed value algebra. go-cty has no representation for calls
// or mutation, so "no function calls, no side effects" is enforced by the
// value model itself rather than by convention in an interpreter.
package predicate

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/flowstack/orchestrator/core"
)

// Parse compiles a raw condition expression into a core.Predicate. An empty
// string or the literal token "default" produces the always-match default
// predicate.
func Parse(condition string) (core.Predicate, error) {
	if condition == "" || condition == "default" {
		return defaultPredicate{}, nil
	}

	toks, err := lex(condition)
	if err != nil {
		return nil, fmt.Errorf("predicate: lex %q: %w", condition, err)
	}

	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("predicate: parse %q: %w", condition, err)
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("predicate: unexpected trailing tokens in %q", condition)
	}

	return &compiled{expr: expr, raw: condition}, nil
}

// MustParse parses condition and panics on error. Intended for compile-time
// use on the synthesized default route and in tests.
func MustParse(condition string) core.Predicate {
	p, err := Parse(condition)
	if err != nil {
		panic(err)
	}
	return p
}

type compiled struct {
	expr expr
	raw  string
}

func (c *compiled) IsDefault() bool { return false }

func (c *compiled) Evaluate(state core.State) (bool, error) {
	ctyState := stateToCty(state)
	val, err := c.expr.eval(ctyState)
	if err != nil {
		return false, err
	}
	return ctyTruthy(val)
}

// ReferencedStateKeys returns the sorted, deduplicated set of top-level
// state properties c's expression reads directly off "state".
func (c *compiled) ReferencedStateKeys() []string {
	set := make(map[string]bool)
	collectStateKeys(c.expr, set)
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type defaultPredicate struct{}

func (defaultPredicate) IsDefault() bool                   { return true }
func (defaultPredicate) Evaluate(core.State) (bool, error) { return true, nil }
func (defaultPredicate) ReferencedStateKeys() []string     { return nil }

// ctyTruthy converts an evaluation result to a bool, requiring cty.Bool.
func ctyTruthy(v cty.Value) (bool, error) {
	if v.IsNull() || !v.IsKnown() {
		return false, nil
	}
	if v.Type() != cty.Bool {
		return false, fmt.Errorf("predicate: condition did not evaluate to a boolean, got %s", v.Type().FriendlyName())
	}
	return v.True(), nil
}

// stateToCty lifts a state map into a cty object value. Nested maps/slices
// are lifted recursively; unsupported types become a null value for that
// key, which compares like an absent key rather than erroring the whole
// condition.
func stateToCty(state core.State) cty.Value {
	attrs := make(map[string]cty.Value, len(state))
	for k, v := range state {
		attrs[k] = interfaceToCty(v)
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(attrs)
}

func interfaceToCty(v any) cty.Value {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType)
	case bool:
		return cty.BoolVal(t)
	case string:
		return cty.StringVal(t)
	case float64:
		return cty.NumberFloatVal(t)
	case int:
		return cty.NumberIntVal(int64(t))
	case int64:
		return cty.NumberIntVal(t)
	case map[string]any:
		if len(t) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(t))
		for k, val := range t {
			attrs[k] = interfaceToCty(val)
		}
		return cty.ObjectVal(attrs)
	case []any:
		if len(t) == 0 {
			return cty.EmptyTupleVal
		}
		vals := make([]cty.Value, len(t))
		for i, val := range t {
			vals[i] = interfaceToCty(val)
		}
		return cty.TupleVal(vals)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}
