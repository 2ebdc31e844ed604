package predicate

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// expr is a node in the compiled condition AST. Every implementation is
// pure: eval never mutates its argument or reaches outside the value it was
// given.
type expr interface {
	eval(state cty.Value) (cty.Value, error)
}

type literalExpr struct{ val cty.Value }

func (e literalExpr) eval(cty.Value) (cty.Value, error) { return e.val, nil }

// stateExpr evaluates to the whole state object, the sole external
// reference a condition may make.
type stateExpr struct{}

func (stateExpr) eval(state cty.Value) (cty.Value, error) { return state, nil }

// attrExpr accesses base.key, evaluating to a null value (rather than an
// error) when the key is absent, so conditions can freely test optional
// state properties.
type attrExpr struct {
	base expr
	key  string
}

func (e attrExpr) eval(state cty.Value) (cty.Value, error) {
	baseVal, err := e.base.eval(state)
	if err != nil {
		return cty.NilVal, err
	}
	if baseVal.IsNull() || !baseVal.IsKnown() {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	if !baseVal.Type().IsObjectType() {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	if !baseVal.Type().HasAttribute(e.key) {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	return baseVal.GetAttr(e.key), nil
}

// getExpr implements state.get("key", default).
type getExpr struct {
	base    expr
	key     string
	fallback expr
}

func (e getExpr) eval(state cty.Value) (cty.Value, error) {
	v, err := (attrExpr{base: e.base, key: e.key}).eval(state)
	if err != nil {
		return cty.NilVal, err
	}
	if v.IsNull() {
		if e.fallback != nil {
			return e.fallback.eval(state)
		}
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	return v, nil
}

type notExpr struct{ operand expr }

func (e notExpr) eval(state cty.Value) (cty.Value, error) {
	v, err := e.operand.eval(state)
	if err != nil {
		return cty.NilVal, err
	}
	b, err := ctyTruthy(v)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.BoolVal(!b), nil
}

type logicalExpr struct {
	op          string // "and" | "or"
	left, right expr
}

func (e logicalExpr) eval(state cty.Value) (cty.Value, error) {
	l, err := e.left.eval(state)
	if err != nil {
		return cty.NilVal, err
	}
	lb, err := ctyTruthy(l)
	if err != nil {
		return cty.NilVal, err
	}
	if e.op == "and" && !lb {
		return cty.False, nil
	}
	if e.op == "or" && lb {
		return cty.True, nil
	}
	r, err := e.right.eval(state)
	if err != nil {
		return cty.NilVal, err
	}
	rb, err := ctyTruthy(r)
	if err != nil {
		return cty.NilVal, err
	}
	return cty.BoolVal(rb), nil
}

type compareExpr struct {
	op          string // == != < <= > >=
	left, right expr
}

func (e compareExpr) eval(state cty.Value) (cty.Value, error) {
	l, err := e.left.eval(state)
	if err != nil {
		return cty.NilVal, err
	}
	r, err := e.right.eval(state)
	if err != nil {
		return cty.NilVal, err
	}

	if e.op == "==" || e.op == "!=" {
		eq := ctyEquals(l, r)
		if e.op == "!=" {
			eq = !eq
		}
		return cty.BoolVal(eq), nil
	}

	if l.IsNull() || r.IsNull() || l.Type() != cty.Number || r.Type() != cty.Number {
		return cty.NilVal, fmt.Errorf("predicate: operator %q requires two numbers", e.op)
	}
	lf, _ := l.AsBigFloat().Float64()
	rf, _ := r.AsBigFloat().Float64()
	var result bool
	switch e.op {
	case "<":
		result = lf < rf
	case "<=":
		result = lf <= rf
	case ">":
		result = lf > rf
	case ">=":
		result = lf >= rf
	default:
		return cty.NilVal, fmt.Errorf("predicate: unknown comparison operator %q", e.op)
	}
	return cty.BoolVal(result), nil
}

// collectStateKeys walks e, recording the top-level state property name
// of every direct "state.key"/"state.get(key, ...)" access into out. A
// chained access like "state.a.b" only contributes "a": the engine's
// merge rules and parallel-region isolation check both operate on
// top-level property names.
func collectStateKeys(e expr, out map[string]bool) {
	switch t := e.(type) {
	case attrExpr:
		if _, ok := t.base.(stateExpr); ok {
			out[t.key] = true
			return
		}
		collectStateKeys(t.base, out)
	case getExpr:
		if _, ok := t.base.(stateExpr); ok {
			out[t.key] = true
		} else {
			collectStateKeys(t.base, out)
		}
		if t.fallback != nil {
			collectStateKeys(t.fallback, out)
		}
	case notExpr:
		collectStateKeys(t.operand, out)
	case logicalExpr:
		collectStateKeys(t.left, out)
		collectStateKeys(t.right, out)
	case compareExpr:
		collectStateKeys(t.left, out)
		collectStateKeys(t.right, out)
	case inExpr:
		collectStateKeys(t.needle, out)
		collectStateKeys(t.haystack, out)
	}
}

func ctyEquals(a, b cty.Value) bool {
	if a.IsNull() != b.IsNull() {
		return false
	}
	if a.IsNull() {
		return true
	}
	if a.Type() != b.Type() {
		return false
	}
	return a.RawEquals(b)
}

// inExpr implements membership: needle in haystack, where haystack is a
// tuple/list or an object (key membership).
type inExpr struct {
	needle, haystack expr
}

func (e inExpr) eval(state cty.Value) (cty.Value, error) {
	needle, err := e.needle.eval(state)
	if err != nil {
		return cty.NilVal, err
	}
	haystack, err := e.haystack.eval(state)
	if err != nil {
		return cty.NilVal, err
	}
	if haystack.IsNull() || !haystack.IsKnown() {
		return cty.False, nil
	}
	switch {
	case haystack.Type().IsTupleType() || haystack.Type().IsListType():
		for it := haystack.ElementIterator(); it.Next(); {
			_, v := it.Element()
			if ctyEquals(needle, v) {
				return cty.True, nil
			}
		}
		return cty.False, nil
	case haystack.Type().IsObjectType() || haystack.Type().IsMapType():
		if needle.Type() != cty.String {
			return cty.False, nil
		}
		return cty.BoolVal(haystack.Type().HasAttribute(needle.AsString())), nil
	default:
		return cty.False, nil
	}
}
