// Package jsonpath evaluates the §6 input-mapping selector language: a
// small `$.`-rooted path grammar with property chaining, indexed access,
// an array wildcard for JOIN aggregation, and a `|| <literal>` default.
// Selectors are evaluated against a core.State by round-tripping through
// JSON and delegating the actual path walk to gjson, rather than hand
// rolling a second map-walker next to the one gjson already provides.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/flowstack/orchestrator/core"
)

// Selector is a parsed input-mapping expression: a gjson-compatible path
// plus an optional default literal applied when the path resolves to
// nothing.
type Selector struct {
	raw        string
	gjsonPath  string
	hasDefault bool
	defaultVal any
}

// Parse compiles a raw "$.foo.bar[0]", "$.items[*].value", or
// "$.plan_confirmed || false" selector into a Selector. It does not touch
// state; Eval does.
func Parse(expr string) (*Selector, error) {
	raw := strings.TrimSpace(expr)
	body, defLit, hasDefault := splitDefault(raw)

	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "$.") && body != "$" {
		return nil, fmt.Errorf("jsonpath: selector %q must start with \"$.\"", raw)
	}
	body = strings.TrimPrefix(body, "$")
	body = strings.TrimPrefix(body, ".")

	path, err := toGjsonPath(body)
	if err != nil {
		return nil, fmt.Errorf("jsonpath: %q: %w", raw, err)
	}

	sel := &Selector{raw: raw, gjsonPath: path, hasDefault: hasDefault}
	if hasDefault {
		sel.defaultVal = parseLiteral(defLit)
	}
	return sel, nil
}

// MustParse is Parse, panicking on error. Used for compile-time-validated
// selectors (e.g. node configs already checked by the compiler).
func MustParse(expr string) *Selector {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the original selector text.
func (s *Selector) String() string { return s.raw }

// Eval resolves the selector against state. A missing path yields the
// declared default (nil if none was given); an explicit JSON null is
// returned as nil regardless of any default, matching gjson's own
// "exists but is null" semantics.
func (s *Selector) Eval(state core.State) (any, error) {
	data, err := json.Marshal(map[string]any(state))
	if err != nil {
		return nil, fmt.Errorf("jsonpath: encode state: %w", err)
	}

	result := gjson.GetBytes(data, s.gjsonPath)
	if !result.Exists() {
		if s.hasDefault {
			return s.defaultVal, nil
		}
		return nil, nil
	}
	return result.Value(), nil
}

// EvalBundle evaluates every selector in mapping against state, returning
// the argument bundle keyed by argument name. Errors from one selector
// don't short-circuit the rest; all failures are joined so the caller can
// report every bad mapping at once (useful for compile-time dry-runs).
func EvalBundle(mapping map[string]*Selector, state core.State) (map[string]any, error) {
	bundle := make(map[string]any, len(mapping))
	var errs []string
	for name, sel := range mapping {
		v, err := sel.Eval(state)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		bundle[name] = v
	}
	if len(errs) > 0 {
		return bundle, fmt.Errorf("jsonpath: %s", strings.Join(errs, "; "))
	}
	return bundle, nil
}

// EncodeBundle serializes an argument bundle to canonical JSON text via
// sjson, one Set per key, so key order follows the order slice rather
// than Go's randomized iteration over bundle. Used when an AGENT
// node renders its input bundle into a model-facing prompt body.
func EncodeBundle(order []string, bundle map[string]any) (string, error) {
	out := "{}"
	var err error
	for _, key := range order {
		out, err = sjson.Set(out, key, bundle[key])
		if err != nil {
			return "", fmt.Errorf("jsonpath: encode bundle key %q: %w", key, err)
		}
	}
	return out, nil
}

// ParseMapping compiles every value of a raw input_mapping into a Selector
// and returns the mapping's keys as order. A Go map keeps no declaration
// order, so order lists the keys in the map's iteration order.
func ParseMapping(mapping map[string]string) (map[string]*Selector, []string, error) {
	out := make(map[string]*Selector, len(mapping))
	order := make([]string, 0, len(mapping))
	for name, expr := range mapping {
		sel, err := Parse(expr)
		if err != nil {
			return nil, nil, err
		}
		out[name] = sel
		order = append(order, name)
	}
	return out, order, nil
}

// splitDefault splits "<path> || <literal>" into its two halves. The
// literal side is returned raw (still needing parseLiteral).
func splitDefault(expr string) (path, lit string, has bool) {
	idx := strings.Index(expr, "||")
	if idx < 0 {
		return expr, "", false
	}
	return expr[:idx], strings.TrimSpace(expr[idx+2:]), true
}

// parseLiteral interprets a default-value literal: true/false, null,
// a quoted string, a number, or a bare string token.
func parseLiteral(lit string) any {
	switch lit {
	case "true":
		return true
	case "false":
		return false
	case "null", "":
		return nil
	}
	if len(lit) >= 2 && lit[0] == '"' && lit[len(lit)-1] == '"' {
		return lit[1 : len(lit)-1]
	}
	if n, err := strconv.ParseFloat(lit, 64); err == nil {
		return n
	}
	return lit
}

// toGjsonPath translates the spec's selector body (sans leading "$.") into
// a gjson path: `.` chaining carries over unchanged, `[N]` becomes `.N`,
// and `[*]` becomes gjson's `.#` array-iteration modifier so a trailing
// chain after it collects one value per element (JOIN's fan-in shape).
func toGjsonPath(body string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(body) {
		c := body[i]
		switch c {
		case '[':
			end := strings.IndexByte(body[i:], ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated '[' in selector")
			}
			inner := body[i+1 : i+end]
			if inner == "*" {
				b.WriteString(".#")
			} else {
				if _, err := strconv.Atoi(inner); err != nil {
					return "", fmt.Errorf("invalid index %q", inner)
				}
				b.WriteByte('.')
				b.WriteString(inner)
			}
			i += end + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	return strings.TrimPrefix(b.String(), "."), nil
}
