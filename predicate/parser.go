package predicate

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// parser is a minimal recursive-descent parser over the token stream
// produced by lex, building the expr tree evaluated by Evaluate. Grammar,
// loosest-binding first:
//
//	or        := and ("or" and)*
//	and       := unary ("and" unary)*
//	unary     := "not" unary | membership
//	membership:= compare ("in" compare)?
//	compare   := postfix (("==" | "!=" | "<" | "<=" | ">" | ">=") postfix)?
//	postfix   := primary ("." IDENT ["(" args ")"] | "[" STRING "]")*
//	primary   := NUMBER | STRING | "true" | "false" | "null" | "state" | "(" or ")"
//
// Only "state" (optionally chained via "." / "[...]" / ".get(key, default)")
// may appear as a bare reference; every other identifier is a parse error,
// keeping "no function calls, no side effects" a property of what the
// grammar can even express rather than something enforced after the fact.
type parser struct {
	toks []token
	pos  int
}

func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) checkPunct(text string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == text
}

func (p *parser) checkIdent(text string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == text
}

func (p *parser) expectPunct(text string) error {
	if !p.checkPunct(text) {
		return fmt.Errorf("expected %q, got %q", text, p.peek().text)
	}
	p.advance()
	return nil
}

func (p *parser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.checkIdent("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicalExpr{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.checkIdent("and") {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = logicalExpr{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (expr, error) {
	if p.checkIdent("not") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{operand: operand}, nil
	}
	return p.parseMembership()
}

func (p *parser) parseMembership() (expr, error) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	if p.checkIdent("in") {
		p.advance()
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		return inExpr{needle: left, haystack: right}, nil
	}
	return left, nil
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseCompare() (expr, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokPunct && compareOps[p.peek().text] {
		op := p.advance().text
		right, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return compareExpr{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parsePostfix() (expr, error) {
	cur, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.checkPunct("."):
			p.advance()
			nameTok := p.peek()
			if nameTok.kind != tokIdent {
				return nil, fmt.Errorf("expected identifier after '.', got %q", nameTok.text)
			}
			p.advance()
			if nameTok.text == "get" && p.checkPunct("(") {
				p.advance()
				keyTok := p.peek()
				if keyTok.kind != tokString {
					return nil, fmt.Errorf("get(): expected a string key, got %q", keyTok.text)
				}
				p.advance()
				var fallback expr
				if p.checkPunct(",") {
					p.advance()
					fallback, err = p.parseOr()
					if err != nil {
						return nil, err
					}
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				cur = getExpr{base: cur, key: keyTok.text, fallback: fallback}
				continue
			}
			cur = attrExpr{base: cur, key: nameTok.text}
		case p.checkPunct("["):
			p.advance()
			keyTok := p.peek()
			if keyTok.kind != tokString {
				return nil, fmt.Errorf("expected a string key inside '[...]', got %q", keyTok.text)
			}
			p.advance()
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			cur = attrExpr{base: cur, key: keyTok.text}
		default:
			return cur, nil
		}
	}
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.advance()
		f, err := parseNumber(t.text)
		if err != nil {
			return nil, fmt.Errorf("bad number literal %q: %w", t.text, err)
		}
		return literalExpr{val: cty.NumberFloatVal(f)}, nil
	case tokString:
		p.advance()
		return literalExpr{val: cty.StringVal(t.text)}, nil
	case tokIdent:
		switch t.text {
		case "true":
			p.advance()
			return literalExpr{val: cty.True}, nil
		case "false":
			p.advance()
			return literalExpr{val: cty.False}, nil
		case "null":
			p.advance()
			return literalExpr{val: cty.NullVal(cty.DynamicPseudoType)}, nil
		case "state":
			p.advance()
			return stateExpr{}, nil
		default:
			return nil, fmt.Errorf("unexpected identifier %q (only \"state\" may be referenced bare)", t.text)
		}
	case tokPunct:
		if t.text == "(" {
			p.advance()
			inner, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %q", t.text)
}
