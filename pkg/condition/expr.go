package condition

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Expr is a compiled condition. The zero and nil Expr always evaluate to true.
type Expr struct {
	source string
	root   node
	refs   []model.FieldID
}

// Compile parses src. Blank sources compile to an always-true expression.
func Compile(src string) (*Expr, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return &Expr{}, nil
	}
	tokens, err := lex(trimmed)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("condition: unexpected token %q", p.tokens[p.pos].text)
	}
	slices.Sort(p.refs)
	return &Expr{source: trimmed, root: root, refs: slices.Compact(p.refs)}, nil
}

// MustCompile is Compile for package-level fixtures; it panics on error.
func MustCompile(src string) *Expr {
	expr, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return expr
}

// String returns the normalised source.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.source
}

// Fields lists the field ids the expression reads, sorted and deduplicated.
func (e *Expr) Fields() []model.FieldID {
	if e == nil {
		return nil
	}
	return slices.Clone(e.refs)
}

// Eval evaluates the expression against answers.
func (e *Expr) Eval(answers model.Answers) bool {
	if e == nil || e.root == nil {
		return true
	}
	return e.root.eval(answers)
}

type node interface {
	eval(model.Answers) bool
}

type orNode struct{ left, right node }

func (n orNode) eval(a model.Answers) bool { return n.left.eval(a) || n.right.eval(a) }

type andNode struct{ left, right node }

func (n andNode) eval(a model.Answers) bool { return n.left.eval(a) && n.right.eval(a) }

type notNode struct{ inner node }

func (n notNode) eval(a model.Answers) bool { return !n.inner.eval(a) }

type presentNode struct{ field model.FieldID }

func (n presentNode) eval(a model.Answers) bool { return present(a.Get(n.field)) }

type compareNode struct {
	field  model.FieldID
	negate bool
	lit    token
}

func (n compareNode) eval(a model.Answers) bool {
	return n.matches(a.Get(n.field)) != n.negate
}

func (n compareNode) matches(value model.Value) bool {
	switch n.lit.kind {
	case tokenNull:
		return !present(value)
	case tokenBool:
		return truthy(value) == (n.lit.text == "true")
	case tokenNumber:
		want, _ := strconv.ParseFloat(n.lit.text, 64)
		if value.IsMulti() {
			return false
		}
		got, err := strconv.ParseFloat(strings.TrimSpace(value.String()), 64)
		if err != nil || math.IsNaN(got) {
			return false
		}
		return got == want
	default:
		return value.Contains(n.lit.text)
	}
}

func present(value model.Value) bool {
	if value.IsMulti() {
		return !value.IsZero()
	}
	return strings.TrimSpace(value.String()) != ""
}

func truthy(value model.Value) bool {
	if !present(value) {
		return false
	}
	if value.IsMulti() {
		return true
	}
	if parsed, err := strconv.ParseBool(strings.TrimSpace(value.String())); err == nil {
		return parsed
	}
	return true
}

type parser struct {
	tokens []token
	pos    int
	refs   []model.FieldID
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokenOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.accept(tokenAnd) {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.accept(tokenNot) {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.accept(tokenLParen) {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokenRParen) {
			return nil, errors.New("condition: missing closing ')'")
		}
		return inner, nil
	}

	if p.pos >= len(p.tokens) {
		return nil, errors.New("condition: unexpected end of expression")
	}
	tok := p.tokens[p.pos]
	if tok.kind != tokenIdent {
		return nil, fmt.Errorf("condition: expected field name, got %q", tok.text)
	}
	p.pos++
	field := model.FieldID(tok.text)
	p.refs = append(p.refs, field)

	switch {
	case p.accept(tokenEq):
		lit, err := p.literal()
		if err != nil {
			return nil, err
		}
		return compareNode{field: field, lit: lit}, nil
	case p.accept(tokenNeq):
		lit, err := p.literal()
		if err != nil {
			return nil, err
		}
		return compareNode{field: field, negate: true, lit: lit}, nil
	default:
		return presentNode{field: field}, nil
	}
}

func (p *parser) literal() (token, error) {
	if p.pos >= len(p.tokens) {
		return token{}, errors.New("condition: missing literal after comparison")
	}
	tok := p.tokens[p.pos]
	p.pos++
	switch tok.kind {
	case tokenString, tokenBool, tokenNull:
		return tok, nil
	case tokenNumber:
		if _, err := strconv.ParseFloat(tok.text, 64); err != nil {
			return token{}, fmt.Errorf("condition: invalid number %q", tok.text)
		}
		return tok, nil
	case tokenIdent:
		// bare words compare as strings: `stage == idea`
		return token{kind: tokenString, text: tok.text}, nil
	default:
		return token{}, fmt.Errorf("condition: expected literal, got %q", tok.text)
	}
}

func (p *parser) accept(kind tokenKind) bool {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == kind {
		p.pos++
		return true
	}
	return false
}
