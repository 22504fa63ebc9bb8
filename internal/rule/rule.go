// Package rule implements the restricted derived-field DSL: a recursive
// descent parser producing a small AST plus an evaluator bound to frame
// columns. There is no dynamic execution; the grammar below is the entire
// language.
//
//	expr     := ternary
//	ternary  := logic [ '?' expr ':' expr ]
//	logic    := operand { ('and' | 'or') operand }
//	operand  := primary [ '==' primary ]
//	primary  := isset '(' ident ')'
//	          | or '(' expr , expr , ... ')'   first non-null argument
//	          | '(' expr ')'
//	          | ident | string | number | true | false
package rule

import (
	"fmt"
	"unicode"

	"github.com/ignite/odoo-bridge/internal/frame"
)

// Error is a fatal DSL failure: a parse error or an unknown identifier at
// evaluation time. The orchestrator aborts the export on it.
type Error struct {
	Expr string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rule %q: %s", e.Expr, e.Msg)
}

// Expr is a parsed rule, safe to evaluate repeatedly.
type Expr struct {
	src  string
	root node
}

// Parse compiles a rule expression.
func Parse(src string) (*Expr, error) {
	p := &parser{src: src, tokens: lex(src)}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, p.errorf("unexpected %q after expression", p.peek().text)
	}
	return &Expr{src: src, root: root}, nil
}

// Eval evaluates the rule against one row. The result is a nullable text
// value; nil means null.
func (e *Expr) Eval(row frame.Row) (*string, error) {
	return e.root.eval(e.src, row)
}

// Validate checks every identifier in the expression against the given
// column set. Run once per frame so unknown columns fail the whole export
// instead of every row.
func (e *Expr) Validate(has func(string) bool) error {
	return e.root.validate(e.src, has)
}

// truthy: non-null, non-empty, and not the literal "false".
func truthy(v *string) bool {
	return v != nil && *v != "" && *v != "false"
}

func boolVal(b bool) *string {
	s := "false"
	if b {
		s = "true"
	}
	return &s
}

type node interface {
	eval(src string, row frame.Row) (*string, error)
	validate(src string, has func(string) bool) error
}

type identNode struct{ name string }

func (n identNode) eval(src string, row frame.Row) (*string, error) {
	return row.Get(n.name), nil
}

func (n identNode) validate(src string, has func(string) bool) error {
	if !has(n.name) {
		return &Error{Expr: src, Msg: fmt.Sprintf("unknown identifier %q", n.name)}
	}
	return nil
}

type litNode struct{ value string }

func (n litNode) eval(string, frame.Row) (*string, error) { v := n.value; return &v, nil }
func (n litNode) validate(string, func(string) bool) error { return nil }

type issetNode struct{ name string }

func (n issetNode) eval(src string, row frame.Row) (*string, error) {
	return boolVal(row.Get(n.name) != nil), nil
}

func (n issetNode) validate(src string, has func(string) bool) error {
	if !has(n.name) {
		return &Error{Expr: src, Msg: fmt.Sprintf("unknown identifier %q", n.name)}
	}
	return nil
}

// coalesceNode is the or(a, b, ...) function form: first non-null argument.
type coalesceNode struct{ args []node }

func (n coalesceNode) eval(src string, row frame.Row) (*string, error) {
	for _, a := range n.args {
		v, err := a.eval(src, row)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}

func (n coalesceNode) validate(src string, has func(string) bool) error {
	for _, a := range n.args {
		if err := a.validate(src, has); err != nil {
			return err
		}
	}
	return nil
}

type eqNode struct{ left, right node }

func (n eqNode) eval(src string, row frame.Row) (*string, error) {
	l, err := n.left.eval(src, row)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(src, row)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return boolVal(false), nil
	}
	return boolVal(*l == *r), nil
}

func (n eqNode) validate(src string, has func(string) bool) error {
	if err := n.left.validate(src, has); err != nil {
		return err
	}
	return n.right.validate(src, has)
}

type logicNode struct {
	op          string // "and" | "or"
	left, right node
}

func (n logicNode) eval(src string, row frame.Row) (*string, error) {
	l, err := n.left.eval(src, row)
	if err != nil {
		return nil, err
	}
	if n.op == "and" && !truthy(l) {
		return boolVal(false), nil
	}
	if n.op == "or" && truthy(l) {
		return boolVal(true), nil
	}
	r, err := n.right.eval(src, row)
	if err != nil {
		return nil, err
	}
	return boolVal(truthy(r)), nil
}

func (n logicNode) validate(src string, has func(string) bool) error {
	if err := n.left.validate(src, has); err != nil {
		return err
	}
	return n.right.validate(src, has)
}

type ternaryNode struct{ cond, then, other node }

func (n ternaryNode) eval(src string, row frame.Row) (*string, error) {
	c, err := n.cond.eval(src, row)
	if err != nil {
		return nil, err
	}
	if truthy(c) {
		return n.then.eval(src, row)
	}
	return n.other.eval(src, row)
}

func (n ternaryNode) validate(src string, has func(string) bool) error {
	for _, c := range []node{n.cond, n.then, n.other} {
		if err := c.validate(src, has); err != nil {
			return err
		}
	}
	return nil
}

// ---- lexer ----

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokEq
	tokQuestion
	tokColon
	tokLParen
	tokRParen
	tokComma
	tokAnd
	tokOr
	tokBad
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) []token {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '?':
			toks = append(toks, token{tokQuestion, "?"})
			i++
		case c == ':':
			toks = append(toks, token{tokColon, ":"})
			i++
		case c == '=' && i+1 < len(src) && src[i+1] == '=':
			toks = append(toks, token{tokEq, "=="})
			i += 2
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(src) && src[j] != quote {
				j++
			}
			if j >= len(src) {
				toks = append(toks, token{tokBad, src[i:]})
				return toks
			}
			toks = append(toks, token{tokString, src[i+1 : j]})
			i = j + 1
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			j := i + 1
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j]})
			i = j
		case isIdentStart(rune(c)):
			j := i + 1
			for j < len(src) && isIdentRune(rune(src[j])) {
				j++
			}
			word := src[i:j]
			switch word {
			case "and":
				toks = append(toks, token{tokAnd, word})
			case "or":
				toks = append(toks, token{tokOr, word})
			default:
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			toks = append(toks, token{tokBad, string(c)})
			i++
		}
	}
	return toks
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '/'
}

// ---- parser ----

type parser struct {
	src    string
	tokens []token
	pos    int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &Error{Expr: p.src, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{tokBad, "<eof>"}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, p.errorf("expected %s, got %q", what, t.text)
	}
	return p.next(), nil
}

func (p *parser) parseExpr() (node, error) {
	cond, err := p.parseLogic()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokQuestion {
		return cond, nil
	}
	p.next()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	other, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ternaryNode{cond: cond, then: then, other: other}, nil
}

func (p *parser) parseLogic() (node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokAnd && t.kind != tokOr {
			return left, nil
		}
		p.next()
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		left = logicNode{op: t.text, left: left, right: right}
	}
}

func (p *parser) parseOperand() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEq {
		return left, nil
	}
	p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return eqNode{left: left, right: right}, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return litNode{value: t.text}, nil
	case tokNumber:
		return litNode{value: t.text}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokOr:
		// Function form: or(a, b, ...) - first non-null.
		return p.parseCoalesce()
	case tokIdent:
		switch {
		case t.text == "isset" && p.peek().kind == tokLParen:
			p.next()
			name, err := p.expect(tokIdent, "field name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return issetNode{name: name.text}, nil
		case t.text == "true" || t.text == "false":
			return litNode{value: t.text}, nil
		default:
			return identNode{name: t.text}, nil
		}
	default:
		return nil, p.errorf("unexpected %q", t.text)
	}
}

func (p *parser) parseCoalesce() (node, error) {
	if _, err := p.expect(tokLParen, "'(' after or"); err != nil {
		return nil, err
	}
	var args []node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		t := p.next()
		if t.kind == tokRParen {
			break
		}
		if t.kind != tokComma {
			return nil, p.errorf("expected ',' or ')' in or(...), got %q", t.text)
		}
	}
	return coalesceNode{args: args}, nil
}
