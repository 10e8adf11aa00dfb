// Package marker parses and evaluates PEP 508 environment markers: closed
// boolean expressions over a fixed vocabulary of interpreter/platform
// attributes, e.g. `python_version < "3.10" and sys_platform == "linux"`.
package marker

import (
	"fmt"
	"strings"

	"github.com/bilusteknoloji/pipgrub/internal/lex"
	"github.com/bilusteknoloji/pipgrub/internal/pep440"
)

// Env is the fixed tuple of interpreter/platform attributes markers are
// evaluated against.
type Env struct {
	PythonVersion        string // "python_version", e.g. "3.12"
	PythonFullVersion    string // "python_full_version", e.g. "3.12.1"
	Implementation       string // "implementation_name", e.g. "cpython"
	ImplementationVer    string // "implementation_version"
	PlatformPython       string // "platform_python_implementation"
	SysPlatform          string // "sys_platform"
	OsName               string // "os_name"
	PlatformMachine      string // "platform_machine"
	PlatformSystem       string // "platform_system"
	PlatformRelease      string // "platform_release"
	PlatformVersion      string // "platform_version"
	Extra                string // "extra" — the currently-activated extra, if any
}

func (e Env) lookup(name string) (string, bool) {
	switch name {
	case "python_version":
		return e.PythonVersion, true
	case "python_full_version":
		return e.PythonFullVersion, true
	case "implementation_name":
		return e.Implementation, true
	case "implementation_version":
		return e.ImplementationVer, true
	case "platform_python_implementation":
		return e.PlatformPython, true
	case "sys_platform":
		return e.SysPlatform, true
	case "os_name":
		return e.OsName, true
	case "platform_machine":
		return e.PlatformMachine, true
	case "platform_system":
		return e.PlatformSystem, true
	case "platform_release":
		return e.PlatformRelease, true
	case "platform_version":
		return e.PlatformVersion, true
	case "extra":
		return e.Extra, true
	default:
		return "", false
	}
}

// versionValued is the subset of the marker vocabulary compared as PEP 440
// versions rather than opaque strings.
var versionValued = map[string]bool{
	"python_version":         true,
	"python_full_version":    true,
	"implementation_version": true,
}

// Expr is a parsed, immutable marker expression.
type Expr interface {
	Eval(env Env) bool
	String() string
}

type andExpr struct{ terms []Expr }
type orExpr struct{ terms []Expr }
type notExpr struct{ term Expr }

type comparison struct {
	lhsVar string // empty if lhs is a literal
	lhsLit string
	op     string
	rhsVar string
	rhsLit string
}

func (a andExpr) Eval(env Env) bool {
	for _, t := range a.terms {
		if !t.Eval(env) {
			return false
		}
	}
	return true
}

func (o orExpr) Eval(env Env) bool {
	for _, t := range o.terms {
		if t.Eval(env) {
			return true
		}
	}
	return false
}

func (n notExpr) Eval(env Env) bool { return !n.term.Eval(env) }

func (c comparison) Eval(env Env) bool {
	lhs := c.resolve(env, c.lhsVar, c.lhsLit)
	rhs := c.resolve(env, c.rhsVar, c.rhsLit)
	varName := c.lhsVar
	if varName == "" {
		varName = c.rhsVar
	}
	if versionValued[varName] {
		return evalVersionCompare(lhs, c.op, rhs)
	}
	return evalStringCompare(lhs, c.op, rhs)
}

func (c comparison) resolve(env Env, varName, lit string) string {
	if varName == "" {
		return lit
	}
	v, _ := env.lookup(varName)
	return v
}

func evalVersionCompare(lhs, op, rhs string) bool {
	lv, errL := pep440.Parse(lhs)
	rv, errR := pep440.Parse(rhs)
	if errL != nil || errR != nil {
		return evalStringCompare(lhs, op, rhs)
	}
	c := lv.Compare(rv)
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "in":
		return strings.Contains(rhs, lhs)
	case "not in":
		return !strings.Contains(rhs, lhs)
	default:
		return false
	}
}

func evalStringCompare(lhs, op, rhs string) bool {
	switch op {
	case "==":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	case "in":
		return strings.Contains(rhs, lhs)
	case "not in":
		return !strings.Contains(rhs, lhs)
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	case ">":
		return lhs > rhs
	case ">=":
		return lhs >= rhs
	default:
		return false
	}
}

func (a andExpr) String() string { return joinExprs(a.terms, " and ") }
func (o orExpr) String() string  { return joinExprs(o.terms, " or ") }
func (n notExpr) String() string { return "not " + n.term.String() }

func joinExprs(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

func (c comparison) String() string {
	var lhs, rhs string
	if c.lhsVar != "" {
		lhs = c.lhsVar
	} else {
		lhs = fmt.Sprintf("%q", c.lhsLit)
	}
	if c.rhsVar != "" {
		rhs = c.rhsVar
	} else {
		rhs = fmt.Sprintf("%q", c.rhsLit)
	}
	return fmt.Sprintf("%s %s %s", lhs, c.op, rhs)
}

// Parse parses a PEP 508 marker expression.
func Parse(src string) (Expr, error) {
	p := &parser{s: lex.New(src), src: src}
	p.s.SkipSpaces()
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	if !p.s.Eof() {
		return nil, fmt.Errorf("unexpected trailing input at offset %d in marker %q", p.s.Pos(), src)
	}
	return expr, nil
}

type parser struct {
	s   *lex.Scanner
	src string
}

func (p *parser) parseOr() (Expr, error) {
	terms := []Expr{}
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms = append(terms, first)
	for {
		p.s.SkipSpaces()
		save := p.s.Pos()
		if p.consumeKeyword("or") {
			p.s.SkipSpaces()
			next, err := p.parseAnd()
			if err != nil {
				return nil, err
			}
			terms = append(terms, next)
			continue
		}
		p.restoreTo(save)
		break
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return orExpr{terms: terms}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	terms := []Expr{}
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms = append(terms, first)
	for {
		p.s.SkipSpaces()
		save := p.s.Pos()
		if p.consumeKeyword("and") {
			p.s.SkipSpaces()
			next, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			terms = append(terms, next)
			continue
		}
		p.restoreTo(save)
		break
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return andExpr{terms: terms}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	p.s.SkipSpaces()
	if p.consumeKeyword("not") {
		p.s.SkipSpaces()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{term: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	p.s.SkipSpaces()
	if p.s.Peek() == '(' {
		p.s.Next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.s.SkipSpaces()
		if p.s.Peek() != ')' {
			return nil, fmt.Errorf("expected ')' at offset %d in marker %q", p.s.Pos(), p.src)
		}
		p.s.Next()
		return expr, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	lhsVar, lhsLit, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}
	p.s.SkipSpaces()
	rhsVar, rhsLit, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return comparison{lhsVar: lhsVar, lhsLit: lhsLit, op: op, rhsVar: rhsVar, rhsLit: rhsLit}, nil
}

func (p *parser) parseOperand() (varName, lit string, err error) {
	p.s.SkipSpaces()
	if p.s.Peek() == '\'' || p.s.Peek() == '"' {
		s, ok := p.s.QuotedString()
		if !ok {
			return "", "", fmt.Errorf("unterminated string literal at offset %d in marker %q", p.s.Pos(), p.src)
		}
		return "", s, nil
	}
	id := p.s.Ident()
	if id == "" {
		return "", "", fmt.Errorf("expected identifier or string literal at offset %d in marker %q", p.s.Pos(), p.src)
	}
	if !knownVariable(id) {
		return "", "", fmt.Errorf("unknown marker variable %q", id)
	}
	return id, "", nil
}

func knownVariable(name string) bool {
	var e Env
	_, ok := e.lookup(name)
	return ok
}

func (p *parser) parseOp() (string, error) {
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">", "not in", "in"} {
		if p.s.Consume(op) {
			return op, nil
		}
	}
	return "", fmt.Errorf("expected comparison operator at offset %d in marker %q", p.s.Pos(), p.src)
}

func (p *parser) consumeKeyword(kw string) bool {
	save := p.s.Pos()
	id := p.peekIdent()
	if id == kw {
		p.s.Ident()
		return true
	}
	p.restoreTo(save)
	return false
}

func (p *parser) peekIdent() string {
	save := p.s.Pos()
	id := p.s.Ident()
	p.restoreTo(save)
	return id
}

func (p *parser) restoreTo(pos int) { p.s.Seek(pos) }
