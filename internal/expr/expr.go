// Package expr implements the small host-expression dialect embedded in
// templates: literals, binding paths, boolean/comparison/arithmetic
// operators, and calls into a registered function map. A compiled
// expression knows the binding paths it reads, which drives change
// tracking upstream.
package expr

import (
	"fmt"
	"strconv"
)

// Env resolves names and function calls during evaluation.
type Env interface {
	// Lookup resolves a root binding or local name.
	Lookup(name string) (any, bool)
	// Call invokes a registered function.
	Call(name string, args []any) (any, error)
}

// Atom is a symbolic constant literal (:name).
type Atom string

// Compiled is a parsed, reusable expression.
type Compiled struct {
	Source string
	root   node
	paths  [][]string
	calls  []string
}

// Generator is a parsed loop generator: "item <- source" with an optional
// index binding "item, i <- source".
type Generator struct {
	Var    string
	Index  string // empty when not bound
	Source *Compiled
}

// Parse compiles an expression.
func Parse(code string) (*Compiled, error) {
	p := &parser{lex: &lexer{src: code}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.tok.typ != tokenEOF {
		return nil, p.lex.errf(p.tok.pos, "unexpected %q after expression", p.tok.val)
	}
	c := &Compiled{Source: code, root: root}
	collectPaths(root, &c.paths)
	collectCalls(root, &c.calls)
	return c, nil
}

// ParseGenerator compiles a loop generator expression.
func ParseGenerator(code string) (*Generator, error) {
	p := &parser{lex: &lexer{src: code}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.typ != tokenIdent {
		return nil, p.lex.errf(p.tok.pos, "generator must start with a binding name")
	}
	g := &Generator{Var: p.tok.val}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.typ == tokenOp && p.tok.val == "," {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.typ != tokenIdent {
			return nil, p.lex.errf(p.tok.pos, "generator index must be a name")
		}
		g.Index = p.tok.val
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.typ != tokenArrow {
		return nil, p.lex.errf(p.tok.pos, "generator requires '<-'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.tok.typ != tokenEOF {
		return nil, p.lex.errf(p.tok.pos, "unexpected %q after generator", p.tok.val)
	}
	src := &Compiled{Source: code, root: root}
	collectPaths(root, &src.paths)
	collectCalls(root, &src.calls)
	g.Source = src
	return g, nil
}

// Paths returns every binding path the expression reads. The first segment
// of each path is the root binding key.
func (c *Compiled) Paths() [][]string {
	return c.paths
}

// Vars returns the distinct root binding keys the expression reads.
func (c *Compiled) Vars() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range c.paths {
		if !seen[p[0]] {
			seen[p[0]] = true
			out = append(out, p[0])
		}
	}
	return out
}

// Calls returns the function names the expression invokes.
func (c *Compiled) Calls() []string {
	return c.calls
}

// Eval evaluates the expression against env.
func (c *Compiled) Eval(env Env) (any, error) {
	return c.root.eval(env)
}

// nodes

type node interface {
	eval(env Env) (any, error)
}

type litNode struct{ val any }

func (n litNode) eval(Env) (any, error) { return n.val, nil }

type pathNode struct{ segs []string }

func (n pathNode) eval(env Env) (any, error) {
	v, ok := env.Lookup(n.segs[0])
	if !ok {
		return nil, fmt.Errorf("undefined binding %q", n.segs[0])
	}
	for _, seg := range n.segs[1:] {
		var err error
		v, err = field(v, seg)
		if err != nil {
			return nil, fmt.Errorf("path %q: %w", pathString(n.segs), err)
		}
	}
	return v, nil
}

type unaryNode struct {
	op string
	x  node
}

func (n unaryNode) eval(env Env) (any, error) {
	v, err := n.x.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "!":
		return !Truthy(v), nil
	case "-":
		return negate(v)
	}
	return nil, fmt.Errorf("unknown unary operator %q", n.op)
}

type binaryNode struct {
	op   string
	x, y node
}

func (n binaryNode) eval(env Env) (any, error) {
	// Short-circuit boolean operators.
	switch n.op {
	case "&&":
		v, err := n.x.eval(env)
		if err != nil {
			return nil, err
		}
		if !Truthy(v) {
			return v, nil
		}
		return n.y.eval(env)
	case "||":
		v, err := n.x.eval(env)
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return v, nil
		}
		return n.y.eval(env)
	}
	x, err := n.x.eval(env)
	if err != nil {
		return nil, err
	}
	y, err := n.y.eval(env)
	if err != nil {
		return nil, err
	}
	return applyBinary(n.op, x, y)
}

type callNode struct {
	name string
	args []node
}

func (n callNode) eval(env Env) (any, error) {
	// if(cond, then[, else]) is a lazy form: only the taken branch runs,
	// so it can guard a path against nil.
	if n.name == "if" && (len(n.args) == 2 || len(n.args) == 3) {
		cond, err := n.args[0].eval(env)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return n.args[1].eval(env)
		}
		if len(n.args) == 3 {
			return n.args[2].eval(env)
		}
		return nil, nil
	}
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return env.Call(n.name, args)
}

func collectPaths(n node, out *[][]string) {
	switch n := n.(type) {
	case pathNode:
		*out = append(*out, n.segs)
	case unaryNode:
		collectPaths(n.x, out)
	case binaryNode:
		collectPaths(n.x, out)
		collectPaths(n.y, out)
	case callNode:
		for _, a := range n.args {
			collectPaths(a, out)
		}
	}
}

func collectCalls(n node, out *[]string) {
	switch n := n.(type) {
	case unaryNode:
		collectCalls(n.x, out)
	case binaryNode:
		collectCalls(n.x, out)
		collectCalls(n.y, out)
	case callNode:
		*out = append(*out, n.name)
		for _, a := range n.args {
			collectCalls(a, out)
		}
	}
}

func pathString(segs []string) string {
	out := segs[0]
	for _, s := range segs[1:] {
		out += "." + s
	}
	return out
}

// parser

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

// binding powers, loosest first
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6,
}

func (p *parser) parseExpr(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.typ == tokenOp {
		prec, isBinary := precedence[p.tok.val]
		if !isBinary || prec < minPrec {
			break
		}
		op := p.tok.val
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, x: left, y: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.tok.typ == tokenOp && (p.tok.val == "!" || p.tok.val == "-") {
		op := p.tok.val
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.tok
	switch tok.typ {
	case tokenInt:
		v, _ := strconv.ParseInt(tok.val, 10, 64)
		return p.finishLit(v)
	case tokenFloat:
		v, _ := strconv.ParseFloat(tok.val, 64)
		return p.finishLit(v)
	case tokenString:
		return p.finishLit(tok.val)
	case tokenAtom:
		return p.finishLit(Atom(tok.val))
	case tokenIdent:
		switch tok.val {
		case "true":
			return p.finishLit(true)
		case "false":
			return p.finishLit(false)
		case "nil":
			return p.finishLit(nil)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.typ == tokenOp && p.tok.val == "(" {
			return p.parseCall(tok.val)
		}
		return p.parsePath(tok.val)
	case tokenOp:
		if tok.val == "(" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			inner, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if p.tok.typ != tokenOp || p.tok.val != ")" {
				return nil, p.lex.errf(p.tok.pos, "expected ')'")
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, p.lex.errf(tok.pos, "unexpected %q", tok.val)
}

func (p *parser) finishLit(v any) (node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	return litNode{val: v}, nil
}

func (p *parser) parsePath(root string) (node, error) {
	segs := []string{root}
	for p.tok.typ == tokenOp && p.tok.val == "." {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.typ != tokenIdent {
			return nil, p.lex.errf(p.tok.pos, "expected field name after '.'")
		}
		segs = append(segs, p.tok.val)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return pathNode{segs: segs}, nil
}

func (p *parser) parseCall(name string) (node, error) {
	// Current token is '('.
	if err := p.advance(); err != nil {
		return nil, err
	}
	var args []node
	if !(p.tok.typ == tokenOp && p.tok.val == ")") {
		for {
			arg, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.tok.typ == tokenOp && p.tok.val == "," {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if p.tok.typ != tokenOp || p.tok.val != ")" {
		return nil, p.lex.errf(p.tok.pos, "expected ')' in call to %s", name)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return callNode{name: name, args: args}, nil
}
