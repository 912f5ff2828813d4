// Package livemarkup compiles a component markup dialect into render
// trees with static and dynamic regions separated, evaluates them against
// binding sets, and diffs successive evaluations into minimal wire
// patches. A client that materialized one render keeps its view current by
// applying only the slots that changed.
package livemarkup

import (
	"fmt"
	"io"
	"strings"

	"github.com/livefir/livemarkup/internal/expr"
	"github.com/livefir/livemarkup/internal/metrics"
	"github.com/livefir/livemarkup/internal/parser"
	"github.com/livefir/livemarkup/internal/tokenizer"
)

// config holds template compilation options.
type config struct {
	registry  *Registry
	funcs     FuncMap
	minify    bool
	collector *metrics.Collector
}

// Option is a functional option for Compile.
type Option func(*config)

// WithComponents sets the registry used to resolve component invocations.
func WithComponents(reg *Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithFuncs merges additional expression functions over the builtins.
func WithFuncs(funcs FuncMap) Option {
	return func(c *config) {
		if c.funcs == nil {
			c.funcs = FuncMap{}
		}
		for name, fn := range funcs {
			c.funcs[name] = fn
		}
	}
}

// WithMinify minifies the template's static fragments at compile time.
func WithMinify() Option {
	return func(c *config) {
		c.minify = true
	}
}

// WithMetrics wires a collector that counts evaluations, skipped slots and
// patch sizes.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *config) {
		c.collector = collector
	}
}

// Template is a compiled template: the static skeleton plus one evaluator
// per dynamic slot, each guarded by the binding keys it reads.
type Template struct {
	name     string
	source   string
	prog     *program
	warnings []Warning
	cfg      config
}

// Compile tokenizes, parses and compiles a template source. Structural and
// lexical problems are fatal; declarative metadata problems are collected
// as warnings on the returned template.
func Compile(name, source string, opts ...Option) (*Template, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	root, err := parser.ParseSource(source)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	c := &compiler{cfg: &cfg}
	prog, err := c.compileNodes(root.Children, nil)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	if cfg.minify {
		minifyProgram(prog)
	}
	if cfg.collector != nil {
		cfg.collector.RecordCompile()
	}
	return &Template{
		name:     name,
		source:   source,
		prog:     prog,
		warnings: c.warnings,
		cfg:      cfg,
	}, nil
}

// MustCompile is Compile that panics on error, for tests and static
// template declarations.
func MustCompile(name, source string, opts ...Option) *Template {
	t, err := Compile(name, source, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template's name.
func (t *Template) Name() string { return t.name }

// Warnings returns the declarative metadata warnings collected at compile
// time. The template renders normally regardless.
func (t *Template) Warnings() []Warning { return t.warnings }

// Fingerprint returns the compile-time fingerprint of the template's
// static structure.
func (t *Template) Fingerprint() uint64 { return t.prog.fingerprint }

// Execute renders the template once against bindings and writes the full
// output. No state is retained; use NewView for incremental updates.
func (t *Template) Execute(w io.Writer, bindings Bindings) error {
	env := t.newEnv(bindings, nil, newIDAllocator())
	r, err := t.prog.eval(env, nil)
	if err != nil {
		return fmt.Errorf("execute %s: %w", t.name, err)
	}
	_, err = io.WriteString(w, r.String())
	return err
}

func (t *Template) newEnv(bindings Bindings, changed ChangedSet, ids *idAllocator) *evalEnv {
	return &evalEnv{
		bindings:  bindings,
		changed:   changed,
		funcs:     t.cfg.funcs,
		ids:       ids,
		collector: t.cfg.collector,
	}
}

// program is the compiled form: statics and one slot evaluator per
// dynamic, plus the structural fingerprint.
type program struct {
	statics     []string
	slots       []slotProgram
	fingerprint uint64
}

// deps unions the dependency info of every slot.
func (p *program) deps() depInfo {
	var d depInfo
	for _, s := range p.slots {
		d = d.merge(s.deps())
	}
	return d
}

// depInfo is the compile-time dependency summary of a slot: the binding
// paths it reads outside any loop scope, and whether it reads loop-local
// or :let bindings (which have no identity across renders and are always
// considered changed).
type depInfo struct {
	paths [][]string
	local bool
}

func (d depInfo) merge(other depInfo) depInfo {
	merged := depInfo{local: d.local || other.local}
	merged.paths = append(append([][]string(nil), d.paths...), other.paths...)
	return merged
}

// compiler walks the parse tree and emits a program.
type compiler struct {
	cfg      *config
	warnings []Warning
	seq      int // component mount position counter
}

// progBuilder accumulates alternating statics and slots.
type progBuilder struct {
	statics  []string
	pending  strings.Builder
	slots    []slotProgram
	children []uint64
}

func (b *progBuilder) text(s string) {
	b.pending.WriteString(s)
}

func (b *progBuilder) slot(s slotProgram, childFingerprint uint64) {
	b.statics = append(b.statics, b.pending.String())
	b.pending.Reset()
	b.slots = append(b.slots, s)
	b.children = append(b.children, childFingerprint)
}

func (b *progBuilder) finish() *program {
	b.statics = append(b.statics, b.pending.String())
	b.pending.Reset()
	return &program{
		statics:     b.statics,
		slots:       b.slots,
		fingerprint: fingerprintStatics(b.statics, b.children),
	}
}

// compileNodes builds a program for a node list. locals names the
// bindings introduced by enclosing loops and :let patterns.
func (c *compiler) compileNodes(nodes []parser.Node, locals map[string]bool) (*program, error) {
	b := &progBuilder{}
	for _, n := range nodes {
		if err := c.compileNode(b, n, locals); err != nil {
			return nil, err
		}
	}
	return b.finish(), nil
}

func (c *compiler) compileNode(b *progBuilder, n parser.Node, locals map[string]bool) error {
	switch n := n.(type) {
	case *parser.TextFragment:
		b.text(n.Content)
		return nil
	case *parser.ExpressionHole:
		return c.compileExpression(b, n, locals)
	case *parser.Element:
		if n.For != nil {
			return c.compileLoop(b, n, locals)
		}
		return c.compileElement(b, n, locals)
	case *parser.Component:
		return c.compileComponent(b, n, locals)
	default:
		return fmt.Errorf("%s: unexpected node %T", n.Span().Start, n)
	}
}

func (c *compiler) compileExpression(b *progBuilder, n *parser.ExpressionHole, locals map[string]bool) error {
	code, err := expr.Parse(n.Code)
	if err != nil {
		return fmt.Errorf("%s: %w", n.SrcSpan.Start, err)
	}
	b.slot(&exprSlot{code: code, dep: classifyDeps(code, locals)}, 0)
	return nil
}

func (c *compiler) compileElement(b *progBuilder, n *parser.Element, locals map[string]bool) error {
	b.text("<" + n.Name)
	for _, a := range n.Attrs {
		switch a.Kind {
		case parser.AttrLiteral:
			q := a.Quote
			if q == 0 {
				q = '"'
			}
			b.text(fmt.Sprintf(" %s=%c%s%c", a.Name, q, a.Value, q))
		case parser.AttrBoolean:
			b.text(" " + a.Name)
		case parser.AttrExpression:
			code, err := expr.Parse(a.Value)
			if err != nil {
				return fmt.Errorf("%s: attribute %s: %w", a.Span.Start, a.Name, err)
			}
			b.slot(&attrSlot{name: a.Name, code: code, dep: classifyDeps(code, locals)}, 1)
		case parser.AttrSpread:
			code, err := expr.Parse(a.Value)
			if err != nil {
				return fmt.Errorf("%s: attribute spread: %w", a.Span.Start, err)
			}
			b.slot(&spreadSlot{code: code, dep: classifyDeps(code, locals)}, 2)
		}
	}
	if n.SelfClose {
		if tokenizer.IsVoid(n.Name) {
			b.text(">")
		} else {
			b.text("/>")
		}
		return nil
	}
	b.text(">")
	for _, child := range n.Children {
		if err := c.compileNode(b, child, locals); err != nil {
			return err
		}
	}
	b.text("</" + n.Name + ">")
	return nil
}

// compileLoop desugars :for on an element into a comprehension slot, or a
// keyed component list when the loop body is a single keyed component.
func (c *compiler) compileLoop(b *progBuilder, n *parser.Element, locals map[string]bool) error {
	gen, err := expr.ParseGenerator(n.For.Code)
	if err != nil {
		return fmt.Errorf("%s: :for: %w", n.For.Span.Start, err)
	}

	inner := *n
	inner.For = nil
	itemLocals := withLocals(locals, gen.Var)
	if gen.Index != "" {
		itemLocals = withLocals(itemLocals, gen.Index)
	}
	item, err := c.compileNodes([]parser.Node{&inner}, itemLocals)
	if err != nil {
		return err
	}

	genDep := classifyDeps(gen.Source, locals)
	// Loop-local reads stay inside the iteration scope; only outer paths
	// propagate to the loop guard.
	agg := genDep.merge(depInfo{paths: item.deps().paths})

	// A loop whose whole body is one keyed, registered component is a
	// component list: items keep identity by id across reorders, insertions
	// and removals. The wrapper element's statics fold into the component's
	// statics so each list item is one self-contained tree.
	if len(item.slots) == 1 {
		if comp, ok := item.slots[0].(*componentSlot); ok && comp.key != nil && comp.spec != nil {
			inner := comp.spec.Template.prog
			statics := make([]string, len(inner.statics))
			copy(statics, inner.statics)
			statics[0] = item.statics[0] + statics[0]
			statics[len(statics)-1] += item.statics[1]
			b.slot(&componentListSlot{
				gen:         gen,
				comp:        comp,
				dep:         agg,
				statics:     statics,
				fingerprint: fingerprintStatics(statics, []uint64{inner.fingerprint}),
			}, item.fingerprint)
			return nil
		}
	}

	b.slot(&comprehensionSlot{gen: gen, item: item, dep: agg}, item.fingerprint)
	return nil
}

func (c *compiler) compileComponent(b *progBuilder, n *parser.Component, locals map[string]bool) error {
	c.seq++
	slot := &componentSlot{
		target: n.Target,
		seq:    c.seq,
	}

	if c.cfg.registry != nil {
		if spec, ok := c.cfg.registry.Lookup(n.Target); ok {
			slot.spec = &spec
			c.warnings = append(c.warnings, validateInvocation(n, &spec)...)
		}
	}
	if slot.spec == nil {
		c.warnings = append(c.warnings, Warning{
			Code:    WarnUnknownComponent,
			Message: fmt.Sprintf("unknown component %q", n.RawName),
			Span:    n.SrcSpan,
		})
	}

	dep := depInfo{}
	for _, a := range n.Attrs {
		ap := attrProgram{name: a.Name, kind: a.Kind, literal: a.Value}
		switch a.Kind {
		case parser.AttrExpression, parser.AttrSpread:
			code, err := expr.Parse(a.Value)
			if err != nil {
				return fmt.Errorf("%s: attribute %s: %w", a.Span.Start, a.Name, err)
			}
			ap.code = code
			ap.dep = classifyDeps(code, locals)
			dep = dep.merge(ap.dep)
		}
		if a.Name == "key" && ap.code != nil {
			slot.key = ap.code
			continue
		}
		slot.attrs = append(slot.attrs, ap)
	}

	// Slot content compiles in the caller's scope; a :let name becomes a
	// local inside the entry body, supplied by the callee at render time.
	addEntry := func(name, let string, children []parser.Node) error {
		entryLocals := locals
		if let != "" {
			entryLocals = withLocals(locals, let)
		}
		prog, err := c.compileNodes(children, entryLocals)
		if err != nil {
			return err
		}
		slot.slotDefs = append(slot.slotDefs, slotDef{name: name, let: let, prog: prog})
		dep = dep.merge(depInfo{paths: prog.deps().paths})
		return nil
	}
	if hasRenderableContent(n.Children) {
		let := ""
		if n.Let != nil {
			let = n.Let.Pattern
		}
		if err := addEntry(parser.InnerBlock, let, n.Children); err != nil {
			return err
		}
	}
	for _, entry := range n.Slots {
		let := ""
		if entry.Let != nil {
			let = entry.Let.Pattern
		}
		if err := addEntry(entry.Name, let, entry.Children); err != nil {
			return err
		}
	}

	slot.dep = dep
	child := uint64(c.seq)
	if slot.spec != nil {
		child = slot.spec.Template.prog.fingerprint
	}
	b.slot(slot, child)
	return nil
}

// hasRenderableContent ignores whitespace-only text between tags.
func hasRenderableContent(nodes []parser.Node) bool {
	for _, n := range nodes {
		if t, ok := n.(*parser.TextFragment); ok {
			if strings.TrimSpace(t.Content) == "" {
				continue
			}
		}
		return true
	}
	return false
}

func withLocals(locals map[string]bool, name string) map[string]bool {
	out := make(map[string]bool, len(locals)+1)
	for k := range locals {
		out[k] = true
	}
	out[name] = true
	return out
}

// classifyDeps splits an expression's reads into outer binding paths and
// loop-local reads.
func classifyDeps(code *expr.Compiled, locals map[string]bool) depInfo {
	var d depInfo
	for _, p := range code.Paths() {
		if locals[p[0]] {
			d.local = true
			continue
		}
		d.paths = append(d.paths, p)
	}
	// Slot content renders through the caller's closure, so its freshness
	// cannot be judged from binding paths alone.
	for _, name := range code.Calls() {
		if name == renderSlotFunc {
			d.local = true
		}
	}
	return d
}
