package livemarkup

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/livefir/livemarkup/internal/expr"
	"github.com/livefir/livemarkup/internal/metrics"
	"github.com/livefir/livemarkup/internal/parser"
)

// renderSlotFunc is the builtin a component template calls to render slot
// content supplied by its caller.
const renderSlotFunc = "render_slot"

// evalEnv is the evaluation context for one render: bindings, the changed
// set guarding re-execution, loop and :let locals, and the component id
// allocator shared across the whole tree.
type evalEnv struct {
	bindings  Bindings
	changed   ChangedSet
	locals    map[string]any
	funcs     FuncMap
	ids       *idAllocator
	scope     string
	slots     map[string]boundSlot
	collector *metrics.Collector
}

// boundSlot is slot content captured at the call site: the compiled entry
// body plus the caller's environment it closes over.
type boundSlot struct {
	def slotDef
	env *evalEnv
}

// child derives an environment with additional locals, for loop bodies and
// :let bindings.
func (env *evalEnv) child(locals map[string]any, scopeSuffix string) *evalEnv {
	merged := make(map[string]any, len(env.locals)+len(locals))
	for k, v := range env.locals {
		merged[k] = v
	}
	for k, v := range locals {
		merged[k] = v
	}
	out := *env
	out.locals = merged
	out.scope = env.scope + scopeSuffix
	return &out
}

// Lookup implements expr.Env. Locals shadow bindings.
func (env *evalEnv) Lookup(name string) (any, bool) {
	if v, ok := env.locals[name]; ok {
		return v, true
	}
	v, ok := env.bindings[name]
	return v, ok
}

// Call implements expr.Env.
func (env *evalEnv) Call(name string, args []any) (any, error) {
	if name == renderSlotFunc {
		return env.renderSlot(args)
	}
	if fn, ok := env.funcs[name]; ok {
		return fn(args...)
	}
	if fn, ok := builtins[name]; ok {
		return fn(args...)
	}
	return nil, fmt.Errorf("unknown function %q", name)
}

// renderSlot renders caller-supplied slot content. A missing slot renders
// empty so optional slots need no guard in component templates.
func (env *evalEnv) renderSlot(args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s requires a slot name", renderSlotFunc)
	}
	name := stringify(args[0])
	bound, ok := env.slots[name]
	if !ok {
		return nil, nil
	}
	callerEnv := bound.env
	if bound.def.let != "" {
		var arg any
		if len(args) > 1 {
			arg = args[1]
		}
		callerEnv = callerEnv.child(map[string]any{bound.def.let: arg}, "")
	}
	return bound.def.prog.eval(callerEnv, nil)
}

// touched reports whether a slot with the given dependency summary must
// re-execute. A nil changed set means an initial render: everything runs.
func (env *evalEnv) touched(d depInfo) bool {
	if env.changed == nil {
		return true
	}
	if d.local {
		return true
	}
	for _, p := range d.paths {
		if env.changed.Touches(p) {
			return true
		}
	}
	return false
}

// idAllocator hands out stable component ids. The key encodes mount
// position and the user-supplied key, so the same logical component gets
// the same id across renders regardless of where it moved.
type idAllocator struct {
	next  int64
	byKey map[string]int64
}

func newIDAllocator() *idAllocator {
	return &idAllocator{byKey: make(map[string]int64)}
}

func (a *idAllocator) id(key string) int64 {
	if id, ok := a.byKey[key]; ok {
		return id
	}
	a.next++
	a.byKey[key] = a.next
	return a.next
}

// eval executes the program's dynamic slots, reusing the previous value
// for any slot whose guard shows its inputs unchanged. The dirty bitmap on
// the result tells the differ which slots actually re-ran.
func (p *program) eval(env *evalEnv, prev *Rendered) (*Rendered, error) {
	r := &Rendered{
		Statics:     p.statics,
		Dynamics:    make([]Dynamic, len(p.slots)),
		Fingerprint: p.fingerprint,
		dirty:       make([]bool, len(p.slots)),
	}
	evaluated, skipped := 0, 0
	for i, s := range p.slots {
		var prevDyn Dynamic
		if prev != nil && prev.Fingerprint == p.fingerprint && i < len(prev.Dynamics) {
			prevDyn = prev.Dynamics[i]
		}
		if prevDyn != nil && !env.touched(s.deps()) {
			r.Dynamics[i] = prevDyn
			skipped++
			continue
		}
		dyn, err := s.eval(env, prevDyn)
		if err != nil {
			return nil, err
		}
		r.Dynamics[i] = dyn
		r.dirty[i] = true
		evaluated++
	}
	if env.collector != nil {
		env.collector.RecordSlots(evaluated, skipped)
	}
	return r, nil
}

// slotProgram is one compiled dynamic slot.
type slotProgram interface {
	deps() depInfo
	eval(env *evalEnv, prev Dynamic) (Dynamic, error)
}

// exprSlot is an embedded output expression.
type exprSlot struct {
	code *expr.Compiled
	dep  depInfo
}

func (s *exprSlot) deps() depInfo { return s.dep }

func (s *exprSlot) eval(env *evalEnv, prev Dynamic) (Dynamic, error) {
	v, err := s.code.Eval(env)
	if err != nil {
		return nil, fmt.Errorf("{%s}: %w", s.code.Source, err)
	}
	switch v := v.(type) {
	case nil:
		return Value(""), nil
	case *Rendered:
		return &SubTree{Rendered: v}, nil
	case *SubTree:
		return v, nil
	case RawHTML:
		return Value(string(v)), nil
	}
	return Value(escapeText(stringify(v))), nil
}

// attrSlot is a dynamic attribute value. The whole ` name="value"` pair is
// the dynamic: nil and false drop the attribute, true renders it bare.
type attrSlot struct {
	name string
	code *expr.Compiled
	dep  depInfo
}

func (s *attrSlot) deps() depInfo { return s.dep }

func (s *attrSlot) eval(env *evalEnv, prev Dynamic) (Dynamic, error) {
	v, err := s.code.Eval(env)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", s.name, err)
	}
	switch v := v.(type) {
	case nil:
		return Value(""), nil
	case bool:
		if v {
			return Value(" " + s.name), nil
		}
		return Value(""), nil
	}
	return Value(" " + s.name + `="` + escapeAttr(stringify(v)) + `"`), nil
}

// spreadSlot renders a map as attributes, sorted by name so output is
// deterministic.
type spreadSlot struct {
	code *expr.Compiled
	dep  depInfo
}

func (s *spreadSlot) deps() depInfo { return s.dep }

func (s *spreadSlot) eval(env *evalEnv, prev Dynamic) (Dynamic, error) {
	v, err := s.code.Eval(env)
	if err != nil {
		return nil, fmt.Errorf("attribute spread {%s}: %w", s.code.Source, err)
	}
	m, err := bindingMap(v)
	if err != nil {
		return nil, fmt.Errorf("attribute spread {%s}: %w", s.code.Source, err)
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for _, name := range names {
		switch av := m[name].(type) {
		case nil:
		case bool:
			if av {
				out += " " + name
			}
		default:
			out += " " + name + `="` + escapeAttr(stringify(av)) + `"`
		}
	}
	return Value(out), nil
}

// comprehensionSlot is a :for loop over a plain element: shared statics,
// one dynamic tuple per item.
type comprehensionSlot struct {
	gen  *expr.Generator
	item *program
	dep  depInfo
}

func (s *comprehensionSlot) deps() depInfo { return s.dep }

func (s *comprehensionSlot) eval(env *evalEnv, prev Dynamic) (Dynamic, error) {
	items, err := iterate(s.gen, env)
	if err != nil {
		return nil, err
	}
	prevComp, _ := prev.(*Comprehension)
	out := &Comprehension{
		Statics:     s.item.statics,
		Items:       make([][]Dynamic, len(items)),
		Fingerprint: s.item.fingerprint,
	}
	for i, item := range items {
		locals := map[string]any{s.gen.Var: item}
		if s.gen.Index != "" {
			locals[s.gen.Index] = i
		}
		itemEnv := env.child(locals, "["+strconv.Itoa(i)+"]")
		// Items pair up positionally; a slot inside the loop that reads
		// only unchanged outer bindings reuses its previous value.
		var prevItem *Rendered
		if prevComp != nil && prevComp.Fingerprint == out.Fingerprint && i < len(prevComp.Items) {
			prevItem = &Rendered{
				Statics:     s.item.statics,
				Dynamics:    prevComp.Items[i],
				Fingerprint: s.item.fingerprint,
			}
		}
		r, err := s.item.eval(itemEnv, prevItem)
		if err != nil {
			return nil, err
		}
		out.Items[i] = r.Dynamics
	}
	return out, nil
}

// componentSlot mounts one component invocation.
type componentSlot struct {
	target   string
	seq      int
	spec     *ComponentSpec
	key      *expr.Compiled
	attrs    []attrProgram
	slotDefs []slotDef
	dep      depInfo
}

// attrProgram is one compiled invocation attribute.
type attrProgram struct {
	name    string
	kind    parser.AttrValueKind
	literal string
	code    *expr.Compiled
	dep     depInfo
}

// slotDef is one compiled slot entry body with its :let binding name.
type slotDef struct {
	name string
	let  string
	prog *program
}

func (s *componentSlot) deps() depInfo { return s.dep }

func (s *componentSlot) eval(env *evalEnv, prev Dynamic) (Dynamic, error) {
	return s.evalComponent(env, func(id int64) *Rendered {
		if sub, ok := prev.(*SubTree); ok && sub.ComponentID == id {
			return sub.Rendered
		}
		return nil
	})
}

// evalComponent assembles the callee's bindings and changed set from the
// invocation attributes, then evaluates the component template against
// them. prevLookup resolves the previous render of the same component id
// so the callee's own guards can skip unchanged slots.
func (s *componentSlot) evalComponent(env *evalEnv, prevLookup func(id int64) *Rendered) (Dynamic, error) {
	track := env.changed != nil
	bindings := Bindings{}
	childChanged := ChangedSet{}
	for _, ap := range s.attrs {
		switch ap.kind {
		case parser.AttrLiteral:
			bindings[ap.name] = ap.literal
		case parser.AttrBoolean:
			bindings[ap.name] = true
		case parser.AttrExpression:
			v, err := ap.code.Eval(env)
			if err != nil {
				return nil, fmt.Errorf("<%s> attribute %s: %w", s.target, ap.name, err)
			}
			bindings[ap.name] = v
			if track && env.touched(ap.dep) {
				childChanged[ap.name] = true
			}
		case parser.AttrSpread:
			v, err := ap.code.Eval(env)
			if err != nil {
				return nil, fmt.Errorf("<%s> attribute spread: %w", s.target, err)
			}
			m, err := bindingMap(v)
			if err != nil {
				return nil, fmt.Errorf("<%s> attribute spread: %w", s.target, err)
			}
			dirty := track && env.touched(ap.dep)
			for k, mv := range m {
				bindings[k] = mv
				if dirty {
					childChanged[k] = true
				}
			}
		}
	}

	if s.spec == nil {
		// Undeclared component: render the default slot content in place so
		// the page still comes out whole. The compile-time warning already
		// reported it.
		for _, def := range s.slotDefs {
			if def.name == parser.InnerBlock {
				r, err := def.prog.eval(env, nil)
				if err != nil {
					return nil, err
				}
				return &SubTree{Rendered: r}, nil
			}
		}
		return Value(""), nil
	}

	// Declared attributes the caller left out resolve to nil, so a missing
	// required attribute stays the compile-time warning it already raised
	// and the template still renders.
	for i := range s.spec.Attrs {
		if name := s.spec.Attrs[i].Name; name != "" {
			if _, ok := bindings[name]; !ok {
				bindings[name] = nil
			}
		}
	}

	idKey := env.scope + "#" + strconv.Itoa(s.seq)
	if s.key != nil {
		kv, err := s.key.Eval(env)
		if err != nil {
			return nil, fmt.Errorf("<%s> key: %w", s.target, err)
		}
		idKey += "@" + stringify(kv)
	}
	id := env.ids.id(idKey)

	var prevR *Rendered
	if prevLookup != nil {
		prevR = prevLookup(id)
	}
	var childSet ChangedSet
	if track {
		childSet = childChanged
	}
	funcs := env.funcs
	if s.spec.Template.cfg.funcs != nil {
		funcs = s.spec.Template.cfg.funcs
	}
	calleeEnv := &evalEnv{
		bindings:  bindings,
		changed:   childSet,
		funcs:     funcs,
		ids:       env.ids,
		scope:     idKey,
		collector: env.collector,
	}
	if len(s.slotDefs) > 0 {
		calleeEnv.slots = make(map[string]boundSlot, len(s.slotDefs))
		for _, def := range s.slotDefs {
			calleeEnv.slots[def.name] = boundSlot{def: def, env: env}
		}
	}
	r, err := s.spec.Template.prog.eval(calleeEnv, prevR)
	if err != nil {
		return nil, fmt.Errorf("<%s>: %w", s.target, err)
	}
	return &SubTree{Rendered: r, ComponentID: id}, nil
}

// componentListSlot is a keyed loop over a single component invocation.
// Items carry their component id so the differ matches them across
// reorders instead of by position.
type componentListSlot struct {
	gen         *expr.Generator
	comp        *componentSlot
	dep         depInfo
	statics     []string
	fingerprint uint64
}

func (s *componentListSlot) deps() depInfo { return s.dep }

func (s *componentListSlot) eval(env *evalEnv, prev Dynamic) (Dynamic, error) {
	items, err := iterate(s.gen, env)
	if err != nil {
		return nil, err
	}
	prevByID := map[int64]*Rendered{}
	if prevList, ok := prev.(*ComponentList); ok {
		for _, it := range prevList.Items {
			prevByID[it.ComponentID] = it.Rendered
		}
	}
	out := &ComponentList{Items: make([]*SubTree, 0, len(items))}
	inner := s.comp.spec.Template.prog
	for i, item := range items {
		locals := map[string]any{s.gen.Var: item}
		if s.gen.Index != "" {
			locals[s.gen.Index] = i
		}
		itemEnv := env.child(locals, "")
		dyn, err := s.comp.evalComponent(itemEnv, func(id int64) *Rendered {
			// Stored items carry the merged wrapper statics; restore the
			// component template's own shape so its guards line up.
			pr := prevByID[id]
			if pr == nil {
				return nil
			}
			return &Rendered{
				Statics:     inner.statics,
				Dynamics:    pr.Dynamics,
				Fingerprint: inner.fingerprint,
			}
		})
		if err != nil {
			return nil, err
		}
		sub, ok := dyn.(*SubTree)
		if !ok || sub.ComponentID == 0 {
			panic("livemarkup: keyed list item did not mount a component")
		}
		out.Items = append(out.Items, &SubTree{
			Rendered: &Rendered{
				Statics:     s.statics,
				Dynamics:    sub.Rendered.Dynamics,
				Fingerprint: s.fingerprint,
				dirty:       sub.Rendered.dirty,
			},
			ComponentID: sub.ComponentID,
		})
	}
	return out, nil
}

// iterate evaluates a generator source to its items.
func iterate(gen *expr.Generator, env *evalEnv) ([]any, error) {
	v, err := gen.Source.Eval(env)
	if err != nil {
		return nil, fmt.Errorf(":for {%s}: %w", gen.Source.Source, err)
	}
	if v == nil {
		return nil, nil
	}
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	}
	return nil, fmt.Errorf(":for {%s}: cannot iterate %T", gen.Source.Source, v)
}

// bindingMap normalizes a spread or attribute-map value.
func bindingMap(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a map, got %T", v)
}
