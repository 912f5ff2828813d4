package livemarkup

import (
	"fmt"
	"sync"

	"github.com/livefir/livemarkup/internal/parser"
	"github.com/livefir/livemarkup/internal/tokenizer"
)

// AttrType is the closed set of declared attribute types. Types are
// advisory: mismatches warn at compile time and never fail a render.
type AttrType int

const (
	AttrAny AttrType = iota
	AttrString
	AttrAtom
	AttrBool
	AttrInt
	AttrFloat
	AttrList
	AttrMap
	// AttrGlobal captures pass-through markup attributes; declaring one
	// suppresses unknown-attribute warnings for the component.
	AttrGlobal
	// AttrStruct expects a value of the named Go type (see AttrSpec.Struct).
	AttrStruct
)

func (t AttrType) String() string {
	switch t {
	case AttrAny:
		return "any"
	case AttrString:
		return "string"
	case AttrAtom:
		return "atom"
	case AttrBool:
		return "boolean"
	case AttrInt:
		return "integer"
	case AttrFloat:
		return "float"
	case AttrList:
		return "list"
	case AttrMap:
		return "map"
	case AttrGlobal:
		return "global"
	case AttrStruct:
		return "struct"
	default:
		return fmt.Sprintf("AttrType(%d)", int(t))
	}
}

// AttrSpec declares one attribute a component accepts.
type AttrSpec struct {
	Name     string
	Type     AttrType
	Required bool
	Struct   string // type tag for AttrStruct
}

// SlotSpec declares one named slot a component renders.
type SlotSpec struct {
	Name     string
	Required bool
	Attrs    []AttrSpec
}

// ComponentSpec is the immutable, finalized declaration of a component:
// its template plus the attribute and slot metadata the declarative
// validator checks invocations against.
type ComponentSpec struct {
	Name     string
	Template *Template
	Attrs    []AttrSpec
	Slots    []SlotSpec
}

func (s *ComponentSpec) attr(name string) *AttrSpec {
	for i := range s.Attrs {
		if s.Attrs[i].Name == name {
			return &s.Attrs[i]
		}
	}
	return nil
}

func (s *ComponentSpec) slot(name string) *SlotSpec {
	for i := range s.Slots {
		if s.Slots[i].Name == name {
			return &s.Slots[i]
		}
	}
	return nil
}

func (s *ComponentSpec) hasGlobal() bool {
	for i := range s.Attrs {
		if s.Attrs[i].Type == AttrGlobal {
			return true
		}
	}
	return false
}

// SpecBuilder accumulates attribute and slot declarations for one
// component and finalizes them into an immutable ComponentSpec. Duplicate
// declarations surface as warnings, keeping types advisory.
type SpecBuilder struct {
	name     string
	template *Template
	attrs    []AttrSpec
	slots    []SlotSpec
	warnings []Warning
}

// NewSpec starts a component declaration.
func NewSpec(name string) *SpecBuilder {
	return &SpecBuilder{name: name}
}

// Template sets the component's compiled template.
func (b *SpecBuilder) Template(t *Template) *SpecBuilder {
	b.template = t
	return b
}

// Attr declares an attribute.
func (b *SpecBuilder) Attr(name string, typ AttrType, required bool) *SpecBuilder {
	for _, a := range b.attrs {
		if a.Name == name {
			b.warnings = append(b.warnings, Warning{
				Code:    WarnDuplicateAttr,
				Message: fmt.Sprintf("attribute %q declared more than once on %s", name, b.name),
			})
			return b
		}
	}
	b.attrs = append(b.attrs, AttrSpec{Name: name, Type: typ, Required: required})
	return b
}

// StructAttr declares an attribute expecting the named Go type.
func (b *SpecBuilder) StructAttr(name, typeName string, required bool) *SpecBuilder {
	b.attrs = append(b.attrs, AttrSpec{Name: name, Type: AttrStruct, Required: required, Struct: typeName})
	return b
}

// Slot declares a named slot.
func (b *SpecBuilder) Slot(name string, required bool, attrs ...AttrSpec) *SpecBuilder {
	for _, s := range b.slots {
		if s.Name == name {
			b.warnings = append(b.warnings, Warning{
				Code:    WarnDuplicateSlot,
				Message: fmt.Sprintf("slot %q declared more than once on %s", name, b.name),
			})
			return b
		}
	}
	b.slots = append(b.slots, SlotSpec{Name: name, Required: required, Attrs: attrs})
	return b
}

// Build finalizes the declaration.
func (b *SpecBuilder) Build() (ComponentSpec, []Warning) {
	spec := ComponentSpec{
		Name:     b.name,
		Template: b.template,
		Attrs:    append([]AttrSpec(nil), b.attrs...),
		Slots:    append([]SlotSpec(nil), b.slots...),
	}
	return spec, b.warnings
}

// Registry resolves component invocation targets. Remote invocations
// (<Card.item ...>) look up their full dotted target; local invocations
// (<.item ...>) look up the bare name.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]ComponentSpec
}

// NewRegistry returns an empty component registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]ComponentSpec)}
}

// Register adds a finalized component spec under its name.
func (r *Registry) Register(spec ComponentSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("component spec has no name")
	}
	if spec.Template == nil {
		return fmt.Errorf("component %q has no template", spec.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("component %q already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// Lookup resolves a target name.
func (r *Registry) Lookup(target string) (ComponentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[target]
	return spec, ok
}

// Warning codes for declarative metadata problems.
const (
	WarnUnknownComponent = "unknown-component"
	WarnUnknownAttr      = "unknown-attribute"
	WarnMissingAttr      = "missing-required-attribute"
	WarnTypeMismatch     = "attribute-type-mismatch"
	WarnDuplicateAttr    = "duplicate-attribute"
	WarnUnknownSlot      = "unknown-slot"
	WarnMissingSlot      = "missing-required-slot"
	WarnDuplicateSlot    = "duplicate-slot"
)

// Warning is a non-fatal compile-time diagnostic reported against the
// caller's source location.
type Warning struct {
	Code    string
	Message string
	Span    tokenizer.Span
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Span.Start, w.Code, w.Message)
}

// validateInvocation checks one component invocation against its declared
// spec and returns the warnings. The invocation always renders regardless.
func validateInvocation(comp *parser.Component, spec *ComponentSpec) []Warning {
	var warnings []Warning

	seen := map[string]bool{}
	spread := false
	for _, a := range comp.Attrs {
		if a.Kind == parser.AttrSpread {
			spread = true
			continue
		}
		if seen[a.Name] {
			warnings = append(warnings, Warning{
				Code:    WarnDuplicateAttr,
				Message: fmt.Sprintf("attribute %q supplied more than once", a.Name),
				Span:    a.Span,
			})
			continue
		}
		seen[a.Name] = true

		decl := spec.attr(a.Name)
		if decl == nil {
			if a.Name != "key" && !spec.hasGlobal() {
				warnings = append(warnings, Warning{
					Code:    WarnUnknownAttr,
					Message: fmt.Sprintf("component %s does not declare attribute %q", spec.Name, a.Name),
					Span:    a.Span,
				})
			}
			continue
		}
		if !shapeSatisfies(a.Shape, decl.Type) {
			warnings = append(warnings, Warning{
				Code: WarnTypeMismatch,
				Message: fmt.Sprintf("attribute %q of %s expects %s, got %s literal",
					a.Name, spec.Name, decl.Type, a.Shape),
				Span: a.Span,
			})
		}
	}
	if !spread {
		for _, decl := range spec.Attrs {
			if decl.Required && !seen[decl.Name] {
				warnings = append(warnings, Warning{
					Code:    WarnMissingAttr,
					Message: fmt.Sprintf("component %s requires attribute %q", spec.Name, decl.Name),
					Span:    comp.SrcSpan,
				})
			}
		}
	}

	supplied := map[string]bool{}
	for _, entry := range comp.Slots {
		supplied[entry.Name] = true
		if spec.slot(entry.Name) == nil {
			warnings = append(warnings, Warning{
				Code:    WarnUnknownSlot,
				Message: fmt.Sprintf("component %s does not declare slot %q", spec.Name, entry.Name),
				Span:    entry.SrcSpan,
			})
		}
	}
	if len(comp.Children) > 0 {
		supplied[parser.InnerBlock] = true
	}
	for _, decl := range spec.Slots {
		if decl.Required && !supplied[decl.Name] {
			warnings = append(warnings, Warning{
				Code:    WarnMissingSlot,
				Message: fmt.Sprintf("component %s requires slot %q", spec.Name, decl.Name),
				Span:    comp.SrcSpan,
			})
		}
	}
	return warnings
}

// shapeSatisfies compares a statically known literal shape against a
// declared type. Unknown shapes always pass; types are advisory.
func shapeSatisfies(shape parser.Shape, typ AttrType) bool {
	if shape == parser.ShapeUnknown || typ == AttrAny || typ == AttrGlobal || typ == AttrStruct {
		return true
	}
	switch typ {
	case AttrString:
		return shape == parser.ShapeString
	case AttrBool:
		return shape == parser.ShapeBoolean
	case AttrAtom:
		return shape == parser.ShapeAtom
	case AttrInt:
		return shape == parser.ShapeInteger
	case AttrFloat:
		return shape == parser.ShapeFloat || shape == parser.ShapeInteger
	case AttrList:
		return shape == parser.ShapeList
	case AttrMap:
		return shape == parser.ShapeMap
	}
	return true
}
