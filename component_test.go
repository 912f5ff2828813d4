package livemarkup

import (
	"strings"
	"testing"
)

func findWarning(warnings []Warning, code string) *Warning {
	for i := range warnings {
		if warnings[i].Code == code {
			return &warnings[i]
		}
	}
	return nil
}

func buttonRegistry(t *testing.T) *Registry {
	t.Helper()
	button := MustCompile("button", `<button class={kind}>{label}</button>`)
	spec, warnings := NewSpec("UI.button").
		Template(button).
		Attr("label", AttrString, true).
		Attr("kind", AttrString, false).
		Build()
	if len(warnings) != 0 {
		t.Fatalf("spec warnings: %v", warnings)
	}
	reg := NewRegistry()
	if err := reg.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return reg
}

func TestCompile_UnknownComponentWarns(t *testing.T) {
	tmpl := MustCompile("page", `<UI.missing label="x"/>`, WithComponents(buttonRegistry(t)))
	w := findWarning(tmpl.Warnings(), WarnUnknownComponent)
	if w == nil {
		t.Fatalf("expected unknown-component warning, got %v", tmpl.Warnings())
	}
	if !strings.Contains(w.Message, "UI.missing") {
		t.Errorf("warning should name the component: %q", w.Message)
	}
}

func TestCompile_UnknownAttrWarns(t *testing.T) {
	tmpl := MustCompile("page", `<UI.button label="ok" labell="typo"/>`,
		WithComponents(buttonRegistry(t)))
	if findWarning(tmpl.Warnings(), WarnUnknownAttr) == nil {
		t.Errorf("expected unknown-attribute warning, got %v", tmpl.Warnings())
	}
}

func TestCompile_MissingRequiredAttrWarns(t *testing.T) {
	tmpl := MustCompile("page", `<UI.button kind="primary"/>`,
		WithComponents(buttonRegistry(t)))
	if findWarning(tmpl.Warnings(), WarnMissingAttr) == nil {
		t.Errorf("expected missing-required-attribute warning, got %v", tmpl.Warnings())
	}
}

func TestCompile_SpreadSuppressesMissingAttr(t *testing.T) {
	// A spread can supply anything; required-attribute checks stand down.
	tmpl := MustCompile("page", `<UI.button {attrs}/>`, WithComponents(buttonRegistry(t)))
	if w := findWarning(tmpl.Warnings(), WarnMissingAttr); w != nil {
		t.Errorf("spread should suppress missing-attribute warnings: %v", w)
	}
}

func TestCompile_TypeMismatchWarns(t *testing.T) {
	tmpl := MustCompile("page", `<UI.button label={42}/>`, WithComponents(buttonRegistry(t)))
	w := findWarning(tmpl.Warnings(), WarnTypeMismatch)
	if w == nil {
		t.Fatalf("expected type-mismatch warning, got %v", tmpl.Warnings())
	}
	if !strings.Contains(w.Message, "string") || !strings.Contains(w.Message, "integer") {
		t.Errorf("warning should name both types: %q", w.Message)
	}

	// Dynamic expressions have unknown shape and always pass.
	tmpl = MustCompile("page", `<UI.button label={some.binding}/>`,
		WithComponents(buttonRegistry(t)))
	if w := findWarning(tmpl.Warnings(), WarnTypeMismatch); w != nil {
		t.Errorf("unknown shape should not warn: %v", w)
	}
}

func TestCompile_DuplicateAttrWarns(t *testing.T) {
	tmpl := MustCompile("page", `<UI.button label="a" label="b"/>`,
		WithComponents(buttonRegistry(t)))
	if findWarning(tmpl.Warnings(), WarnDuplicateAttr) == nil {
		t.Errorf("expected duplicate-attribute warning, got %v", tmpl.Warnings())
	}
}

func TestCompile_KeyAttrNeverWarns(t *testing.T) {
	tmpl := MustCompile("page", `<UI.button label="x" key={id}/>`,
		WithComponents(buttonRegistry(t)))
	if w := findWarning(tmpl.Warnings(), WarnUnknownAttr); w != nil {
		t.Errorf("key is reserved and should not warn: %v", w)
	}
}

func TestCompile_GlobalAttrSuppressesUnknown(t *testing.T) {
	pass := MustCompile("pass", `<div>{render_slot(:inner_block)}</div>`)
	spec, _ := NewSpec("UI.box").Template(pass).Attr("rest", AttrGlobal, false).Build()
	reg := NewRegistry()
	if err := reg.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tmpl := MustCompile("page", `<UI.box data-anything="1">x</UI.box>`, WithComponents(reg))
	if w := findWarning(tmpl.Warnings(), WarnUnknownAttr); w != nil {
		t.Errorf("global attr should suppress unknown-attribute warnings: %v", w)
	}
}

func TestCompile_SlotWarnings(t *testing.T) {
	panel := MustCompile("panel",
		`<section><h2>{render_slot(:header)}</h2>{render_slot(:inner_block)}</section>`)
	spec, _ := NewSpec("UI.panel").Template(panel).Slot("header", true).Build()
	reg := NewRegistry()
	if err := reg.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tmpl := MustCompile("page", `<UI.panel><:footer>x</:footer></UI.panel>`,
		WithComponents(reg))
	if findWarning(tmpl.Warnings(), WarnUnknownSlot) == nil {
		t.Errorf("expected unknown-slot warning, got %v", tmpl.Warnings())
	}
	if findWarning(tmpl.Warnings(), WarnMissingSlot) == nil {
		t.Errorf("expected missing-required-slot warning, got %v", tmpl.Warnings())
	}

	tmpl = MustCompile("page", `<UI.panel><:header>t</:header>body</UI.panel>`,
		WithComponents(reg))
	if w := findWarning(tmpl.Warnings(), WarnMissingSlot); w != nil {
		t.Errorf("supplied slot should satisfy the requirement: %v", w)
	}
}

func TestSpecBuilder_DuplicateDeclarationsWarn(t *testing.T) {
	tmpl := MustCompile("x", `<p>x</p>`)
	_, warnings := NewSpec("UI.x").
		Template(tmpl).
		Attr("a", AttrString, false).
		Attr("a", AttrInt, false).
		Slot("s", false).
		Slot("s", false).
		Build()
	if findWarning(warnings, WarnDuplicateAttr) == nil {
		t.Errorf("expected duplicate-attribute warning, got %v", warnings)
	}
	if findWarning(warnings, WarnDuplicateSlot) == nil {
		t.Errorf("expected duplicate-slot warning, got %v", warnings)
	}
}

func TestRegistry_RejectsDuplicatesAndIncomplete(t *testing.T) {
	reg := NewRegistry()
	tmpl := MustCompile("x", `<p>x</p>`)

	if err := reg.Register(ComponentSpec{Name: "", Template: tmpl}); err == nil {
		t.Error("nameless spec should be rejected")
	}
	if err := reg.Register(ComponentSpec{Name: "UI.x"}); err == nil {
		t.Error("template-less spec should be rejected")
	}

	spec, _ := NewSpec("UI.x").Template(tmpl).Build()
	if err := reg.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register(spec); err == nil {
		t.Error("duplicate registration should be rejected")
	}
}

func TestRender_MissingRequiredAttrStillRenders(t *testing.T) {
	// Required attributes are advisory: the invocation warns at compile
	// time and then renders with the attribute resolved to nil.
	tmpl := MustCompile("page", `<UI.button kind="primary"/>`,
		WithComponents(buttonRegistry(t)))
	if findWarning(tmpl.Warnings(), WarnMissingAttr) == nil {
		t.Fatalf("expected missing-required-attribute warning, got %v", tmpl.Warnings())
	}
	got := render(t, tmpl, nil)
	if got != `<button class="primary"></button>` {
		t.Errorf("missing attribute should render empty, got %q", got)
	}

	// Even a bare invocation renders; every declared attribute is nil.
	bare := MustCompile("page", `<UI.button/>`, WithComponents(buttonRegistry(t)))
	if got := render(t, bare, nil); got != `<button></button>` {
		t.Errorf("bare invocation = %q", got)
	}
}

func TestRender_ComponentAttributesBecomeBindings(t *testing.T) {
	tmpl := MustCompile("page", `<UI.button label={text} kind="primary"/>`,
		WithComponents(buttonRegistry(t)))
	got := render(t, tmpl, Bindings{"text": "Save"})
	if got != `<button class="primary">Save</button>` {
		t.Errorf("component render = %q", got)
	}
}

func TestRender_DefaultSlot(t *testing.T) {
	box := MustCompile("box", `<div class="box">{render_slot(:inner_block)}</div>`)
	spec, _ := NewSpec("UI.box").Template(box).Build()
	reg := NewRegistry()
	reg.Register(spec)

	tmpl := MustCompile("page", `<UI.box><em>{msg}</em></UI.box>`, WithComponents(reg))
	got := render(t, tmpl, Bindings{"msg": "hi"})
	if got != `<div class="box"><em>hi</em></div>` {
		t.Errorf("default slot render = %q", got)
	}
}

func TestRender_NamedSlotsAndOptionalSlotEmpty(t *testing.T) {
	panel := MustCompile("panel",
		`<section><h2>{render_slot(:header)}</h2><footer>{render_slot(:footer)}</footer></section>`)
	spec, _ := NewSpec("UI.panel").Template(panel).Slot("header", false).Slot("footer", false).Build()
	reg := NewRegistry()
	reg.Register(spec)

	tmpl := MustCompile("page", `<UI.panel><:header>Title</:header></UI.panel>`,
		WithComponents(reg))
	got := render(t, tmpl, nil)
	if got != `<section><h2>Title</h2><footer></footer></section>` {
		t.Errorf("named slot render = %q", got)
	}
}

func TestRender_SlotLetBinding(t *testing.T) {
	// The component hands each item back to the caller's :let pattern.
	list := MustCompile("list", `<ul><li :for={item <- items}>{render_slot(:row, item)}</li></ul>`)
	spec, _ := NewSpec("UI.list").
		Template(list).
		Attr("items", AttrList, true).
		Slot("row", true).
		Build()
	reg := NewRegistry()
	reg.Register(spec)

	tmpl := MustCompile("page",
		`<UI.list items={xs}><:row :let={r}>[{r}]</:row></UI.list>`,
		WithComponents(reg))
	got := render(t, tmpl, Bindings{"xs": []any{"a", "b"}})
	if got != `<ul><li>[a]</li><li>[b]</li></ul>` {
		t.Errorf(":let slot render = %q", got)
	}
}

func TestRender_SlotContentSeesCallerBindings(t *testing.T) {
	box := MustCompile("box", `<div>{render_slot(:inner_block)}</div>`)
	spec, _ := NewSpec("UI.box").Template(box).Build()
	reg := NewRegistry()
	reg.Register(spec)

	// The slot body reads caller bindings, not callee bindings.
	tmpl := MustCompile("page", `<UI.box>{caller_value}</UI.box>`, WithComponents(reg))
	got := render(t, tmpl, Bindings{"caller_value": "visible"})
	if got != `<div>visible</div>` {
		t.Errorf("slot scope render = %q", got)
	}
}

func TestRender_UndeclaredComponentRendersContentInline(t *testing.T) {
	tmpl := MustCompile("page", `<UI.nope>fallback</UI.nope>`)
	if findWarning(tmpl.Warnings(), WarnUnknownComponent) == nil {
		t.Fatal("expected unknown-component warning")
	}
	if got := render(t, tmpl, nil); got != "fallback" {
		t.Errorf("undeclared component should render its content: %q", got)
	}
}

func TestRender_SlotContentUpdatesWithCallerBindings(t *testing.T) {
	box := MustCompile("box", `<div>{render_slot(:inner_block)}</div>`)
	spec, _ := NewSpec("UI.box").Template(box).Build()
	reg := NewRegistry()
	reg.Register(spec)

	tmpl := MustCompile("page", `<UI.box>{msg}</UI.box>`, WithComponents(reg))
	view := tmpl.NewView()

	if _, err := view.Update(Bindings{"msg": "one"}, nil); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	// Slot content renders through the caller's closure; a change to the
	// binding it reads must surface even though the component's own
	// attributes never changed.
	if _, err := view.Update(Bindings{"msg": "two"}, Changed("msg")); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got := view.HTML(); got != `<div>two</div>` {
		t.Errorf("slot content did not refresh: %q", got)
	}
}
