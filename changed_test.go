package livemarkup

import "testing"

func TestChanged(t *testing.T) {
	c := Changed("a", "b")
	if !c.Has("a") || !c.Has("b") {
		t.Error("listed keys should be present")
	}
	if c.Has("c") {
		t.Error("unlisted key should be absent")
	}
}

func TestTouches(t *testing.T) {
	c := ChangedSet{
		"user":  ChangedSet{"name": true},
		"count": true,
	}

	cases := []struct {
		path []string
		want bool
	}{
		{[]string{"count"}, true},
		{[]string{"user", "name"}, true},
		{[]string{"user", "email"}, false},
		{[]string{"other"}, false},
		// Fully-changed key taints any deeper read.
		{[]string{"count", "sub", "deep"}, true},
		// Reading the whole map while changes exist below it is dirty.
		{[]string{"user"}, true},
	}
	for _, tc := range cases {
		if got := c.Touches(tc.path); got != tc.want {
			t.Errorf("Touches(%v) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestTouchesEmptySet(t *testing.T) {
	c := ChangedSet{}
	if c.Touches([]string{"anything"}) {
		t.Error("empty set touches nothing")
	}
}

func TestSub(t *testing.T) {
	c := ChangedSet{
		"user":  ChangedSet{"name": true},
		"count": true,
	}
	if sub := c.Sub("user"); sub == nil || !sub.Has("name") {
		t.Errorf("Sub(user) = %v", sub)
	}
	if c.Sub("count") != nil {
		t.Error("fully-changed key has no nested set")
	}
	if c.Sub("missing") != nil {
		t.Error("absent key has no nested set")
	}
}

func TestDiffBindings(t *testing.T) {
	old := Bindings{
		"same":    "x",
		"changed": 1,
		"removed": true,
		"user":    map[string]any{"name": "a", "age": 30},
		"list":    []any{1, 2},
	}
	new := Bindings{
		"same":    "x",
		"changed": 2,
		"added":   "y",
		"user":    map[string]any{"name": "b", "age": 30},
		"list":    []any{1, 2},
	}

	c := DiffBindings(old, new)
	if c.Has("same") {
		t.Error("unchanged key should be absent")
	}
	if c.Has("list") {
		t.Error("deep-equal slice should be absent")
	}
	if v, ok := c["changed"]; !ok || v != true {
		t.Errorf("changed = %v", v)
	}
	if v, ok := c["added"]; !ok || v != true {
		t.Errorf("added = %v", v)
	}
	if v, ok := c["removed"]; !ok || v != true {
		t.Errorf("removed = %v", v)
	}

	// Map-valued keys diff one level deep.
	sub := c.Sub("user")
	if sub == nil {
		t.Fatalf("user should have a nested set, got %v", c["user"])
	}
	if !sub.Has("name") || sub.Has("age") {
		t.Errorf("user sub-set = %v", sub)
	}
}

func TestDiffBindingsUnchangedMapsOmitted(t *testing.T) {
	old := Bindings{"user": map[string]any{"name": "a"}}
	new := Bindings{"user": map[string]any{"name": "a"}}
	c := DiffBindings(old, new)
	if len(c) != 0 {
		t.Errorf("identical maps should produce an empty set, got %v", c)
	}
}

func TestDiffBindingsDrivesTracking(t *testing.T) {
	tmpl := MustCompile("render", `<p>{user.name}</p><span>{user.age}</span>`)
	view := tmpl.NewView()

	if _, err := view.Render(Bindings{"user": map[string]any{"name": "a", "age": 1}}); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	patch, err := view.Render(Bindings{"user": map[string]any{"name": "b", "age": 1}})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if patch.Empty() {
		t.Fatal("name change should produce a patch")
	}
	if len(patch.Slots) != 1 {
		t.Errorf("only the name slot should be resent, got %d slots", len(patch.Slots))
	}
	if patch.Slots[0] != ValuePatch("b") {
		t.Errorf("slot 0 = %v", patch.Slots[0])
	}

	patch, err = view.Render(Bindings{"user": map[string]any{"name": "b", "age": 1}})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !patch.Empty() {
		t.Errorf("no binding change should produce an empty patch, got %+v", patch)
	}
}
