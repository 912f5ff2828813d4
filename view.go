package livemarkup

import (
	"encoding/json"
	"fmt"
	"sync"
)

// View is one live instance of a template: it remembers the last render
// and turns each new binding set into a minimal patch. A View is safe for
// concurrent use, though updates serialize.
type View struct {
	mu           sync.Mutex
	tmpl         *Template
	prev         *Rendered
	ids          *idAllocator
	lastBindings Bindings
}

// NewView mounts a live view of the template. Nothing renders until the
// first Update.
func (t *Template) NewView() *View {
	if t.cfg.collector != nil {
		t.cfg.collector.RecordViewMounted()
	}
	return &View{tmpl: t, ids: newIDAllocator()}
}

// Update evaluates the template against bindings and returns the patch
// bringing the previous render up to date. changed names the binding keys
// that differ from the previous call; slots reading only other keys are
// not re-evaluated. A nil changed set on the first call renders everything;
// on later calls it disables tracking and re-evaluates every slot, with
// the differ still suppressing slots whose values came out identical.
func (v *View) Update(bindings Bindings, changed ChangedSet) (*Patch, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.prev == nil {
		changed = nil
	}
	env := v.tmpl.newEnv(bindings, changed, v.ids)
	cur, err := v.tmpl.prog.eval(env, v.prev)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", v.tmpl.name, err)
	}
	cur.Root = true
	patch := Diff(v.prev, cur, changed)
	v.prev = cur

	if c := v.tmpl.cfg.collector; c != nil {
		size := 0
		if !patch.Empty() {
			if b, err := json.Marshal(patch); err == nil {
				size = len(b)
			}
		}
		c.RecordUpdate(size, patch.FullReplace())
	}
	return patch, nil
}

// Render evaluates against bindings with change tracking driven by a deep
// comparison against the previous bindings, for callers that do not track
// changes themselves. The previous binding set is remembered on the view.
func (v *View) Render(bindings Bindings) (*Patch, error) {
	v.mu.Lock()
	prevBindings := v.lastBindings
	v.lastBindings = bindings
	v.mu.Unlock()

	var changed ChangedSet
	if prevBindings != nil {
		changed = DiffBindings(prevBindings, bindings)
	}
	return v.Update(bindings, changed)
}

// HTML reconstructs the full current output.
func (v *View) HTML() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.prev == nil {
		return ""
	}
	return v.prev.String()
}

// Rendered returns the current render tree, or nil before the first
// Update.
func (v *View) Rendered() *Rendered {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.prev
}

// Close releases the view's accounting. The view must not be used after.
func (v *View) Close() {
	if v.tmpl.cfg.collector != nil {
		v.tmpl.cfg.collector.RecordViewClosed()
	}
}
