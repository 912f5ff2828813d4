package livemarkup

import "reflect"

// Bindings maps template binding keys to values for one evaluation.
type Bindings map[string]any

// ChangedSet records which binding keys changed since the previous
// evaluation. A key maps to true when fully changed, or to a nested
// ChangedSet when only sub-fields of a keyed map changed. An absent key is
// unchanged.
type ChangedSet map[string]any

// Changed builds a ChangedSet marking the given keys fully changed.
func Changed(keys ...string) ChangedSet {
	c := make(ChangedSet, len(keys))
	for _, k := range keys {
		c[k] = true
	}
	return c
}

// Has reports whether key changed at all.
func (c ChangedSet) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Sub returns the nested changed-set for key, or nil when the key is fully
// changed or unchanged.
func (c ChangedSet) Sub(key string) ChangedSet {
	if nested, ok := c[key].(ChangedSet); ok {
		return nested
	}
	return nil
}

// Touches reports whether a read of the given binding path must be
// re-evaluated. Reading a whole map value taints tracking: if the path is
// exhausted while changes remain below it, the read is dirty.
func (c ChangedSet) Touches(path []string) bool {
	if len(path) == 0 {
		return len(c) > 0
	}
	v, ok := c[path[0]]
	if !ok {
		return false
	}
	nested, isNested := v.(ChangedSet)
	if !isNested {
		return true // fully changed
	}
	return nested.Touches(path[1:])
}

// DiffBindings computes a ChangedSet between two binding sets by deep
// comparison, descending one level into map-valued keys. Convenient for
// callers that do not track changes themselves.
func DiffBindings(old, new Bindings) ChangedSet {
	changed := ChangedSet{}
	for k, nv := range new {
		ov, existed := old[k]
		if !existed {
			changed[k] = true
			continue
		}
		om, oOK := ov.(map[string]any)
		nm, nOK := nv.(map[string]any)
		if oOK && nOK {
			sub := diffMaps(om, nm)
			if len(sub) > 0 {
				changed[k] = sub
			}
			continue
		}
		if !reflect.DeepEqual(ov, nv) {
			changed[k] = true
		}
	}
	for k := range old {
		if _, still := new[k]; !still {
			changed[k] = true
		}
	}
	return changed
}

func diffMaps(old, new map[string]any) ChangedSet {
	changed := ChangedSet{}
	for k, nv := range new {
		ov, existed := old[k]
		if !existed || !reflect.DeepEqual(ov, nv) {
			changed[k] = true
		}
	}
	for k := range old {
		if _, still := new[k]; !still {
			changed[k] = true
		}
	}
	return changed
}
