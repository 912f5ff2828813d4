package livemarkup

import (
	"encoding/json"
	"strconv"
)

// Patch is the wire-level description of the difference between two
// render trees.
//
//	{ "s": [...statics],            full replace only
//	  "<slot>": <value|patch|...>,  changed dynamic slots
//	  "c": { "<id>": patch|null } } component patches; null is a removal
//
// An empty patch means no wire message is sent.
type Patch struct {
	// Statics is non-nil on a full replace.
	Statics []string
	// Slots holds the changed dynamic slot indices.
	Slots map[int]SlotPatch
	// Components maps component ids to their patches. A nil entry is a
	// removal tombstone telling the client to release resources for that
	// id; it is deliberately distinguishable from "unchanged, omitted".
	Components map[int64]*Patch
}

// Empty reports whether the patch carries nothing; an empty root patch
// means no message goes over the wire.
func (p *Patch) Empty() bool {
	return p == nil || (p.Statics == nil && len(p.Slots) == 0 && len(p.Components) == 0)
}

// FullReplace reports whether the patch replaces the whole tree.
func (p *Patch) FullReplace() bool {
	return p != nil && p.Statics != nil
}

// MarshalJSON encodes the patch in its wire shape.
func (p *Patch) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Slots)+2)
	if p.Statics != nil {
		b, err := json.Marshal(p.Statics)
		if err != nil {
			return nil, err
		}
		out["s"] = b
	}
	for idx, sp := range p.Slots {
		b, err := json.Marshal(sp)
		if err != nil {
			return nil, err
		}
		out[strconv.Itoa(idx)] = b
	}
	if len(p.Components) > 0 {
		comps := make(map[string]json.RawMessage, len(p.Components))
		for id, cp := range p.Components {
			if cp == nil {
				comps[strconv.FormatInt(id, 10)] = json.RawMessage("null")
				continue
			}
			b, err := json.Marshal(cp)
			if err != nil {
				return nil, err
			}
			comps[strconv.FormatInt(id, 10)] = b
		}
		b, err := json.Marshal(comps)
		if err != nil {
			return nil, err
		}
		out["c"] = b
	}
	return json.Marshal(out)
}

// SlotPatch is the patch for one dynamic slot.
type SlotPatch interface {
	isSlotPatch()
}

// ValuePatch resends a scalar slot.
type ValuePatch string

func (ValuePatch) isSlotPatch() {}

func (v ValuePatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

// NestedPatch patches a nested tree in place.
type NestedPatch struct {
	Patch *Patch
}

func (*NestedPatch) isSlotPatch() {}

func (n *NestedPatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Patch)
}

// ComponentRef points a slot at a mounted component; its content travels
// separately under "c".
type ComponentRef int64

func (ComponentRef) isSlotPatch() {}

func (r ComponentRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(r))
}

// ComprehensionPatch updates a loop slot. Either Items is set (full
// resend, with Statics on structural change) or Sparse holds patches for
// the item indices that changed.
type ComprehensionPatch struct {
	Statics []string
	Items   [][]json.RawMessage
	Sparse  map[int]ItemPatch
}

func (*ComprehensionPatch) isSlotPatch() {}

func (c *ComprehensionPatch) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Sparse)+2)
	if c.Items != nil {
		b, err := json.Marshal(c.Items)
		if err != nil {
			return nil, err
		}
		out["d"] = b
		if c.Statics != nil {
			b, err := json.Marshal(c.Statics)
			if err != nil {
				return nil, err
			}
			out["s"] = b
		}
		return json.Marshal(out)
	}
	for idx, ip := range c.Sparse {
		b, err := json.Marshal(ip)
		if err != nil {
			return nil, err
		}
		out[strconv.Itoa(idx)] = b
	}
	return json.Marshal(out)
}

// ItemPatch patches the changed slots of one comprehension item.
type ItemPatch map[int]SlotPatch

func (ip ItemPatch) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(ip))
	for idx, sp := range ip {
		b, err := json.Marshal(sp)
		if err != nil {
			return nil, err
		}
		out[strconv.Itoa(idx)] = b
	}
	return json.Marshal(out)
}

// ListPatch reorders a keyed component list. Order carries the full id
// sequence on membership changes; Moves carries the ids displaced off the
// longest common subsequence with their new positions. Inserted component
// content and removal tombstones travel under "c".
type ListPatch struct {
	Order   []int64    `json:"k,omitempty"`
	Moves   [][2]int64 `json:"m,omitempty"`
	Inserts [][2]int64 `json:"i,omitempty"`
}

func (*ListPatch) isSlotPatch() {}
