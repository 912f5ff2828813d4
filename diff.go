package livemarkup

import (
	"encoding/json"
	"fmt"
)

// Diff computes the minimal patch bringing a client that holds prev up to
// date with cur. A nil prev or a fingerprint mismatch yields a full
// replace. Slot inclusion for scalar values is decided upstream: the
// evaluator reuses the previous Dynamic for every slot whose guard skipped
// re-execution, so an untouched slot compares identical here and is never
// resent. changed is accepted for contract symmetry with evaluation and
// future sub-tree pruning; the per-slot decisions were already baked into
// the trees by change tracking.
func Diff(prev, cur *Rendered, changed ChangedSet) *Patch {
	d := &differ{components: make(map[int64]*Patch)}
	patch := d.diffTree(prev, cur)
	if patch == nil {
		patch = &Patch{}
	}
	if len(d.components) > 0 {
		patch.Components = d.components
	}
	return patch
}

type differ struct {
	components map[int64]*Patch
}

// diffTree returns nil when the trees are identical on the wire.
func (d *differ) diffTree(prev, cur *Rendered) *Patch {
	cur.checkInvariant()
	if prev == nil || prev.Fingerprint != cur.Fingerprint {
		return d.fullReplace(cur)
	}
	prev.checkInvariant()
	if len(prev.Dynamics) != len(cur.Dynamics) {
		panic(fmt.Sprintf("livemarkup: same fingerprint with %d vs %d dynamics",
			len(prev.Dynamics), len(cur.Dynamics)))
	}

	slots := make(map[int]SlotPatch)
	for i, curDyn := range cur.Dynamics {
		if cur.dirty != nil && !cur.dirty[i] {
			// Guard skipped re-execution; the client value is current.
			continue
		}
		if sp, include := d.diffSlot(prev.Dynamics[i], curDyn); include {
			slots[i] = sp
		}
	}
	if len(slots) == 0 {
		return nil
	}
	return &Patch{Slots: slots}
}

// diffSlot diffs one dynamic pair. include is false when the slot is
// unchanged on the wire (component-internal changes travel under "c").
func (d *differ) diffSlot(prev, cur Dynamic) (SlotPatch, bool) {
	switch cur := cur.(type) {
	case Value:
		if prevVal, ok := prev.(Value); ok && prevVal == cur {
			return nil, false
		}
		return ValuePatch(cur), true

	case *SubTree:
		prevSub, ok := prev.(*SubTree)
		if !ok {
			panic(fmt.Sprintf("livemarkup: slot changed kind from %T to subtree under one fingerprint", prev))
		}
		return d.diffSubTree(prevSub, cur)

	case *Comprehension:
		prevComp, ok := prev.(*Comprehension)
		if !ok {
			panic(fmt.Sprintf("livemarkup: slot changed kind from %T to comprehension under one fingerprint", prev))
		}
		return d.diffComprehension(prevComp, cur)

	case *ComponentList:
		prevList, ok := prev.(*ComponentList)
		if !ok {
			panic(fmt.Sprintf("livemarkup: slot changed kind from %T to component list under one fingerprint", prev))
		}
		return d.diffComponentList(prevList, cur)
	}
	panic(fmt.Sprintf("livemarkup: unknown dynamic %T", cur))
}

func (d *differ) diffSubTree(prev, cur *SubTree) (SlotPatch, bool) {
	if cur.ComponentID == 0 && prev.ComponentID == 0 {
		if nested := d.diffTree(prev.Rendered, cur.Rendered); nested != nil {
			return &NestedPatch{Patch: nested}, true
		}
		return nil, false
	}
	if cur.ComponentID == 0 || prev.ComponentID == 0 {
		panic("livemarkup: slot switched between plain and component subtree under one fingerprint")
	}
	if prev.ComponentID == cur.ComponentID {
		// Same mounted instance: diff in place, content under "c".
		if nested := d.diffTree(prev.Rendered, cur.Rendered); nested != nil {
			d.components[cur.ComponentID] = nested
		}
		return nil, false
	}
	// A different component took over this position.
	d.components[prev.ComponentID] = nil
	d.components[cur.ComponentID] = d.fullReplace(cur.Rendered)
	return ComponentRef(cur.ComponentID), true
}

func (d *differ) diffComprehension(prev, cur *Comprehension) (SlotPatch, bool) {
	if prev.Fingerprint != cur.Fingerprint {
		return d.wireComprehension(cur, true), true
	}
	if len(prev.Items) != len(cur.Items) {
		// Item count changed: resend the whole list, statics are cached.
		return d.wireComprehension(cur, false), true
	}
	sparse := make(map[int]ItemPatch)
	for i, curItem := range cur.Items {
		prevItem := prev.Items[i]
		if len(prevItem) != len(curItem) {
			panic("livemarkup: comprehension item arity changed under one fingerprint")
		}
		ip := make(ItemPatch)
		for j, dyn := range curItem {
			if sp, include := d.diffSlot(prevItem[j], dyn); include {
				ip[j] = sp
			}
		}
		if len(ip) > 0 {
			sparse[i] = ip
		}
	}
	if len(sparse) == 0 {
		return nil, false
	}
	return &ComprehensionPatch{Sparse: sparse}, true
}

func (d *differ) diffComponentList(prev, cur *ComponentList) (SlotPatch, bool) {
	prevIDs := listIDs(prev)
	curIDs := listIDs(cur)

	prevByID := make(map[int64]*SubTree, len(prev.Items))
	for _, it := range prev.Items {
		prevByID[it.ComponentID] = it
	}
	curByID := make(map[int64]int, len(cur.Items))
	for i, it := range cur.Items {
		curByID[it.ComponentID] = i
	}

	membership := false
	var inserts [][2]int64
	for i, it := range cur.Items {
		prevItem, existed := prevByID[it.ComponentID]
		if !existed {
			membership = true
			inserts = append(inserts, [2]int64{it.ComponentID, int64(i)})
			d.components[it.ComponentID] = d.fullReplace(it.Rendered)
			continue
		}
		if nested := d.diffTree(prevItem.Rendered, it.Rendered); nested != nil {
			d.components[it.ComponentID] = nested
		}
	}
	for _, id := range prevIDs {
		if _, still := curByID[id]; !still {
			membership = true
			d.components[id] = nil
		}
	}

	if membership {
		return &ListPatch{Order: curIDs, Inserts: inserts}, true
	}

	// Same membership: express reorders as moves of the ids displaced off
	// the longest common subsequence. Greedy LCS trades optimal patch size
	// for bounded compute.
	kept := longestCommonSubsequence(prevIDs, curIDs)
	var moves [][2]int64
	for i, id := range curIDs {
		if !kept[id] {
			moves = append(moves, [2]int64{id, int64(i)})
		}
	}
	if len(moves) == 0 {
		return nil, false
	}
	return &ListPatch{Moves: moves}, true
}

func listIDs(l *ComponentList) []int64 {
	ids := make([]int64, len(l.Items))
	for i, it := range l.Items {
		if it.ComponentID == 0 {
			panic("livemarkup: component list item without a component id")
		}
		ids[i] = it.ComponentID
	}
	return ids
}

// longestCommonSubsequence returns the set of ids kept in place between
// the two orderings.
func longestCommonSubsequence(a, b []int64) map[int64]bool {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	kept := make(map[int64]bool)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			kept[a[i]] = true
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return kept
}

// fullReplace renders a tree to a complete wire patch.
func (d *differ) fullReplace(r *Rendered) *Patch {
	r.checkInvariant()
	p := &Patch{Statics: r.Statics, Slots: make(map[int]SlotPatch, len(r.Dynamics))}
	for i, dyn := range r.Dynamics {
		p.Slots[i] = d.wireDynamic(dyn)
	}
	return p
}

func (d *differ) wireDynamic(dyn Dynamic) SlotPatch {
	switch dyn := dyn.(type) {
	case Value:
		return ValuePatch(dyn)
	case *SubTree:
		if dyn.ComponentID != 0 {
			d.components[dyn.ComponentID] = d.fullReplace(dyn.Rendered)
			return ComponentRef(dyn.ComponentID)
		}
		return &NestedPatch{Patch: d.fullReplace(dyn.Rendered)}
	case *Comprehension:
		return d.wireComprehension(dyn, true)
	case *ComponentList:
		for _, it := range dyn.Items {
			d.components[it.ComponentID] = d.fullReplace(it.Rendered)
		}
		return &ListPatch{Order: listIDs(dyn)}
	}
	panic(fmt.Sprintf("livemarkup: unknown dynamic %T", dyn))
}

func (d *differ) wireComprehension(c *Comprehension, withStatics bool) *ComprehensionPatch {
	out := &ComprehensionPatch{Items: make([][]json.RawMessage, len(c.Items))}
	if withStatics {
		out.Statics = c.Statics
	}
	for i, item := range c.Items {
		row := make([]json.RawMessage, len(item))
		for j, dyn := range item {
			b, err := json.Marshal(d.wireDynamic(dyn))
			if err != nil {
				// Wire values are produced entirely by this package; a
				// marshal failure is a defect.
				panic(fmt.Sprintf("livemarkup: marshal comprehension item: %v", err))
			}
			row[j] = b
		}
		out.Items[i] = row
	}
	return out
}
