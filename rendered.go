package livemarkup

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Rendered is the evaluated form of a compiled template: static fragments
// interleaved with dynamic slots. Interleaving statics[0], dynamics[0],
// statics[1], ... reconstructs the output exactly.
//
// The fingerprint derives from the template's static structure only, never
// from values, so every evaluation of one compiled template shares it and
// two different templates almost always differ. The diff engine uses it to
// decide "same skeleton, diff the insides" versus "replace wholesale".
type Rendered struct {
	Statics     []string
	Dynamics    []Dynamic
	Fingerprint uint64
	Root        bool

	// dirty marks slots whose producing expression re-executed during the
	// evaluation that built this tree. A nil bitmap means unknown, and the
	// differ falls back to comparing values.
	dirty []bool
}

// checkInvariant fails loudly on a malformed tree. A violation is a defect
// in the evaluator, never user error.
func (r *Rendered) checkInvariant() {
	if len(r.Dynamics) != len(r.Statics)-1 {
		panic(fmt.Sprintf("livemarkup: corrupt render tree: %d statics with %d dynamics",
			len(r.Statics), len(r.Dynamics)))
	}
}

// WriteTo reconstructs the full output into sb.
func (r *Rendered) WriteTo(sb *strings.Builder) {
	r.checkInvariant()
	for i, s := range r.Statics {
		sb.WriteString(s)
		if i < len(r.Dynamics) {
			r.Dynamics[i].appendTo(sb)
		}
	}
}

// String reconstructs the full output.
func (r *Rendered) String() string {
	var sb strings.Builder
	r.WriteTo(&sb)
	return sb.String()
}

// Dynamic is one dynamic slot value: a scalar, a nested tree, a
// comprehension, or an ordered list of component-bearing trees.
type Dynamic interface {
	appendTo(sb *strings.Builder)
}

// Value is an already stringified (and escaped) scalar slot value.
type Value string

func (v Value) appendTo(sb *strings.Builder) {
	sb.WriteString(string(v))
}

// SubTree is a nested render tree. ComponentID is non-zero when the tree
// is a mounted component, in which case it is the join key for diffing.
type SubTree struct {
	Rendered    *Rendered
	ComponentID int64
}

func (s *SubTree) appendTo(sb *strings.Builder) {
	s.Rendered.WriteTo(sb)
}

// Comprehension is a loop result: one set of statics shared by every
// iteration plus the per-item dynamic tuples.
type Comprehension struct {
	Statics     []string
	Items       [][]Dynamic
	Fingerprint uint64
}

func (c *Comprehension) appendTo(sb *strings.Builder) {
	for _, item := range c.Items {
		if len(item) != len(c.Statics)-1 {
			panic(fmt.Sprintf("livemarkup: corrupt comprehension: %d statics with %d dynamics",
				len(c.Statics), len(item)))
		}
		for i, s := range c.Statics {
			sb.WriteString(s)
			if i < len(item) {
				item[i].appendTo(sb)
			}
		}
	}
}

// ComponentList is an ordered list of component-bearing trees produced by
// a keyed loop. Diffing matches items by component id, preserving identity
// across moves, insertions and removals.
type ComponentList struct {
	Items []*SubTree
}

func (l *ComponentList) appendTo(sb *strings.Builder) {
	for _, item := range l.Items {
		item.appendTo(sb)
	}
}

// fingerprintStatics hashes a template's static interleaving shape. Child
// markers keep nested structures with identical flat text apart.
func fingerprintStatics(statics []string, children []uint64) uint64 {
	h := fnv.New64a()
	for _, s := range statics {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	var buf [8]byte
	for _, c := range children {
		for i := 0; i < 8; i++ {
			buf[i] = byte(c >> (8 * i))
		}
		h.Write(buf[:])
	}
	return h.Sum64()
}
