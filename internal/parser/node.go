package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/livefir/livemarkup/internal/tokenizer"
)

// TagKind classifies a tag name once, at parse time, instead of re-examining
// the raw string at every use site.
type TagKind int

const (
	// KindElement is a plain markup element.
	KindElement TagKind = iota
	// KindRemoteComponent is an invocation resolved against a registry
	// target (<Target.fn ...>).
	KindRemoteComponent
	// KindLocalComponent is an invocation resolved against locally visible
	// components (<.fn ...>).
	KindLocalComponent
	// KindSlotEntry is a named slot entry (<:name ...>).
	KindSlotEntry
)

// ClassifyTag maps a raw tag name to its kind.
func ClassifyTag(name string) TagKind {
	if strings.HasPrefix(name, ":") {
		return KindSlotEntry
	}
	if strings.HasPrefix(name, ".") {
		return KindLocalComponent
	}
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) || strings.Contains(name, ".") {
		return KindRemoteComponent
	}
	return KindElement
}

// Shape is what the parser can tell about an attribute value without
// evaluating it, recorded for the declarative attribute validator.
type Shape int

const (
	ShapeUnknown Shape = iota // dynamic expression, nothing known statically
	ShapeString
	ShapeBoolean
	ShapeAtom
	ShapeInteger
	ShapeFloat
	ShapeList
	ShapeMap
)

func (s Shape) String() string {
	switch s {
	case ShapeString:
		return "string"
	case ShapeBoolean:
		return "boolean"
	case ShapeAtom:
		return "atom"
	case ShapeInteger:
		return "integer"
	case ShapeFloat:
		return "float"
	case ShapeList:
		return "list"
	case ShapeMap:
		return "map"
	default:
		return "unknown"
	}
}

// AttrValueKind mirrors the tokenizer's attribute forms.
type AttrValueKind int

const (
	AttrLiteral AttrValueKind = iota
	AttrExpression
	AttrBoolean
	AttrSpread
)

// Attr is an attribute after parsing, with its statically known shape.
type Attr struct {
	Name  string
	Kind  AttrValueKind
	Value string // literal text or expression code
	Quote byte
	Shape Shape
	Span  tokenizer.Span
}

// ForDirective is a :for={generator} loop directive on a plain element.
type ForDirective struct {
	Code string
	Span tokenizer.Span
}

// LetBinding is a :let={pattern} binding on a component or slot entry.
type LetBinding struct {
	Pattern string
	Span    tokenizer.Span
}

// Node is one vertex of the parse tree.
type Node interface {
	Span() tokenizer.Span
}

// Fragment is the implicit root holding top-level children.
type Fragment struct {
	Children []Node
	SrcSpan  tokenizer.Span
}

func (f *Fragment) Span() tokenizer.Span { return f.SrcSpan }

// Element is a plain markup element.
type Element struct {
	Name      string
	Attrs     []Attr
	For       *ForDirective // nil unless :for was present
	Children  []Node
	SelfClose bool
	SrcSpan   tokenizer.Span
}

func (e *Element) Span() tokenizer.Span { return e.SrcSpan }

// Component is a component invocation, remote or local.
type Component struct {
	Kind     TagKind
	Target   string // resolved invocation target (registry key)
	RawName  string // tag name as written
	Attrs    []Attr
	Let      *LetBinding
	Slots    []*SlotEntry
	Children []Node // implicit default slot content
	SrcSpan  tokenizer.Span
}

func (c *Component) Span() tokenizer.Span { return c.SrcSpan }

// SlotEntry is a named slot entry supplied inside a component invocation.
type SlotEntry struct {
	Name     string
	Attrs    []Attr
	Let      *LetBinding
	Children []Node
	SrcSpan  tokenizer.Span
}

func (s *SlotEntry) Span() tokenizer.Span { return s.SrcSpan }

// ExpressionHole is an embedded host expression producing output.
type ExpressionHole struct {
	Code    string
	Marker  string
	SrcSpan tokenizer.Span
}

func (e *ExpressionHole) Span() tokenizer.Span { return e.SrcSpan }

// TextFragment is a literal run of output, including comments and doctype
// declarations passed through verbatim.
type TextFragment struct {
	Content string
	SrcSpan tokenizer.Span
}

func (t *TextFragment) Span() tokenizer.Span { return t.SrcSpan }
