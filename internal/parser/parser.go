// Package parser builds the template parse tree from the tokenizer's
// stream, enforcing the structural rules of the dialect: balanced tags,
// component and slot placement, and directive usage. All structural
// problems are fatal; the declarative attribute validation that merely
// warns happens later, at compile time.
package parser

import (
	"regexp"
	"strings"

	"github.com/livefir/livemarkup/internal/tokenizer"
)

// InnerBlock is the implicit default slot; template authors cannot declare
// it explicitly.
const InnerBlock = "inner_block"

// Parse consumes a token stream and returns the parse tree root.
func Parse(tokens []tokenizer.Token) (*Fragment, error) {
	p := &treeParser{}
	for i := range tokens {
		if err := p.feed(&tokens[i]); err != nil {
			return nil, err
		}
	}
	return p.finish()
}

// ParseSource tokenizes and parses a complete template source.
func ParseSource(source string) (*Fragment, error) {
	tokens, err := tokenizer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// frame is one open tag on the explicit stack.
type frame struct {
	name     string // tag name as written, used for close matching
	openSpan tokenizer.Span
	elem     *Element
	comp     *Component
	slot     *SlotEntry
	children []Node
}

type treeParser struct {
	root  Fragment
	stack []*frame
}

func (p *treeParser) feed(t *tokenizer.Token) error {
	switch t.Kind {
	case tokenizer.Text, tokenizer.Comment, tokenizer.Doctype:
		p.append(&TextFragment{Content: t.Content, SrcSpan: t.Span})
		return nil
	case tokenizer.Expression:
		p.append(&ExpressionHole{Code: t.Content, Marker: t.Marker, SrcSpan: t.Span})
		return nil
	case tokenizer.TagOpen:
		return p.openTag(t)
	case tokenizer.TagClose:
		return p.closeTag(t)
	}
	return nil
}

func (p *treeParser) finish() (*Fragment, error) {
	if n := len(p.stack); n > 0 {
		top := p.stack[n-1]
		return nil, &UnclosedTagError{Name: top.name, OpenSpan: top.openSpan}
	}
	return &p.root, nil
}

func (p *treeParser) append(n Node) {
	if len(p.stack) == 0 {
		p.root.Children = append(p.root.Children, n)
		return
	}
	top := p.stack[len(p.stack)-1]
	top.children = append(top.children, n)
}

func (p *treeParser) openTag(t *tokenizer.Token) error {
	switch ClassifyTag(t.Name) {
	case KindSlotEntry:
		return p.openSlot(t)
	case KindRemoteComponent:
		return p.openComponent(t, KindRemoteComponent, t.Name)
	case KindLocalComponent:
		return p.openComponent(t, KindLocalComponent, strings.TrimPrefix(t.Name, "."))
	default:
		return p.openElement(t)
	}
}

func (p *treeParser) openElement(t *tokenizer.Token) error {
	attrs, let, forDir, err := splitAttrs(t.Attrs)
	if err != nil {
		return err
	}
	if let != nil {
		// :let binds a value handed back by a component; plain elements
		// hand nothing back.
		return &LetPlacementError{Span: let.Span}
	}
	elem := &Element{
		Name:      t.Name,
		Attrs:     attrs,
		For:       forDir,
		SelfClose: t.SelfClose || tokenizer.IsVoid(t.Name),
		SrcSpan:   t.Span,
	}
	if elem.SelfClose {
		p.append(elem)
		return nil
	}
	p.stack = append(p.stack, &frame{name: t.Name, openSpan: t.Span, elem: elem})
	return nil
}

func (p *treeParser) openComponent(t *tokenizer.Token, kind TagKind, target string) error {
	attrs, let, forDir, err := splitAttrs(t.Attrs)
	if err != nil {
		return err
	}
	if forDir != nil {
		return &ForPlacementError{Span: forDir.Span}
	}
	comp := &Component{
		Kind:    kind,
		Target:  target,
		RawName: t.Name,
		Attrs:   attrs,
		Let:     let,
		SrcSpan: t.Span,
	}
	if t.SelfClose {
		p.append(comp)
		return nil
	}
	p.stack = append(p.stack, &frame{name: t.Name, openSpan: t.Span, comp: comp})
	return nil
}

func (p *treeParser) openSlot(t *tokenizer.Token) error {
	name := strings.TrimPrefix(t.Name, ":")
	if name == InnerBlock {
		return &ReservedSlotNameError{Name: name, Span: t.Span}
	}
	if len(p.stack) == 0 || p.stack[len(p.stack)-1].comp == nil {
		return &SlotPlacementError{Name: name, Span: t.Span}
	}
	attrs, let, forDir, err := splitAttrs(t.Attrs)
	if err != nil {
		return err
	}
	if forDir != nil {
		return &ForPlacementError{Span: forDir.Span}
	}
	slot := &SlotEntry{Name: name, Attrs: attrs, Let: let, SrcSpan: t.Span}
	if t.SelfClose {
		if let != nil {
			return &LetWithoutContentError{Span: let.Span}
		}
		parent := p.stack[len(p.stack)-1]
		parent.comp.Slots = append(parent.comp.Slots, slot)
		return nil
	}
	p.stack = append(p.stack, &frame{name: t.Name, openSpan: t.Span, slot: slot})
	return nil
}

func (p *treeParser) closeTag(t *tokenizer.Token) error {
	if len(p.stack) == 0 {
		return &UnexpectedClosingTagError{Name: t.Name, Span: t.Span}
	}
	top := p.stack[len(p.stack)-1]
	if top.name != t.Name {
		return &MismatchedClosingTagError{
			Expected:  top.name,
			Found:     t.Name,
			OpenSpan:  top.openSpan,
			CloseSpan: t.Span,
		}
	}
	p.stack = p.stack[:len(p.stack)-1]

	switch {
	case top.elem != nil:
		top.elem.Children = top.children
		p.append(top.elem)
	case top.comp != nil:
		top.comp.Children = top.children
		p.append(top.comp)
	case top.slot != nil:
		top.slot.Children = top.children
		if top.slot.Let != nil && len(top.children) == 0 {
			return &LetWithoutContentError{Span: top.slot.Let.Span}
		}
		parent := p.stack[len(p.stack)-1]
		parent.comp.Slots = append(parent.comp.Slots, top.slot)
	}
	return nil
}

// splitAttrs converts lexed attributes and pulls out the :let and :for
// directives, rejecting duplicates and non-expression directive values.
func splitAttrs(in []tokenizer.Attr) (attrs []Attr, let *LetBinding, forDir *ForDirective, err error) {
	for _, a := range in {
		switch a.Name {
		case ":let":
			if a.Kind != tokenizer.AttrExpression {
				return nil, nil, nil, &DirectiveValueError{Directive: ":let", Span: a.Span}
			}
			if let != nil {
				return nil, nil, nil, &DuplicateLetError{Span: a.Span}
			}
			let = &LetBinding{Pattern: a.Value, Span: a.Span}
		case ":for":
			if a.Kind != tokenizer.AttrExpression {
				return nil, nil, nil, &DirectiveValueError{Directive: ":for", Span: a.Span}
			}
			forDir = &ForDirective{Code: a.Value, Span: a.Span}
		default:
			attrs = append(attrs, convertAttr(a))
		}
	}
	return attrs, let, forDir, nil
}

func convertAttr(a tokenizer.Attr) Attr {
	out := Attr{
		Name:  a.Name,
		Value: a.Value,
		Quote: a.Quote,
		Span:  a.Span,
	}
	switch a.Kind {
	case tokenizer.AttrLiteral:
		out.Kind = AttrLiteral
		out.Shape = ShapeString
	case tokenizer.AttrBoolean:
		out.Kind = AttrBoolean
		out.Shape = ShapeBoolean
	case tokenizer.AttrSpread:
		out.Kind = AttrSpread
		out.Shape = ShapeUnknown
	default:
		out.Kind = AttrExpression
		out.Shape = classifyExpressionShape(a.Value)
	}
	return out
}

var (
	intLit   = regexp.MustCompile(`^-?[0-9]+$`)
	floatLit = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
	atomLit  = regexp.MustCompile(`^:[A-Za-z_][A-Za-z0-9_]*$`)
)

// classifyExpressionShape records what a later validation pass can know
// about a statically written expression value without re-parsing it.
func classifyExpressionShape(code string) Shape {
	code = strings.TrimSpace(code)
	switch {
	case code == "true" || code == "false":
		return ShapeBoolean
	case intLit.MatchString(code):
		return ShapeInteger
	case floatLit.MatchString(code):
		return ShapeFloat
	case atomLit.MatchString(code):
		return ShapeAtom
	case strings.HasPrefix(code, `"`) || strings.HasPrefix(code, `'`):
		return ShapeString
	case strings.HasPrefix(code, "["):
		return ShapeList
	case strings.HasPrefix(code, "%{") || strings.HasPrefix(code, "map("):
		return ShapeMap
	default:
		return ShapeUnknown
	}
}
