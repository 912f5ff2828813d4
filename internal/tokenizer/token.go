package tokenizer

import "fmt"

// Pos is a 1-based line/column position in template source.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a source range attached to tokens and diagnostics.
type Span struct {
	Start Pos
	End   Pos
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// Kind discriminates token variants.
type Kind int

const (
	// Text is a literal run of template output.
	Text Kind = iota
	// TagOpen is an opening tag including its attributes.
	TagOpen
	// TagClose is a closing tag.
	TagClose
	// Expression is an embedded host expression ({code} or <%= code %>).
	Expression
	// Comment is a markup comment (<!-- ... -->), passed through verbatim.
	Comment
	// Doctype is a <!doctype ...> declaration, passed through verbatim.
	Doctype
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "Text"
	case TagOpen:
		return "TagOpen"
	case TagClose:
		return "TagClose"
	case Expression:
		return "Expression"
	case Comment:
		return "Comment"
	case Doctype:
		return "Doctype"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// AttrKind discriminates how an attribute value was written.
type AttrKind int

const (
	// AttrLiteral is a quoted literal value: name="text".
	AttrLiteral AttrKind = iota
	// AttrExpression is a dynamic value: name={code}.
	AttrExpression
	// AttrBoolean is presence-only: name with no value.
	AttrBoolean
	// AttrSpread supplies a whole attribute map: {code} with no name.
	AttrSpread
)

// Attr is one attribute as lexed inside a tag.
type Attr struct {
	Name  string // empty for AttrSpread
	Value string // literal text or expression code
	Kind  AttrKind
	Quote byte // quote character for AttrLiteral (" or ')
	Span  Span
}

// Token is one lexed unit of template source.
type Token struct {
	Kind      Kind
	Name      string // tag name for TagOpen/TagClose
	Content   string // text run, expression code, or comment/doctype body
	Marker    string // expression marker: "{" or "<%="
	Attrs     []Attr // TagOpen only
	SelfClose bool   // TagOpen only
	Span      Span
}

// voidElements never take children and are never pushed onto the open-tag
// stack, matching the HTML void element list.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether name is a void element.
func IsVoid(name string) bool {
	return voidElements[name]
}

// rawTextElements have content that is not tokenized as markup.
var rawTextElements = map[string]bool{
	"script": true,
	"style":  true,
}

// IsRawText reports whether the content of name is lexed as raw text.
func IsRawText(name string) bool {
	return rawTextElements[name]
}
