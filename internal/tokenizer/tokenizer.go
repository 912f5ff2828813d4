package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// State identifies what the tokenizer is in the middle of lexing. It is
// carried across Feed calls so source can be supplied in chunks, and it
// selects the error reported when input ends mid-construct.
type State int

const (
	StateText State = iota
	StateTagOpen
	StateTagName
	StateAttrName
	StateAttrValue
	StateComment
	StateExpression
	StateRawText
)

// Tokenizer lexes template source into a flat token stream. Source may be
// fed in chunks; a token is emitted only once it is complete, and an
// unfinished construct at the end of a chunk is retried when more source
// arrives.
type Tokenizer struct {
	buf    string
	off    int // consumed offset into buf
	pos    Pos // position of buf[off]
	state  State
	quote  byte   // active quote while in StateAttrValue
	marker string // active expression marker while in StateExpression
	rawTag string // element whose raw content is being lexed
}

// New returns a tokenizer positioned at line 1, column 1.
func New() *Tokenizer {
	return &Tokenizer{pos: Pos{Line: 1, Column: 1}}
}

// Tokenize lexes a complete template source in one call.
func Tokenize(source string) ([]Token, error) {
	t := New()
	toks, err := t.Feed(source)
	if err != nil {
		return toks, err
	}
	rest, err := t.Finish()
	return append(toks, rest...), err
}

// State reports what the tokenizer is currently waiting to complete.
func (t *Tokenizer) State() State {
	return t.state
}

// Feed appends a chunk of source and returns every token completed by it.
func (t *Tokenizer) Feed(chunk string) ([]Token, error) {
	t.buf += chunk
	var out []Token
	for {
		tok, ok, err := t.next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, tok)
	}
}

// Finish flushes any trailing text and fails if input ended inside an
// unterminated construct.
func (t *Tokenizer) Finish() ([]Token, error) {
	if t.off >= len(t.buf) {
		return nil, nil
	}
	rest := t.buf[t.off:]
	start := t.pos
	switch t.state {
	case StateText:
		t.consume(len(rest))
		return []Token{{Kind: Text, Content: rest, Span: Span{Start: start, End: t.pos}}}, nil
	case StateComment:
		return nil, &UnterminatedCommentError{Span: Span{Start: start, End: t.endPos()}}
	case StateExpression:
		return nil, &UnterminatedExpressionError{Marker: t.marker, Span: Span{Start: start, End: t.endPos()}}
	default:
		// Mid-tag or inside raw text content whose element never closed.
		return nil, &UnterminatedTagError{Span: Span{Start: start, End: t.endPos()}}
	}
}

func (t *Tokenizer) endPos() Pos {
	return advancePos(t.pos, t.buf[t.off:])
}

// consume advances off and the line/column position over n bytes.
func (t *Tokenizer) consume(n int) {
	t.pos = advancePos(t.pos, t.buf[t.off:t.off+n])
	t.off += n
}

func advancePos(p Pos, s string) Pos {
	for _, r := range s {
		if r == '\n' {
			p.Line++
			p.Column = 1
		} else {
			p.Column++
		}
	}
	return p
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '.' || r == ':' || r == '_'
}

func isNameChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '.' || r == ':' || r == '_' || r == '-'
}

func isAttrNameChar(r rune) bool {
	return isNameChar(r) || r == '@'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// next lexes one token starting at the current offset. ok is false when the
// buffer is exhausted or ends mid-token.
func (t *Tokenizer) next() (Token, bool, error) {
	if t.off >= len(t.buf) {
		return Token{}, false, nil
	}
	if t.state == StateRawText {
		return t.nextRaw()
	}
	return t.nextText()
}

func (t *Tokenizer) nextText() (Token, bool, error) {
	t.state = StateText
	rest := t.buf[t.off:]
	i := strings.IndexAny(rest, "<{")
	if i == -1 {
		// Plain text with no delimiter yet; emitted by Finish or once a
		// delimiter arrives.
		return Token{}, false, nil
	}
	if i > 0 {
		return t.emitText(i), true, nil
	}
	if rest[0] == '{' {
		return t.lexExpression("{", "}")
	}

	// rest starts with '<'. Wait for enough bytes to classify it.
	switch {
	case len(rest) < 4 && strings.HasPrefix("<!--", rest):
		t.state = StateTagOpen
		return Token{}, false, nil
	case strings.HasPrefix(rest, "<!--"):
		return t.lexComment()
	case strings.HasPrefix(rest, "<!"):
		return t.lexDoctype()
	case len(rest) < 3 && strings.HasPrefix("<%=", rest):
		t.state = StateTagOpen
		return Token{}, false, nil
	case strings.HasPrefix(rest, "<%="):
		return t.lexExpression("<%=", "%>")
	case rest[1] == '/':
		return t.lexCloseTag()
	default:
		r, _ := utf8.DecodeRuneInString(rest[1:])
		if isNameStart(r) {
			return t.lexOpenTag()
		}
		// A bare '<' that opens nothing is literal text.
		return t.emitText(1), true, nil
	}
}

func (t *Tokenizer) emitText(n int) Token {
	start := t.pos
	content := t.buf[t.off : t.off+n]
	t.consume(n)
	return Token{Kind: Text, Content: content, Span: Span{Start: start, End: t.pos}}
}

func (t *Tokenizer) nextRaw() (Token, bool, error) {
	rest := t.buf[t.off:]
	lower := strings.ToLower(rest)
	closer := "</" + t.rawTag
	from := 0
	for {
		idx := strings.Index(lower[from:], closer)
		if idx == -1 {
			return Token{}, false, nil
		}
		idx += from
		after := idx + len(closer)
		if after >= len(rest) {
			// The name boundary is not in the buffer yet.
			return Token{}, false, nil
		}
		// "</scripted>" inside <script> is still raw text: the closer name
		// must end at whitespace, '/', or '>'.
		if c := rest[after]; c != '>' && c != '/' && !isSpace(c) {
			from = idx + 1
			continue
		}
		t.state = StateText
		t.rawTag = ""
		if idx == 0 {
			// Let the close tag lex normally.
			return t.lexCloseTag()
		}
		return t.emitText(idx), true, nil
	}
}

func (t *Tokenizer) lexExpression(open, close string) (Token, bool, error) {
	t.state = StateExpression
	t.marker = open
	rest := t.buf[t.off:]
	var code string
	var n int
	if open == "{" {
		end, ok := scanBraces(rest, 0)
		if !ok {
			return Token{}, false, nil
		}
		code = rest[1:end]
		n = end + 1
	} else {
		idx := strings.Index(rest, close)
		if idx == -1 {
			return Token{}, false, nil
		}
		code = rest[len(open):idx]
		n = idx + len(close)
	}
	start := t.pos
	t.consume(n)
	t.state = StateText
	return Token{
		Kind:    Expression,
		Content: strings.TrimSpace(code),
		Marker:  open,
		Span:    Span{Start: start, End: t.pos},
	}, true, nil
}

// scanBraces scans a balanced {...} group starting at rest[at] == '{' and
// returns the index of the matching '}'. String literals inside the
// expression may contain braces.
func scanBraces(rest string, at int) (int, bool) {
	depth := 0
	for i := at; i < len(rest); i++ {
		switch rest[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		case '"', '\'':
			q := rest[i]
			i++
			for i < len(rest) && rest[i] != q {
				if rest[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(rest) {
				return 0, false
			}
		}
	}
	return 0, false
}

func (t *Tokenizer) lexComment() (Token, bool, error) {
	t.state = StateComment
	rest := t.buf[t.off:]
	idx := strings.Index(rest, "-->")
	if idx == -1 {
		return Token{}, false, nil
	}
	start := t.pos
	raw := rest[:idx+3]
	t.consume(len(raw))
	t.state = StateText
	return Token{Kind: Comment, Content: raw, Span: Span{Start: start, End: t.pos}}, true, nil
}

func (t *Tokenizer) lexDoctype() (Token, bool, error) {
	t.state = StateTagOpen
	rest := t.buf[t.off:]
	idx := strings.IndexByte(rest, '>')
	if idx == -1 {
		return Token{}, false, nil
	}
	start := t.pos
	raw := rest[:idx+1]
	t.consume(len(raw))
	t.state = StateText
	return Token{Kind: Doctype, Content: raw, Span: Span{Start: start, End: t.pos}}, true, nil
}

func (t *Tokenizer) lexCloseTag() (Token, bool, error) {
	t.state = StateTagName
	rest := t.buf[t.off:]
	j := 2 // past "</"
	for j < len(rest) && isNameChar(rune(rest[j])) {
		j++
	}
	if j >= len(rest) {
		return Token{}, false, nil
	}
	name := rest[2:j]
	for j < len(rest) && isSpace(rest[j]) {
		j++
	}
	if j >= len(rest) {
		return Token{}, false, nil
	}
	if rest[j] != '>' {
		return Token{}, false, &InvalidCharacterError{
			Ch:   rune(rest[j]),
			Span: t.spanAt(j, 1),
		}
	}
	if name == "" {
		return Token{}, false, &InvalidCharacterError{Ch: rune(rest[2]), Span: t.spanAt(2, 1)}
	}
	start := t.pos
	t.consume(j + 1)
	t.state = StateText
	return Token{Kind: TagClose, Name: name, Span: Span{Start: start, End: t.pos}}, true, nil
}

// spanAt builds a span for n bytes located at byte offset rel past the
// current position. Used for error reporting inside a partially lexed tag.
func (t *Tokenizer) spanAt(rel, n int) Span {
	start := advancePos(t.pos, t.buf[t.off:t.off+rel])
	return Span{Start: start, End: advancePos(start, t.buf[t.off+rel:t.off+rel+n])}
}

func (t *Tokenizer) lexOpenTag() (Token, bool, error) {
	t.state = StateTagName
	rest := t.buf[t.off:]
	j := 1 // past '<'
	for j < len(rest) && isNameChar(rune(rest[j])) {
		j++
	}
	if j >= len(rest) {
		return Token{}, false, nil
	}
	name := rest[1:j]
	if c := rest[j]; !isSpace(c) && c != '/' && c != '>' {
		return Token{}, false, &InvalidCharacterError{Ch: rune(c), Span: t.spanAt(j, 1)}
	}

	attrs, selfClose, end, ok, err := t.lexAttrs(rest, j)
	if err != nil || !ok {
		return Token{}, false, err
	}

	start := t.pos
	t.consume(end)
	t.state = StateText
	if !selfClose && !IsVoid(name) && IsRawText(name) {
		t.state = StateRawText
		t.rawTag = strings.ToLower(name)
	}
	return Token{
		Kind:      TagOpen,
		Name:      name,
		Attrs:     attrs,
		SelfClose: selfClose,
		Span:      Span{Start: start, End: t.pos},
	}, true, nil
}

// lexAttrs scans the attribute list of an open tag, starting at rest[j]
// just after the tag name, and returns the byte offset one past '>'.
func (t *Tokenizer) lexAttrs(rest string, j int) (attrs []Attr, selfClose bool, end int, ok bool, err error) {
	for {
		for j < len(rest) && isSpace(rest[j]) {
			j++
		}
		if j >= len(rest) {
			return nil, false, 0, false, nil
		}
		switch c := rest[j]; {
		case c == '>':
			return attrs, false, j + 1, true, nil
		case c == '/':
			if j+1 >= len(rest) {
				return nil, false, 0, false, nil
			}
			if rest[j+1] != '>' {
				return nil, false, 0, false, &InvalidCharacterError{Ch: rune(rest[j+1]), Span: t.spanAt(j+1, 1)}
			}
			return attrs, true, j + 2, true, nil
		case c == '{':
			// Spread attribute: {code} with no name.
			closeAt, done := scanBraces(rest, j)
			if !done {
				return nil, false, 0, false, nil
			}
			attrs = append(attrs, Attr{
				Kind:  AttrSpread,
				Value: strings.TrimSpace(rest[j+1 : closeAt]),
				Span:  t.spanAt(j, closeAt+1-j),
			})
			j = closeAt + 1
		default:
			t.state = StateAttrName
			k := j
			for j < len(rest) && isAttrNameChar(rune(rest[j])) {
				j++
			}
			if j >= len(rest) {
				return nil, false, 0, false, nil
			}
			if k == j {
				return nil, false, 0, false, &InvalidCharacterError{Ch: rune(rest[j]), Span: t.spanAt(j, 1)}
			}
			name := rest[k:j]
			if rest[j] != '=' {
				attrs = append(attrs, Attr{Name: name, Kind: AttrBoolean, Span: t.spanAt(k, j-k)})
				t.state = StateTagName
				continue
			}
			j++ // past '='
			if j >= len(rest) {
				return nil, false, 0, false, nil
			}
			t.state = StateAttrValue
			switch q := rest[j]; q {
			case '"', '\'':
				t.quote = q
				closeAt := strings.IndexByte(rest[j+1:], q)
				if closeAt == -1 {
					return nil, false, 0, false, nil
				}
				valEnd := j + 1 + closeAt
				attrs = append(attrs, Attr{
					Name:  name,
					Kind:  AttrLiteral,
					Value: rest[j+1 : valEnd],
					Quote: q,
					Span:  t.spanAt(k, valEnd+1-k),
				})
				j = valEnd + 1
			case '{':
				closeAt, done := scanBraces(rest, j)
				if !done {
					return nil, false, 0, false, nil
				}
				attrs = append(attrs, Attr{
					Name:  name,
					Kind:  AttrExpression,
					Value: strings.TrimSpace(rest[j+1 : closeAt]),
					Span:  t.spanAt(k, closeAt+1-k),
				})
				j = closeAt + 1
			default:
				return nil, false, 0, false, &InvalidCharacterError{Ch: rune(q), Span: t.spanAt(j, 1)}
			}
			t.state = StateTagName
		}
	}
}
