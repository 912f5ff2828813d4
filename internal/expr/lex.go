package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokenIdent tokenType = iota
	tokenAtom            // :name
	tokenString
	tokenInt
	tokenFloat
	tokenOp     // operators and punctuation
	tokenArrow  // <- (generator)
	tokenEOF
)

type token struct {
	typ tokenType
	val string
	pos int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) errf(pos int, format string, args ...any) error {
	return fmt.Errorf("expression %q at offset %d: %s", l.src, pos, fmt.Sprintf(format, args...))
}

var operators = []string{
	"<-", "==", "!=", "<=", ">=", "&&", "||",
	"(", ")", ",", ".", "+", "-", "*", "/", "!", "<", ">",
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{typ: tokenEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '"' || c == '\'':
		return l.lexString(c)
	case c == ':' && l.pos+1 < len(l.src) && isIdentStart(rune(l.src[l.pos+1])):
		l.pos++
		name := l.lexIdentRun()
		return token{typ: tokenAtom, val: name, pos: start}, nil
	case c >= '0' && c <= '9':
		return l.lexNumber()
	}

	if r, _ := utf8.DecodeRuneInString(l.src[l.pos:]); isIdentStart(r) {
		name := l.lexIdentRun()
		return token{typ: tokenIdent, val: name, pos: start}, nil
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.pos += len(op)
			typ := tokenOp
			if op == "<-" {
				typ = tokenArrow
			}
			return token{typ: typ, val: op, pos: start}, nil
		}
	}
	return token{}, l.errf(start, "unexpected character %q", rune(c))
}

func (l *lexer) lexIdentRun() string {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentChar(r) {
			break
		}
		l.pos += size
	}
	return l.src[start:l.pos]
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case quote:
			l.pos++
			return token{typ: tokenString, val: sb.String(), pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, l.errf(start, "unterminated string")
			}
			l.pos++
			switch l.src[l.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(l.src[l.pos])
			}
			l.pos++
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errf(start, "unterminated string")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	isFloat := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c >= '0' && c <= '9' {
			l.pos++
			continue
		}
		// A '.' is part of the number only when a digit follows; otherwise
		// it is a path separator (unsupported after literals) or an error.
		if c == '.' && !isFloat && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
			isFloat = true
			l.pos++
			continue
		}
		break
	}
	val := l.src[start:l.pos]
	if isFloat {
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			return token{}, l.errf(start, "bad float literal %q", val)
		}
		return token{typ: tokenFloat, val: val, pos: start}, nil
	}
	if _, err := strconv.ParseInt(val, 10, 64); err != nil {
		return token{}, l.errf(start, "bad integer literal %q", val)
	}
	return token{typ: tokenInt, val: val, pos: start}, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
