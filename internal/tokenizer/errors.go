package tokenizer

import "fmt"

// UnterminatedTagError reports a tag still open at end of input.
type UnterminatedTagError struct {
	Span Span
}

func (e *UnterminatedTagError) Error() string {
	return fmt.Sprintf("%s: unterminated tag", e.Span.Start)
}

// UnterminatedCommentError reports a comment with no closing -->.
type UnterminatedCommentError struct {
	Span Span
}

func (e *UnterminatedCommentError) Error() string {
	return fmt.Sprintf("%s: unterminated comment", e.Span.Start)
}

// UnterminatedExpressionError reports an expression with no closing
// delimiter ({ without } or <%= without %>).
type UnterminatedExpressionError struct {
	Marker string
	Span   Span
}

func (e *UnterminatedExpressionError) Error() string {
	return fmt.Sprintf("%s: unterminated expression starting with %q", e.Span.Start, e.Marker)
}

// InvalidCharacterError reports a character that cannot appear in a tag or
// attribute name.
type InvalidCharacterError struct {
	Ch   rune
	Span Span
}

func (e *InvalidCharacterError) Error() string {
	return fmt.Sprintf("%s: invalid character %q in name", e.Span.Start, e.Ch)
}
