package parser

import (
	"fmt"

	"github.com/livefir/livemarkup/internal/tokenizer"
)

// MismatchedClosingTagError reports a closing tag that does not match the
// innermost open tag.
type MismatchedClosingTagError struct {
	Expected  string
	Found     string
	OpenSpan  tokenizer.Span
	CloseSpan tokenizer.Span
}

func (e *MismatchedClosingTagError) Error() string {
	return fmt.Sprintf("%s: mismatched closing tag: expected </%s> (opened at %s), found </%s>",
		e.CloseSpan.Start, e.Expected, e.OpenSpan.Start, e.Found)
}

// UnexpectedClosingTagError reports a closing tag with no open tag.
type UnexpectedClosingTagError struct {
	Name string
	Span tokenizer.Span
}

func (e *UnexpectedClosingTagError) Error() string {
	return fmt.Sprintf("%s: unexpected closing tag </%s>", e.Span.Start, e.Name)
}

// UnclosedTagError reports a tag still open at end of input.
type UnclosedTagError struct {
	Name     string
	OpenSpan tokenizer.Span
}

func (e *UnclosedTagError) Error() string {
	return fmt.Sprintf("%s: unclosed tag <%s>", e.OpenSpan.Start, e.Name)
}

// SlotPlacementError reports a slot entry outside a component invocation.
type SlotPlacementError struct {
	Name string
	Span tokenizer.Span
}

func (e *SlotPlacementError) Error() string {
	return fmt.Sprintf("%s: slot entry <:%s> must be a direct child of a component", e.Span.Start, e.Name)
}

// ReservedSlotNameError reports an explicit declaration of the implicit
// default slot.
type ReservedSlotNameError struct {
	Name string
	Span tokenizer.Span
}

func (e *ReservedSlotNameError) Error() string {
	return fmt.Sprintf("%s: slot name %q is reserved", e.Span.Start, e.Name)
}

// DuplicateLetError reports more than one :let on a single invocation.
type DuplicateLetError struct {
	Span tokenizer.Span
}

func (e *DuplicateLetError) Error() string {
	return fmt.Sprintf("%s: duplicate :let binding", e.Span.Start)
}

// LetWithoutContentError reports :let on a slot entry with no inner content.
type LetWithoutContentError struct {
	Span tokenizer.Span
}

func (e *LetWithoutContentError) Error() string {
	return fmt.Sprintf("%s: :let on a slot without inner content", e.Span.Start)
}

// LetPlacementError reports :let on anything but a component or slot entry.
type LetPlacementError struct {
	Span tokenizer.Span
}

func (e *LetPlacementError) Error() string {
	return fmt.Sprintf("%s: :let may only appear on a component or slot entry", e.Span.Start)
}

// ForPlacementError reports :for on anything but a plain element.
type ForPlacementError struct {
	Span tokenizer.Span
}

func (e *ForPlacementError) Error() string {
	return fmt.Sprintf("%s: :for may only appear on a plain element", e.Span.Start)
}

// DirectiveValueError reports a directive whose value is not an expression.
type DirectiveValueError struct {
	Directive string
	Span      tokenizer.Span
}

func (e *DirectiveValueError) Error() string {
	return fmt.Sprintf("%s: %s requires an expression value", e.Span.Start, e.Directive)
}
