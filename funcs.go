package livemarkup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/livefir/livemarkup/internal/expr"
)

// FuncMap registers expression functions callable from templates.
type FuncMap map[string]func(args ...any) (any, error)

// RawHTML marks a string as pre-escaped markup that renders verbatim.
// Everything else interpolated into text is entity-escaped.
type RawHTML string

// builtins are always available; a FuncMap entry of the same name wins.
var builtins = map[string]func(args ...any) (any, error){
	// Well-formed "if" calls evaluate lazily inside the expression engine;
	// only arity mistakes reach this far.
	"if": func(args ...any) (any, error) {
		return nil, fmt.Errorf("if(cond, then[, else]) takes 2 or 3 arguments, got %d", len(args))
	},
	"not": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("not(v) takes 1 argument, got %d", len(args))
		}
		return !expr.Truthy(args[0]), nil
	},
	"len": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("len(v) takes 1 argument, got %d", len(args))
		}
		return expr.Length(args[0])
	},
	"join": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("join(list, sep) takes 2 arguments, got %d", len(args))
		}
		items, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("join: expected a list, got %T", args[0])
		}
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = stringify(it)
		}
		return strings.Join(parts, stringify(args[1])), nil
	},
	"raw": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("raw(v) takes 1 argument, got %d", len(args))
		}
		return RawHTML(stringify(args[0])), nil
	},
	"default": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("default(v, fallback) takes 2 arguments, got %d", len(args))
		}
		if args[0] == nil || args[0] == "" {
			return args[1], nil
		}
		return args[0], nil
	},
	"upper": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("upper(v) takes 1 argument, got %d", len(args))
		}
		return strings.ToUpper(stringify(args[0])), nil
	},
	"lower": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("lower(v) takes 1 argument, got %d", len(args))
		}
		return strings.ToLower(stringify(args[0])), nil
	},
}

// stringify converts an expression result to its output text, before
// escaping.
func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case RawHTML:
		return string(v)
	case expr.Atom:
		return string(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", v)
}

// escapeText entity-escapes text content.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// escapeAttr entity-escapes a double-quoted attribute value.
func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
)
