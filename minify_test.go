package livemarkup

import (
	"strings"
	"testing"
)

func TestWithMinifyCollapsesStaticWhitespace(t *testing.T) {
	source := "<div>\n\t<p class=\"x\">\n\t\t{msg}\n\t</p>\n</div>"
	tmpl := MustCompile("page", source, WithMinify())

	got := render(t, tmpl, Bindings{"msg": "hi"})
	if strings.Contains(got, "\n") || strings.Contains(got, "\t") {
		t.Errorf("minified output still has raw whitespace: %q", got)
	}
	if !strings.Contains(got, "hi") {
		t.Errorf("dynamic content lost: %q", got)
	}
	if !strings.Contains(got, `class="x"`) && !strings.Contains(got, `class=x`) {
		t.Errorf("attribute lost: %q", got)
	}

	plain := MustCompile("page", source)
	if len(render(t, plain, Bindings{"msg": "hi"})) <= len(got) {
		t.Error("minified render should be smaller than the plain render")
	}
}

func TestWithMinifyLeavesDynamicValuesAlone(t *testing.T) {
	tmpl := MustCompile("page", `<pre>{body}</pre>`, WithMinify())
	got := render(t, tmpl, Bindings{"body": "a  b"})
	if !strings.Contains(got, "a  b") {
		t.Errorf("slot values must pass through untouched: %q", got)
	}
}

func TestWithMinifyKeepsFingerprintStable(t *testing.T) {
	source := "<ul>\n\t<li :for={x <- xs}>{x}</li>\n</ul>"
	plain := MustCompile("list", source)
	minified := MustCompile("list", source, WithMinify())

	// Fingerprints hash the source shape, not the minified bytes, so a
	// client rendered from either build accepts patches from the other.
	if plain.Fingerprint() != minified.Fingerprint() {
		t.Errorf("fingerprint changed under minify: %q vs %q",
			plain.Fingerprint(), minified.Fingerprint())
	}
}

func TestWithMinifyReachesLoopAndSlotBodies(t *testing.T) {
	box := MustCompile("box", `<div>{render_slot(:inner_block)}</div>`)
	spec, _ := NewSpec("UI.box").Template(box).Build()
	reg := NewRegistry()
	reg.Register(spec)

	source := "<ul>\n  <li :for={x <- xs}>\n    {x}\n  </li>\n</ul><UI.box>\n  <b>\n    {msg}\n  </b>\n</UI.box>"
	tmpl := MustCompile("page", source, WithMinify(), WithComponents(reg))

	got := render(t, tmpl, Bindings{"xs": []any{"a"}, "msg": "m"})
	if strings.Contains(got, "\n") {
		t.Errorf("nested statics not minified: %q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"a  b", "a b"},
		{"a\t\n b", "a b"},
		{" a ", " a "},
		{"  leading and trailing  ", " leading and trailing "},
		{"nospace", "nospace"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := collapseWhitespace(tc.in); got != tc.want {
			t.Errorf("collapseWhitespace(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
