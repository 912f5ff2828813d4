package expr

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// mapEnv is the simplest Env: bindings plus a couple of functions.
type mapEnv map[string]any

func (e mapEnv) Lookup(name string) (any, bool) {
	v, ok := e[name]
	return v, ok
}

func (e mapEnv) Call(name string, args []any) (any, error) {
	switch name {
	case "upper":
		return strings.ToUpper(fmt.Sprint(args[0])), nil
	case "add":
		x, _ := toInt(args[0])
		y, _ := toInt(args[1])
		return x + y, nil
	case "boom":
		return nil, fmt.Errorf("boom called")
	}
	return nil, fmt.Errorf("unknown function %q", name)
}

func eval(t *testing.T, code string, env Env) any {
	t.Helper()
	c, err := Parse(code)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", code, err)
	}
	v, err := c.Eval(env)
	if err != nil {
		t.Fatalf("Eval(%q) failed: %v", code, err)
	}
	return v
}

func TestEval_Literals(t *testing.T) {
	env := mapEnv{}
	cases := []struct {
		code string
		want any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"3.5", 3.5},
		{`"hello"`, "hello"},
		{"true", true},
		{"false", false},
		{"nil", nil},
		{":active", Atom("active")},
	}
	for _, tc := range cases {
		if got := eval(t, tc.code, env); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%q = %v (%T), want %v (%T)", tc.code, got, got, tc.want, tc.want)
		}
	}
}

func TestEval_Precedence(t *testing.T) {
	env := mapEnv{"a": 2, "b": 3, "c": 4}
	cases := []struct {
		code string
		want any
	}{
		{"a + b * c", int64(14)},
		{"(a + b) * c", int64(20)},
		{"a + b == 5 && c > 3", true},
		{"a < b || boom()", true}, // || short-circuits past the call
		{"a > b && boom()", false},
		{"!false || false", true},
		{"-a * b", int64(-6)},
		{"10 / a - b", int64(2)},
	}
	for _, tc := range cases {
		if got := eval(t, tc.code, env); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%q = %v (%T), want %v", tc.code, got, got, tc.want)
		}
	}
}

func TestEval_LazyIf(t *testing.T) {
	env := mapEnv{"a": 2, "b": 3}
	// The untaken branch never runs, even when it would error.
	if got := eval(t, "if(a > b, boom(), add(a, b))", env); got != int64(5) {
		t.Errorf("falsy if = %v", got)
	}
	if got := eval(t, "if(a < b, add(a, a), boom())", env); got != int64(4) {
		t.Errorf("truthy if = %v", got)
	}
	if got := eval(t, "if(a > b, boom())", env); got != nil {
		t.Errorf("two-arg falsy if = %v", got)
	}
}

func TestEval_StringOps(t *testing.T) {
	env := mapEnv{"first": "Ada", "last": "Lovelace"}
	if got := eval(t, `first + " " + last`, env); got != "Ada Lovelace" {
		t.Errorf("concat = %q", got)
	}
	if got := eval(t, `first < last`, env); got != true {
		t.Errorf("string compare = %v", got)
	}
	if got := eval(t, `first == "Ada"`, env); got != true {
		t.Errorf("string equality = %v", got)
	}
}

func TestEval_MixedNumericComparison(t *testing.T) {
	env := mapEnv{"n": 3, "f": 3.0}
	if got := eval(t, "n == f", env); got != true {
		t.Errorf("int/float equality should hold, got %v", got)
	}
	if got := eval(t, "n + 0.5", env); got != 3.5 {
		t.Errorf("mixed arithmetic = %v", got)
	}
}

func TestEval_PathsOverMapsAndStructs(t *testing.T) {
	type profile struct {
		DisplayName string
		Age         int
	}
	env := mapEnv{
		"user": map[string]any{
			"name":    "casey",
			"profile": profile{DisplayName: "Casey", Age: 30},
		},
	}
	if got := eval(t, "user.name", env); got != "casey" {
		t.Errorf("map path = %v", got)
	}
	// snake_case and lowercase names resolve against exported struct fields.
	if got := eval(t, "user.profile.display_name", env); got != "Casey" {
		t.Errorf("struct snake_case path = %v", got)
	}
	if got := eval(t, "user.profile.age", env); got != 30 {
		t.Errorf("struct lowercase path = %v", got)
	}
}

func TestEval_MissingMapKeyIsNil(t *testing.T) {
	env := mapEnv{"user": map[string]any{}}
	if got := eval(t, "user.missing", env); got != nil {
		t.Errorf("missing map key should yield nil, got %v", got)
	}
}

func TestEval_Calls(t *testing.T) {
	env := mapEnv{"name": "ada", "x": 2, "y": 5}
	if got := eval(t, "upper(name)", env); got != "ADA" {
		t.Errorf("upper = %v", got)
	}
	if got := eval(t, "add(x, add(y, 1))", env); got != int64(8) {
		t.Errorf("nested calls = %v", got)
	}
}

func TestEval_Errors(t *testing.T) {
	env := mapEnv{"n": 1, "zero": 0}
	cases := []struct {
		code    string
		wantSub string
	}{
		{"missing", "undefined binding"},
		{"n / zero", "division by zero"},
		{"boom()", "boom called"},
		{`n + "x"`, "not defined"},
		{"n.field", "field"},
	}
	for _, tc := range cases {
		c, err := Parse(tc.code)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tc.code, err)
		}
		_, err = c.Eval(env)
		if err == nil {
			t.Errorf("%q should fail", tc.code)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantSub) {
			t.Errorf("%q error = %q, want substring %q", tc.code, err, tc.wantSub)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"",
		"a +",
		"(a",
		"upper(a",
		"a b",
		"a .",
		`"unterminated`,
	}
	for _, code := range bad {
		if _, err := Parse(code); err == nil {
			t.Errorf("Parse(%q) should fail", code)
		}
	}
}

func TestPathsAndVars(t *testing.T) {
	c, err := Parse("user.name + upper(user.email) + count")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	wantPaths := [][]string{{"user", "name"}, {"user", "email"}, {"count"}}
	if !reflect.DeepEqual(c.Paths(), wantPaths) {
		t.Errorf("Paths() = %v, want %v", c.Paths(), wantPaths)
	}
	wantVars := []string{"user", "count"}
	if !reflect.DeepEqual(c.Vars(), wantVars) {
		t.Errorf("Vars() = %v, want %v", c.Vars(), wantVars)
	}
}

func TestCalls(t *testing.T) {
	c, err := Parse("upper(render_slot(item)) + add(1, 2)")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []string{"upper", "render_slot", "add"}
	if !reflect.DeepEqual(c.Calls(), want) {
		t.Errorf("Calls() = %v, want %v", c.Calls(), want)
	}
}

func TestParseGenerator(t *testing.T) {
	g, err := ParseGenerator("item <- todos")
	if err != nil {
		t.Fatalf("ParseGenerator failed: %v", err)
	}
	if g.Var != "item" || g.Index != "" {
		t.Errorf("generator bindings: var=%q index=%q", g.Var, g.Index)
	}
	if !reflect.DeepEqual(g.Source.Vars(), []string{"todos"}) {
		t.Errorf("generator source vars = %v", g.Source.Vars())
	}

	g, err = ParseGenerator("item, i <- page.rows")
	if err != nil {
		t.Fatalf("ParseGenerator with index failed: %v", err)
	}
	if g.Var != "item" || g.Index != "i" {
		t.Errorf("indexed generator: var=%q index=%q", g.Var, g.Index)
	}

	bad := []string{
		"<- items",
		"item items",
		"item, <- items",
		"item <- ",
		"item <- items extra",
	}
	for _, code := range bad {
		if _, err := ParseGenerator(code); err == nil {
			t.Errorf("ParseGenerator(%q) should fail", code)
		}
	}
}

func TestTruthy(t *testing.T) {
	truthy := []any{true, 1, int64(2), 0.5, "x", []any{1}, map[string]any{"a": 1}}
	falsy := []any{nil, false, 0, int64(0), 0.0, "", []any{}, map[string]any{}}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("Truthy(%v) should be true", v)
		}
	}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("Truthy(%v) should be false", v)
		}
	}
}

func TestLength(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{nil, 0},
		{"abc", 3},
		{[]any{1, 2}, 2},
		{[3]int{}, 3},
		{map[string]any{"a": 1}, 1},
	}
	for _, tc := range cases {
		got, err := Length(tc.in)
		if err != nil {
			t.Errorf("Length(%v) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Length(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if _, err := Length(42); err == nil {
		t.Error("Length(42) should fail")
	}
}

func TestEqual(t *testing.T) {
	if !Equal(1, 1.0) {
		t.Error("numeric cross-type equality should hold")
	}
	if Equal(1, "1") {
		t.Error("number and string should not be equal")
	}
	if !Equal("a", "a") || Equal("a", "b") {
		t.Error("string equality wrong")
	}
	if !Equal(nil, nil) {
		t.Error("nil should equal nil")
	}
}
