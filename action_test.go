package livemarkup

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestActionDataAccessors(t *testing.T) {
	data := newActionData(map[string]any{
		"name":   "ada",
		"count":  float64(3), // JSON numbers arrive as float64
		"ratio":  0.5,
		"active": true,
	})

	if got := data.GetString("name"); got != "ada" {
		t.Errorf("GetString = %q", got)
	}
	if got := data.GetInt("count"); got != 3 {
		t.Errorf("GetInt = %d", got)
	}
	if got := data.GetFloat("ratio"); got != 0.5 {
		t.Errorf("GetFloat = %v", got)
	}
	if !data.GetBool("active") {
		t.Error("GetBool should be true")
	}
	if !data.Has("name") || data.Has("missing") {
		t.Error("Has wrong")
	}
	if data.Get("count") != float64(3) {
		t.Errorf("Get = %v", data.Get("count"))
	}

	// Wrong types fall back to zero values.
	if data.GetString("count") != "" || data.GetInt("name") != 0 || data.GetBool("name") {
		t.Error("typed getters should zero out on mismatched types")
	}
}

func TestActionDataBind(t *testing.T) {
	data := newActionData(map[string]any{"title": "buy milk", "done": true})

	var payload struct {
		Title string `json:"title"`
		Done  bool   `json:"done"`
	}
	if err := data.Bind(&payload); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if payload.Title != "buy milk" || !payload.Done {
		t.Errorf("bound payload = %+v", payload)
	}
}

func TestActionDataBindAndValidate(t *testing.T) {
	validate := validator.New()

	type form struct {
		Email string `json:"email" validate:"required,email"`
		Age   int    `json:"age" validate:"gte=0"`
	}

	ok := newActionData(map[string]any{"email": "a@example.com", "age": float64(30)})
	var payload form
	if err := ok.BindAndValidate(&payload, validate); err != nil {
		t.Fatalf("valid payload should pass: %v", err)
	}

	bad := newActionData(map[string]any{"email": "not-an-email", "age": float64(-1)})
	err := bad.BindAndValidate(&payload, validate)
	if err == nil {
		t.Fatal("invalid payload should fail")
	}

	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected FieldErrors, got %T: %v", err, err)
	}
	m := fieldErrs.Map()
	// Field names come back lowercased, matching the wire payload.
	if _, ok := m["email"]; !ok {
		t.Errorf("expected email error, got %v", m)
	}
	if _, ok := m["age"]; !ok {
		t.Errorf("expected age error, got %v", m)
	}
}

func TestActionContextDelegates(t *testing.T) {
	ctx := &ActionContext{
		Action: "save",
		Data:   newActionData(map[string]any{"id": float64(7), "note": "x"}),
	}
	if ctx.Action != "save" {
		t.Errorf("Action = %q", ctx.Action)
	}
	if ctx.GetInt("id") != 7 || ctx.GetString("note") != "x" || !ctx.Has("id") {
		t.Error("delegation wrong")
	}
}

func TestFieldErrors(t *testing.T) {
	errs := FieldErrors{
		{Field: "email", Message: "required"},
		{Field: "age", Message: "too small"},
	}
	if errs.Error() != "email: required; age: too small" {
		t.Errorf("Error() = %q", errs.Error())
	}
	m := errs.Map()
	if m["email"] != "required" || m["age"] != "too small" {
		t.Errorf("Map() = %v", m)
	}
}
