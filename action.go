package livemarkup

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// message is an action message from the client.
type message struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

// ActionData wraps the payload of one client action with binding and
// validation helpers.
type ActionData struct {
	raw   map[string]any
	bytes []byte // cached JSON for binding
}

func newActionData(data map[string]any) *ActionData {
	return &ActionData{raw: data}
}

// Bind unmarshals the data into a struct.
func (a *ActionData) Bind(v any) error {
	if a.bytes == nil {
		var err error
		a.bytes, err = json.Marshal(a.raw)
		if err != nil {
			return fmt.Errorf("marshal action data: %w", err)
		}
	}
	return json.Unmarshal(a.bytes, v)
}

// BindAndValidate binds data to a struct and validates it in one step.
func (a *ActionData) BindAndValidate(v any, validate *validator.Validate) error {
	if err := a.Bind(v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return validationToFieldErrors(err)
	}
	return nil
}

// Raw returns the underlying map for direct access.
func (a *ActionData) Raw() map[string]any {
	return a.raw
}

// GetString extracts a string value.
func (a *ActionData) GetString(key string) string {
	if v, ok := a.raw[key].(string); ok {
		return v
	}
	return ""
}

// GetInt extracts an int value (JSON numbers arrive as float64).
func (a *ActionData) GetInt(key string) int {
	if v, ok := a.raw[key].(float64); ok {
		return int(v)
	}
	return 0
}

// GetFloat extracts a float64 value.
func (a *ActionData) GetFloat(key string) float64 {
	if v, ok := a.raw[key].(float64); ok {
		return v
	}
	return 0
}

// GetBool extracts a bool value.
func (a *ActionData) GetBool(key string) bool {
	if v, ok := a.raw[key].(bool); ok {
		return v
	}
	return false
}

// Has checks whether a key exists.
func (a *ActionData) Has(key string) bool {
	_, exists := a.raw[key]
	return exists
}

// Get returns the raw value for a key.
func (a *ActionData) Get(key string) any {
	return a.raw[key]
}

// ActionContext carries one action into a Store's Change method.
type ActionContext struct {
	Action string
	Data   *ActionData
}

// Bind delegates to Data.Bind.
func (c *ActionContext) Bind(v any) error {
	return c.Data.Bind(v)
}

// BindAndValidate delegates to Data.BindAndValidate.
func (c *ActionContext) BindAndValidate(v any, validate *validator.Validate) error {
	return c.Data.BindAndValidate(v, validate)
}

// GetString delegates to Data.GetString.
func (c *ActionContext) GetString(key string) string {
	return c.Data.GetString(key)
}

// GetInt delegates to Data.GetInt.
func (c *ActionContext) GetInt(key string) int {
	return c.Data.GetInt(key)
}

// GetBool delegates to Data.GetBool.
func (c *ActionContext) GetBool(key string) bool {
	return c.Data.GetBool(key)
}

// Has delegates to Data.Has.
func (c *ActionContext) Has(key string) bool {
	return c.Data.Has(key)
}

// FieldError is a validation error for one field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors aggregates validation failures across fields.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// Map returns field name to message, for rendering next to inputs.
func (e FieldErrors) Map() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		out[fe.Field] = fe.Message
	}
	return out
}

// validationToFieldErrors converts validator output into FieldErrors with
// lowercased field names matching the wire payload.
func validationToFieldErrors(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := make(FieldErrors, 0, len(verrs))
	for _, ve := range verrs {
		field := ve.Field()
		if field != "" {
			field = strings.ToLower(field[:1]) + field[1:]
		}
		out = append(out, FieldError{
			Field:   field,
			Message: fmt.Sprintf("failed %q validation", ve.Tag()),
		})
	}
	return out
}
