package expr

import (
	"fmt"
	"reflect"
)

// field resolves one path segment against a map, struct, or pointer.
func field(v any, name string) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("field %q of nil value", name)
	}
	if m, ok := v.(map[string]any); ok {
		return m[name], nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("field %q of nil pointer", name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("field %q of map with non-string keys", name)
		}
		mv := rv.MapIndex(reflect.ValueOf(name))
		if !mv.IsValid() {
			return nil, nil
		}
		return mv.Interface(), nil
	case reflect.Struct:
		fv := rv.FieldByName(exportedName(name))
		if !fv.IsValid() {
			return nil, fmt.Errorf("no field %q in %s", name, rv.Type())
		}
		return fv.Interface(), nil
	}
	return nil, fmt.Errorf("field %q of %T", name, v)
}

// exportedName maps a template field name to an exported Go field name, so
// templates can use snake_case or lowercase names against structs.
func exportedName(name string) string {
	if name == "" {
		return name
	}
	b := []byte(name)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// Truthy follows the template notion of truth: nil, false, empty string,
// and numeric zero are false; everything else is true.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Length returns the element or byte count of a value.
func Length(v any) (int, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		return len(v), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len(), nil
	}
	return 0, fmt.Errorf("cannot take length of %T", v)
}

// Equal compares two values, treating all numeric types as comparable.
func Equal(x, y any) bool {
	if xf, xok := toFloat(x); xok {
		if yf, yok := toFloat(y); yok {
			return xf == yf
		}
		return false
	}
	return reflect.DeepEqual(x, y)
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func bothInt(x, y any) (int64, int64, bool) {
	xi, xok := toInt(x)
	yi, yok := toInt(y)
	return xi, yi, xok && yok
}

func toInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	}
	return 0, false
}

func negate(v any) (any, error) {
	if i, ok := toInt(v); ok {
		return -i, nil
	}
	if f, ok := toFloat(v); ok {
		return -f, nil
	}
	return nil, fmt.Errorf("cannot negate %T", v)
}

func applyBinary(op string, x, y any) (any, error) {
	switch op {
	case "==":
		return Equal(x, y), nil
	case "!=":
		return !Equal(x, y), nil
	}

	if op == "+" {
		if xs, ok := x.(string); ok {
			if ys, ok := y.(string); ok {
				return xs + ys, nil
			}
		}
	}

	// Integer arithmetic stays integral; anything else goes through float64.
	if xi, yi, ok := bothInt(x, y); ok {
		switch op {
		case "+":
			return xi + yi, nil
		case "-":
			return xi - yi, nil
		case "*":
			return xi * yi, nil
		case "/":
			if yi == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return xi / yi, nil
		case "<":
			return xi < yi, nil
		case "<=":
			return xi <= yi, nil
		case ">":
			return xi > yi, nil
		case ">=":
			return xi >= yi, nil
		}
	}

	xf, xok := toFloat(x)
	yf, yok := toFloat(y)
	if !xok || !yok {
		if op == "<" || op == "<=" || op == ">" || op == ">=" {
			xs, sxok := x.(string)
			ys, syok := y.(string)
			if sxok && syok {
				switch op {
				case "<":
					return xs < ys, nil
				case "<=":
					return xs <= ys, nil
				case ">":
					return xs > ys, nil
				case ">=":
					return xs >= ys, nil
				}
			}
		}
		return nil, fmt.Errorf("operator %q not defined for %T and %T", op, x, y)
	}
	switch op {
	case "+":
		return xf + yf, nil
	case "-":
		return xf - yf, nil
	case "*":
		return xf * yf, nil
	case "/":
		if yf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return xf / yf, nil
	case "<":
		return xf < yf, nil
	case "<=":
		return xf <= yf, nil
	case ">":
		return xf > yf, nil
	case ">=":
		return xf >= yf, nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}
