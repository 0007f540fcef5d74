package engine

import "fmt"

// Materialized values arrive as untyped JSON-ish data: float64, string, bool,
// []any or map[string]any. The helpers below coerce them with a DataShapeError
// on mismatch.

func toFloat(op string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, &DataShapeError{Op: op, Want: "number", Got: fmt.Sprintf("%T", v)}
}

func toList(op string, v any) ([]any, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, &DataShapeError{Op: op, Want: "list", Got: fmt.Sprintf("%T", v)}
	}
	return l, nil
}

func toStringList(op string, v any) ([]string, error) {
	l, err := toList(op, v)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(l))
	for _, e := range l {
		s, ok := e.(string)
		if !ok {
			return nil, &DataShapeError{Op: op, Want: "list of strings", Got: fmt.Sprintf("list containing %T", e)}
		}
		out = append(out, s)
	}
	return out, nil
}

func toDict(op string, v any) (map[string]any, error) {
	d, ok := v.(map[string]any)
	if !ok {
		return nil, &DataShapeError{Op: op, Want: "dictionary", Got: fmt.Sprintf("%T", v)}
	}
	return d, nil
}
