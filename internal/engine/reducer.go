package engine

// Reducer is a named aggregation applied per region per band, or across
// feature columns.
type Reducer struct {
	expr *Expr
}

func Mean() Reducer {
	return Reducer{expr: newExpr("reducer.mean", nil)}
}

// ToList collects values into tuples of tupleSize (one tuple per feature).
// A tupleSize of zero collects plain scalars.
func ToList(tupleSize int) Reducer {
	return Reducer{expr: newExpr("reducer.toList", map[string]any{"tupleSize": tupleSize})}
}

// Repeat applies the reducer once per selector, yielding one output list per
// column instead of one tuple per row.
func (r Reducer) Repeat(count int) Reducer {
	return Reducer{expr: newExpr("reducer.repeat", map[string]any{"count": count}, r.expr)}
}
