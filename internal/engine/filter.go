package engine

// Filter is an attribute predicate applied to collections or used as a join
// condition.
type Filter struct {
	expr *Expr
}

// Lte keeps elements whose named property is <= value.
func Lte(field string, value float64) Filter {
	return Filter{expr: newExpr("filter.lte", map[string]any{"field": field, "value": value})}
}

// FieldEquals is a join condition matching equality of a field on the left
// collection with a field on the right collection.
func FieldEquals(leftField, rightField string) Filter {
	return Filter{expr: newExpr("filter.equals", map[string]any{
		"leftField":  leftField,
		"rightField": rightField,
	})}
}

// Join pairs two collections on a condition.
type Join struct {
	expr *Expr
}

// SaveFirst is an inner equality join that attaches the first matching
// secondary element to each primary element under matchKey and drops
// primaries without a match. The first match is the first occurrence in the
// secondary collection's iteration order.
func SaveFirst(matchKey string) Join {
	return Join{expr: newExpr("join.saveFirst", map[string]any{"matchKey": matchKey})}
}

// Apply runs the join. Output ordering preserves the primary collection's
// ordering.
func (j Join) Apply(primary, secondary ImageCollection, condition Filter) ImageCollection {
	return ImageCollection{expr: newExpr("join.apply", nil, j.expr, primary.expr, secondary.expr, condition.expr)}
}
