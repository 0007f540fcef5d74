package engine

// Feature is a geometry plus a property map.
type Feature struct {
	expr *Expr
}

// NewFeature builds a feature from a geometry and literal properties.
func NewFeature(g Geometry, props map[string]any) Feature {
	return Feature{expr: newExpr("feature", map[string]any{"properties": props}, g.expr)}
}

// Set returns a copy of the feature with a (possibly lazy) property attached.
func (f Feature) Set(name string, value Prop) Feature {
	return Feature{expr: newExpr("feature.set", map[string]any{"name": name}, f.expr, value.expr)}
}

// SetLiteral attaches a concrete property value.
func (f Feature) SetLiteral(name string, value any) Feature {
	return Feature{expr: newExpr("feature.set", map[string]any{"name": name},
		f.expr, newExpr("literal", map[string]any{"value": value}))}
}

// PropertyNames lists the feature's property names.
func (f Feature) PropertyNames() StringList {
	return StringList{expr: newExpr("feature.propertyNames", nil, f.expr)}
}

// FeatureCollection is an ordered sequence of features.
type FeatureCollection struct {
	expr *Expr
}

func NewFeatureCollection(features ...Feature) FeatureCollection {
	in := make([]*Expr, 0, len(features))
	for _, f := range features {
		in = append(in, f.expr)
	}
	return FeatureCollection{expr: newExpr("featureCollection", nil, in...)}
}

// Map applies fn to every feature.
func (fc FeatureCollection) Map(fn func(Feature) Feature) FeatureCollection {
	arg := nextArgName("ft")
	body := fn(Feature{expr: argRef(arg)})
	return FeatureCollection{expr: newExpr("fc.map", nil, fc.expr, fnExpr(arg, body.expr))}
}

// First is the first feature. Resolving it against an empty collection is a
// remote evaluation error.
func (fc FeatureCollection) First() Feature {
	return Feature{expr: newExpr("first", nil, fc.expr)}
}

func (fc FeatureCollection) Size() Number {
	return Number{expr: newExpr("size", nil, fc.expr)}
}

// ReduceColumns aggregates the selected properties of every feature. With a
// ToList reducer of matching tuple size the result dictionary's "list" entry
// holds one tuple per feature, in collection order.
func (fc FeatureCollection) ReduceColumns(r Reducer, selectors []string) (Dictionary, error) {
	if len(selectors) == 0 {
		return Dictionary{}, &ConfigError{Op: "fc.reduceColumns", Reason: "no property selectors given"}
	}
	sel := make([]any, 0, len(selectors))
	for _, s := range selectors {
		if s == "" {
			return Dictionary{}, &ConfigError{Op: "fc.reduceColumns", Reason: "empty property selector"}
		}
		sel = append(sel, s)
	}
	return Dictionary{expr: newExpr("fc.reduceColumns", map[string]any{"selectors": sel}, fc.expr, r.expr)}, nil
}
