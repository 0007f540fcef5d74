package engine

import "context"

// Number is a lazily evaluated scalar.
type Number struct {
	expr *Expr
}

func Num(v float64) Number {
	return Number{expr: newExpr("number", map[string]any{"value": v})}
}

func (n Number) Subtract(o Number) Number {
	return Number{expr: newExpr("number.subtract", nil, n.expr, o.expr)}
}

// GetInfo materializes the scalar with one blocking round trip.
func (n Number) GetInfo(ctx context.Context, be Backend) (float64, error) {
	v, err := be.Resolve(ctx, n.expr)
	if err != nil {
		return 0, err
	}
	return toFloat("number", v)
}

// Prop lets a lazy scalar be attached to a Feature as a property value.
func (n Number) Prop() Prop {
	return Prop{expr: n.expr}
}

// Prop is an untyped lazy property value (number or string), usable with
// Feature.Set.
type Prop struct {
	expr *Expr
}

// StringList is a lazily evaluated list of strings, such as band or property
// names.
type StringList struct {
	expr *Expr
}

func (l StringList) GetInfo(ctx context.Context, be Backend) ([]string, error) {
	v, err := be.Resolve(ctx, l.expr)
	if err != nil {
		return nil, err
	}
	return toStringList("stringList", v)
}

// List is a lazily evaluated list of arbitrary values.
type List struct {
	expr *Expr
}

func (l List) GetInfo(ctx context.Context, be Backend) ([]any, error) {
	v, err := be.Resolve(ctx, l.expr)
	if err != nil {
		return nil, err
	}
	return toList("list", v)
}

// Dictionary is a lazily evaluated property map.
type Dictionary struct {
	expr *Expr
}

func (d Dictionary) Get(key string) List {
	return List{expr: newExpr("dict.get", map[string]any{"key": key}, d.expr)}
}

func (d Dictionary) GetInfo(ctx context.Context, be Backend) (map[string]any, error) {
	v, err := be.Resolve(ctx, d.expr)
	if err != nil {
		return nil, err
	}
	return toDict("dictionary", v)
}
