package engine

import "time"

// ImageCollection is an ordered sequence of images, produced by filtering a
// named source and joining against other collections.
type ImageCollection struct {
	expr *Expr
}

// NewImageCollection references a named imagery source on the compute
// service, e.g. "COPERNICUS/S2_SR_HARMONIZED".
func NewImageCollection(source string) ImageCollection {
	return ImageCollection{expr: newExpr("imageCollection", map[string]any{"source": source})}
}

// FilterDate keeps images acquired in [start, end).
func (ic ImageCollection) FilterDate(start, end time.Time) ImageCollection {
	return ImageCollection{expr: newExpr("filterDate", map[string]any{
		"start": start.UnixMilli(),
		"end":   end.UnixMilli(),
	}, ic.expr)}
}

// FilterBounds keeps images whose footprint intersects the geometry.
func (ic ImageCollection) FilterBounds(g Geometry) ImageCollection {
	return ImageCollection{expr: newExpr("filterBounds", nil, ic.expr, g.expr)}
}

// Filter keeps images matching an attribute predicate.
func (ic ImageCollection) Filter(f Filter) ImageCollection {
	return ImageCollection{expr: newExpr("filter", nil, ic.expr, f.expr)}
}

// Map applies fn to every image. The function is encoded into the graph, so
// the whole mapped collection is still a single deferred computation.
func (ic ImageCollection) Map(fn func(Image) Image) ImageCollection {
	arg := nextArgName("img")
	body := fn(Image{expr: argRef(arg)})
	return ImageCollection{expr: newExpr("map", nil, ic.expr, fnExpr(arg, body.expr))}
}

// MapToFeatures applies a per-image reduction, producing a collection whose
// elements are FeatureCollections.
func (ic ImageCollection) MapToFeatures(fn func(Image) FeatureCollection) MappedCollection {
	arg := nextArgName("img")
	body := fn(Image{expr: argRef(arg)})
	return MappedCollection{expr: newExpr("map", nil, ic.expr, fnExpr(arg, body.expr))}
}

// First is the first image of the collection. Resolving it against an empty
// collection is a remote evaluation error, never a default value.
func (ic ImageCollection) First() Image {
	return Image{expr: newExpr("first", nil, ic.expr)}
}

func (ic ImageCollection) Size() Number {
	return Number{expr: newExpr("size", nil, ic.expr)}
}

// AggregateArray collects the value of a property from every image, in
// collection order.
func (ic ImageCollection) AggregateArray(property string) List {
	return List{expr: newExpr("aggregateArray", map[string]any{"property": property}, ic.expr)}
}

// MappedCollection is the result of mapping a per-image reduction over an
// image collection: an ordered sequence of per-image FeatureCollections.
type MappedCollection struct {
	expr *Expr
}

// First is the FeatureCollection produced from the first image; used to
// infer property selectors before the main extraction round trip.
func (mc MappedCollection) First() FeatureCollection {
	return FeatureCollection{expr: newExpr("first", nil, mc.expr)}
}

// Flatten concatenates the per-image FeatureCollections into one, preserving
// image order then region order.
func (mc MappedCollection) Flatten() FeatureCollection {
	return FeatureCollection{expr: newExpr("flatten", nil, mc.expr)}
}
