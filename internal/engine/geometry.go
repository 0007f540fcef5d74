package engine

import (
	"github.com/paulmach/orb"
)

// Geometry is a polygon or rectangle in a projected CRS, used to filter
// collections spatially and to define reduction regions. Geometries are
// always planar (non-geodesic) since the study regions live in a projected
// coordinate system.
type Geometry struct {
	expr *Expr
}

// Polygon builds a geometry from the exterior ring of an orb polygon.
func Polygon(p orb.Polygon, crs string) (Geometry, error) {
	if len(p) == 0 || len(p[0]) < 3 {
		return Geometry{}, &ConfigError{Op: "geometry.polygon", Reason: "polygon needs an exterior ring with at least 3 points"}
	}
	if crs == "" {
		return Geometry{}, &ConfigError{Op: "geometry.polygon", Reason: "missing CRS"}
	}
	ring := make([]any, 0, len(p[0]))
	for _, pt := range p[0] {
		ring = append(ring, []any{pt[0], pt[1]})
	}
	return Geometry{expr: newExpr("geometry.polygon", map[string]any{
		"coordinates": []any{ring},
		"crs":         crs,
		"geodesic":    false,
	})}, nil
}

// Rectangle builds an even-odd rectangle geometry from corner coordinates.
func Rectangle(xmin, ymin, xmax, ymax float64, crs string) (Geometry, error) {
	if xmax <= xmin || ymax <= ymin {
		return Geometry{}, &ConfigError{Op: "geometry.rectangle", Reason: "empty extent"}
	}
	if crs == "" {
		return Geometry{}, &ConfigError{Op: "geometry.rectangle", Reason: "missing CRS"}
	}
	return Geometry{expr: newExpr("geometry.rectangle", map[string]any{
		"coordinates": []any{xmin, ymin, xmax, ymax},
		"crs":         crs,
		"geodesic":    false,
		"evenOdd":     true,
	})}, nil
}
