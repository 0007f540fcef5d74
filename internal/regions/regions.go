// Package regions loads study region polygons from GeoJSON files and adapts
// them to the engine's geometry representation.
package regions

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Load reads a GeoJSON FeatureCollection from data/geojsons under the root
// path.
func Load(name string) (*geojson.FeatureCollection, error) {
	filePath := filepath.Join(properties.RootPath(), "data", "geojsons", name+".geojson")
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", filePath, err)
	}
	return fc, nil
}

// PolygonForPlot returns the polygon of the feature whose plot_id property
// matches.
func PolygonForPlot(fc *geojson.FeatureCollection, plot string) (orb.Polygon, error) {
	for _, f := range fc.Features {
		if f.Properties.MustString("plot_id", "") != plot {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			return g, nil
		case orb.MultiPolygon:
			if len(g) > 0 {
				return g[0], nil
			}
		}
		return nil, fmt.Errorf("plot %s has a non-polygon geometry", plot)
	}
	return nil, fmt.Errorf("geometry not found for plot %s", plot)
}

// PlotIDs lists the plot_id of every feature carrying one.
func PlotIDs(fc *geojson.FeatureCollection) []string {
	var ids []string
	for _, f := range fc.Features {
		if id := f.Properties.MustString("plot_id", ""); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ToEngine converts the regions to an engine FeatureCollection in the given
// CRS, keeping plot_id on each feature so result rows can be traced back.
func ToEngine(fc *geojson.FeatureCollection, crs string) (engine.FeatureCollection, error) {
	var features []engine.Feature
	for i, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			return engine.FeatureCollection{}, &engine.ConfigError{
				Op:     "regions.toEngine",
				Reason: fmt.Sprintf("feature %d is not a polygon", i),
			}
		}
		g, err := engine.Polygon(poly, crs)
		if err != nil {
			return engine.FeatureCollection{}, err
		}
		props := map[string]any{}
		if id := f.Properties.MustString("plot_id", ""); id != "" {
			props["plot_id"] = id
		}
		features = append(features, engine.NewFeature(g, props))
	}
	if len(features) == 0 {
		return engine.FeatureCollection{}, &engine.ConfigError{Op: "regions.toEngine", Reason: "no region features"}
	}
	return engine.NewFeatureCollection(features...), nil
}

// Bounds returns an engine rectangle covering every feature.
func Bounds(fc *geojson.FeatureCollection, crs string) (engine.Geometry, error) {
	if len(fc.Features) == 0 {
		return engine.Geometry{}, &engine.ConfigError{Op: "regions.bounds", Reason: "no region features"}
	}
	bound := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		bound = bound.Union(f.Geometry.Bound())
	}
	return engine.Rectangle(bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1], crs)
}

// MakeROI builds a rectangular region of interest in the study projection.
func MakeROI(xmin, ymin, xmax, ymax float64) (engine.Geometry, error) {
	return engine.Rectangle(xmin, ymin, xmax, ymax, properties.DefaultCRS)
}

// Centroid averages the exterior ring vertices, matching how plot centers
// were computed for the historical runs.
func Centroid(p orb.Polygon) (lat, lon float64) {
	if len(p) == 0 || len(p[0]) == 0 {
		return 0, 0
	}
	for _, pt := range p[0] {
		lon += pt[0]
		lat += pt[1]
	}
	n := float64(len(p[0]))
	return lat / n, lon / n
}
