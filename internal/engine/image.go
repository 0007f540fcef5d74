package engine

import "context"

// Image is an opaque handle to a raster with named bands and a property map.
// Every transformation returns a new Image; derivation stages only ever add
// bands.
type Image struct {
	expr *Expr
}

// Select subsets bands by name. A selector may be a regular expression such
// as "B.*" matching all reflectance bands.
func (img Image) Select(bands ...string) Image {
	sel := make([]any, 0, len(bands))
	for _, b := range bands {
		sel = append(sel, b)
	}
	return Image{expr: newExpr("image.select", map[string]any{"bands": sel}, img.expr)}
}

// SelectAt subsets a single band by positional index.
func (img Image) SelectAt(index int) Image {
	return Image{expr: newExpr("image.selectAt", map[string]any{"index": index}, img.expr)}
}

// Rename renames the bands in order.
func (img Image) Rename(names ...string) Image {
	nn := make([]any, 0, len(names))
	for _, n := range names {
		nn = append(nn, n)
	}
	return Image{expr: newExpr("image.rename", map[string]any{"names": nn}, img.expr)}
}

// Gt thresholds every band: 1 where pixel > value, else 0. The comparison is
// strictly greater-than.
func (img Image) Gt(value float64) Image {
	return Image{expr: newExpr("image.gt", map[string]any{"value": value}, img.expr)}
}

func (img Image) Lt(value float64) Image {
	return Image{expr: newExpr("image.lt", map[string]any{"value": value}, img.expr)}
}

func (img Image) Neq(value float64) Image {
	return Image{expr: newExpr("image.neq", map[string]any{"value": value}, img.expr)}
}

func (img Image) Add(o Image) Image {
	return Image{expr: newExpr("image.add", nil, img.expr, o.expr)}
}

func (img Image) Multiply(o Image) Image {
	return Image{expr: newExpr("image.multiply", nil, img.expr, o.expr)}
}

// Not inverts a boolean band: 1 where the pixel is 0, else 0.
func (img Image) Not() Image {
	return Image{expr: newExpr("image.not", nil, img.expr)}
}

// NormalizedDifference computes (b1 - b2) / (b1 + b2) as a single band named
// "nd".
func (img Image) NormalizedDifference(b1, b2 string) Image {
	return Image{expr: newExpr("image.normalizedDifference", map[string]any{"band1": b1, "band2": b2}, img.expr)}
}

// AddBands appends the bands of the given images, never removing existing
// ones.
func (img Image) AddBands(others ...Image) Image {
	in := make([]*Expr, 0, len(others)+1)
	in = append(in, img.expr)
	for _, o := range others {
		in = append(in, o.expr)
	}
	return Image{expr: newExpr("image.addBands", nil, in...)}
}

// DirectionalDistanceTransform computes, for each pixel, the distance to the
// nearest source pixel looking back along the given azimuth (degrees,
// projected frame), up to maxDistance pixels. The output "distance" band is
// masked where no source pixel is found.
func (img Image) DirectionalDistanceTransform(azimuth Number, maxDistance float64) Image {
	return Image{expr: newExpr("image.directionalDistanceTransform",
		map[string]any{"maxDistance": maxDistance}, img.expr, azimuth.expr)}
}

// FocalMin erodes each band with a circular kernel of the given pixel radius.
func (img Image) FocalMin(radius float64) Image {
	return Image{expr: newExpr("image.focalMin", map[string]any{"radius": radius}, img.expr)}
}

// FocalMax dilates each band with a circular kernel of the given pixel radius.
func (img Image) FocalMax(radius float64) Image {
	return Image{expr: newExpr("image.focalMax", map[string]any{"radius": radius}, img.expr)}
}

// Projection describes the CRS a band is defined in.
type Projection struct {
	expr *Expr
}

// Projection returns the projection of the image's first band.
func (img Image) Projection() Projection {
	return Projection{expr: newExpr("image.projection", nil, img.expr)}
}

// Reproject resamples every band to the target projection at the given scale
// in metres. Reprojecting at an image's own CRS and scale is a no-op on
// pixel values.
func (img Image) Reproject(proj Projection, scale float64) Image {
	return Image{expr: newExpr("image.reproject", map[string]any{"scale": scale}, img.expr, proj.expr)}
}

// Mask returns the validity mask of the image as 0/1 bands.
func (img Image) Mask() Image {
	return Image{expr: newExpr("image.mask", nil, img.expr)}
}

// UpdateMask marks pixels invalid wherever the mask image is 0 or itself
// invalid.
func (img Image) UpdateMask(mask Image) Image {
	return Image{expr: newExpr("image.updateMask", nil, img.expr, mask.expr)}
}

// GetImage reads an image-valued property, such as a joined secondary image
// attached by a saveFirst join.
func (img Image) GetImage(name string) Image {
	return Image{expr: newExpr("image.get", map[string]any{"name": name}, img.expr)}
}

// GetNumber reads a numeric image property, such as the mean solar azimuth
// angle.
func (img Image) GetNumber(name string) Number {
	return Number{expr: newExpr("image.get", map[string]any{"name": name}, img.expr)}
}

// Prop reads an arbitrary image property as an attachable value.
func (img Image) Prop(name string) Prop {
	return Prop{expr: newExpr("image.get", map[string]any{"name": name}, img.expr)}
}

// Date is the acquisition timestamp of an image.
type Date struct {
	expr *Expr
}

func (img Image) Date() Date {
	return Date{expr: newExpr("image.date", nil, img.expr)}
}

// Millis is the timestamp in POSIX milliseconds.
func (d Date) Millis() Number {
	return Number{expr: newExpr("date.millis", nil, d.expr)}
}

// BandNames lists the image's band names in order.
func (img Image) BandNames() StringList {
	return StringList{expr: newExpr("image.bandNames", nil, img.expr)}
}

// ReduceRegions applies the reducer over every region geometry against the
// image's bands at the given CRS and scale, returning one output feature per
// region.
func (img Image) ReduceRegions(regions FeatureCollection, r Reducer, crs string, scale float64) FeatureCollection {
	return FeatureCollection{expr: newExpr("image.reduceRegions",
		map[string]any{"crs": crs, "scale": scale}, img.expr, regions.expr, r.expr)}
}

// ExportGeoTIFF materializes the image clipped to region at the given scale
// as GeoTIFF bytes. This is a blocking round trip.
func (img Image) ExportGeoTIFF(ctx context.Context, be Backend, region Geometry, scale float64) ([]byte, error) {
	if scale <= 0 {
		return nil, &ConfigError{Op: "image.export", Reason: "scale must be positive"}
	}
	v, err := be.Resolve(ctx, newExpr("image.export",
		map[string]any{"format": "GTiff", "scale": scale}, img.expr, region.expr))
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, &DataShapeError{Op: "image.export", Want: "bytes", Got: "other"}
	}
	return b, nil
}
