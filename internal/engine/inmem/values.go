package inmem

import (
	"github.com/paulmach/orb"
)

// band is a named grid inside an image.
type band struct {
	name string
	grid *Grid
}

// imageVal is an evaluated image: ordered bands plus a property map.
// Properties may hold scalars, strings or another *imageVal (a joined
// secondary image).
type imageVal struct {
	bands []band
	props map[string]any
}

func (iv *imageVal) clone() *imageVal {
	out := &imageVal{
		bands: make([]band, len(iv.bands)),
		props: make(map[string]any, len(iv.props)),
	}
	copy(out.bands, iv.bands)
	for k, v := range iv.props {
		out.props[k] = v
	}
	return out
}

func (iv *imageVal) bandNamed(name string) (band, bool) {
	for _, b := range iv.bands {
		if b.name == name {
			return b, true
		}
	}
	return band{}, false
}

// colVal is an ordered collection whose elements are images or, after a
// mapped reduction, feature collections.
type colVal struct {
	elems []any
}

// geomVal is an evaluated planar geometry.
type geomVal struct {
	poly orb.Polygon
	crs  string
}

type featureVal struct {
	geom  geomVal
	props map[string]any
}

func (fv *featureVal) clone() *featureVal {
	out := &featureVal{geom: fv.geom, props: make(map[string]any, len(fv.props))}
	for k, v := range fv.props {
		out.props[k] = v
	}
	return out
}

type fcVal struct {
	features []*featureVal
}

type reducerVal struct {
	kind      string // "mean" or "toList"
	tupleSize int
	repeat    int
}

type filterVal struct {
	kind       string // "lte" or "equals"
	field      string
	value      float64
	leftField  string
	rightField string
}

type joinVal struct {
	matchKey string
}

type projVal struct {
	crs string
}

// ImageData registers one source image with the backend.
type ImageData struct {
	// Index is the unique scene identifier, exposed as "system:index".
	Index string
	// TimeStart is the acquisition timestamp in POSIX milliseconds,
	// exposed as "system:time_start".
	TimeStart int64
	// Props holds additional image properties such as
	// MEAN_SOLAR_AZIMUTH_ANGLE or CLOUDY_PIXEL_PERCENTAGE.
	Props map[string]any
	// Bands maps band name to raster, iterated in BandOrder.
	Bands     map[string]*Grid
	BandOrder []string
	// Footprint is the image extent in the same CRS as the bands.
	Footprint orb.Bound
}

func (d *ImageData) toVal() *imageVal {
	iv := &imageVal{props: map[string]any{
		"system:index":      d.Index,
		"system:time_start": float64(d.TimeStart),
	}}
	for k, v := range d.Props {
		iv.props[k] = v
	}
	for _, name := range d.BandOrder {
		iv.bands = append(iv.bands, band{name: name, grid: d.Bands[name]})
	}
	return iv
}
