// Package timeseries maps per-image region reductions over an image
// collection and materializes the result as tabular rows, one per region per
// image.
package timeseries

import (
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"
)

// Options parameterizes the per-image reduction.
type Options struct {
	// AddDate attaches each image's acquisition time as a "millis" property
	// to every output feature.
	AddDate bool
	// Properties lists image properties to copy onto each result row.
	// Bands being reduced don't belong here.
	Properties []string
	// CRS for the reduction; defaults to the study projection.
	CRS string
	// Scale in metres; defaults to 20.
	Scale float64
}

func (o Options) withDefaults() Options {
	if o.CRS == "" {
		o.CRS = properties.DefaultCRS
	}
	if o.Scale == 0 {
		o.Scale = 20
	}
	return o
}

// ReduceRegions builds the function mapped over an image collection to
// extract region statistics. All features reduced from one image carry the
// identical millis timestamp.
func ReduceRegions(regions engine.FeatureCollection, reducer engine.Reducer, opts Options) func(engine.Image) engine.FeatureCollection {
	opts = opts.withDefaults()

	return func(img engine.Image) engine.FeatureCollection {
		d := img.ReduceRegions(regions, reducer, opts.CRS, opts.Scale)

		if len(opts.Properties) > 0 {
			d = d.Map(func(f engine.Feature) engine.Feature {
				for _, kw := range opts.Properties {
					f = f.Set(kw, img.Prop(kw))
				}
				return f
			})
		}

		if opts.AddDate {
			d = d.Map(func(f engine.Feature) engine.Feature {
				return f.Set("millis", img.Date().Millis().Prop())
			})
		}

		return d
	}
}
