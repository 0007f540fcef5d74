// Package cloudmask derives per-image cloud and shadow masks for Sentinel-2
// optical imagery by fusing the s2cloudless probability layer with a dark
// pixel heuristic, a sun-angle shadow projection and morphological cleanup.
package cloudmask

import "github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"

const (
	// cloudProbProperty is the image property the joined probability image
	// is attached under.
	cloudProbProperty = "s2cloudless"

	// reflectanceScale converts surface reflectance thresholds to the
	// sensor's integer encoding.
	reflectanceScale = 1e4
)

// Config carries the pipeline parameters. Defaults follow the values used
// for the Greenland retention time series; every field can be overridden per
// call.
type Config struct {
	// PrimarySource is the optical reflectance collection.
	PrimarySource string
	// ProbabilitySource is the matching cloud probability collection.
	ProbabilitySource string

	// CloudFilter drops scenes whose CLOUDY_PIXEL_PERCENTAGE exceeds this
	// value, in percent.
	CloudFilter float64
	// CloudProbThreshold classifies a pixel as cloud when the probability
	// band is strictly greater than this value, in percent.
	CloudProbThreshold float64
	// NIRDarkThreshold marks dark pixels: NIR reflectance below this value.
	NIRDarkThreshold float64
	// ProjDistanceKm is how far shadows are projected from clouds.
	ProjDistanceKm float64
	// BufferMeters dilates the final mask to catch cloud edges.
	BufferMeters float64

	// UseSCL picks the not-water test: the scene classification band for
	// L2A collections, a B4/B2 normalized difference for L1C.
	UseSCL bool

	// CRS is the working projection for reductions.
	CRS string
	// ShadowProjScale is the resolution the shadow projection runs at, in
	// metres.
	ShadowProjScale float64
	// MaskScale is the resolution of the final mask and of reductions, in
	// metres. 20 m is enough since clouds don't require 10 m precision.
	MaskScale float64
}

func DefaultConfig() Config {
	return Config{
		PrimarySource:      "COPERNICUS/S2_SR_HARMONIZED",
		ProbabilitySource:  "COPERNICUS/S2_CLOUD_PROBABILITY",
		CloudFilter:        60,
		CloudProbThreshold: 40,
		NIRDarkThreshold:   0.15,
		ProjDistanceKm:     1,
		BufferMeters:       100,
		UseSCL:             true,
		CRS:                properties.DefaultCRS,
		ShadowProjScale:    100,
		MaskScale:          20,
	}
}
