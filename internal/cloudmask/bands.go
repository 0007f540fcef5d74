package cloudmask

import (
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
)

// AddCloudBands appends the raw cloud probability band and a boolean
// "clouds" band. A pixel is cloud when its probability is strictly greater
// than the configured threshold.
func AddCloudBands(img engine.Image, cfg Config) engine.Image {
	cldPrb := img.GetImage(cloudProbProperty).Select("probability")

	isCloud := cldPrb.Gt(cfg.CloudProbThreshold).Rename("clouds")

	return img.AddBands(cldPrb, isCloud)
}

// AddShadowBands appends dark_pixels, cloud_transform and shadows bands.
// It expects the "clouds" band added by AddCloudBands.
func AddShadowBands(img engine.Image, cfg Config) engine.Image {
	var notWater engine.Image
	if cfg.UseSCL {
		// L2A: not-water straight from the scene classification band.
		notWater = img.Select("SCL").Neq(6)
	} else {
		// L1C has no SCL band; fall back to a simple detection threshold.
		notWater = img.NormalizedDifference("B4", "B2").Lt(0.2)
	}

	// Dark NIR pixels that are not water are candidate shadow pixels.
	darkPixels := img.Select("B8").Lt(cfg.NIRDarkThreshold * reflectanceScale).
		Multiply(notWater).Rename("dark_pixels")

	// Direction to project shadows from clouds; assumes a UTM-like
	// projection.
	shadowAzimuth := engine.Num(90).Subtract(img.GetNumber("MEAN_SOLAR_AZIMUTH_ANGLE"))

	cldProj := img.Select("clouds").
		DirectionalDistanceTransform(shadowAzimuth, cfg.ProjDistanceKm*10).
		Reproject(img.SelectAt(0).Projection(), cfg.ShadowProjScale).
		Select("distance").
		Mask().
		Rename("cloud_transform")

	shadows := cldProj.Multiply(darkPixels).Rename("shadows")

	return img.AddBands(darkPixels, cldProj, shadows)
}
