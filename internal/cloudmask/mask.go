package cloudmask

import (
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
)

// AddCloudShadowMask runs the full derivation on a joined image and appends
// the final boolean "cloudmask" band: 1 = occluded, 0 = clear.
func AddCloudShadowMask(img engine.Image, cfg Config) engine.Image {
	imgCloud := AddCloudBands(img, cfg)

	imgCloudShadow := AddShadowBands(imgCloud, cfg)

	// Union of clouds and shadows.
	isCldShdw := imgCloudShadow.Select("clouds").
		Add(imgCloudShadow.Select("shadows")).
		Gt(0)

	// Erode away small patches, then dilate by the buffer distance so cloud
	// edges and partially masked pixels are caught too.
	isCldShdw = isCldShdw.
		FocalMin(2).
		FocalMax(cfg.BufferMeters * 2 / cfg.MaskScale).
		Reproject(img.SelectAt(0).Projection(), cfg.MaskScale).
		Rename("cloudmask")

	return imgCloudShadow.AddBands(isCldShdw)
}

// ApplyCloudShadowMask inverts the cloudmask band and applies it to the
// reflectance bands, leaving only clear pixels valid. Only bands matching
// "B.*" survive.
func ApplyCloudShadowMask(img engine.Image) engine.Image {
	notCldShdw := img.Select("cloudmask").Not()

	return img.Select("B.*").UpdateMask(notCldShdw)
}

// MaskCollection maps the full mask derivation and application over a joined
// collection, yielding cleaned reflectance images. The whole mapped
// collection stays one deferred computation.
func MaskCollection(col engine.ImageCollection, cfg Config) engine.ImageCollection {
	return col.Map(func(img engine.Image) engine.Image {
		return ApplyCloudShadowMask(AddCloudShadowMask(img, cfg))
	})
}
