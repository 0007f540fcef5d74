package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"
)

// RenderQuicklook draws a mask grid as a PNG under data/result: gray where
// clear, tinted where the mask is set. Returns the written path.
func RenderQuicklook(mask [][]float64, outputName string) (string, error) {
	if len(mask) == 0 || len(mask[0]) == 0 {
		return "", fmt.Errorf("empty mask grid")
	}
	height := len(mask)
	width := len(mask[0])

	resultPath := filepath.Join(properties.RootPath(), "data", "result")
	if _, err := os.Stat(resultPath); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(resultPath, os.ModePerm); mkErr != nil {
			return "", fmt.Errorf("failed to create directory %s: %v", resultPath, mkErr)
		}
	}
	outputPath := filepath.Join(resultPath, outputName+".png")

	tint := properties.MaskColorMap["cloudmask"]

	dc := gg.NewContext(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y][x] != 0 {
				dc.SetRGB(float64(tint.R)/255, float64(tint.G)/255, float64(tint.B)/255)
			} else {
				dc.SetRGB(0.35, 0.35, 0.35)
			}
			dc.SetPixel(x, y)
		}
	}

	if err := dc.SavePNG(outputPath); err != nil {
		return "", fmt.Errorf("failed to save image: %v", err)
	}
	return outputPath, nil
}

// QuicklookFromGeoTIFF renders the first band of a written GeoTIFF.
func QuicklookFromGeoTIFF(tiffPath, outputName string) (string, error) {
	grid, err := ReadBandGrid(tiffPath, 0)
	if err != nil {
		return "", err
	}
	return RenderQuicklook(grid, outputName)
}
