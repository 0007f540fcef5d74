// Package export persists materialized imagery: masked scenes as GeoTIFF
// files and PNG quicklooks of the derived masks.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/utils"
	"golang.org/x/sync/errgroup"
)

// SaveGeoTIFF materializes the image clipped to region and writes it under
// data/images. The written file is reopened once to make sure the service
// returned a readable raster.
func SaveGeoTIFF(ctx context.Context, be engine.Backend, img engine.Image, region engine.Geometry, scale float64, name string) (string, error) {
	raw, err := img.ExportGeoTIFF(ctx, be, region, scale)
	if err != nil {
		return "", fmt.Errorf("error requesting image: %v", err)
	}

	imagePath := filepath.Join(properties.RootPath(), "data", "images")
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(imagePath, os.ModePerm); mkErr != nil {
			return "", fmt.Errorf("failed to create directory %s: %v", imagePath, mkErr)
		}
	}

	fileName := filepath.Join(imagePath, name+".tif")
	if err := os.WriteFile(fileName, raw, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %v", err)
	}

	ds, err := godal.Open(fileName, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("%s", msg)
	}))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %v", fileName, err)
	}
	defer ds.Close()

	if len(ds.Bands()) == 0 {
		return "", fmt.Errorf("exported image %s has no bands", fileName)
	}

	return fileName, nil
}

// ReadBandGrid reads one band of a GeoTIFF into rows of values, for
// quicklook rendering.
func ReadBandGrid(tiffPath string, bandIndex int) ([][]float64, error) {
	ds, err := godal.Open(tiffPath, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("%s", msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF file: %v", err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if bandIndex < 0 || bandIndex >= len(bands) {
		return nil, fmt.Errorf("band index %d out of range (%d bands)", bandIndex, len(bands))
	}
	band := bands[bandIndex]

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	data := make([][]float64, height)
	for y := 0; y < height; y++ {
		data[y] = make([]float64, width)
		if err := band.Read(0, y, data[y], width, 1); err != nil {
			return nil, fmt.Errorf("failed to read raster data: %v", err)
		}
	}
	return data, nil
}

// SaveSeries exports one masked scene per date, a few in flight at a time.
// Failures are collected per date instead of aborting the whole series.
func SaveSeries(ctx context.Context, be engine.Backend, images map[time.Time]engine.Image, region engine.Geometry, scale float64, prefix string) (map[time.Time]string, []error) {
	var (
		g, gctx = errgroup.WithContext(ctx)
		mu      sync.Mutex
		paths   = make(map[time.Time]string, len(images))
		errs    []error
	)
	g.SetLimit(4)

	for _, date := range utils.GetSortedKeys(images, true) {
		date := date
		img := images[date]
		g.Go(func() error {
			name := fmt.Sprintf("%s_%s", prefix, date.Format("2006-01-02"))
			path, err := SaveGeoTIFF(gctx, be, img, region, scale, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %v", date.Format("2006-01-02"), err))
			} else {
				paths[date] = path
			}
			return nil
		})
	}
	g.Wait()
	return paths, errs
}
