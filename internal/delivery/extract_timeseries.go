package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/cache"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/cloudmask"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/notification"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/regions"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/timeseries"
	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
)

// ExtractRequest describes one time-series extraction run.
type ExtractRequest struct {
	// RegionFile is the GeoJSON name under data/geojsons, without extension.
	RegionFile string
	Start      time.Time
	End        time.Time
	// Selectors are the result columns; nil infers them from the first
	// realized result.
	Selectors []string
	// Properties are image properties copied onto every row.
	Properties []string
	// OutputName is the CSV name under data/result, without extension.
	OutputName string
	// PerImage issues one bounded round trip per image instead of a single
	// bulk graph. Slower, but failures are handled per item.
	PerImage bool
}

// TimeseriesRow is the standard extraction row: masked mean per region per
// acquisition.
type TimeseriesRow struct {
	Timestamp string  `csv:"timestamp"`
	Millis    int64   `csv:"millis"`
	Plot      string  `csv:"plot_id"`
	Mean      float64 `csv:"mean"`
}

// ExtractTimeseries runs the whole pipeline: joined cloud-probability
// collection, per-image cloud/shadow masking, region reduction and CSV
// serialization. Returns the written CSV path.
func ExtractTimeseries(ctx context.Context, be engine.Backend, req ExtractRequest, cfg cloudmask.Config) (string, error) {
	fmt.Printf("Extracting time series for %s from %s to %s\n",
		req.RegionFile, req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))

	fc, err := regions.Load(req.RegionFile)
	if err != nil {
		return "", fmt.Errorf("failed to load regions: %v", err)
	}
	regionFC, err := regions.ToEngine(fc, cfg.CRS)
	if err != nil {
		return "", err
	}
	bounds, err := regions.Bounds(fc, cfg.CRS)
	if err != nil {
		return "", err
	}

	col := cloudmask.Collection(bounds, req.Start, req.End, cfg)
	masked := cloudmask.MaskCollection(col, cfg)
	reduceFn := timeseries.ReduceRegions(regionFC, engine.Mean(), timeseries.Options{
		AddDate:    true,
		Properties: req.Properties,
		CRS:        cfg.CRS,
		Scale:      cfg.MaskScale,
	})

	tableCache := cache.NewFileCache[*timeseries.Table]("timeseries_cache", 0)
	cacheKey := tableCache.GenerateKey(req.RegionFile, req.Start.Unix(), req.End.Unix(),
		strings.Join(req.Selectors, ","), strings.Join(req.Properties, ","),
		cfg.CloudFilter, cfg.CloudProbThreshold, cfg.NIRDarkThreshold,
		cfg.ProjDistanceKm, cfg.BufferMeters, cfg.UseSCL, req.PerImage)

	table, hit := tableCache.Get(cacheKey)
	if !hit {
		if req.PerImage {
			table, err = extractPerImage(ctx, be, masked, reduceFn, req.Selectors)
		} else {
			table, err = timeseries.Extract(ctx, be, masked, reduceFn, req.Selectors)
		}
		if err != nil {
			notification.SendDiscordErrorNotification(fmt.Sprintf("Time series extraction failed for %s: %s", req.RegionFile, err.Error()))
			return "", err
		}

		imageCount, err := col.Size().GetInfo(ctx, be)
		if err != nil {
			return "", fmt.Errorf("failed to count joined images: %v", err)
		}
		if err := table.ValidateShape(len(fc.Features), int(imageCount)); err != nil {
			if req.PerImage {
				// Per-item failures legitimately thin the result.
				notification.SendDiscordWarnNotification(fmt.Sprintf("Time series for %s is incomplete: %s", req.RegionFile, err.Error()))
			} else {
				notification.SendDiscordErrorNotification(fmt.Sprintf("Time series extraction failed for %s: %s", req.RegionFile, err.Error()))
				return "", err
			}
		}

		if err := tableCache.Set(cacheKey, table); err != nil {
			fmt.Printf("Failed to cache extraction result: %v\n", err)
		}
	} else {
		fmt.Println("Using cached extraction result")
	}

	csvPath, err := writeCSV(table, req.OutputName)
	if err != nil {
		notification.SendDiscordErrorNotification(fmt.Sprintf("Failed to write CSV for %s: %s", req.RegionFile, err.Error()))
		return "", err
	}

	notification.SendDiscordSuccessNotification(fmt.Sprintf("Time series extracted successfully!\n\nFile: %s\nRows: %d", csvPath, len(table.Rows)))
	return csvPath, nil
}

// extractPerImage is the fallback mode: one round trip per image, a bounded
// number in flight, partial failures collected instead of aborting.
func extractPerImage(ctx context.Context, be engine.Backend, col engine.ImageCollection,
	reduceFn func(engine.Image) engine.FeatureCollection, selectors []string) (*timeseries.Table, error) {

	millisList, err := col.AggregateArray("system:time_start").GetInfo(ctx, be)
	if err != nil {
		return nil, fmt.Errorf("failed to list acquisition times: %v", err)
	}

	if selectors == nil {
		first := reduceFn(col.First())
		selectors, err = first.First().PropertyNames().GetInfo(ctx, be)
		if err != nil {
			return nil, fmt.Errorf("failed to infer property selectors: %v", err)
		}
	}

	var (
		mu          sync.Mutex
		rows        [][]any
		itemErrs    []string
		progressBar = progressbar.Default(int64(len(millisList)), "Extracting region statistics")
	)

	wp := workerpool.New(4)
	for _, m := range millisList {
		ms, ok := m.(float64)
		if !ok {
			continue
		}
		wp.Submit(func() {
			t := time.UnixMilli(int64(ms))
			img := col.FilterDate(t, t.Add(time.Millisecond)).First()
			fc := reduceFn(img)

			dict, err := fc.ReduceColumns(engine.ToList(len(selectors)), selectors)
			if err == nil {
				var raw []any
				raw, err = dict.Get("list").GetInfo(ctx, be)
				if err == nil {
					mu.Lock()
					for _, r := range raw {
						if tuple, ok := r.([]any); ok {
							rows = append(rows, tuple)
						}
					}
					mu.Unlock()
				}
			}
			mu.Lock()
			if err != nil {
				itemErrs = append(itemErrs, fmt.Sprintf("%s: %v", t.Format("2006-01-02"), err))
			}
			progressBar.Add(1)
			mu.Unlock()
		})
	}
	wp.StopWait()

	if len(rows) == 0 {
		if len(itemErrs) > 0 {
			return nil, fmt.Errorf("all images failed during extraction: %s", strings.Join(itemErrs, "; "))
		}
		return nil, fmt.Errorf("no data extracted")
	}
	if len(itemErrs) > 0 {
		notification.SendDiscordWarnNotification(fmt.Sprintf("Extraction completed with %d failed images.\nErrors: %s", len(itemErrs), strings.Join(itemErrs, "; ")))
	}

	return timeseries.NewTable(selectors, rows)
}

// writeCSV prefers the typed row layout when the standard columns are all
// present, falling back to the dynamic column set otherwise.
func writeCSV(table *timeseries.Table, outputName string) (string, error) {
	resultPath := filepath.Join(properties.RootPath(), "data", "result")
	if _, err := os.Stat(resultPath); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(resultPath, os.ModePerm); mkErr != nil {
			return "", fmt.Errorf("failed to create directory %s: %v", resultPath, mkErr)
		}
	}
	csvPath := filepath.Join(resultPath, outputName+".csv")

	file, err := os.Create(csvPath)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	if rows, ok := typedRows(table); ok {
		if err := gocsv.MarshalFile(&rows, file); err != nil {
			return "", fmt.Errorf("failed to write CSV file: %v", err)
		}
		return csvPath, nil
	}

	if err := table.WriteCSV(file); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %v", err)
	}
	return csvPath, nil
}

func typedRows(table *timeseries.Table) ([]*TimeseriesRow, bool) {
	idx := map[string]int{}
	for i, c := range table.Columns {
		idx[c] = i
	}
	pi, pok := idx["plot_id"]
	mi, mok := idx["mean"]
	li, lok := idx["millis"]
	if !pok || !mok || !lok || table.Timestamps == nil {
		return nil, false
	}

	rows := make([]*TimeseriesRow, 0, len(table.Rows))
	for i, r := range table.Rows {
		plot, _ := r[pi].(string)
		mean, _ := r[mi].(float64)
		millis, _ := r[li].(float64)
		rows = append(rows, &TimeseriesRow{
			Timestamp: table.Timestamps[i].Format(time.RFC3339),
			Millis:    int64(millis),
			Plot:      plot,
			Mean:      mean,
		})
	}
	return rows, true
}
