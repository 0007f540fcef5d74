package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/cloudmask"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/delivery"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine/inmem"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/export"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/notification"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/regions"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/timeseries"
	"github.com/joho/godotenv"
)

func printBanner() {
	figure1 := figure.NewFigure("Glacier", "isometric1", true)
	figure2 := figure.NewFigure("Guardian", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func readLine(reader *bufio.Reader, prompt string) string {
	fmt.Printf("\033[34m%s\033[0m", prompt)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func readDate(reader *bufio.Reader, prompt string) (time.Time, error) {
	raw := readLine(reader, prompt)
	return time.Parse("2006-01-02", raw)
}

func remoteBackend() (engine.Backend, error) {
	client, err := engine.NewClientFromEnv()
	if err != nil {
		return nil, err
	}
	return client, nil
}

// runDemoExtraction runs the whole masking and extraction pipeline against a
// synthetic in-process scene series, so the pipeline can be exercised without
// service credentials.
func runDemoExtraction(ctx context.Context) error {
	cfg := cloudmask.DefaultConfig()
	be := inmem.DemoScene(cfg.PrimarySource, cfg.ProbabilitySource, 5)

	roi, err := regions.MakeROI(0, 0, 960, 960)
	if err != nil {
		return err
	}
	region, err := engine.Rectangle(100, 100, 500, 500, cfg.CRS)
	if err != nil {
		return err
	}
	regionFC := engine.NewFeatureCollection(
		engine.NewFeature(region, map[string]any{"plot_id": "demo"}),
	)

	start := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	col := cloudmask.Collection(roi, start, end, cfg)
	masked := cloudmask.MaskCollection(col, cfg)
	reduceFn := timeseries.ReduceRegions(regionFC, engine.Mean(), timeseries.Options{
		AddDate: true,
		CRS:     cfg.CRS,
		Scale:   cfg.MaskScale,
	})

	table, err := timeseries.Extract(ctx, be, masked, reduceFn, []string{"plot_id", "B8", "millis"})
	if err != nil {
		return err
	}

	fmt.Println("\033[32m\nMasked B8 mean per acquisition:\033[0m")
	for i, row := range table.Rows {
		fmt.Printf("\033[32m%s  plot=%v  B8=%v\033[0m\n", table.Timestamps[i].Format("2006-01-02"), row[0], row[1])
	}
	return nil
}

// exportMaskedScenes downloads every masked scene of the period as GeoTIFF
// and renders a quicklook of the first one.
func exportMaskedScenes(ctx context.Context, be engine.Backend, regionFile string, start, end time.Time) error {
	cfg := cloudmask.DefaultConfig()

	fc, err := regions.Load(regionFile)
	if err != nil {
		return fmt.Errorf("failed to load regions: %v", err)
	}
	bounds, err := regions.Bounds(fc, cfg.CRS)
	if err != nil {
		return err
	}

	col := cloudmask.Collection(bounds, start, end, cfg)
	millisList, err := col.AggregateArray("system:time_start").GetInfo(ctx, be)
	if err != nil {
		return fmt.Errorf("failed to list acquisition times: %v", err)
	}
	if len(millisList) == 0 {
		return fmt.Errorf("no images found for the requested period")
	}

	images := make(map[time.Time]engine.Image, len(millisList))
	for _, m := range millisList {
		ms, ok := m.(float64)
		if !ok {
			continue
		}
		t := time.UnixMilli(int64(ms)).UTC()
		img := col.FilterDate(t, t.Add(time.Millisecond)).First()
		images[t] = cloudmask.ApplyCloudShadowMask(cloudmask.AddCloudShadowMask(img, cfg))
	}

	paths, errs := export.SaveSeries(ctx, be, images, bounds, cfg.MaskScale, regionFile)
	for _, err := range errs {
		fmt.Printf("\033[31mExport failed: %s\033[0m\n", err.Error())
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scenes exported")
	}

	for _, path := range paths {
		quicklook, err := export.QuicklookFromGeoTIFF(path, regionFile+"_quicklook")
		if err != nil {
			return fmt.Errorf("failed to render quicklook: %v", err)
		}
		fmt.Printf("\033[32mQuicklook located at: %s\033[0m\n", quicklook)
		break
	}

	fmt.Printf("\033[32m%d scenes exported to data/images\033[0m\n", len(paths))
	return nil
}

func initCLI() {
	defer func() {
		if r := recover(); r != nil {
			pc, file, line, ok := runtime.Caller(3)
			var location string
			if ok {
				fn := runtime.FuncForPC(pc)
				location = fmt.Sprintf("%s:%d in %s", file, line, fn.Name())
			} else {
				location = "Unknown location"
			}

			fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
			fmt.Printf("\033[31mLocation: %s\033[0m\n", location)
			fmt.Printf("\033[31mExiting...\033[0m\n")

			stack := debug.Stack()
			errMessage := fmt.Sprintf("Glacier Guardian CLI panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, stack)
			err := notification.SendDiscordErrorNotification(errMessage)
			if err != nil {
				fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
			}
		}
	}()
	printBanner()

	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\033[34m===================\033[0m")
		fmt.Println("\033[34m1. Extract a cloud-masked time series\033[0m")
		fmt.Println("\033[34m2. Export masked scenes as GeoTIFF\033[0m")
		fmt.Println("\033[34m3. Run the offline demo extraction\033[0m")
		fmt.Println("\033[34m4. List available regions\033[0m")
		fmt.Println("\033[34m5. List region plots\033[0m")
		fmt.Println("\033[34m6. Exit\033[0m")
		fmt.Println("\033[34mEnter your choice:\033[0m")

		var choice int
		_, err := fmt.Scan(&choice)
		if err != nil {
			fmt.Printf("\n\033[31mInvalid input. Please enter a number.\033[0m\n")
			fmt.Scanln()
			continue
		}
		reader.ReadString('\n')

		switch choice {
		case 1:
			fmt.Println("\033[33m\nWarning:\033[0m")
			fmt.Println("\033[33m- A '.geojson' file with the region name should be present in data/geojsons folder.\033[0m")
			fmt.Println("\033[33m- Each feature should carry a plot_id property so rows can be traced back.\n\033[0m")

			regionFile := readLine(reader, "Enter the region name: ")

			start, err := readDate(reader, "Enter the start date (YYYY-MM-DD): ")
			if err != nil {
				fmt.Printf("\n\033[31mInvalid date.\033[0m\n")
				continue
			}
			end, err := readDate(reader, "Enter the end date (YYYY-MM-DD): ")
			if err != nil {
				fmt.Printf("\n\033[31mInvalid date.\033[0m\n")
				continue
			}

			perImage := strings.EqualFold(readLine(reader, "Extract image by image? (y/N): "), "y")

			be, err := remoteBackend()
			if err != nil {
				fmt.Printf("\n\033[31mError configuring compute client: %s\033[0m\n", err.Error())
				continue
			}

			outputName := fmt.Sprintf("%s_%s_%s", regionFile, start.Format("2006-01-02"), end.Format("2006-01-02"))
			csvPath, err := delivery.ExtractTimeseries(ctx, be, delivery.ExtractRequest{
				RegionFile: regionFile,
				Start:      start,
				End:        end,
				OutputName: outputName,
				PerImage:   perImage,
			}, cloudmask.DefaultConfig())
			if err != nil {
				fmt.Printf("\n\033[31mError extracting time series: %s\033[0m\n", err.Error())
				continue
			}

			fmt.Printf("\n\033[32mSuccessful extraction!\n Resultant CSV located at: %s\033[0m\n", csvPath)
		case 2:
			regionFile := readLine(reader, "Enter the region name: ")

			start, err := readDate(reader, "Enter the start date (YYYY-MM-DD): ")
			if err != nil {
				fmt.Printf("\n\033[31mInvalid date.\033[0m\n")
				continue
			}
			end, err := readDate(reader, "Enter the end date (YYYY-MM-DD): ")
			if err != nil {
				fmt.Printf("\n\033[31mInvalid date.\033[0m\n")
				continue
			}

			be, err := remoteBackend()
			if err != nil {
				fmt.Printf("\n\033[31mError configuring compute client: %s\033[0m\n", err.Error())
				continue
			}

			if err := exportMaskedScenes(ctx, be, regionFile, start, end); err != nil {
				fmt.Printf("\n\033[31mError exporting scenes: %s\033[0m\n", err.Error())
				notification.SendDiscordErrorNotification(fmt.Sprintf("Glacier Guardian CLI\n\nError exporting scenes: %s", err.Error()))
				continue
			}
		case 3:
			if err := runDemoExtraction(ctx); err != nil {
				fmt.Printf("\n\033[31mError running demo: %s\033[0m\n", err.Error())
				continue
			}
		case 4:
			files, err := os.ReadDir(properties.RootPath() + "/data/geojsons")
			if err != nil {
				fmt.Printf("\n\033[31mError reading geojsons folder: %s\033[0m\n", err.Error())
				continue
			}
			fmt.Println("\033[33m\nWarning:\033[0m")
			fmt.Println("\033[33mTo add a new region, add its '.geojson' file at 'data/geojsons' folder.\033[0m")

			fmt.Println("\n\033[32mAvailable regions:\033[0m")
			for _, file := range files {
				if strings.HasSuffix(file.Name(), ".geojson") {
					fmt.Printf("\033[32m- %s\033[0m\n", strings.TrimSuffix(file.Name(), ".geojson"))
				}
			}
		case 5:
			regionFile := readLine(reader, "Enter the region name: ")

			fc, err := regions.Load(regionFile)
			if err != nil {
				fmt.Printf("\n\033[31mError loading region: %s\033[0m\n", err.Error())
				continue
			}
			ids := regions.PlotIDs(fc)
			if len(ids) == 0 {
				fmt.Printf("\n\033[31mNo plot IDs found in the GeoJSON file.\033[0m\n")
				continue
			}
			fmt.Println("\033[32m\nAvailable plots:\033[0m")
			for _, id := range ids {
				fmt.Printf("\033[32m- %s\033[0m\n", id)
			}
		case 6:
			println("Exiting...")
			return
		default:
			println("Invalid choice. Please try again.")
		}
	}
}

func main() {
	err := godotenv.Load("../../.env")
	if err != nil {
		err := godotenv.Load("../.env")
		if err != nil {
			if err := godotenv.Load(".env"); err != nil {
				fmt.Println("\033[33mNo .env file found, relying on the environment.\033[0m")
			}
		}
	}

	initCLI()
}
