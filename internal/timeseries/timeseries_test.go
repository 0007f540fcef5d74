package timeseries_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/cloudmask"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine/inmem"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/timeseries"
)

func demoSetup(t *testing.T, days, regions int) (*inmem.Server, engine.ImageCollection, engine.FeatureCollection) {
	t.Helper()
	cfg := cloudmask.DefaultConfig()
	srv := inmem.DemoScene(cfg.PrimarySource, cfg.ProbabilitySource, days)

	bounds, err := engine.Rectangle(0, 0, 960, 960, cfg.CRS)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)
	col := cloudmask.Collection(bounds, start, start.AddDate(0, 0, days+1), cfg)

	features := make([]engine.Feature, 0, regions)
	for i := 0; i < regions; i++ {
		x := float64(100 + i*300)
		g, err := engine.Rectangle(x, 100, x+200, 400, cfg.CRS)
		if err != nil {
			t.Fatal(err)
		}
		features = append(features, engine.NewFeature(g, map[string]any{"plot_id": string(rune('a' + i))}))
	}
	return srv, col, engine.NewFeatureCollection(features...)
}

func TestExtractRowCount(t *testing.T) {
	const days, regionCount = 3, 2
	srv, col, regions := demoSetup(t, days, regionCount)

	reduceFn := timeseries.ReduceRegions(regions, engine.Mean(), timeseries.Options{AddDate: true})
	table, err := timeseries.Extract(context.Background(), srv, col, reduceFn,
		[]string{"plot_id", "B8", "millis"})
	if err != nil {
		t.Fatal(err)
	}

	if len(table.Rows) != days*regionCount {
		t.Fatalf("got %d rows, want %d (%d regions x %d images)", len(table.Rows), days*regionCount, regionCount, days)
	}
	if err := table.ValidateShape(regionCount, days); err != nil {
		t.Errorf("shape validation failed: %v", err)
	}

	// Every image contributes one identical millis value per region.
	perMillis := map[float64]int{}
	for _, row := range table.Rows {
		ms, ok := row[2].(float64)
		if !ok {
			t.Fatalf("millis cell is %T, want float64", row[2])
		}
		perMillis[ms]++
	}
	if len(perMillis) != days {
		t.Errorf("got %d distinct timestamps, want %d", len(perMillis), days)
	}
	for ms, n := range perMillis {
		if n != regionCount {
			t.Errorf("timestamp %v has %d rows, want %d", ms, n, regionCount)
		}
	}
}

func TestExtractTimestampsAreChronological(t *testing.T) {
	srv, col, regions := demoSetup(t, 4, 1)

	reduceFn := timeseries.ReduceRegions(regions, engine.Mean(), timeseries.Options{AddDate: true})
	table, err := timeseries.Extract(context.Background(), srv, col, reduceFn,
		[]string{"plot_id", "B8", "millis"})
	if err != nil {
		t.Fatal(err)
	}

	if len(table.Timestamps) != len(table.Rows) {
		t.Fatalf("got %d timestamps for %d rows", len(table.Timestamps), len(table.Rows))
	}
	for i := 1; i < len(table.Timestamps); i++ {
		if table.Timestamps[i].Before(table.Timestamps[i-1]) {
			t.Fatalf("timestamps out of order at row %d: %v before %v", i, table.Timestamps[i], table.Timestamps[i-1])
		}
	}
}

func TestExtractInfersSelectors(t *testing.T) {
	srv, col, regions := demoSetup(t, 2, 1)

	reduceFn := timeseries.ReduceRegions(regions, engine.Mean(), timeseries.Options{AddDate: true})
	table, err := timeseries.Extract(context.Background(), srv, col, reduceFn, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"B2": true, "B4": true, "B8": true, "SCL": true, "millis": true, "plot_id": true}
	if len(table.Columns) != len(want) {
		t.Fatalf("inferred columns = %v, want %d of them", table.Columns, len(want))
	}
	for _, c := range table.Columns {
		if !want[c] {
			t.Errorf("unexpected inferred column %q", c)
		}
	}
	if len(table.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(table.Rows))
	}
}

func TestReduceRegionsAttachesImageProperties(t *testing.T) {
	srv, col, regions := demoSetup(t, 1, 1)

	reduceFn := timeseries.ReduceRegions(regions, engine.Mean(), timeseries.Options{
		AddDate:    true,
		Properties: []string{"CLOUDY_PIXEL_PERCENTAGE"},
	})
	table, err := timeseries.Extract(context.Background(), srv, col, reduceFn,
		[]string{"plot_id", "CLOUDY_PIXEL_PERCENTAGE", "millis"})
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(table.Rows))
	}
	if table.Rows[0][1] != 12.5 {
		t.Errorf("CLOUDY_PIXEL_PERCENTAGE = %v, want 12.5", table.Rows[0][1])
	}
}

func TestNewTableRejectsRaggedRows(t *testing.T) {
	_, err := timeseries.NewTable([]string{"a", "b"}, [][]any{{1.0, 2.0}, {1.0}})
	var shapeErr *engine.DataShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("ragged rows: got %v, want DataShapeError", err)
	}
}

func TestValidateShape(t *testing.T) {
	table, err := timeseries.NewTable([]string{"plot_id"}, [][]any{{"a"}, {"b"}, {"a"}, {"b"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := table.ValidateShape(2, 2); err != nil {
		t.Errorf("2x2 shape rejected: %v", err)
	}
	var shapeErr *engine.DataShapeError
	if err := table.ValidateShape(2, 3); !errors.As(err, &shapeErr) {
		t.Errorf("2x3 shape: got %v, want DataShapeError", err)
	}
}

func TestWriteCSV(t *testing.T) {
	table, err := timeseries.NewTable(
		[]string{"plot_id", "mean", "millis"},
		[][]any{
			{"a", 2800.5, float64(time.Date(2022, 7, 2, 0, 0, 0, 0, time.UTC).UnixMilli())},
			{"a", 2600.0, float64(time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC).UnixMilli())},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	if err := table.WriteCSV(&sb); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d CSV lines, want 3", len(lines))
	}
	if lines[0] != "plot_id,mean,millis,timestamp" {
		t.Errorf("header = %q", lines[0])
	}
	// Rows come out chronologically, so the July 1 acquisition is first.
	if !strings.Contains(lines[1], "2600") || !strings.Contains(lines[1], "2022-07-01") {
		t.Errorf("first data row = %q, want the earlier acquisition", lines[1])
	}
}

func TestLegacyDictPathsAreDisabled(t *testing.T) {
	var unsupported *engine.UnsupportedError
	if _, err := timeseries.FeatureCollectionToDict(engine.FeatureCollection{}); !errors.As(err, &unsupported) {
		t.Errorf("FeatureCollectionToDict: got %v, want UnsupportedError", err)
	}
	if _, err := timeseries.DictToTable(nil); !errors.As(err, &unsupported) {
		t.Errorf("DictToTable: got %v, want UnsupportedError", err)
	}
}
