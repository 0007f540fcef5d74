package inmem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine/inmem"
	"github.com/paulmach/orb"
)

const crs = "EPSG:3413"

func uniformGrid(w, h int, scale, fill float64) *inmem.Grid {
	return inmem.NewGrid(w, h, scale, crs, 0, float64(h)*scale).Fill(fill)
}

func scene(index string, at time.Time, bands map[string]float64, order []string) *inmem.ImageData {
	const w, h, scale = 8, 8, 10.0
	grids := make(map[string]*inmem.Grid, len(bands))
	for name, v := range bands {
		grids[name] = uniformGrid(w, h, scale, v)
	}
	return &inmem.ImageData{
		Index:     index,
		TimeStart: at.UnixMilli(),
		Bands:     grids,
		BandOrder: order,
		Footprint: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{w * scale, h * scale}},
	}
}

func wholeFootprint(t *testing.T) engine.Geometry {
	t.Helper()
	g, err := engine.Rectangle(0, 0, 80, 80, crs)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// materialize reduces a single-band image over the region and returns the
// mean of the valid pixels, or nil when every pixel is masked.
func materialize(t *testing.T, be engine.Backend, img engine.Image, region engine.Geometry, scale float64) any {
	t.Helper()
	fc := img.ReduceRegions(engine.NewFeatureCollection(engine.NewFeature(region, nil)), engine.Mean(), crs, scale)
	dict, err := fc.ReduceColumns(engine.ToList(1), []string{"mean"})
	if err != nil {
		t.Fatal(err)
	}
	rows, err := dict.Get("list").GetInfo(context.Background(), be)
	if err != nil {
		t.Fatalf("failed to materialize: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	return rows[0].([]any)[0]
}

func TestSaveFirstJoin(t *testing.T) {
	day := time.Date(2022, 7, 1, 12, 0, 0, 0, time.UTC)
	srv := inmem.NewServer()
	srv.AddImage("refl", scene("A", day, map[string]float64{"B8": 2000}, []string{"B8"}))
	srv.AddImage("refl", scene("B", day.AddDate(0, 0, 1), map[string]float64{"B8": 2100}, []string{"B8"}))
	srv.AddImage("prob", scene("A", day, map[string]float64{"probability": 80}, []string{"probability"}))

	joined := engine.SaveFirst("cloud_prob").Apply(
		engine.NewImageCollection("refl"),
		engine.NewImageCollection("prob"),
		engine.FieldEquals("system:index", "system:index"),
	)

	ctx := context.Background()
	size, err := joined.Size().GetInfo(ctx, srv)
	if err != nil {
		t.Fatal(err)
	}
	if size != 1 {
		t.Fatalf("joined size = %v, want 1 (primary without a match must be dropped)", size)
	}

	// The surviving primary carries the matched probability image.
	mean := materialize(t, srv, joined.First().GetImage("cloud_prob"), wholeFootprint(t), 10)
	if mean != 80.0 {
		t.Errorf("joined probability mean = %v, want 80", mean)
	}

	indexes, err := joined.AggregateArray("system:index").GetInfo(ctx, srv)
	if err != nil {
		t.Fatal(err)
	}
	if len(indexes) != 1 || indexes[0] != "A" {
		t.Errorf("joined indexes = %v, want [A]", indexes)
	}
}

func TestFilterDateHalfOpen(t *testing.T) {
	day := time.Date(2022, 7, 1, 12, 0, 0, 0, time.UTC)
	srv := inmem.NewServer()
	srv.AddImage("refl", scene("A", day, map[string]float64{"B8": 2000}, []string{"B8"}))

	ctx := context.Background()
	col := engine.NewImageCollection("refl")

	size, err := col.FilterDate(day, day.Add(time.Millisecond)).Size().GetInfo(ctx, srv)
	if err != nil {
		t.Fatal(err)
	}
	if size != 1 {
		t.Errorf("[t, t+1ms) size = %v, want 1", size)
	}

	size, err = col.FilterDate(day.Add(-time.Hour), day).Size().GetInfo(ctx, srv)
	if err != nil {
		t.Fatal(err)
	}
	if size != 0 {
		t.Errorf("[t-1h, t) size = %v, want 0 (end is exclusive)", size)
	}
}

func TestFilterBounds(t *testing.T) {
	day := time.Date(2022, 7, 1, 12, 0, 0, 0, time.UTC)
	srv := inmem.NewServer()
	srv.AddImage("refl", scene("A", day, map[string]float64{"B8": 2000}, []string{"B8"}))

	inside, err := engine.Rectangle(10, 10, 30, 30, crs)
	if err != nil {
		t.Fatal(err)
	}
	outside, err := engine.Rectangle(500, 500, 600, 600, crs)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	col := engine.NewImageCollection("refl")

	size, err := col.FilterBounds(inside).Size().GetInfo(ctx, srv)
	if err != nil {
		t.Fatal(err)
	}
	if size != 1 {
		t.Errorf("intersecting bounds size = %v, want 1", size)
	}

	size, err = col.FilterBounds(outside).Size().GetInfo(ctx, srv)
	if err != nil {
		t.Fatal(err)
	}
	if size != 0 {
		t.Errorf("disjoint bounds size = %v, want 0", size)
	}
}

func TestFirstOnEmptyCollection(t *testing.T) {
	srv := inmem.NewServer()
	srv.AddImage("refl", scene("A", time.Now(), map[string]float64{"B8": 1}, []string{"B8"}))

	empty := engine.NewImageCollection("refl").
		FilterDate(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC))

	_, err := empty.First().BandNames().GetInfo(context.Background(), srv)
	var remote *engine.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("first on empty collection: got %v, want RemoteError", err)
	}
}

func TestThresholdIsStrict(t *testing.T) {
	day := time.Now()
	srv := inmem.NewServer()
	srv.AddImage("refl", scene("A", day, map[string]float64{"probability": 40}, []string{"probability"}))

	img := engine.NewImageCollection("refl").First()
	region := wholeFootprint(t)

	if got := materialize(t, srv, img.Gt(40), region, 10); got != 0.0 {
		t.Errorf("40 > 40 = %v, want 0", got)
	}
	if got := materialize(t, srv, img.Gt(39.999), region, 10); got != 1.0 {
		t.Errorf("40 > 39.999 = %v, want 1", got)
	}
	if got := materialize(t, srv, img.Lt(40), region, 10); got != 0.0 {
		t.Errorf("40 < 40 = %v, want 0", got)
	}
}

func TestDirectionalDistanceTransform(t *testing.T) {
	day := time.Now()
	srv := inmem.NewServer()

	// One source pixel at column 1; azimuth 0 looks back due west, so the
	// distance grows eastward from it.
	g := uniformGrid(8, 1, 10, 0)
	g.Set(1, 0, 1)
	srv.AddImage("src", &inmem.ImageData{
		Index: "A", TimeStart: day.UnixMilli(),
		Bands: map[string]*inmem.Grid{"clouds": g}, BandOrder: []string{"clouds"},
		Footprint: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{80, 10}},
	})

	ddt := engine.NewImageCollection("src").First().
		DirectionalDistanceTransform(engine.Num(0), 5)

	pixel := func(col int) engine.Geometry {
		r, err := engine.Rectangle(float64(col*10), 0, float64(col*10+10), 10, crs)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	if got := materialize(t, srv, ddt, pixel(1), 10); got != 0.0 {
		t.Errorf("distance at the source = %v, want 0", got)
	}
	if got := materialize(t, srv, ddt, pixel(4), 10); got != 3.0 {
		t.Errorf("distance 3 pixels east = %v, want 3", got)
	}
	// Beyond maxDistance the output is masked.
	if got := materialize(t, srv, ddt, pixel(7), 10); got != nil {
		t.Errorf("distance beyond max = %v, want masked (nil)", got)
	}
}

func TestFocalMinMax(t *testing.T) {
	day := time.Now()
	srv := inmem.NewServer()

	// A single set pixel: focalMin erodes it away, focalMax spreads it.
	g := uniformGrid(8, 8, 10, 0)
	g.Set(4, 4, 1)
	srv.AddImage("src", &inmem.ImageData{
		Index: "A", TimeStart: day.UnixMilli(),
		Bands: map[string]*inmem.Grid{"m": g}, BandOrder: []string{"m"},
		Footprint: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{80, 80}},
	})

	img := engine.NewImageCollection("src").First()
	pixel := func(col, row int) engine.Geometry {
		r, err := engine.Rectangle(float64(col*10), float64(70-row*10), float64(col*10+10), float64(80-row*10), crs)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	if got := materialize(t, srv, img.FocalMin(1), pixel(4, 4), 10); got != 0.0 {
		t.Errorf("focalMin at the lone pixel = %v, want 0", got)
	}
	if got := materialize(t, srv, img.FocalMax(1), pixel(5, 4), 10); got != 1.0 {
		t.Errorf("focalMax next to the lone pixel = %v, want 1", got)
	}
	if got := materialize(t, srv, img.FocalMax(1), pixel(7, 7), 10); got != 0.0 {
		t.Errorf("focalMax far from the lone pixel = %v, want 0", got)
	}
}

func TestReprojectAtOwnScaleKeepsValues(t *testing.T) {
	day := time.Now()
	srv := inmem.NewServer()
	srv.AddImage("refl", scene("A", day, map[string]float64{"B8": 1234}, []string{"B8"}))

	img := engine.NewImageCollection("refl").First()
	re := img.Reproject(img.SelectAt(0).Projection(), 10)

	region := wholeFootprint(t)
	if got, want := materialize(t, srv, re, region, 10), materialize(t, srv, img, region, 10); got != want {
		t.Errorf("reprojected mean = %v, want %v", got, want)
	}
}

func TestReduceRegionsPropertyNaming(t *testing.T) {
	day := time.Now()
	srv := inmem.NewServer()
	srv.AddImage("refl", scene("A", day,
		map[string]float64{"B4": 600, "B8": 2000}, []string{"B4", "B8"}))

	img := engine.NewImageCollection("refl").First()
	regions := engine.NewFeatureCollection(engine.NewFeature(wholeFootprint(t), nil))
	ctx := context.Background()

	// A single reduced band lands under the reducer's name.
	names, err := img.Select("B8").
		ReduceRegions(regions, engine.Mean(), crs, 10).
		First().PropertyNames().GetInfo(ctx, srv)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "mean" {
		t.Errorf("single-band property names = %v, want [mean]", names)
	}

	// Several bands land under their own names.
	names, err = img.
		ReduceRegions(regions, engine.Mean(), crs, 10).
		First().PropertyNames().GetInfo(ctx, srv)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "B4" || names[1] != "B8" {
		t.Errorf("multi-band property names = %v, want [B4 B8]", names)
	}
}

func TestReduceColumnsOrientations(t *testing.T) {
	g := wholeFootprint(t)
	fc := engine.NewFeatureCollection(
		engine.NewFeature(g, map[string]any{"plot_id": "a", "mean": 1.0}),
		engine.NewFeature(g, map[string]any{"plot_id": "b", "mean": 2.0}),
	)
	srv := inmem.NewServer()
	ctx := context.Background()

	rows, err := func() ([]any, error) {
		dict, err := fc.ReduceColumns(engine.ToList(2), []string{"plot_id", "mean"})
		if err != nil {
			return nil, err
		}
		return dict.Get("list").GetInfo(ctx, srv)
	}()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("row orientation: got %d rows, want 2", len(rows))
	}
	first := rows[0].([]any)
	if first[0] != "a" || first[1] != 1.0 {
		t.Errorf("first row = %v, want [a 1]", first)
	}

	cols, err := func() ([]any, error) {
		dict, err := fc.ReduceColumns(engine.ToList(0).Repeat(2), []string{"plot_id", "mean"})
		if err != nil {
			return nil, err
		}
		return dict.Get("list").GetInfo(ctx, srv)
	}()
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 {
		t.Fatalf("column orientation: got %d columns, want 2", len(cols))
	}
	plots := cols[0].([]any)
	if len(plots) != 2 || plots[0] != "a" || plots[1] != "b" {
		t.Errorf("plot column = %v, want [a b]", plots)
	}
}

func TestExportIsUnsupported(t *testing.T) {
	day := time.Now()
	srv := inmem.NewServer()
	srv.AddImage("refl", scene("A", day, map[string]float64{"B8": 1}, []string{"B8"}))

	img := engine.NewImageCollection("refl").First()
	_, err := img.ExportGeoTIFF(context.Background(), srv, wholeFootprint(t), 10)
	var unsupported *engine.UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("export against the in-memory backend: got %v, want UnsupportedError", err)
	}
}
