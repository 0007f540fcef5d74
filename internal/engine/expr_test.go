package engine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestGraphSerialization(t *testing.T) {
	start := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	bounds, err := Rectangle(0, 0, 100, 100, "EPSG:3413")
	if err != nil {
		t.Fatal(err)
	}
	col := NewImageCollection("COPERNICUS/S2_SR_HARMONIZED").
		FilterDate(start, end).
		FilterBounds(bounds).
		Filter(Lte("CLOUDY_PIXEL_PERCENTAGE", 60))

	raw, err := json.Marshal(col.expr)
	if err != nil {
		t.Fatalf("failed to marshal graph: %v", err)
	}

	var node map[string]any
	if err := json.Unmarshal(raw, &node); err != nil {
		t.Fatalf("failed to unmarshal graph: %v", err)
	}
	if node["op"] != "filter" {
		t.Errorf("outer op = %v, want filter", node["op"])
	}

	inner := node["in"].([]any)[0].(map[string]any)
	if inner["op"] != "filterBounds" {
		t.Errorf("inner op = %v, want filterBounds", inner["op"])
	}
	dateNode := inner["in"].([]any)[0].(map[string]any)
	args := dateNode["args"].(map[string]any)
	if args["start"] != float64(start.UnixMilli()) {
		t.Errorf("start = %v, want %v", args["start"], start.UnixMilli())
	}
	if args["end"] != float64(end.UnixMilli()) {
		t.Errorf("end = %v, want %v", args["end"], end.UnixMilli())
	}
}

func TestMapBodiesGetFreshArguments(t *testing.T) {
	col := NewImageCollection("src")

	mapped := col.Map(func(img Image) Image {
		return img.Select("B8")
	})
	nested := col.Map(func(img Image) Image {
		return img.AddBands(img.Select("B8"))
	})

	arg1 := mapped.expr.In[1].Args["arg"].(string)
	arg2 := nested.expr.In[1].Args["arg"].(string)
	if arg1 == arg2 {
		t.Errorf("two mapped functions share argument name %q", arg1)
	}
}

func TestRectangleValidation(t *testing.T) {
	var confErr *ConfigError

	_, err := Rectangle(10, 10, 10, 20, "EPSG:3413")
	if !errors.As(err, &confErr) {
		t.Errorf("empty extent: got %v, want ConfigError", err)
	}
	_, err = Rectangle(0, 0, 10, 10, "")
	if !errors.As(err, &confErr) {
		t.Errorf("missing CRS: got %v, want ConfigError", err)
	}
	if _, err := Rectangle(0, 0, 10, 10, "EPSG:3413"); err != nil {
		t.Errorf("valid rectangle rejected: %v", err)
	}
}

func TestPolygonValidation(t *testing.T) {
	var confErr *ConfigError

	_, err := Polygon(orb.Polygon{}, "EPSG:3413")
	if !errors.As(err, &confErr) {
		t.Errorf("empty polygon: got %v, want ConfigError", err)
	}
	_, err = Polygon(orb.Polygon{{{0, 0}, {1, 0}}}, "EPSG:3413")
	if !errors.As(err, &confErr) {
		t.Errorf("degenerate ring: got %v, want ConfigError", err)
	}
	_, err = Polygon(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, "EPSG:3413")
	if err != nil {
		t.Errorf("valid polygon rejected: %v", err)
	}
}

func TestReduceColumnsSelectorValidation(t *testing.T) {
	g, err := Rectangle(0, 0, 10, 10, "EPSG:3413")
	if err != nil {
		t.Fatal(err)
	}
	fc := NewFeatureCollection(NewFeature(g, nil))

	var confErr *ConfigError
	if _, err := fc.ReduceColumns(ToList(0), nil); !errors.As(err, &confErr) {
		t.Errorf("no selectors: got %v, want ConfigError", err)
	}
	if _, err := fc.ReduceColumns(ToList(2), []string{"mean", ""}); !errors.As(err, &confErr) {
		t.Errorf("blank selector: got %v, want ConfigError", err)
	}
	if _, err := fc.ReduceColumns(ToList(1), []string{"mean"}); err != nil {
		t.Errorf("valid selectors rejected: %v", err)
	}
}

func TestExportScaleValidation(t *testing.T) {
	g, err := Rectangle(0, 0, 10, 10, "EPSG:3413")
	if err != nil {
		t.Fatal(err)
	}
	img := NewImageCollection("src").First()

	var confErr *ConfigError
	_, err = img.ExportGeoTIFF(t.Context(), nil, g, 0)
	if !errors.As(err, &confErr) {
		t.Errorf("zero scale: got %v, want ConfigError", err)
	}
	_, err = img.ExportGeoTIFF(t.Context(), nil, g, -20)
	if !errors.As(err, &confErr) {
		t.Errorf("negative scale: got %v, want ConfigError", err)
	}
}
