package regions_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/regions"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"plot_id": "north"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[100, 100], [300, 100], [300, 400], [100, 400], [100, 100]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"plot_id": "south"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[400, 100], [600, 100], [600, 400], [400, 400], [400, 100]]]
      }
    }
  ]
}`

func writeRegionFile(t *testing.T, name, content string) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("ROOT_PATH", root)

	dir := filepath.Join(root, "data", "geojsons")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".geojson"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAndPlotIDs(t *testing.T) {
	writeRegionFile(t, "test_basin", sampleGeoJSON)

	fc, err := regions.Load("test_basin")
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("got %d features, want 2", len(fc.Features))
	}

	ids := regions.PlotIDs(fc)
	if len(ids) != 2 || ids[0] != "north" || ids[1] != "south" {
		t.Errorf("plot ids = %v, want [north south]", ids)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	if _, err := regions.Load("nope"); err == nil {
		t.Fatal("loading a missing file succeeded")
	}
}

func TestPolygonForPlot(t *testing.T) {
	writeRegionFile(t, "test_basin", sampleGeoJSON)
	fc, err := regions.Load("test_basin")
	if err != nil {
		t.Fatal(err)
	}

	poly, err := regions.PolygonForPlot(fc, "south")
	if err != nil {
		t.Fatal(err)
	}
	if poly[0][0][0] != 400 {
		t.Errorf("south plot xmin = %v, want 400", poly[0][0][0])
	}

	if _, err := regions.PolygonForPlot(fc, "missing"); err == nil {
		t.Error("unknown plot id succeeded")
	}
}

func TestToEngineKeepsPlotIDs(t *testing.T) {
	writeRegionFile(t, "test_basin", sampleGeoJSON)
	fc, err := regions.Load("test_basin")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := regions.ToEngine(fc, "EPSG:3413"); err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
}

func TestToEngineRejectsEmptyCollection(t *testing.T) {
	writeRegionFile(t, "empty", `{"type": "FeatureCollection", "features": []}`)
	fc, err := regions.Load("empty")
	if err != nil {
		t.Fatal(err)
	}

	var confErr *engine.ConfigError
	if _, err := regions.ToEngine(fc, "EPSG:3413"); !errors.As(err, &confErr) {
		t.Errorf("empty collection: got %v, want ConfigError", err)
	}
	if _, err := regions.Bounds(fc, "EPSG:3413"); !errors.As(err, &confErr) {
		t.Errorf("bounds over empty collection: got %v, want ConfigError", err)
	}
}

func TestCentroid(t *testing.T) {
	writeRegionFile(t, "test_basin", sampleGeoJSON)
	fc, err := regions.Load("test_basin")
	if err != nil {
		t.Fatal(err)
	}
	poly, err := regions.PolygonForPlot(fc, "north")
	if err != nil {
		t.Fatal(err)
	}

	lat, lon := regions.Centroid(poly)
	if lon < 100 || lon > 300 || lat < 100 || lat > 400 {
		t.Errorf("centroid (%v, %v) outside the plot extent", lat, lon)
	}
}
