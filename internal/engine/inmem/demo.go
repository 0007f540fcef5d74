package inmem

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// DemoScene registers a small synthetic Sentinel-2 acquisition series with a
// drifting cloud blob, paired with matching cloud probability images. It
// backs the CLI mask preview and makes the whole pipeline runnable without
// credentials.
func DemoScene(primarySource, probabilitySource string, days int) *Server {
	const (
		w, h  = 48, 48
		scale = 20.0
		crs   = "EPSG:3413"
	)
	srv := NewServer()
	start := time.Date(2022, 7, 1, 12, 0, 0, 0, time.UTC)

	for d := 0; d < days; d++ {
		t := start.AddDate(0, 0, d)
		index := fmt.Sprintf("20220701T120000_%03d", d)

		grid := func(fill float64) *Grid {
			return NewGrid(w, h, scale, crs, 0, float64(h)*scale).Fill(fill)
		}

		b2 := grid(400)
		b4 := grid(600)
		b8 := grid(2800)
		scl := grid(4) // vegetation

		prob := grid(5)
		// Cloud blob drifting east one pixel per day, dark ground in its
		// shadow zone.
		cx, cy := 12+d, 16
		for row := cy - 4; row <= cy+4; row++ {
			for col := cx - 4; col <= cx+4; col++ {
				if col < 0 || col >= w || row < 0 || row >= h {
					continue
				}
				if (col-cx)*(col-cx)+(row-cy)*(row-cy) <= 16 {
					prob.Set(col, row, 85)
					b8.Set(col, row, 3200)
				}
			}
		}
		for row := cy + 6; row <= cy+12; row++ {
			for col := cx - 4; col <= cx+4; col++ {
				if col < 0 || col >= w || row < 0 || row >= h {
					continue
				}
				b8.Set(col, row, 900) // dark NIR, candidate shadow
			}
		}
		// A melt pond in the corner, classified as water.
		for row := h - 10; row < h; row++ {
			for col := 0; col < 10; col++ {
				scl.Set(col, row, 6)
				b8.Set(col, row, 700)
			}
		}

		srv.AddImage(primarySource, &ImageData{
			Index:     index,
			TimeStart: t.UnixMilli(),
			Props: map[string]any{
				"CLOUDY_PIXEL_PERCENTAGE":  12.5,
				"MEAN_SOLAR_AZIMUTH_ANGLE": 165.0,
			},
			Bands:     map[string]*Grid{"B2": b2, "B4": b4, "B8": b8, "SCL": scl},
			BandOrder: []string{"B2", "B4", "B8", "SCL"},
			Footprint: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{w * scale, h * scale}},
		})
		srv.AddImage(probabilitySource, &ImageData{
			Index:     index,
			TimeStart: t.UnixMilli(),
			Bands:     map[string]*Grid{"probability": prob},
			BandOrder: []string{"probability"},
			Footprint: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{w * scale, h * scale}},
		})
	}
	return srv
}
