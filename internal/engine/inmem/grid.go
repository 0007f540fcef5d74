// Package inmem is an in-process backend for the engine expression graph.
// It evaluates the same capability set the remote compute service exposes,
// over small in-memory rasters, and backs the pipeline tests as well as
// offline runs on synthetic scenes.
package inmem

import "math"

// Grid is a single-band raster aligned to a projected CRS. OriginX/OriginY
// is the outer top-left corner; pixel (0,0) covers
// [OriginX, OriginX+Scale) x (OriginY-Scale, OriginY].
type Grid struct {
	W, H    int
	Scale   float64
	CRS     string
	OriginX float64
	OriginY float64
	Vals    []float64
	Valid   []bool
}

func NewGrid(w, h int, scale float64, crs string, originX, originY float64) *Grid {
	g := &Grid{
		W: w, H: h, Scale: scale, CRS: crs,
		OriginX: originX, OriginY: originY,
		Vals:  make([]float64, w*h),
		Valid: make([]bool, w*h),
	}
	for i := range g.Valid {
		g.Valid[i] = true
	}
	return g
}

func (g *Grid) Clone() *Grid {
	out := &Grid{
		W: g.W, H: g.H, Scale: g.Scale, CRS: g.CRS,
		OriginX: g.OriginX, OriginY: g.OriginY,
		Vals:  make([]float64, len(g.Vals)),
		Valid: make([]bool, len(g.Valid)),
	}
	copy(out.Vals, g.Vals)
	copy(out.Valid, g.Valid)
	return out
}

func (g *Grid) Fill(v float64) *Grid {
	for i := range g.Vals {
		g.Vals[i] = v
		g.Valid[i] = true
	}
	return g
}

func (g *Grid) At(col, row int) (float64, bool) {
	i := row*g.W + col
	return g.Vals[i], g.Valid[i]
}

func (g *Grid) Set(col, row int, v float64) {
	i := row*g.W + col
	g.Vals[i] = v
	g.Valid[i] = true
}

func (g *Grid) SetInvalid(col, row int) {
	g.Valid[row*g.W+col] = false
}

// CenterCoords returns the projected coordinates of a pixel center.
func (g *Grid) CenterCoords(col, row int) (x, y float64) {
	x = g.OriginX + (float64(col)+0.5)*g.Scale
	y = g.OriginY - (float64(row)+0.5)*g.Scale
	return x, y
}

// mapPixels applies fn to every valid pixel, preserving the validity mask.
func (g *Grid) mapPixels(fn func(v float64) float64) *Grid {
	out := g.Clone()
	for i, v := range g.Vals {
		if out.Valid[i] {
			out.Vals[i] = fn(v)
		}
	}
	return out
}

// resample returns the grid resampled (nearest neighbour) at the target
// scale and CRS. Resampling at the grid's own CRS and scale is a value
// preserving copy.
func (g *Grid) resample(crs string, scale float64) *Grid {
	if crs == g.CRS && scale == g.Scale {
		out := g.Clone()
		return out
	}
	w := int(math.Max(1, math.Round(float64(g.W)*g.Scale/scale)))
	h := int(math.Max(1, math.Round(float64(g.H)*g.Scale/scale)))
	out := &Grid{
		W: w, H: h, Scale: scale, CRS: crs,
		OriginX: g.OriginX, OriginY: g.OriginY,
		Vals:  make([]float64, w*h),
		Valid: make([]bool, w*h),
	}
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			x, y := out.CenterCoords(col, row)
			srcCol := int(math.Floor((x - g.OriginX) / g.Scale))
			srcRow := int(math.Floor((g.OriginY - y) / g.Scale))
			if srcCol < 0 || srcCol >= g.W || srcRow < 0 || srcRow >= g.H {
				continue
			}
			v, ok := g.At(srcCol, srcRow)
			if !ok {
				continue
			}
			out.Set(col, row, v)
		}
	}
	return out
}

// focal applies a circular min or max filter of the given pixel radius.
// Neighbours outside the grid or invalid are ignored; a pixel with no valid
// neighbour at all stays invalid.
func (g *Grid) focal(radius float64, max bool) *Grid {
	r := int(math.Ceil(radius))
	type offset struct{ dc, dr int }
	var offsets []offset
	for dr := -r; dr <= r; dr++ {
		for dc := -r; dc <= r; dc++ {
			if float64(dc*dc+dr*dr) <= radius*radius {
				offsets = append(offsets, offset{dc, dr})
			}
		}
	}

	out := g.Clone()
	for row := 0; row < g.H; row++ {
		for col := 0; col < g.W; col++ {
			best := math.NaN()
			found := false
			for _, o := range offsets {
				c, rr := col+o.dc, row+o.dr
				if c < 0 || c >= g.W || rr < 0 || rr >= g.H {
					continue
				}
				v, ok := g.At(c, rr)
				if !ok {
					continue
				}
				if !found || (max && v > best) || (!max && v < best) {
					best = v
					found = true
				}
			}
			if found {
				out.Set(col, row, best)
			} else {
				out.SetInvalid(col, row)
			}
		}
	}
	return out
}

// directionalDistance computes, per pixel, the distance in pixels to the
// nearest non-zero source pixel looking back along the azimuth (degrees
// counter-clockwise from grid east in the projected frame). Pixels with no
// source within maxDistance are invalid; source pixels carry distance 0.
func (g *Grid) directionalDistance(azimuthDeg, maxDistance float64) *Grid {
	rad := azimuthDeg * math.Pi / 180
	dCol := math.Cos(rad)
	dRow := math.Sin(rad) // row axis points down, so stepping back along the azimuth adds sin

	out := &Grid{
		W: g.W, H: g.H, Scale: g.Scale, CRS: g.CRS,
		OriginX: g.OriginX, OriginY: g.OriginY,
		Vals:  make([]float64, len(g.Vals)),
		Valid: make([]bool, len(g.Vals)),
	}
	steps := int(math.Floor(maxDistance))
	for row := 0; row < g.H; row++ {
		for col := 0; col < g.W; col++ {
			for k := 0; k <= steps; k++ {
				c := int(math.Round(float64(col) - float64(k)*dCol))
				rr := int(math.Round(float64(row) + float64(k)*dRow))
				if c < 0 || c >= g.W || rr < 0 || rr >= g.H {
					continue
				}
				v, ok := g.At(c, rr)
				if !ok || v == 0 {
					continue
				}
				out.Set(col, row, float64(k))
				break
			}
		}
	}
	return out
}
