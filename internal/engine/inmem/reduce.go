package inmem

import (
	"context"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// evalReduceRegions applies a reducer over every region geometry against the
// image's bands. Bands are resampled at the requested scale; the mean of the
// valid pixels whose centers fall inside the region is recorded per band.
// A single reduced band is stored under the reducer's name, several bands
// under their own names. Regions with no valid pixel get a nil value.
func (s *Server) evalReduceRegions(ctx context.Context, e *engine.Expr, scope env) (any, error) {
	img, err := s.evalImage(ctx, e.In[0], scope)
	if err != nil {
		return nil, err
	}
	regions, err := s.evalFC(ctx, e.In[1], scope)
	if err != nil {
		return nil, err
	}
	reducer, err := s.evalReducer(ctx, e.In[2], scope)
	if err != nil {
		return nil, err
	}
	if reducer.kind != "mean" {
		return nil, remoteErr(e.Op, "reducer %q is not a region reducer", reducer.kind)
	}
	crs := argString(e, "crs")
	scale := argFloat(e, "scale")
	if scale <= 0 {
		return nil, remoteErr(e.Op, "non-positive scale %v", scale)
	}

	out := &fcVal{}
	for _, region := range regions.features {
		f := region.clone()
		for _, b := range img.bands {
			g := b.grid.resample(crs, scale)
			sum, count := 0.0, 0
			for row := 0; row < g.H; row++ {
				for col := 0; col < g.W; col++ {
					v, ok := g.At(col, row)
					if !ok {
						continue
					}
					x, y := g.CenterCoords(col, row)
					if !planar.PolygonContains(region.geom.poly, orb.Point{x, y}) {
						continue
					}
					sum += v
					count++
				}
			}
			name := b.name
			if len(img.bands) == 1 {
				name = reducer.kind
			}
			if count == 0 {
				f.props[name] = nil
			} else {
				f.props[name] = sum / float64(count)
			}
		}
		out.features = append(out.features, f)
	}
	return out, nil
}

// evalReduceColumns materializes selected feature properties. A toList
// reducer with a matching tuple size yields one tuple per feature (row
// orientation); with Repeat it yields one list per selector (column
// orientation).
func (s *Server) evalReduceColumns(ctx context.Context, e *engine.Expr, scope env) (any, error) {
	fc, err := s.evalFC(ctx, e.In[0], scope)
	if err != nil {
		return nil, err
	}
	reducer, err := s.evalReducer(ctx, e.In[1], scope)
	if err != nil {
		return nil, err
	}
	if reducer.kind != "toList" {
		return nil, remoteErr(e.Op, "reducer %q is not a column reducer", reducer.kind)
	}
	rawSel := e.Args["selectors"].([]any)
	selectors := make([]string, 0, len(rawSel))
	for _, s := range rawSel {
		selectors = append(selectors, s.(string))
	}

	if reducer.repeat > 0 {
		if reducer.repeat != len(selectors) {
			return nil, remoteErr(e.Op, "reducer repeated %d times for %d selectors", reducer.repeat, len(selectors))
		}
		columns := make([]any, len(selectors))
		for i, sel := range selectors {
			col := make([]any, 0, len(fc.features))
			for _, f := range fc.features {
				col = append(col, f.props[sel])
			}
			columns[i] = col
		}
		return map[string]any{"list": columns}, nil
	}

	if reducer.tupleSize != len(selectors) {
		return nil, remoteErr(e.Op, "tuple size %d does not match %d selectors", reducer.tupleSize, len(selectors))
	}
	rows := make([]any, 0, len(fc.features))
	for _, f := range fc.features {
		tuple := make([]any, 0, len(selectors))
		for _, sel := range selectors {
			tuple = append(tuple, f.props[sel])
		}
		rows = append(rows, tuple)
	}
	return map[string]any{"list": rows}, nil
}
