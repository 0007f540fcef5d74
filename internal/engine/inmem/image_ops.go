package inmem

import (
	"context"
	"math"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
)

func (s *Server) evalImageOp(ctx context.Context, e *engine.Expr, scope env) (any, error) {
	switch e.Op {
	case "image.select":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		return selectBands(img, e.Args["bands"].([]any))

	case "image.selectAt":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		idx := int(argFloat(e, "index"))
		if idx < 0 || idx >= len(img.bands) {
			return nil, remoteErr(e.Op, "band index %d out of range (%d bands)", idx, len(img.bands))
		}
		return &imageVal{bands: []band{img.bands[idx]}, props: img.props}, nil

	case "image.rename":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		names := e.Args["names"].([]any)
		if len(names) != len(img.bands) {
			return nil, remoteErr(e.Op, "rename with %d names for %d bands", len(names), len(img.bands))
		}
		out := &imageVal{props: img.props}
		for i, b := range img.bands {
			out.bands = append(out.bands, band{name: names[i].(string), grid: b.grid})
		}
		return out, nil

	case "image.gt":
		return s.threshold(ctx, e, scope, func(v, thr float64) bool { return v > thr })

	case "image.lt":
		return s.threshold(ctx, e, scope, func(v, thr float64) bool { return v < thr })

	case "image.neq":
		return s.threshold(ctx, e, scope, func(v, thr float64) bool { return v != thr })

	case "image.not":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		out := &imageVal{props: img.props}
		for _, b := range img.bands {
			out.bands = append(out.bands, band{name: b.name, grid: b.grid.mapPixels(func(v float64) float64 {
				if v == 0 {
					return 1
				}
				return 0
			})})
		}
		return out, nil

	case "image.add":
		return s.binary(ctx, e, scope, func(a, b float64) float64 { return a + b })

	case "image.multiply":
		return s.binary(ctx, e, scope, func(a, b float64) float64 { return a * b })

	case "image.normalizedDifference":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		b1, ok1 := img.bandNamed(argString(e, "band1"))
		b2, ok2 := img.bandNamed(argString(e, "band2"))
		if !ok1 || !ok2 {
			return nil, remoteErr(e.Op, "bands %q and %q not both present", argString(e, "band1"), argString(e, "band2"))
		}
		g := b1.grid.Clone()
		for i := range g.Vals {
			if !b1.grid.Valid[i] || !b2.grid.Valid[i] {
				g.Valid[i] = false
				continue
			}
			sum := b1.grid.Vals[i] + b2.grid.Vals[i]
			if sum == 0 {
				g.Valid[i] = false
				continue
			}
			g.Vals[i] = (b1.grid.Vals[i] - b2.grid.Vals[i]) / sum
		}
		return &imageVal{bands: []band{{name: "nd", grid: g}}, props: img.props}, nil

	case "image.addBands":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		out := img.clone()
		for _, in := range e.In[1:] {
			other, err := s.evalImage(ctx, in, scope)
			if err != nil {
				return nil, err
			}
			for _, b := range other.bands {
				name := b.name
				if _, taken := out.bandNamed(name); taken {
					name = name + "_1"
				}
				out.bands = append(out.bands, band{name: name, grid: b.grid})
			}
		}
		return out, nil

	case "image.directionalDistanceTransform":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		if len(img.bands) == 0 {
			return nil, remoteErr(e.Op, "%v", errNoBands)
		}
		azimuth, err := s.evalFloat(ctx, e.In[1], scope)
		if err != nil {
			return nil, err
		}
		g := img.bands[0].grid.directionalDistance(azimuth, argFloat(e, "maxDistance"))
		return &imageVal{bands: []band{{name: "distance", grid: g}}, props: img.props}, nil

	case "image.focalMin", "image.focalMax":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		max := e.Op == "image.focalMax"
		out := &imageVal{props: img.props}
		for _, b := range img.bands {
			out.bands = append(out.bands, band{name: b.name, grid: b.grid.focal(argFloat(e, "radius"), max)})
		}
		return out, nil

	case "image.projection":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		if len(img.bands) == 0 {
			return nil, remoteErr(e.Op, "%v", errNoBands)
		}
		return projVal{crs: img.bands[0].grid.CRS}, nil

	case "image.reproject":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		pv, err := s.eval(ctx, e.In[1], scope)
		if err != nil {
			return nil, err
		}
		proj, ok := pv.(projVal)
		if !ok {
			return nil, remoteErr(e.Op, "expected a projection, got %T", pv)
		}
		scale := argFloat(e, "scale")
		out := &imageVal{props: img.props}
		for _, b := range img.bands {
			out.bands = append(out.bands, band{name: b.name, grid: b.grid.resample(proj.crs, scale)})
		}
		return out, nil

	case "image.mask":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		out := &imageVal{props: img.props}
		for _, b := range img.bands {
			g := b.grid.Clone()
			for i := range g.Vals {
				if g.Valid[i] {
					g.Vals[i] = 1
				} else {
					g.Vals[i] = 0
				}
				g.Valid[i] = true
			}
			out.bands = append(out.bands, band{name: b.name, grid: g})
		}
		return out, nil

	case "image.updateMask":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		maskImg, err := s.evalImage(ctx, e.In[1], scope)
		if err != nil {
			return nil, err
		}
		if len(maskImg.bands) == 0 {
			return nil, remoteErr(e.Op, "%v", errNoBands)
		}
		m := maskImg.bands[0].grid
		out := &imageVal{props: img.props}
		for _, b := range img.bands {
			g := b.grid.Clone()
			for i := range g.Valid {
				mi := maskIndexFor(g, m, i)
				if mi < 0 || !m.Valid[mi] || m.Vals[mi] == 0 {
					g.Valid[i] = false
				}
			}
			out.bands = append(out.bands, band{name: b.name, grid: g})
		}
		return out, nil

	case "image.get":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		name := argString(e, "name")
		v, ok := img.props[name]
		if !ok {
			return nil, remoteErr(e.Op, "image has no property %q", name)
		}
		return v, nil

	case "image.date":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		t, ok := img.props["system:time_start"].(float64)
		if !ok {
			return nil, remoteErr(e.Op, "image has no system:time_start")
		}
		return t, nil

	case "date.millis":
		return s.evalFloat(ctx, e.In[0], scope)

	case "image.bandNames":
		img, err := s.evalImage(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(img.bands))
		for _, b := range img.bands {
			out = append(out, b.name)
		}
		return out, nil

	case "image.reduceRegions":
		return s.evalReduceRegions(ctx, e, scope)
	}

	return nil, remoteErr(e.Op, "unknown image operation")
}

// maskIndexFor maps pixel i of grid g onto the mask grid m, resampling by
// pixel-center lookup when the grids are not aligned.
func maskIndexFor(g, m *Grid, i int) int {
	if g.W == m.W && g.H == m.H && g.Scale == m.Scale {
		return i
	}
	col, row := i%g.W, i/g.W
	x, y := g.CenterCoords(col, row)
	mc := int(math.Floor((x - m.OriginX) / m.Scale))
	mr := int(math.Floor((m.OriginY - y) / m.Scale))
	if mc < 0 || mc >= m.W || mr < 0 || mr >= m.H {
		return -1
	}
	return mr*m.W + mc
}

func (s *Server) threshold(ctx context.Context, e *engine.Expr, scope env, keep func(v, thr float64) bool) (any, error) {
	img, err := s.evalImage(ctx, e.In[0], scope)
	if err != nil {
		return nil, err
	}
	thr := argFloat(e, "value")
	out := &imageVal{props: img.props}
	for _, b := range img.bands {
		out.bands = append(out.bands, band{name: b.name, grid: b.grid.mapPixels(func(v float64) float64 {
			if keep(v, thr) {
				return 1
			}
			return 0
		})})
	}
	return out, nil
}

// binary combines the bands of two images positionally; masks intersect.
func (s *Server) binary(ctx context.Context, e *engine.Expr, scope env, op func(a, b float64) float64) (any, error) {
	left, err := s.evalImage(ctx, e.In[0], scope)
	if err != nil {
		return nil, err
	}
	right, err := s.evalImage(ctx, e.In[1], scope)
	if err != nil {
		return nil, err
	}
	n := len(left.bands)
	if len(right.bands) < n {
		n = len(right.bands)
	}
	if n == 0 {
		return nil, remoteErr(e.Op, "%v", errNoBands)
	}
	out := &imageVal{props: left.props}
	for i := 0; i < n; i++ {
		a, b := left.bands[i].grid, right.bands[i].grid
		g := a.Clone()
		for j := range g.Vals {
			bj := maskIndexFor(a, b, j)
			if bj < 0 || !a.Valid[j] || !b.Valid[bj] {
				g.Valid[j] = false
				continue
			}
			g.Vals[j] = op(a.Vals[j], b.Vals[bj])
		}
		out.bands = append(out.bands, band{name: left.bands[i].name, grid: g})
	}
	return out, nil
}

func selectBands(img *imageVal, selectors []any) (any, error) {
	out := &imageVal{props: img.props}
	for _, sel := range selectors {
		name := sel.(string)
		if b, ok := img.bandNamed(name); ok {
			out.bands = append(out.bands, b)
			continue
		}
		re, err := compileBandPattern(name)
		if err != nil {
			return nil, remoteErr("image.select", "invalid band selector %q: %v", name, err)
		}
		for _, b := range img.bands {
			if re.MatchString(b.name) {
				out.bands = append(out.bands, b)
			}
		}
	}
	if len(out.bands) == 0 {
		return nil, remoteErr("image.select", "no band matches selectors %v", selectors)
	}
	return out, nil
}
