package inmem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
	"github.com/paulmach/orb"
)

// Server evaluates engine expression graphs over registered in-memory
// imagery. It implements engine.Backend.
type Server struct {
	collections map[string][]*ImageData
}

func NewServer() *Server {
	return &Server{collections: make(map[string][]*ImageData)}
}

// AddImage registers an image under a named source collection. Images keep
// their registration order.
func (s *Server) AddImage(source string, img *ImageData) {
	s.collections[source] = append(s.collections[source], img)
}

// Resolve evaluates the graph and returns the materialized value: a number,
// a string, a list, or a property map.
func (s *Server) Resolve(ctx context.Context, expr *engine.Expr) (any, error) {
	v, err := s.eval(ctx, expr, nil)
	if err != nil {
		return nil, err
	}
	return finalize(expr.Op, v)
}

// finalize rejects values that have no concrete client-side representation.
func finalize(op string, v any) (any, error) {
	switch v.(type) {
	case float64, string, []any, map[string]any, []byte, nil:
		return v, nil
	}
	return nil, &engine.RemoteError{Op: op, Err: fmt.Errorf("value of type %T cannot be materialized", v)}
}

type env map[string]any

func (e env) bind(name string, v any) env {
	out := make(env, len(e)+1)
	for k, val := range e {
		out[k] = val
	}
	out[name] = v
	return out
}

func remoteErr(op string, format string, args ...any) error {
	return &engine.RemoteError{Op: op, Err: fmt.Errorf(format, args...)}
}

func (s *Server) eval(ctx context.Context, e *engine.Expr, scope env) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &engine.RemoteError{Op: e.Op, Err: err}
	}

	switch e.Op {
	case "argRef":
		name := argString(e, "name")
		v, ok := scope[name]
		if !ok {
			return nil, remoteErr(e.Op, "unbound argument %q", name)
		}
		return v, nil

	case "literal":
		return e.Args["value"], nil

	case "number":
		return argFloat(e, "value"), nil

	case "number.subtract":
		a, err := s.evalFloat(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		b, err := s.evalFloat(ctx, e.In[1], scope)
		if err != nil {
			return nil, err
		}
		return a - b, nil

	case "imageCollection":
		source := argString(e, "source")
		imgs, ok := s.collections[source]
		if !ok {
			return nil, remoteErr(e.Op, "unknown collection source %q", source)
		}
		col := &colVal{}
		for _, d := range imgs {
			col.elems = append(col.elems, d.toVal())
		}
		return col, nil

	case "filterDate":
		col, err := s.evalCollection(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		start, end := argFloat(e, "start"), argFloat(e, "end")
		out := &colVal{}
		for _, el := range col.elems {
			iv := el.(*imageVal)
			t, _ := iv.props["system:time_start"].(float64)
			if t >= start && t < end {
				out.elems = append(out.elems, iv)
			}
		}
		return out, nil

	case "filterBounds":
		col, err := s.evalCollection(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		g, err := s.evalGeometry(ctx, e.In[1], scope)
		if err != nil {
			return nil, err
		}
		bound := g.poly.Bound()
		out := &colVal{}
		for _, el := range col.elems {
			iv := el.(*imageVal)
			if footprint(iv).Intersects(bound) {
				out.elems = append(out.elems, iv)
			}
		}
		return out, nil

	case "filter":
		col, err := s.evalCollection(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		f, err := s.evalFilter(ctx, e.In[1], scope)
		if err != nil {
			return nil, err
		}
		if f.kind != "lte" {
			return nil, remoteErr(e.Op, "filter kind %q cannot be applied to a collection", f.kind)
		}
		out := &colVal{}
		for _, el := range col.elems {
			iv := el.(*imageVal)
			v, ok := iv.props[f.field].(float64)
			if ok && v <= f.value {
				out.elems = append(out.elems, iv)
			}
		}
		return out, nil

	case "filter.lte":
		return filterVal{kind: "lte", field: argString(e, "field"), value: argFloat(e, "value")}, nil

	case "filter.equals":
		return filterVal{kind: "equals", leftField: argString(e, "leftField"), rightField: argString(e, "rightField")}, nil

	case "join.saveFirst":
		return joinVal{matchKey: argString(e, "matchKey")}, nil

	case "join.apply":
		return s.evalJoin(ctx, e, scope)

	case "map":
		col, err := s.evalCollection(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		fn := e.In[1]
		arg := argString(fn, "arg")
		out := &colVal{}
		for _, el := range col.elems {
			mapped, err := s.eval(ctx, fn.In[0], scope.bind(arg, el))
			if err != nil {
				return nil, err
			}
			out.elems = append(out.elems, mapped)
		}
		return out, nil

	case "flatten":
		col, err := s.evalCollection(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		out := &fcVal{}
		for _, el := range col.elems {
			fc, ok := el.(*fcVal)
			if !ok {
				return nil, remoteErr(e.Op, "flatten over a collection of %T", el)
			}
			out.features = append(out.features, fc.features...)
		}
		return out, nil

	case "first":
		v, err := s.eval(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		switch c := v.(type) {
		case *colVal:
			if len(c.elems) == 0 {
				return nil, remoteErr(e.Op, "first() on an empty collection")
			}
			return c.elems[0], nil
		case *fcVal:
			if len(c.features) == 0 {
				return nil, remoteErr(e.Op, "first() on an empty feature collection")
			}
			return c.features[0], nil
		}
		return nil, remoteErr(e.Op, "first() on a non-collection %T", v)

	case "size":
		v, err := s.eval(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		switch c := v.(type) {
		case *colVal:
			return float64(len(c.elems)), nil
		case *fcVal:
			return float64(len(c.features)), nil
		}
		return nil, remoteErr(e.Op, "size() on a non-collection %T", v)

	case "aggregateArray":
		col, err := s.evalCollection(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		prop := argString(e, "property")
		out := make([]any, 0, len(col.elems))
		for _, el := range col.elems {
			iv, ok := el.(*imageVal)
			if !ok {
				return nil, remoteErr(e.Op, "aggregate over a collection of %T", el)
			}
			out = append(out, iv.props[prop])
		}
		return out, nil

	case "geometry.polygon", "geometry.rectangle":
		return evalGeometryLiteral(e)

	case "feature":
		g, err := s.evalGeometry(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		props := map[string]any{}
		if p, ok := e.Args["properties"].(map[string]any); ok {
			for k, v := range p {
				props[k] = v
			}
		}
		return &featureVal{geom: g, props: props}, nil

	case "featureCollection":
		out := &fcVal{}
		for _, in := range e.In {
			f, err := s.evalFeature(ctx, in, scope)
			if err != nil {
				return nil, err
			}
			out.features = append(out.features, f)
		}
		return out, nil

	case "feature.set":
		f, err := s.evalFeature(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		v, err := s.eval(ctx, e.In[1], scope)
		if err != nil {
			return nil, err
		}
		out := f.clone()
		out.props[argString(e, "name")] = v
		return out, nil

	case "feature.propertyNames":
		f, err := s.evalFeature(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(f.props))
		for k := range f.props {
			names = append(names, k)
		}
		sort.Strings(names)
		out := make([]any, 0, len(names))
		for _, n := range names {
			out = append(out, n)
		}
		return out, nil

	case "fc.map":
		fc, err := s.evalFC(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		fn := e.In[1]
		arg := argString(fn, "arg")
		out := &fcVal{}
		for _, f := range fc.features {
			mapped, err := s.eval(ctx, fn.In[0], scope.bind(arg, f))
			if err != nil {
				return nil, err
			}
			mf, ok := mapped.(*featureVal)
			if !ok {
				return nil, remoteErr(e.Op, "mapped function returned %T, want feature", mapped)
			}
			out.features = append(out.features, mf)
		}
		return out, nil

	case "fc.reduceColumns":
		return s.evalReduceColumns(ctx, e, scope)

	case "dict.get":
		d, err := s.eval(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		dict, ok := d.(map[string]any)
		if !ok {
			return nil, remoteErr(e.Op, "get on a non-dictionary %T", d)
		}
		return dict[argString(e, "key")], nil

	case "reducer.mean":
		return reducerVal{kind: "mean"}, nil

	case "reducer.toList":
		return reducerVal{kind: "toList", tupleSize: int(argFloat(e, "tupleSize"))}, nil

	case "reducer.repeat":
		r, err := s.evalReducer(ctx, e.In[0], scope)
		if err != nil {
			return nil, err
		}
		r.repeat = int(argFloat(e, "count"))
		return r, nil

	case "image.export":
		return nil, &engine.UnsupportedError{Op: "image.export"}
	}

	if strings.HasPrefix(e.Op, "image.") || e.Op == "date.millis" {
		return s.evalImageOp(ctx, e, scope)
	}

	return nil, remoteErr(e.Op, "unknown operation")
}

func (s *Server) evalJoin(ctx context.Context, e *engine.Expr, scope env) (any, error) {
	jv, err := s.eval(ctx, e.In[0], scope)
	if err != nil {
		return nil, err
	}
	join, ok := jv.(joinVal)
	if !ok {
		return nil, remoteErr(e.Op, "apply on a non-join %T", jv)
	}
	primary, err := s.evalCollection(ctx, e.In[1], scope)
	if err != nil {
		return nil, err
	}
	secondary, err := s.evalCollection(ctx, e.In[2], scope)
	if err != nil {
		return nil, err
	}
	cond, err := s.evalFilter(ctx, e.In[3], scope)
	if err != nil {
		return nil, err
	}
	if cond.kind != "equals" {
		return nil, remoteErr(e.Op, "join condition must be a field equality filter")
	}

	out := &colVal{}
	for _, el := range primary.elems {
		p := el.(*imageVal)
		left := p.props[cond.leftField]
		for _, sel := range secondary.elems {
			sec := sel.(*imageVal)
			if left != nil && left == sec.props[cond.rightField] {
				joined := p.clone()
				joined.props[join.matchKey] = sec
				out.elems = append(out.elems, joined)
				break
			}
		}
		// No match: the primary is dropped (inner join).
	}
	return out, nil
}

func (s *Server) evalFloat(ctx context.Context, e *engine.Expr, scope env) (float64, error) {
	v, err := s.eval(ctx, e, scope)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	}
	return 0, remoteErr(e.Op, "expected a number, got %T", v)
}

func (s *Server) evalCollection(ctx context.Context, e *engine.Expr, scope env) (*colVal, error) {
	v, err := s.eval(ctx, e, scope)
	if err != nil {
		return nil, err
	}
	c, ok := v.(*colVal)
	if !ok {
		return nil, remoteErr(e.Op, "expected a collection, got %T", v)
	}
	return c, nil
}

func (s *Server) evalImage(ctx context.Context, e *engine.Expr, scope env) (*imageVal, error) {
	v, err := s.eval(ctx, e, scope)
	if err != nil {
		return nil, err
	}
	iv, ok := v.(*imageVal)
	if !ok {
		return nil, remoteErr(e.Op, "expected an image, got %T", v)
	}
	return iv, nil
}

func (s *Server) evalGeometry(ctx context.Context, e *engine.Expr, scope env) (geomVal, error) {
	v, err := s.eval(ctx, e, scope)
	if err != nil {
		return geomVal{}, err
	}
	g, ok := v.(geomVal)
	if !ok {
		return geomVal{}, remoteErr(e.Op, "expected a geometry, got %T", v)
	}
	return g, nil
}

func (s *Server) evalFeature(ctx context.Context, e *engine.Expr, scope env) (*featureVal, error) {
	v, err := s.eval(ctx, e, scope)
	if err != nil {
		return nil, err
	}
	f, ok := v.(*featureVal)
	if !ok {
		return nil, remoteErr(e.Op, "expected a feature, got %T", v)
	}
	return f, nil
}

func (s *Server) evalFC(ctx context.Context, e *engine.Expr, scope env) (*fcVal, error) {
	v, err := s.eval(ctx, e, scope)
	if err != nil {
		return nil, err
	}
	fc, ok := v.(*fcVal)
	if !ok {
		return nil, remoteErr(e.Op, "expected a feature collection, got %T", v)
	}
	return fc, nil
}

func (s *Server) evalFilter(ctx context.Context, e *engine.Expr, scope env) (filterVal, error) {
	v, err := s.eval(ctx, e, scope)
	if err != nil {
		return filterVal{}, err
	}
	f, ok := v.(filterVal)
	if !ok {
		return filterVal{}, remoteErr(e.Op, "expected a filter, got %T", v)
	}
	return f, nil
}

func (s *Server) evalReducer(ctx context.Context, e *engine.Expr, scope env) (reducerVal, error) {
	v, err := s.eval(ctx, e, scope)
	if err != nil {
		return reducerVal{}, err
	}
	r, ok := v.(reducerVal)
	if !ok {
		return reducerVal{}, remoteErr(e.Op, "expected a reducer, got %T", v)
	}
	return r, nil
}

func evalGeometryLiteral(e *engine.Expr) (geomVal, error) {
	crs := argString(e, "crs")
	if e.Op == "geometry.rectangle" {
		c := e.Args["coordinates"].([]any)
		xmin, ymin := toF(c[0]), toF(c[1])
		xmax, ymax := toF(c[2]), toF(c[3])
		ring := orb.Ring{
			{xmin, ymin}, {xmax, ymin}, {xmax, ymax}, {xmin, ymax}, {xmin, ymin},
		}
		return geomVal{poly: orb.Polygon{ring}, crs: crs}, nil
	}
	rings := e.Args["coordinates"].([]any)
	var poly orb.Polygon
	for _, r := range rings {
		var ring orb.Ring
		for _, pt := range r.([]any) {
			p := pt.([]any)
			ring = append(ring, orb.Point{toF(p[0]), toF(p[1])})
		}
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		poly = append(poly, ring)
	}
	return geomVal{poly: poly, crs: crs}, nil
}

func footprint(iv *imageVal) orb.Bound {
	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, b := range iv.bands {
		g := b.grid
		bound = bound.Union(orb.Bound{
			Min: orb.Point{g.OriginX, g.OriginY - float64(g.H)*g.Scale},
			Max: orb.Point{g.OriginX + float64(g.W)*g.Scale, g.OriginY},
		})
	}
	return bound
}

var errNoBands = errors.New("image has no bands")

func argString(e *engine.Expr, key string) string {
	s, _ := e.Args[key].(string)
	return s
}

func argFloat(e *engine.Expr, key string) float64 {
	return toF(e.Args[key])
}

func toF(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func compileBandPattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}
