// Package engine builds lazily evaluated raster/vector computation graphs for
// the remote geospatial compute service. Every type in this package is an
// immutable description of a deferred computation; nothing touches pixels
// until a Backend resolves the graph.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Expr is one node of a computation description. Graphs are serialized as
// JSON and submitted to the compute service in a single request.
type Expr struct {
	Op   string         `json:"op"`
	Args map[string]any `json:"args,omitempty"`
	In   []*Expr        `json:"in,omitempty"`
}

func newExpr(op string, args map[string]any, in ...*Expr) *Expr {
	return &Expr{Op: op, Args: args, In: in}
}

// Backend evaluates a description graph. Resolve is the only blocking
// operation in the package: it submits the graph and waits for the concrete
// value (number, string, list, property map or row data).
type Backend interface {
	Resolve(ctx context.Context, expr *Expr) (any, error)
}

var argCounter atomic.Int64

// nextArgName returns a fresh argument name for a mapped function body, so
// nested maps never capture each other's element.
func nextArgName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, argCounter.Add(1))
}

func fnExpr(argName string, body *Expr) *Expr {
	return newExpr("fn", map[string]any{"arg": argName}, body)
}

func argRef(name string) *Expr {
	return newExpr("argRef", map[string]any{"name": name})
}
