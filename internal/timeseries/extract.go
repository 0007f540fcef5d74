package timeseries

import (
	"context"
	"fmt"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
)

// Extract maps the reduction over every image of the collection, flattens
// the per-image results and materializes them into a Table. The whole
// extraction is submitted as one bulk computation graph; when selectors is
// nil they are inferred from the first realized result, which costs one
// extra round trip before the main one.
func Extract(ctx context.Context, be engine.Backend, col engine.ImageCollection,
	reduceFn func(engine.Image) engine.FeatureCollection, selectors []string) (*Table, error) {

	mapped := col.MapToFeatures(reduceFn)

	if selectors == nil {
		inferred, err := mapped.First().First().PropertyNames().GetInfo(ctx, be)
		if err != nil {
			return nil, fmt.Errorf("failed to infer property selectors: %w", err)
		}
		if len(inferred) == 0 {
			return nil, &engine.RemoteError{Op: "extract", Err: fmt.Errorf("first result has no properties to select")}
		}
		selectors = inferred
	}

	flat := mapped.Flatten()
	dict, err := flat.ReduceColumns(engine.ToList(len(selectors)), selectors)
	if err != nil {
		return nil, err
	}
	raw, err := dict.Get("list").GetInfo(ctx, be)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize time series: %w", err)
	}

	table := &Table{Columns: selectors}
	for _, r := range raw {
		tuple, ok := r.([]any)
		if !ok || len(tuple) != len(selectors) {
			return nil, &engine.DataShapeError{
				Op:   "extract",
				Want: fmt.Sprintf("tuples of %d values", len(selectors)),
				Got:  fmt.Sprintf("%T", r),
			}
		}
		table.Rows = append(table.Rows, tuple)
	}

	if err := table.deriveTimestamps(); err != nil {
		return nil, err
	}
	return table, nil
}
