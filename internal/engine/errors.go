package engine

import "fmt"

// ConfigError reports a graph that is invalid before any remote round trip:
// malformed geometry, missing selectors, bad CRS or scale.
type ConfigError struct {
	Op     string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Op, e.Reason)
}

// UnsupportedError marks an intentionally disabled legacy operation. Callers
// referencing these paths fail fast instead of silently producing wrong
// results.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("operation %s is disabled and no longer supported", e.Op)
}

// RemoteError wraps a failure reported by the compute service while
// evaluating a graph. Retryable distinguishes transient service failures
// from permanent rejections of the submitted graph.
type RemoteError struct {
	Op        string
	Status    int
	Retryable bool
	Err       error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote evaluation of %s failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("remote evaluation of %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// DataShapeError reports a materialized table that does not match the
// expected shape (wrong column set, or row count != regions x images).
type DataShapeError struct {
	Op   string
	Want string
	Got  string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("unexpected data shape from %s: want %s, got %s", e.Op, e.Want, e.Got)
}
