package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/engine"
)

// Table is a materialized time series: one row per region per image.
// When a "millis" column is present, Timestamps holds the derived
// date-time per row and rows are ordered chronologically.
type Table struct {
	Columns    []string    `json:"columns"`
	Rows       [][]any     `json:"rows"`
	Timestamps []time.Time `json:"timestamps,omitempty"`
}

// NewTable assembles a table from already-materialized rows, deriving the
// timestamp column and chronological ordering when millis is present.
func NewTable(columns []string, rows [][]any) (*Table, error) {
	for _, row := range rows {
		if len(row) != len(columns) {
			return nil, &engine.DataShapeError{
				Op:   "table.new",
				Want: fmt.Sprintf("rows of %d values", len(columns)),
				Got:  fmt.Sprintf("row of %d values", len(row)),
			}
		}
	}
	t := &Table{Columns: columns, Rows: rows}
	if err := t.deriveTimestamps(); err != nil {
		return nil, err
	}
	return t, nil
}

// millisColumn returns the index of the millis column, or -1.
func (t *Table) millisColumn() int {
	for i, c := range t.Columns {
		if c == "millis" {
			return i
		}
	}
	return -1
}

// deriveTimestamps fills Timestamps from the millis column and sorts rows
// chronologically (stable, so region order within an image is kept).
func (t *Table) deriveTimestamps() error {
	mi := t.millisColumn()
	if mi < 0 {
		return nil
	}
	t.Timestamps = make([]time.Time, len(t.Rows))
	for i, row := range t.Rows {
		ms, ok := row[mi].(float64)
		if !ok {
			return &engine.DataShapeError{Op: "table.timestamps", Want: "numeric millis column", Got: fmt.Sprintf("%T", row[mi])}
		}
		t.Timestamps[i] = time.UnixMilli(int64(ms)).UTC()
	}

	type indexed struct {
		ts  time.Time
		row []any
	}
	tmp := make([]indexed, len(t.Rows))
	for i := range t.Rows {
		tmp[i] = indexed{ts: t.Timestamps[i], row: t.Rows[i]}
	}
	sort.SliceStable(tmp, func(i, j int) bool { return tmp[i].ts.Before(tmp[j].ts) })
	for i := range tmp {
		t.Timestamps[i] = tmp[i].ts
		t.Rows[i] = tmp[i].row
	}
	return nil
}

// ValidateShape checks the row count against regions x images.
func (t *Table) ValidateShape(regions, images int) error {
	want := regions * images
	if len(t.Rows) != want {
		return &engine.DataShapeError{
			Op:   "table.validate",
			Want: fmt.Sprintf("%d rows (%d regions x %d images)", want, regions, images),
			Got:  fmt.Sprintf("%d rows", len(t.Rows)),
		}
	}
	return nil
}

// WriteCSV streams the table with a header row. A derived timestamp column
// is appended when present.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{}, t.Columns...)
	if t.Timestamps != nil {
		header = append(header, "timestamp")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}
	for i, row := range t.Rows {
		rec := make([]string, 0, len(header))
		for _, v := range row {
			rec = append(rec, formatCell(v))
		}
		if t.Timestamps != nil {
			rec = append(rec, t.Timestamps[i].Format(time.RFC3339))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// FeatureCollectionToDict was a raw bulk property transfer. Unclear purpose,
// so disabled; callers must fail fast rather than move wrong data around.
func FeatureCollectionToDict(fc engine.FeatureCollection) (map[string]any, error) {
	return nil, &engine.UnsupportedError{Op: "timeseries.featureCollectionToDict"}
}

// DictToTable built a table from a bulk property dictionary. Disabled along
// with FeatureCollectionToDict.
func DictToTable(dict map[string]any) (*Table, error) {
	return nil, &engine.UnsupportedError{Op: "timeseries.dictToTable"}
}
