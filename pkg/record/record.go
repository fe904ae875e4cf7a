// Package record provides the flat key-value record that flows through
// every stage of a rowstitch batch: input rows read from the CSV,
// per-row result rows returned by backend adapters, and the combined
// output rows. A record remembers the order in which its columns were
// first set, so tables built from records serialize with a stable,
// first-seen column order.
package record

import (
	"fmt"
	"strconv"
	"time"
)

// Record is a flat mapping from column name to scalar value. Values are
// one of string, int64, float64, bool, or nil. Column order is the
// order of first insertion.
type Record struct {
	columns []string
	values  map[string]interface{}
}

// New creates an empty record.
func New() *Record {
	return &Record{
		values: make(map[string]interface{}),
	}
}

// Set stores a value under the given column. A new column is appended
// to the column order; setting an existing column replaces its value
// in place.
func (r *Record) Set(column string, value interface{}) {
	if _, exists := r.values[column]; !exists {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns the value stored under the given column.
func (r *Record) Get(column string) (interface{}, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Has reports whether the column is present.
func (r *Record) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Columns returns the column names in first-insertion order. The
// returned slice is a copy.
func (r *Record) Columns() []string {
	cols := make([]string, len(r.columns))
	copy(cols, r.columns)
	return cols
}

// Len returns the number of columns.
func (r *Record) Len() int {
	return len(r.columns)
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	clone := &Record{
		columns: make([]string, len(r.columns)),
		values:  make(map[string]interface{}, len(r.values)),
	}
	copy(clone.columns, r.columns)
	for k, v := range r.values {
		clone.values[k] = v
	}
	return clone
}

// CoerceString renders a scalar value as a string, the way it appears
// in a serialized cell. Nil renders as the empty string.
func CoerceString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
