// Package combine merges one input row with the per-backend lookup
// results into a single wide output record.
//
// Result columns are namespaced as {backend}_{lowercased_key}_{index},
// where index is the zero-based position of the result row in the
// backend's returned order. Namespacing keeps generated columns from
// colliding with original input columns; an input CSV that already
// contains a column matching the generated pattern is an accepted edge
// case and is not handled specially.
package combine

import (
	"strconv"
	"strings"

	"github.com/rowstitch/rowstitch/pkg/record"
)

// Result holds one backend's lookup results for a single input row.
type Result struct {
	// Backend is the namespace prefix for generated columns.
	Backend string
	// Rows are the result rows, in the order the backend returned them.
	Rows []*record.Record
}

// Rows merges an input row with backend results into a combined record.
// It is pure: the input row is cloned, never mutated, and identical
// inputs always produce an identical combined record. With no results
// the combined record equals the input row.
func Rows(row *record.Record, results []Result) *record.Record {
	combined := row.Clone()

	for _, result := range results {
		for i, res := range result.Rows {
			for _, key := range res.Columns() {
				v, _ := res.Get(key)
				combined.Set(Key(result.Backend, key, i), v)
			}
		}
	}

	return combined
}

// Key builds the namespaced output column name for one result value.
func Key(backend, key string, index int) string {
	var sb strings.Builder
	sb.Grow(len(backend) + len(key) + 4)
	sb.WriteString(backend)
	sb.WriteByte('_')
	sb.WriteString(strings.ToLower(key))
	sb.WriteByte('_')
	sb.WriteString(strconv.Itoa(index))
	return sb.String()
}
