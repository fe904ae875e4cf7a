// Package csvio reads the input table and writes the combined output
// table. Both sides are comma-separated files with a header row. The
// loader infers cell types permissively; the writer serializes the
// union of all columns seen across the output rows, filling absent
// cells with the empty string.
package csvio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/record"
)

// Load reads a CSV file into an ordered slice of records. Any read or
// parse failure aborts the load; there are no partial loads.
func Load(path string) ([]*record.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeLoad, "failed to open input file")
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.ErrorTypeLoad, "input file has no header row")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeLoad, "failed to read header row")
	}

	var rows []*record.Record
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeLoad, "malformed input row")
		}

		row := record.New()
		for i, col := range header {
			if i < len(cells) {
				row.Set(col, inferScalar(cells[i]))
			} else {
				row.Set(col, nil)
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// inferScalar converts a raw cell into a typed scalar: integers become
// int64, other numerics float64, empty cells nil, everything else the
// original string.
func inferScalar(cell string) interface{} {
	if cell == "" {
		return nil
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}
