package csvio

import (
	"encoding/csv"
	"os"

	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/record"
)

// Write serializes the rows to a CSV file. The header is the union of
// all columns across all rows, in first-seen order scanning the rows
// top to bottom; rows missing a column serialize that cell empty.
// There is no atomic-write guarantee: a failure partway through may
// leave a truncated file.
func Write(rows []*record.Record, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "failed to create output file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := unionColumns(rows)
	if len(header) == 0 {
		// Nothing to serialize; leave an empty file rather than a bare newline.
		return nil
	}
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "failed to write header row")
	}

	cells := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			if v, ok := row.Get(col); ok {
				cells[i] = record.CoerceString(v)
			} else {
				cells[i] = ""
			}
		}
		if err := writer.Write(cells); err != nil {
			return errors.Wrap(err, errors.ErrorTypeWrite, "failed to write row")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "failed to flush output")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeWrite, "failed to close output file")
	}

	return nil
}

// unionColumns collects every column seen across the rows, preserving
// first-seen order.
func unionColumns(rows []*record.Record) []string {
	var header []string
	seen := make(map[string]struct{})

	for _, row := range rows {
		for _, col := range row.Columns() {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				header = append(header, col)
			}
		}
	}

	return header
}
