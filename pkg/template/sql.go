// Package template compiles parameterized query specs. A spec references
// input columns with {column_name} placeholders; SQL specs compile once
// into driver-native bind-variable form, and Mongo filter specs into a
// document template with string substitution. Binding fails if a
// referenced column is absent from the row.
package template

import (
	"strconv"
	"strings"

	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/record"
)

// Placeholder selects the bind-variable syntax of the target store.
type Placeholder int

const (
	// PlaceholderDollar produces $1, $2, ... (PostgreSQL)
	PlaceholderDollar Placeholder = iota
	// PlaceholderColon produces :1, :2, ... (Oracle)
	PlaceholderColon
)

// SQL is a compiled SQL query template. The text contains driver-native
// bind placeholders; columns lists the input columns feeding them, in
// placeholder order.
type SQL struct {
	text    string
	columns []string
}

// CompileSQL parses a {column} template into a bind-variable query.
func CompileSQL(spec string, style Placeholder) (*SQL, error) {
	var sb strings.Builder
	var columns []string

	rest := spec
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:open])

		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, errors.New(errors.ErrorTypeConfig, "unterminated placeholder in query template")
		}
		name := rest[open+1 : open+end]
		if name == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "empty placeholder in query template")
		}

		columns = append(columns, name)
		switch style {
		case PlaceholderColon:
			sb.WriteString(":")
		default:
			sb.WriteString("$")
		}
		sb.WriteString(strconv.Itoa(len(columns)))

		rest = rest[open+end+1:]
	}

	return &SQL{text: sb.String(), columns: columns}, nil
}

// Text returns the compiled query text with bind placeholders.
func (q *SQL) Text() string {
	return q.text
}

// Columns returns the referenced input columns in placeholder order.
func (q *SQL) Columns() []string {
	cols := make([]string, len(q.columns))
	copy(cols, q.columns)
	return cols
}

// Bind resolves the template against one input row, returning the query
// text and the argument list. Referenced columns missing from the row
// are a query error.
func (q *SQL) Bind(row *record.Record) (string, []interface{}, error) {
	args := make([]interface{}, 0, len(q.columns))
	for _, col := range q.columns {
		v, ok := row.Get(col)
		if !ok {
			return "", nil, errors.Newf(errors.ErrorTypeQuery, "row has no column %q referenced by query template", col)
		}
		args = append(args, v)
	}
	return q.text, args, nil
}
