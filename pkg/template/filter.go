package template

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/record"
)

// Filter is a compiled Mongo filter document template. String values in
// the document may embed {column} placeholders, which are substituted
// with the row's value coerced to string; non-string values pass
// through unchanged.
type Filter struct {
	doc map[string]interface{}
}

// CompileFilter parses a JSON filter document template. Malformed
// placeholders are rejected here so a bad template fails the job
// before the first row, never mid-batch.
func CompileFilter(spec string) (*Filter, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(spec), &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid filter template JSON")
	}
	if err := validateValue(doc); err != nil {
		return nil, err
	}
	return &Filter{doc: doc}, nil
}

func validateValue(value interface{}) error {
	switch v := value.(type) {
	case string:
		return validatePlaceholders(v)
	case map[string]interface{}:
		for _, elem := range v {
			if err := validateValue(elem); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, elem := range v {
			if err := validateValue(elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func validatePlaceholders(s string) error {
	rest := s
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return errors.New(errors.ErrorTypeConfig, "unterminated placeholder in filter template")
		}
		if end == 1 {
			return errors.New(errors.ErrorTypeConfig, "empty placeholder in filter template")
		}
		rest = rest[open+end+1:]
	}
}

// Bind resolves the filter template against one input row.
func (f *Filter) Bind(row *record.Record) (map[string]interface{}, error) {
	bound, err := bindValue(f.doc, row)
	if err != nil {
		return nil, err
	}
	return bound.(map[string]interface{}), nil
}

func bindValue(value interface{}, row *record.Record) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if !strings.ContainsRune(v, '{') {
			return v, nil
		}
		return substitute(v, row)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			bound, err := bindValue(elem, row)
			if err != nil {
				return nil, err
			}
			out[k] = bound
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			bound, err := bindValue(elem, row)
			if err != nil {
				return nil, err
			}
			out[i] = bound
		}
		return out, nil
	default:
		return v, nil
	}
}

// substitute replaces each {column} in s with the row's value coerced
// to string, matching the relational templates' substitution semantics.
func substitute(s string, row *record.Record) (string, error) {
	var sb strings.Builder

	rest := s
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			sb.WriteString(rest)
			return sb.String(), nil
		}
		sb.WriteString(rest[:open])

		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", errors.New(errors.ErrorTypeConfig, "unterminated placeholder in filter template")
		}
		name := rest[open+1 : open+end]
		if name == "" {
			return "", errors.New(errors.ErrorTypeConfig, "empty placeholder in filter template")
		}

		v, ok := row.Get(name)
		if !ok {
			return "", errors.Newf(errors.ErrorTypeQuery, "row has no column %q referenced by filter template", name)
		}
		sb.WriteString(record.CoerceString(v))

		rest = rest[open+end+1:]
	}
}
