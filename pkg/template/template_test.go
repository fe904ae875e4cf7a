package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/record"
)

func TestCompileSQL(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		style    Placeholder
		wantText string
		wantCols []string
	}{
		{
			name:     "postgres single placeholder",
			spec:     "SELECT * FROM users WHERE id = {user_id}",
			style:    PlaceholderDollar,
			wantText: "SELECT * FROM users WHERE id = $1",
			wantCols: []string{"user_id"},
		},
		{
			name:     "oracle multiple placeholders",
			spec:     "SELECT name FROM emp WHERE dept = {dept} AND grade = {grade}",
			style:    PlaceholderColon,
			wantText: "SELECT name FROM emp WHERE dept = :1 AND grade = :2",
			wantCols: []string{"dept", "grade"},
		},
		{
			name:     "repeated column gets its own placeholder",
			spec:     "SELECT 1 WHERE a = {x} OR b = {x}",
			style:    PlaceholderDollar,
			wantText: "SELECT 1 WHERE a = $1 OR b = $2",
			wantCols: []string{"x", "x"},
		},
		{
			name:     "no placeholders",
			spec:     "SELECT count(*) FROM t",
			style:    PlaceholderDollar,
			wantText: "SELECT count(*) FROM t",
			wantCols: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := CompileSQL(tt.spec, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, q.Text())
			assert.Equal(t, tt.wantCols, q.Columns())
		})
	}
}

func TestCompileSQL_Invalid(t *testing.T) {
	t.Run("unterminated placeholder", func(t *testing.T) {
		_, err := CompileSQL("SELECT * FROM t WHERE id = {user_id", PlaceholderDollar)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("empty placeholder", func(t *testing.T) {
		_, err := CompileSQL("SELECT * FROM t WHERE id = {}", PlaceholderDollar)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}

func TestSQL_Bind(t *testing.T) {
	q, err := CompileSQL("SELECT * FROM orders WHERE customer = {cust_id} AND region = {region}", PlaceholderDollar)
	require.NoError(t, err)

	row := record.New()
	row.Set("cust_id", int64(42))
	row.Set("region", "emea")

	text, args, err := q.Bind(row)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders WHERE customer = $1 AND region = $2", text)
	assert.Equal(t, []interface{}{int64(42), "emea"}, args)
}

func TestSQL_BindMissingColumn(t *testing.T) {
	q, err := CompileSQL("SELECT * FROM t WHERE id = {missing}", PlaceholderDollar)
	require.NoError(t, err)

	row := record.New()
	row.Set("present", 1)

	_, _, err = q.Bind(row)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
	assert.Contains(t, err.Error(), "missing")
}

func TestCompileFilter(t *testing.T) {
	f, err := CompileFilter(`{"customer_id": "{cust_id}", "status": "active"}`)
	require.NoError(t, err)

	row := record.New()
	row.Set("cust_id", int64(1001))

	doc, err := f.Bind(row)
	require.NoError(t, err)
	assert.Equal(t, "1001", doc["customer_id"])
	assert.Equal(t, "active", doc["status"])
}

func TestCompileFilter_Nested(t *testing.T) {
	f, err := CompileFilter(`{"meta": {"tag": "{tag}"}, "codes": ["{code}", "fixed"], "limit": 5}`)
	require.NoError(t, err)

	row := record.New()
	row.Set("tag", "gold")
	row.Set("code", 77)

	doc, err := f.Bind(row)
	require.NoError(t, err)

	meta, ok := doc["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "gold", meta["tag"])

	codes, ok := doc["codes"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "77", codes[0])
	assert.Equal(t, "fixed", codes[1])

	// Non-placeholder values pass through untouched
	assert.Equal(t, float64(5), doc["limit"])
}

func TestCompileFilter_MalformedPlaceholder(t *testing.T) {
	// Placeholder mistakes must surface at compile time, before any
	// rows are processed; JSON that parses is not enough.
	tests := []struct {
		name string
		spec string
	}{
		{"unterminated", `{"id": "{user_id"}`},
		{"empty", `{"id": "{}"}`},
		{"nested unterminated", `{"meta": {"tag": "{oops"}}`},
		{"unterminated in array", `{"codes": ["{code", "fixed"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileFilter(tt.spec)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestCompileFilter_InvalidJSON(t *testing.T) {
	_, err := CompileFilter(`{"unclosed": `)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFilter_BindMissingColumn(t *testing.T) {
	f, err := CompileFilter(`{"id": "{absent}"}`)
	require.NoError(t, err)

	row := record.New()
	row.Set("other", "value")

	_, err = f.Bind(row)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
}
