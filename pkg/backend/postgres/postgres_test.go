package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowstitch/rowstitch/pkg/backend"
	"github.com/rowstitch/rowstitch/pkg/config"
	"github.com/rowstitch/rowstitch/pkg/errors"
)

func validConfig() *config.Backend {
	return &config.Backend{
		Name: "postgres",
		Kind: "postgres",
		Credentials: map[string]string{
			"connection_string": "postgres://localhost:5432/app",
		},
		Query: "SELECT * FROM orders WHERE customer_id = {id}",
	}
}

func TestNew(t *testing.T) {
	b, err := New(validConfig())
	require.NoError(t, err)
	assert.Equal(t, "postgres", b.Name())
	assert.Equal(t, backend.StateDisconnected, b.State())
}

func TestNew_MissingQuery(t *testing.T) {
	cfg := validConfig()
	cfg.Query = ""

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "query template is required")
}

func TestNew_BadTemplate(t *testing.T) {
	cfg := validConfig()
	cfg.Query = "SELECT * FROM t WHERE id = {unclosed"

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLookup_RequiresConnection(t *testing.T) {
	b, err := New(validConfig())
	require.NoError(t, err)

	_, err = b.Lookup(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestClose_WithoutConnect(t *testing.T) {
	b, err := New(validConfig())
	require.NoError(t, err)
	assert.NoError(t, b.Close(context.Background()))
}

func TestFlattenValue(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  interface{}
	}{
		{"nil", nil, nil},
		{"string", "hello", "hello"},
		{"int16 widens", int16(3), int64(3)},
		{"int32 widens", int32(7), int64(7)},
		{"int64", int64(9), int64(9)},
		{"float32 widens", float32(1.5), 1.5},
		{"float64", 2.5, 2.5},
		{"bool", true, true},
		{"bytea", []byte("blob"), "blob"},
		{"timestamp", ts, "2024-03-15T12:30:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flattenValue(tt.value))
		})
	}
}
