// Package oracle provides the Oracle backend adapter, built on
// database/sql with the pure-Go sijms/go-ora driver.
package oracle

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/sijms/go-ora/v2"
	"go.uber.org/zap"

	"github.com/rowstitch/rowstitch/pkg/backend"
	"github.com/rowstitch/rowstitch/pkg/config"
	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/logger"
	"github.com/rowstitch/rowstitch/pkg/record"
	"github.com/rowstitch/rowstitch/pkg/template"
)

func init() {
	_ = backend.Register("oracle", New)
}

// Oracle is the Oracle adapter.
type Oracle struct {
	name    string
	connStr string
	query   *template.SQL

	db    *sql.DB
	state backend.State

	rowsReturned int64
	logger       *zap.Logger
}

// New creates an Oracle adapter from its backend configuration. The
// query template is compiled to :n bind variables up front.
func New(cfg *config.Backend) (backend.Backend, error) {
	if cfg.Query == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "query template is required")
	}

	query, err := template.CompileSQL(cfg.Query, template.PlaceholderColon)
	if err != nil {
		return nil, err
	}

	return &Oracle{
		name:    cfg.Name,
		connStr: cfg.Credentials["connection_string"],
		query:   query,
		logger:  logger.Get().With(zap.String("backend", cfg.Name)),
	}, nil
}

// Name returns the backend's namespace prefix.
func (o *Oracle) Name() string {
	return o.name
}

// State reports the adapter's connection state.
func (o *Oracle) State() backend.State {
	return o.state
}

// Connect opens and verifies the Oracle connection.
func (o *Oracle) Connect(ctx context.Context) error {
	db, err := sql.Open("oracle", o.connStr)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to open Oracle connection")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach Oracle")
	}

	o.db = db
	o.state = backend.StateConnected

	o.logger.Info("connected to Oracle")
	return nil
}

// Lookup executes the bound query for one input row.
func (o *Oracle) Lookup(ctx context.Context, row *record.Record) ([]*record.Record, error) {
	if o.state != backend.StateConnected {
		return nil, errors.New(errors.ErrorTypeConnection, "oracle backend not connected")
	}

	text, args, err := o.query.Bind(row)
	if err != nil {
		return nil, err
	}

	rows, err := o.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to execute query")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read result columns")
	}

	values := make([]interface{}, len(columns))
	scanTargets := make([]interface{}, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	var results []*record.Record
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan result row")
		}

		res := record.New()
		for i, col := range columns {
			res.Set(col, flattenValue(values[i]))
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "error iterating result rows")
	}

	o.rowsReturned += int64(len(results))
	o.logger.Debug("query returned", zap.Int("rows", len(results)))

	return results, nil
}

// Close releases the connection.
func (o *Oracle) Close(ctx context.Context) error {
	if o.db == nil {
		return nil
	}

	err := o.db.Close()
	o.db = nil
	o.state = backend.StateDisconnected

	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close Oracle connection")
	}

	o.logger.Info("Oracle connection closed",
		zap.Int64("rows_returned", o.rowsReturned))
	return nil
}

// flattenValue converts Oracle driver values to plain scalars before
// they leave the adapter boundary.
func flattenValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return record.CoerceString(v)
	}
}
