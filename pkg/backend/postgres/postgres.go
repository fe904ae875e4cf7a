// Package postgres provides the PostgreSQL backend adapter, built on
// jackc/pgx. One connection is opened before the batch and reused for
// every row; pooling is deliberately out of scope for a sequential
// file-batch run.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/rowstitch/rowstitch/pkg/backend"
	"github.com/rowstitch/rowstitch/pkg/config"
	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/logger"
	"github.com/rowstitch/rowstitch/pkg/record"
	"github.com/rowstitch/rowstitch/pkg/template"
)

func init() {
	_ = backend.Register("postgres", New)
}

// Postgres is the PostgreSQL adapter.
type Postgres struct {
	name    string
	connStr string
	query   *template.SQL

	conn  *pgx.Conn
	state backend.State

	rowsReturned int64
	logger       *zap.Logger
}

// New creates a PostgreSQL adapter from its backend configuration. The
// query template is compiled to $n bind variables up front.
func New(cfg *config.Backend) (backend.Backend, error) {
	if cfg.Query == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "query template is required")
	}

	query, err := template.CompileSQL(cfg.Query, template.PlaceholderDollar)
	if err != nil {
		return nil, err
	}

	return &Postgres{
		name:    cfg.Name,
		connStr: cfg.Credentials["connection_string"],
		query:   query,
		logger:  logger.Get().With(zap.String("backend", cfg.Name)),
	}, nil
}

// Name returns the backend's namespace prefix.
func (p *Postgres) Name() string {
	return p.name
}

// State reports the adapter's connection state.
func (p *Postgres) State() backend.State {
	return p.state
}

// Connect opens the PostgreSQL connection.
func (p *Postgres) Connect(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, p.connStr)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to PostgreSQL")
	}

	p.conn = conn
	p.state = backend.StateConnected

	p.logger.Info("connected to PostgreSQL")
	return nil
}

// Lookup executes the bound query for one input row.
func (p *Postgres) Lookup(ctx context.Context, row *record.Record) ([]*record.Record, error) {
	if p.state != backend.StateConnected {
		return nil, errors.New(errors.ErrorTypeConnection, "postgres backend not connected")
	}

	text, args, err := p.query.Bind(row)
	if err != nil {
		return nil, err
	}

	rows, err := p.conn.Query(ctx, text, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to execute query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var results []*record.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read row values")
		}

		res := record.New()
		for i, fd := range fields {
			if i < len(values) {
				res.Set(fd.Name, flattenValue(values[i]))
			}
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "error iterating result rows")
	}

	p.rowsReturned += int64(len(results))
	p.logger.Debug("query returned", zap.Int("rows", len(results)))

	return results, nil
}

// Close releases the connection.
func (p *Postgres) Close(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}

	err := p.conn.Close(ctx)
	p.conn = nil
	p.state = backend.StateDisconnected

	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close PostgreSQL connection")
	}

	p.logger.Info("PostgreSQL connection closed",
		zap.Int64("rows_returned", p.rowsReturned))
	return nil
}

// flattenValue converts PostgreSQL driver values to plain scalars
// before they leave the adapter boundary.
func flattenValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return v
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return record.CoerceString(v)
	}
}
