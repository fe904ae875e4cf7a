// Package pipeline drives the row-by-row combine run: for each input
// row it queries every configured backend in order, merges the results
// into a wide output record, and collects the output rows. Backend
// failures degrade to empty results so a single unreachable store never
// aborts the batch.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowstitch/rowstitch/pkg/backend"
	"github.com/rowstitch/rowstitch/pkg/combine"
	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/logger"
	"github.com/rowstitch/rowstitch/pkg/record"
)

// State tracks the driver lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Driver runs the combine over a batch of input rows.
type Driver struct {
	backends []backend.Backend
	state    State
	runID    string
	logger   *zap.Logger
}

// NewDriver creates a driver over the given backends. The backend
// order fixes the merge order of every output row.
func NewDriver(backends []backend.Backend) *Driver {
	runID := uuid.NewString()
	return &Driver{
		backends: backends,
		state:    StateIdle,
		runID:    runID,
		logger:   logger.Get().With(zap.String("run_id", runID)),
	}
}

// State reports the driver lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// RunID returns the identifier attached to this run's log entries.
func (d *Driver) RunID() string {
	return d.runID
}

// Run processes the input rows sequentially and returns one combined
// output row per input row. Backend lookup failures are logged and
// contribute empty results; only context cancellation fails the run.
func (d *Driver) Run(ctx context.Context, rows []*record.Record) ([]*record.Record, error) {
	ctx = context.WithValue(ctx, logger.RunIDKey, d.runID)
	d.state = StateRunning
	d.logger.Info("combine run started",
		zap.Int("rows", len(rows)),
		zap.Int("backends", len(d.backends)))

	out := make([]*record.Record, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			d.state = StateFailed
			return nil, errors.Wrap(err, errors.ErrorTypeData, "combine run canceled")
		}

		results := make([]combine.Result, 0, len(d.backends))
		for _, b := range d.backends {
			rows, err := d.lookup(ctx, b, i, row)
			if err != nil {
				d.state = StateFailed
				return nil, err
			}
			results = append(results, combine.Result{
				Backend: b.Name(),
				Rows:    rows,
			})
		}

		out = append(out, combine.Rows(row, results))
	}

	d.state = StateDone
	d.logger.Info("combine run finished", zap.Int("rows", len(out)))
	return out, nil
}

// lookup queries one backend for one row. Connection and query
// failures degrade to an empty result set; anything fatal propagates.
func (d *Driver) lookup(ctx context.Context, b backend.Backend, rowIndex int, row *record.Record) ([]*record.Record, error) {
	log := logger.WithContext(context.WithValue(ctx, logger.BackendKey, b.Name()))

	if b.State() != backend.StateConnected {
		log.Warn("skipping disconnected backend", zap.Int("row", rowIndex))
		return nil, nil
	}

	results, err := b.Lookup(ctx, row)
	if err != nil {
		if errors.IsFatal(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "backend lookup failed fatally")
		}
		log.Error("lookup failed, continuing with empty result",
			zap.Int("row", rowIndex),
			zap.Error(err))
		return nil, nil
	}
	return results, nil
}

// ConnectAll connects every backend, logging and skipping the ones
// that fail. A backend that never connects contributes empty results
// for every row.
func ConnectAll(ctx context.Context, backends []backend.Backend) {
	log := logger.Get()
	for _, b := range backends {
		if err := b.Connect(ctx); err != nil {
			log.Error("backend connect failed, its lookups will be empty",
				zap.String("backend", b.Name()),
				zap.Error(err))
		}
	}
}

// CloseAll closes every backend, attempting each close even when an
// earlier one fails.
func CloseAll(ctx context.Context, backends []backend.Backend) {
	log := logger.Get()
	for _, b := range backends {
		if err := b.Close(ctx); err != nil {
			log.Warn("backend close failed",
				zap.String("backend", b.Name()),
				zap.Error(err))
		}
	}
}
