// Package backend defines the store adapter contract and the registry
// of adapter kinds. An adapter wraps one long-lived store connection
// and answers a single parameterized lookup per input row. Adapters
// are independently optional: a backend that fails to connect stays
// Disconnected for the run, and the batch driver degrades its lookups
// to empty results instead of aborting.
package backend

import (
	"context"

	"github.com/rowstitch/rowstitch/pkg/record"
)

// State is the explicit connection state of an adapter, checked before
// every lookup.
type State int

const (
	// StateDisconnected means the adapter has no usable connection.
	StateDisconnected State = iota
	// StateConnected means the adapter holds a live connection.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Backend is the adapter contract instantiated per store kind.
type Backend interface {
	// Name returns the namespace prefix for this backend's output
	// columns.
	Name() string

	// Connect establishes the store connection. Failure leaves the
	// adapter Disconnected; the caller logs and continues.
	Connect(ctx context.Context) error

	// State reports the adapter's connection state.
	State() State

	// Lookup binds the adapter's query template against the row and
	// executes it, returning result rows in store order with values
	// flattened to plain scalars. A disconnected adapter or a failed
	// execution returns an error, which the driver degrades to an
	// empty result.
	Lookup(ctx context.Context, row *record.Record) ([]*record.Record, error)

	// Close releases the connection. Best-effort.
	Close(ctx context.Context) error
}
