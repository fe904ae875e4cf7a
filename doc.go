// Package rowstitch combines rows from multiple databases into a single
// wide CSV. Each input CSV row drives one parameterized lookup against
// every configured backend (Oracle, PostgreSQL, MongoDB), and the lookup
// results are merged into the row under namespaced columns.
//
// # Architecture
//
// The module is organized around three small layers:
//
// 1. Backends: store adapters behind a common interface, created through
// a registry keyed by kind. Queries are parameterized templates whose
// {column} placeholders are bound from the current input row.
//
// 2. Combine: the pure merge that turns an input row plus per-backend
// result sets into one wide output record, with result columns named
// {backend}_{key}_{index}.
//
// 3. Pipeline: the sequential driver that connects the backends, walks
// the input rows, degrades backend failures to empty results, and
// collects the output rows for the CSV writer.
//
// # Quick Start
//
// Run a combine job from the command line:
//
//	rowstitch run --config job.yaml
//
// Or drive it programmatically:
//
//	import (
//	    "context"
//	    "github.com/rowstitch/rowstitch/internal/pipeline"
//	    "github.com/rowstitch/rowstitch/pkg/backend"
//	    "github.com/rowstitch/rowstitch/pkg/config"
//	    "github.com/rowstitch/rowstitch/pkg/csvio"
//	    _ "github.com/rowstitch/rowstitch/pkg/backend/postgres"
//	)
//
//	cfg, _ := config.Load("job.yaml")
//	b, _ := backend.Create(&cfg.Backends[0])
//	pipeline.ConnectAll(context.Background(), []backend.Backend{b})
//	rows, _ := csvio.Load(cfg.Input)
//	out, _ := pipeline.NewDriver([]backend.Backend{b}).Run(context.Background(), rows)
//	_ = csvio.Write(out, cfg.Output)
//
// A backend that fails to connect or errors on a lookup contributes an
// empty result set for the affected rows; the run itself only fails on
// load, write, configuration, or cancellation errors.
package rowstitch
