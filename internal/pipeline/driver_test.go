package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowstitch/rowstitch/pkg/backend"
	"github.com/rowstitch/rowstitch/pkg/csvio"
	"github.com/rowstitch/rowstitch/pkg/errors"
	"github.com/rowstitch/rowstitch/pkg/record"
)

// fakeBackend scripts one backend's behavior for driver tests.
type fakeBackend struct {
	name        string
	connectErr  error
	lookupRows  []*record.Record
	lookupErr   error
	lookupFn    func(*record.Record) ([]*record.Record, error)
	closeErr    error
	state       backend.State
	lookupCalls int
	closeCalls  int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.state = backend.StateConnected
	return nil
}

func (f *fakeBackend) State() backend.State { return f.state }

func (f *fakeBackend) Lookup(_ context.Context, row *record.Record) ([]*record.Record, error) {
	f.lookupCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.lookupFn != nil {
		return f.lookupFn(row)
	}
	return f.lookupRows, nil
}

func (f *fakeBackend) Close(context.Context) error {
	f.closeCalls++
	f.state = backend.StateDisconnected
	return f.closeErr
}

func inputRows(n int) []*record.Record {
	rows := make([]*record.Record, n)
	for i := range rows {
		r := record.New()
		r.Set("id", int64(i+1))
		rows[i] = r
	}
	return rows
}

func singleResult(key string, value interface{}) []*record.Record {
	r := record.New()
	r.Set(key, value)
	return []*record.Record{r}
}

func TestDriver_Run(t *testing.T) {
	pg := &fakeBackend{
		name:       "postgres",
		state:      backend.StateConnected,
		lookupRows: singleResult("total", 12.5),
	}
	mg := &fakeBackend{
		name:       "mongo",
		state:      backend.StateConnected,
		lookupRows: singleResult("status", "active"),
	}

	d := NewDriver([]backend.Backend{pg, mg})
	assert.Equal(t, StateIdle, d.State())

	out, err := d.Run(context.Background(), inputRows(3))
	require.NoError(t, err)
	assert.Equal(t, StateDone, d.State())
	require.Len(t, out, 3)
	assert.Equal(t, 3, pg.lookupCalls)
	assert.Equal(t, 3, mg.lookupCalls)

	v, ok := out[0].Get("postgres_total_0")
	require.True(t, ok)
	assert.Equal(t, 12.5, v)
	v, ok = out[0].Get("mongo_status_0")
	require.True(t, ok)
	assert.Equal(t, "active", v)

	// Input columns survive untouched
	v, _ = out[2].Get("id")
	assert.Equal(t, int64(3), v)
}

func TestDriver_LookupFailureDegradesToEmpty(t *testing.T) {
	ok := &fakeBackend{
		name:       "postgres",
		state:      backend.StateConnected,
		lookupRows: singleResult("total", int64(7)),
	}
	failing := &fakeBackend{
		name:      "oracle",
		state:     backend.StateConnected,
		lookupErr: errors.New(errors.ErrorTypeQuery, "table vanished"),
	}

	d := NewDriver([]backend.Backend{failing, ok})
	out, err := d.Run(context.Background(), inputRows(2))
	require.NoError(t, err)
	assert.Equal(t, StateDone, d.State())
	require.Len(t, out, 2)

	// The failing backend contributes nothing, the healthy one still merges
	for _, row := range out {
		assert.False(t, row.Has("oracle_total_0"))
		assert.True(t, row.Has("postgres_total_0"))
	}
	assert.Equal(t, 2, failing.lookupCalls)
}

func TestDriver_DisconnectedBackendSkipped(t *testing.T) {
	down := &fakeBackend{name: "mongo", state: backend.StateDisconnected}

	d := NewDriver([]backend.Backend{down})
	out, err := d.Run(context.Background(), inputRows(2))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0, down.lookupCalls)
	assert.Equal(t, []string{"id"}, out[0].Columns())
}

func TestDriver_NoBackendsCopiesInputThrough(t *testing.T) {
	d := NewDriver(nil)
	rows := inputRows(2)

	out, err := d.Run(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, rows[0].Columns(), out[0].Columns())
}

func TestDriver_CanceledContextFailsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDriver([]backend.Backend{
		&fakeBackend{name: "postgres", state: backend.StateConnected},
	})

	_, err := d.Run(ctx, inputRows(1))
	require.Error(t, err)
	assert.Equal(t, StateFailed, d.State())
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestDriver_CombinedRowsSerializeToCSV(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(inPath, []byte("user_id\n1\n2\n"), 0o644))

	rows, err := csvio.Load(inPath)
	require.NoError(t, err)

	// Only user 1 has a match; user 2's lookup comes back empty
	oracle := &fakeBackend{name: "oracle", state: backend.StateConnected}
	oracle.lookupFn = func(row *record.Record) ([]*record.Record, error) {
		if v, _ := row.Get("user_id"); v == int64(1) {
			match := record.New()
			match.Set("name", "Alice")
			return []*record.Record{match}, nil
		}
		return nil, nil
	}

	d := NewDriver([]backend.Backend{oracle})
	out, err := d.Run(context.Background(), rows)
	require.NoError(t, err)

	outPath := filepath.Join(dir, "out.csv")
	require.NoError(t, csvio.Write(out, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t,
		"user_id,oracle_name_0\n"+
			"1,Alice\n"+
			"2,\n",
		string(data))
}

func TestDriver_FatalLookupErrorAbortsRun(t *testing.T) {
	corrupt := &fakeBackend{
		name:      "postgres",
		state:     backend.StateConnected,
		lookupErr: errors.New(errors.ErrorTypeData, "unrepresentable cell"),
	}

	d := NewDriver([]backend.Backend{corrupt})
	_, err := d.Run(context.Background(), inputRows(1))
	require.Error(t, err)
	assert.Equal(t, StateFailed, d.State())
}

func TestConnectAll_ContinuesPastFailure(t *testing.T) {
	bad := &fakeBackend{
		name:       "oracle",
		connectErr: errors.New(errors.ErrorTypeConnection, "listener refused"),
	}
	good := &fakeBackend{name: "postgres"}

	ConnectAll(context.Background(), []backend.Backend{bad, good})

	assert.Equal(t, backend.StateDisconnected, bad.State())
	assert.Equal(t, backend.StateConnected, good.State())
}

func TestCloseAll_AttemptsEveryBackend(t *testing.T) {
	first := &fakeBackend{
		name:     "oracle",
		state:    backend.StateConnected,
		closeErr: errors.New(errors.ErrorTypeConnection, "already gone"),
	}
	second := &fakeBackend{name: "postgres", state: backend.StateConnected}

	CloseAll(context.Background(), []backend.Backend{first, second})

	assert.Equal(t, 1, first.closeCalls)
	assert.Equal(t, 1, second.closeCalls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
