package dorisvec_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dorisvec "github.com/hugr-lab/doris-vector-go"
	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/executor/mock"
	"github.com/hugr-lab/doris-vector-go/session"
)

func TestNewClientValidation(t *testing.T) {
	m := mock.New(mock.Config{})

	tests := []struct {
		name     string
		database string
		config   dorisvec.Config
		wantErr  bool
	}{
		{"valid", "db", dorisvec.Config{Executor: m}, false},
		{"missing database", "", dorisvec.Config{Executor: m}, true},
		{"missing executor", "db", dorisvec.Config{}, true},
		{"bad metric", "db", dorisvec.Config{Executor: m, Metric: "hamming"}, true},
		{"inner product", "db", dorisvec.Config{Executor: m, Metric: executor.MetricInnerProduct}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := dorisvec.NewClient(tt.database, tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, dorisvec.ErrInvalidConfig)
				assert.Nil(t, db)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.database, db.Database())
		})
	}
}

func TestClientDefaults(t *testing.T) {
	level := slog.LevelDebug
	db, err := dorisvec.NewClient("db", dorisvec.Config{
		Executor: mock.New(mock.Config{}),
		LogLevel: &level,
	})
	require.NoError(t, err)

	req, err := db.OpenTable("t").Search([]float32{1}).Request()
	require.NoError(t, err)
	assert.Equal(t, "embedding", req.VectorColumn)
	assert.Equal(t, executor.MetricL2, req.Metric)
	assert.Equal(t, executor.Unlimited, req.Limit)
	assert.Empty(t, req.Columns)
}

func TestWithSessionLastWriteWins(t *testing.T) {
	db, _ := newTestClient(t)

	got := db.WithSession("x", session.Int(1)).WithSession("x", session.Int(2))
	assert.Same(t, db, got)

	v, ok := db.Sessions().Get("x")
	require.True(t, ok)
	assert.Equal(t, session.Int(2), v)
}

func TestWithSessionsMerges(t *testing.T) {
	db, _ := newTestClient(t)

	db.WithSession("b", session.Int(0))
	got := db.WithSessions(session.Params{"a": session.Int(1), "b": session.Int(2)})
	assert.Same(t, db, got)

	assert.Equal(t, map[string]any{"a": int64(1), "b": int64(2)}, db.Sessions().Map())
}

func TestWithSessionAfterWithSessions(t *testing.T) {
	db, _ := newTestClient(t)

	db.WithSessions(session.Params{
		"parallel_pipeline_task_num": session.Int(1),
		"enable_profile":             session.Bool(false),
	}).WithSession("enable_profile", session.Bool(true))

	assert.Equal(t, map[string]any{
		"parallel_pipeline_task_num": int64(1),
		"enable_profile":             true,
	}, db.Sessions().Map())
}

func TestOpenTableHandles(t *testing.T) {
	db, _ := newTestClient(t)

	a := db.OpenTable("t")
	b := db.OpenTable("t")
	assert.Equal(t, "t", a.Name())
	assert.Equal(t, a.Name(), b.Name())
	assert.Same(t, a.Client(), b.Client())
}

type closingExecutor struct {
	executor.Executor
	closed bool
}

func (c *closingExecutor) Close() error {
	c.closed = true
	return nil
}

func TestCloseClosesExecutor(t *testing.T) {
	exec := &closingExecutor{Executor: mock.New(mock.Config{})}
	db, err := dorisvec.NewClient("db", dorisvec.Config{Executor: exec})
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.True(t, exec.closed)

	plain, err := dorisvec.NewClient("db", dorisvec.Config{Executor: executor.Func(nil)})
	require.NoError(t, err)
	assert.NoError(t, plain.Close())
}

func TestWithSessionIgnoresInvalidValue(t *testing.T) {
	db, _ := newTestClient(t)

	db.WithSession("enable_profile", session.Bool(false)).
		WithSession("enable_profile", session.Value{}).
		WithSessions(session.Params{"parallel_pipeline_task_num": session.Value{}})

	assert.Equal(t, map[string]any{"enable_profile": false}, db.Sessions().Map())
}
