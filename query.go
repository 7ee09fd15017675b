package dorisvec

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/filter"
	"github.com/hugr-lab/doris-vector-go/internal/recovery"
	"github.com/hugr-lab/doris-vector-go/sqlgen"
)

// Query accumulates a vector search request.
//
// Query is a value: every chained call returns a new Query and leaves the
// receiver untouched, so a partially configured Query can be shared and
// extended independently. Unchanged slices are shared read-only.
//
// Errors are deferred. The first invalid call records ErrInvalidQuery,
// later calls keep it, and ToArrow returns it without contacting the
// backend. Err reports it at any point of the chain.
//
// All Queries derived from one Table.Search call form a chain that can be
// executed once. After ToArrow, the chain is closed; start a new Search to
// run another query.
type Query struct {
	table        *Table
	vector       []float32
	columns      []string
	limit        int64
	metric       executor.Metric
	vectorColumn string
	filter       string
	predicate    filter.Expression
	err          error
	chain        *chain
}

// chain tracks the lifecycle shared by every Query derived from one Search.
type chain struct {
	executed atomic.Bool
}

func newQuery(t *Table, vector []float32) Query {
	q := Query{
		table: t,
		limit: executor.Unlimited,
		chain: &chain{},
	}
	if t == nil || t.client == nil {
		q.err = fmt.Errorf("%w: table handle is not bound to a client", ErrInvalidQuery)
		return q
	}
	q.metric = t.client.metric
	q.vectorColumn = t.client.vectorColumn

	if t.name == "" {
		q.err = fmt.Errorf("%w: table name is empty", ErrInvalidQuery)
		return q
	}
	if len(vector) == 0 {
		q.err = fmt.Errorf("%w: search vector is empty", ErrInvalidQuery)
		return q
	}
	for i, f := range vector {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			q.err = fmt.Errorf("%w: search vector[%d] is not finite: %v", ErrInvalidQuery, i, f)
			return q
		}
	}

	q.vector = slices.Clone(vector)
	return q
}

// Err returns the first error recorded on this Query, if any.
func (q Query) Err() error {
	return q.check()
}

func (q Query) check() error {
	if q.chain == nil {
		return fmt.Errorf("%w: query not started; use Table.Search", ErrInvalidQuery)
	}
	if q.err != nil {
		return q.err
	}
	if q.chain.executed.Load() {
		return fmt.Errorf("%w: query already executed; start a new Search", ErrInvalidQuery)
	}
	return nil
}

// fail returns a copy of q carrying err, unless q already failed.
func (q Query) fail(err error) Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

// Select sets the projection, overwriting any previous Select.
// No columns means all columns.
func (q Query) Select(columns ...string) Query {
	if err := q.check(); err != nil {
		return q.fail(err)
	}
	for i, col := range columns {
		if col == "" {
			return q.fail(fmt.Errorf("%w: column %d has an empty name", ErrInvalidQuery, i))
		}
	}

	if len(columns) == 0 {
		q.columns = nil
	} else {
		q.columns = slices.Clone(columns)
	}
	return q
}

// Limit caps the number of returned rows. Zero is allowed: the query still
// runs and returns an empty table with the projected columns.
func (q Query) Limit(n int64) Query {
	if err := q.check(); err != nil {
		return q.fail(err)
	}
	if n < 0 {
		return q.fail(fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidQuery, n))
	}

	q.limit = n
	return q
}

// Metric selects the distance function for ranking.
func (q Query) Metric(m executor.Metric) Query {
	if err := q.check(); err != nil {
		return q.fail(err)
	}
	if err := m.Validate(); err != nil {
		return q.fail(fmt.Errorf("%w: %v", ErrInvalidQuery, err))
	}

	q.metric = m
	return q
}

// VectorColumn overrides the column holding stored embeddings.
func (q Query) VectorColumn(name string) Query {
	if err := q.check(); err != nil {
		return q.fail(err)
	}
	if name == "" {
		return q.fail(fmt.Errorf("%w: vector column name is empty", ErrInvalidQuery))
	}

	q.vectorColumn = name
	return q
}

// Where restricts candidate rows with a raw SQL predicate in the backend's
// dialect. The predicate is sent as is; callers must not embed untrusted input.
// Calling Where again replaces the predicate.
func (q Query) Where(predicate string) Query {
	if err := q.check(); err != nil {
		return q.fail(err)
	}

	q.filter = predicate
	return q
}

// Filter restricts candidate rows with a typed predicate. Values are sent
// as escaped literals. Repeated calls are combined with AND, and with any
// Where predicate.
func (q Query) Filter(expr filter.Expression) Query {
	if err := q.check(); err != nil {
		return q.fail(err)
	}
	if err := filter.Validate(expr); err != nil {
		return q.fail(fmt.Errorf("%w: %v", ErrInvalidQuery, err))
	}

	if q.predicate == nil {
		q.predicate = expr
	} else {
		q.predicate = filter.And(q.predicate, expr)
	}
	return q
}

// Request returns the request ToArrow would send, using the client's
// current session parameters. It does not execute or close the chain.
func (q Query) Request() (executor.Request, error) {
	if err := q.check(); err != nil {
		return executor.Request{}, err
	}
	return q.request(), nil
}

// SQL renders the query in the given dialect without executing it.
func (q Query) SQL(d sqlgen.Dialect) (string, error) {
	req, err := q.Request()
	if err != nil {
		return "", err
	}
	stmt, err := sqlgen.Build(d, req)
	if err != nil {
		return "", err
	}
	return stmt.Query, nil
}

func (q Query) request() executor.Request {
	c := q.table.client
	return executor.Request{
		Database:     c.database,
		Table:        q.table.name,
		Vector:       q.vector,
		Columns:      q.columns,
		Limit:        q.limit,
		Metric:       q.metric,
		VectorColumn: q.vectorColumn,
		Filter:       q.filter,
		Predicate:    q.predicate,
		Sessions:     c.sessions.Snapshot(),
	}
}

// ToArrow executes the query and returns the result as an Arrow table.
//
// The table's columns follow the effective projection and its rows keep the
// order returned by the backend, capped at the limit. The session snapshot
// is taken at call time; later overrides do not affect this execution.
// The caller must Release the returned table.
//
// Returns ErrInvalidQuery for local errors (no backend call is made) or an
// *ExecutionError wrapping the backend failure.
func (q Query) ToArrow(ctx context.Context) (arrow.Table, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	if !q.chain.executed.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: query already executed; start a new Search", ErrInvalidQuery)
	}

	c := q.table.client
	req := q.request()
	req.QueryID = uuid.NewString()

	logger := c.logger.With("query_id", req.QueryID, "table", req.Table)
	logger.Debug("Executing vector search",
		"dimension", len(req.Vector),
		"columns", req.Columns,
		"limit", req.Limit,
		"metric", req.Metric,
		"sessions", req.Sessions.String(),
	)

	start := time.Now()
	reader, err := recovery.RecoverToValue(logger, "Execute", func() (array.RecordReader, error) {
		return c.executor.Execute(ctx, req)
	})
	if err == nil && reader == nil {
		err = fmt.Errorf("executor returned no result")
	}
	if err != nil {
		execErr := newExecutionError(req, err)
		logger.Error("Vector search failed", "error", err, "config", execErr.Config)
		return nil, execErr
	}
	defer reader.Release()

	tbl, err := materialize(reader, req.Columns, req.Limit)
	if err != nil {
		logger.Error("Failed to materialize result", "error", err)
		return nil, newExecutionError(req, err)
	}

	logger.Debug("Vector search completed",
		"rows", tbl.NumRows(),
		"columns", tbl.NumCols(),
		"duration", time.Since(start),
	)
	return tbl, nil
}
