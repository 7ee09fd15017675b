// Package executor defines the boundary between the query builder and the
// backend that actually runs a vector search.
//
// An Executor receives a fully resolved Request (target vector, projection,
// limit and an immutable session snapshot) and returns the backend's rows as
// an Arrow RecordReader. Executors do not retry and do not reorder rows.
package executor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/doris-vector-go/filter"
	"github.com/hugr-lab/doris-vector-go/session"
)

// ErrSessionRejected marks failures caused by session parameters
// (unknown names, malformed values). Executors wrap it when they can
// attribute an error to the session snapshot.
var ErrSessionRejected = errors.New("session parameters rejected")

// Unlimited is the Request.Limit value meaning "no row cap".
const Unlimited int64 = -1

// Metric selects the distance function used to rank rows.
type Metric string

const (
	// MetricL2 ranks by ascending euclidean distance.
	MetricL2 Metric = "l2"
	// MetricInnerProduct ranks by descending inner product.
	MetricInnerProduct Metric = "inner_product"
)

// Validate reports whether m is a known metric.
func (m Metric) Validate() error {
	switch m {
	case MetricL2, MetricInnerProduct:
		return nil
	default:
		return fmt.Errorf("unknown metric %q", string(m))
	}
}

// Request is one resolved vector search.
// Slices in a Request are owned by the request and must not be modified.
type Request struct {
	// QueryID uniquely identifies this execution in logs and backend traces.
	QueryID string

	// Database is the target database name.
	Database string

	// Table is the table name as given to OpenTable.
	Table string

	// Vector is the similarity target.
	Vector []float32

	// Columns is the projection in request order. Empty means all columns.
	Columns []string

	// Limit caps the number of rows. Unlimited (-1) means no cap.
	Limit int64

	// Metric is the distance function.
	Metric Metric

	// VectorColumn names the column holding stored embeddings.
	VectorColumn string

	// Filter is an optional raw SQL predicate.
	Filter string

	// Predicate is an optional typed predicate, combined with Filter by AND.
	Predicate filter.Expression

	// Sessions is the session snapshot taken when the request was dispatched.
	Sessions session.Snapshot
}

// HasLimit reports whether the request caps its row count.
func (r Request) HasLimit() bool {
	return r.Limit >= 0
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	r.Vector = slices.Clone(r.Vector)
	r.Columns = slices.Clone(r.Columns)
	return r
}

// Executor runs a Request against a backend.
// Implementations MUST be goroutine-safe. The caller owns the returned
// reader and must Release it.
type Executor interface {
	Execute(ctx context.Context, req Request) (array.RecordReader, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, req Request) (array.RecordReader, error)

// Execute calls f(ctx, req).
func (f Func) Execute(ctx context.Context, req Request) (array.RecordReader, error) {
	return f(ctx, req)
}
