/*
Package mock provides an in-memory executor.Executor for testing code built on
the query builder.

The mock serves pre-seeded Arrow records per table, applies projection and
limit the way a backend would, and records every call for assertions.

# Basic Usage

	m := mock.New(mock.Config{Seed: map[string]arrow.Record{"docs": rec}})
	db, _ := dorisvec.NewClient("test", dorisvec.Config{Executor: m})
	tbl, _ := db.OpenTable("docs").Search([]float32{0.5, 0.9}).Limit(3).ToArrow(ctx)

# Overriding Behavior

	m.OnTable("docs").ReturnError(errors.New("dimension mismatch"))

# Inspecting Calls

	for _, c := range m.Calls() {
		// c.Table, c.Vector, c.Columns, c.Limit, c.Sessions
	}
*/
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/hugr-lab/doris-vector-go/executor"
)

// Config configures the mock executor.
type Config struct {
	// Seed maps table names to their full contents, in backend ranking order.
	// The mock retains every record for its lifetime.
	Seed map[string]arrow.Record
}

// Executor is an in-memory executor.Executor.
type Executor struct {
	mu        sync.Mutex
	tables    map[string]arrow.Record
	responses map[string]*Response
	calls     []executor.Request
}

// Response describes a configured outcome for one table.
type Response struct {
	// Err is returned instead of rows when non-nil.
	Err error
	// Ignore the request limit and return every seeded row.
	IgnoreLimit bool
}

// ResponseBuilder allows fluent configuration of responses.
type ResponseBuilder struct {
	m     *Executor
	table string
}

// New creates a mock executor.
func New(cfg Config) *Executor {
	m := &Executor{
		tables:    make(map[string]arrow.Record),
		responses: make(map[string]*Response),
	}
	for name, rec := range cfg.Seed {
		rec.Retain()
		m.tables[name] = rec
	}
	return m
}

// OnTable configures the outcome of requests against table.
func (m *Executor) OnTable(table string) *ResponseBuilder {
	return &ResponseBuilder{m: m, table: table}
}

// ReturnError makes requests fail with err.
func (b *ResponseBuilder) ReturnError(err error) *ResponseBuilder {
	b.response().Err = err
	return b
}

// IgnoreLimit makes the mock return every row regardless of the request limit.
func (b *ResponseBuilder) IgnoreLimit() *ResponseBuilder {
	b.response().IgnoreLimit = true
	return b
}

func (b *ResponseBuilder) response() *Response {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()

	r, ok := b.m.responses[b.table]
	if !ok {
		r = &Response{}
		b.m.responses[b.table] = r
	}
	return r
}

// Calls returns a copy of every request received so far.
func (m *Executor) Calls() []executor.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]executor.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of requests received so far.
func (m *Executor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}

// Close releases seeded records.
func (m *Executor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, rec := range m.tables {
		rec.Release()
		delete(m.tables, name)
	}
	return nil
}

// Execute implements executor.Executor.
func (m *Executor) Execute(ctx context.Context, req executor.Request) (array.RecordReader, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Clone())
	rec, ok := m.tables[req.Table]
	var resp Response
	if r := m.responses[req.Table]; r != nil {
		resp = *r
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	if !ok {
		return nil, fmt.Errorf("table not found: %s", req.Table)
	}

	projected, err := project(rec, req.Columns)
	if err != nil {
		return nil, err
	}
	defer projected.Release()

	out := projected
	if req.HasLimit() && !resp.IgnoreLimit && req.Limit < projected.NumRows() {
		out = projected.NewSlice(0, req.Limit)
		defer out.Release()
	}

	return array.NewRecordReader(out.Schema(), []arrow.Record{out})
}

// project returns rec restricted to columns, in request order.
func project(rec arrow.Record, columns []string) (arrow.Record, error) {
	if len(columns) == 0 {
		rec.Retain()
		return rec, nil
	}

	schema := rec.Schema()
	fields := make([]arrow.Field, 0, len(columns))
	cols := make([]arrow.Array, 0, len(columns))
	for _, name := range columns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("unknown column '%s'", name)
		}
		fields = append(fields, schema.Field(idx[0]))
		cols = append(cols, rec.Column(idx[0]))
	}

	return array.NewRecord(arrow.NewSchema(fields, nil), cols, rec.NumRows()), nil
}
