package flight

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/flight/flightsql"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	dorisvec "github.com/hugr-lab/doris-vector-go"
	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/session"
)

// fakeDoris is a Flight SQL server that records statements and serves a
// fixed result for every query.
type fakeDoris struct {
	flightsql.BaseServer

	mu       sync.Mutex
	queries  []string
	queryIDs []string
	result   arrow.Record
	failWith error
	batches  int
}

func (s *fakeDoris) GetFlightInfoStatement(ctx context.Context, cmd flightsql.StatementQuery, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	s.mu.Lock()
	s.queries = append(s.queries, cmd.GetQuery())
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		s.queryIDs = append(s.queryIDs, md.Get(HeaderQueryID)...)
	}
	failWith := s.failWith
	s.mu.Unlock()

	if failWith != nil {
		return nil, failWith
	}

	ticket, err := flightsql.CreateStatementQueryTicket([]byte(cmd.GetQuery()))
	if err != nil {
		return nil, err
	}

	return &flight.FlightInfo{
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{
			{Ticket: &flight.Ticket{Ticket: ticket}},
		},
		Schema:       flight.SerializeSchema(s.result.Schema(), s.Alloc),
		TotalRecords: -1,
		TotalBytes:   -1,
	}, nil
}

func (s *fakeDoris) DoGetStatement(ctx context.Context, cmd flightsql.StatementQueryTicket) (*arrow.Schema, <-chan flight.StreamChunk, error) {
	batches := max(s.batches, 1)
	ch := make(chan flight.StreamChunk, batches)

	rows := s.result.NumRows()
	if rows == 0 {
		ch <- flight.StreamChunk{Data: s.result.NewSlice(0, 0)}
	}
	step := (rows + int64(batches) - 1) / int64(batches)
	for start := int64(0); start < rows; start += step {
		ch <- flight.StreamChunk{Data: s.result.NewSlice(start, min(start+step, rows))}
	}
	close(ch)
	return s.result.Schema(), ch, nil
}

func (s *fakeDoris) receivedQueryIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queryIDs...)
}

func (s *fakeDoris) lastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return ""
	}
	return s.queries[len(s.queries)-1]
}

func resultRecord() arrow.Record {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "text", Type: arrow.BinaryTypes.String},
	}, nil)
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues([]int64{3, 1, 2}, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues([]string{"c", "a", "b"}, nil)
	return builder.NewRecord()
}

// bearerMiddleware rejects calls without the expected bearer token.
func bearerMiddleware(token string) flight.ServerMiddleware {
	check := func(ctx context.Context) error {
		md, _ := metadata.FromIncomingContext(ctx)
		if vals := md.Get("authorization"); len(vals) == 0 || vals[0] != "Bearer "+token {
			return status.Error(codes.Unauthenticated, "invalid token")
		}
		return nil
	}
	return flight.ServerMiddleware{
		Unary: func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			if err := check(ctx); err != nil {
				return nil, err
			}
			return handler(ctx, req)
		},
		Stream: func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
			if err := check(ss.Context()); err != nil {
				return err
			}
			return handler(srv, ss)
		},
	}
}

func startFakeDoris(t *testing.T, middleware ...flight.ServerMiddleware) (*fakeDoris, string) {
	t.Helper()

	fake := &fakeDoris{result: resultRecord()}
	fake.Alloc = memory.DefaultAllocator
	t.Cleanup(fake.result.Release)

	srv := flight.NewServerWithMiddleware(middleware)
	srv.RegisterFlightService(flightsql.NewFlightServer(fake))
	require.NoError(t, srv.Init("localhost:0"))
	go srv.Serve()
	t.Cleanup(srv.Shutdown)

	return fake, srv.Addr().String()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, cfg Config) *Executor {
	t.Helper()
	cfg.Logger = testLogger()
	exec, err := NewExecutor(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { exec.Close() })
	return exec
}

func TestNewExecutorRequiresAddress(t *testing.T) {
	_, err := NewExecutor(Config{})
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestExecuteSendsDorisSQL(t *testing.T) {
	fake, addr := startFakeDoris(t)
	exec := newTestExecutor(t, Config{Address: addr})

	req := executor.Request{
		QueryID:  "q-1",
		Database: "test_database",
		Table:    "test_table",
		Vector:   []float32{0.5, 0.9, 0.6},
		Columns:  []string{"id", "text"},
		Limit:    3,
		Sessions: session.NewSnapshot(session.Param{Name: "parallel_pipeline_task_num", Value: session.Int(1)}),
	}

	reader, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	defer reader.Release()

	assert.Equal(t,
		"SELECT /*+ SET_VAR(parallel_pipeline_task_num = 1) */ `id`, `text` FROM `test_database`.`test_table` ORDER BY l2_distance_approximate(`embedding`, [0.5, 0.9, 0.6]) ASC LIMIT 3",
		fake.lastQuery())
	assert.Equal(t, []string{"q-1"}, fake.receivedQueryIDs())

	var rows int64
	for reader.Next() {
		rows += reader.Record().NumRows()
	}
	require.NoError(t, reader.Err())
	assert.Equal(t, int64(3), rows)
	assert.Equal(t, "text", reader.Schema().Field(1).Name)
}

func TestExecuteMultipleBatchesThroughClient(t *testing.T) {
	fake, addr := startFakeDoris(t)
	fake.batches = 3
	exec := newTestExecutor(t, Config{Address: addr})

	db, err := dorisvec.NewClient("test_database", dorisvec.Config{Executor: exec, Logger: testLogger()})
	require.NoError(t, err)

	tbl, err := db.OpenTable("test_table").
		Search([]float32{0.5, 0.9, 0.6}).
		Select("text").
		Limit(3).
		ToArrow(context.Background())
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, int64(1), tbl.NumCols())
	assert.Equal(t, "text", tbl.Schema().Field(0).Name)

	var got []string
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		arr := chunk.(*array.String)
		for i := 0; i < arr.Len(); i++ {
			got = append(got, arr.Value(i))
		}
	}
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestExecuteBackendError(t *testing.T) {
	fake, addr := startFakeDoris(t)
	fake.failWith = status.Error(codes.InvalidArgument, "errCode = 2, detailMessage = Unknown system variable 'no_such_var'")
	exec := newTestExecutor(t, Config{Address: addr})

	db, err := dorisvec.NewClient("db", dorisvec.Config{Executor: exec, Logger: testLogger()})
	require.NoError(t, err)
	db.WithSession("no_such_var", session.Int(1))

	_, err = db.OpenTable("t").Search([]float32{1}).ToArrow(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, dorisvec.ErrExecution)
	assert.ErrorIs(t, err, dorisvec.ErrConfiguration)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, codes.InvalidArgument, statusErr.Code)
	assert.True(t, strings.Contains(statusErr.Message, "no_such_var"))
}

func TestExecuteNotFound(t *testing.T) {
	fake, addr := startFakeDoris(t)
	fake.failWith = status.Error(codes.NotFound, "Unknown table 'missing'")
	exec := newTestExecutor(t, Config{Address: addr})

	_, err := exec.Execute(context.Background(), executor.Request{Table: "missing", Vector: []float32{1}, Limit: -1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteRejectsUnsafeSessionName(t *testing.T) {
	fake, addr := startFakeDoris(t)
	exec := newTestExecutor(t, Config{Address: addr})

	_, err := exec.Execute(context.Background(), executor.Request{
		Table:    "t",
		Vector:   []float32{1},
		Limit:    -1,
		Sessions: session.NewSnapshot(session.Param{Name: "a) */ DROP TABLE t; --", Value: session.Int(1)}),
	})
	assert.ErrorIs(t, err, executor.ErrSessionRejected)
	assert.Empty(t, fake.lastQuery())
}

func TestExecuteStaticToken(t *testing.T) {
	_, addr := startFakeDoris(t, bearerMiddleware("secret"))

	good := newTestExecutor(t, Config{Address: addr, Token: "secret"})
	reader, err := good.Execute(context.Background(), executor.Request{Table: "t", Vector: []float32{1}, Limit: -1})
	require.NoError(t, err)
	reader.Release()

	bad := newTestExecutor(t, Config{Address: addr, Token: "wrong"})
	_, err = bad.Execute(context.Background(), executor.Request{Table: "t", Vector: []float32{1}, Limit: -1})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestExecuteCancelled(t *testing.T) {
	_, addr := startFakeDoris(t)
	exec := newTestExecutor(t, Config{Address: addr})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, executor.Request{Table: "t", Vector: []float32{1}, Limit: -1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutgoingContext(t *testing.T) {
	ctx := WithTraceMeta(context.Background(), TraceMeta{TraceID: "trace", SessionID: "sess"})
	ctx = outgoingContext(ctx, "q")

	md, ok := metadata.FromOutgoingContext(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{"q"}, md.Get(HeaderQueryID))
	assert.Equal(t, []string{"trace"}, md.Get(HeaderTraceID))
	assert.Equal(t, []string{"sess"}, md.Get(HeaderSessionID))

	plain := context.Background()
	assert.Equal(t, plain, outgoingContext(plain, ""))
}

func TestStatusErrorRoundTrip(t *testing.T) {
	err := mapError(context.Background(), status.Error(codes.Unavailable, "fe down"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, "flight sql Unavailable: fe down", err.Error())
}
