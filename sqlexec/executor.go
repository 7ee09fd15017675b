// Package sqlexec implements an executor.Executor over database/sql.
//
// It serves Doris through its MySQL-protocol frontend (go-sql-driver/mysql)
// and embedded DuckDB (duckdb-go) for local development and tests. Every
// request runs on a dedicated connection so session setup statements never
// leak into other queries.
package sqlexec

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-sql-driver/mysql"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/internal/arrowconv"
	"github.com/hugr-lab/doris-vector-go/sqlgen"
)

// ErrNoDB is returned when Config.DB is nil.
var ErrNoDB = errors.New("sqlexec: database handle is required")

// Config contains configuration for the database/sql executor.
type Config struct {
	// DB is the connection pool queries run on.
	// REQUIRED: MUST be non-nil.
	DB *sql.DB

	// Dialect renders requests into SQL.
	// OPTIONAL: Uses sqlgen.Doris if nil.
	Dialect sqlgen.Dialect

	// BatchSize is the maximum number of rows per Arrow record.
	// OPTIONAL: Uses arrowconv.DefaultBatchSize if 0.
	BatchSize int

	// OwnsDB closes DB when the executor is closed.
	// OPTIONAL: Defaults to false.
	OwnsDB bool

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Executor runs vector searches on a *sql.DB.
// Safe for concurrent use.
type Executor struct {
	db        *sql.DB
	ownsDB    bool
	dialect   sqlgen.Dialect
	batchSize int
	allocator memory.Allocator
	logger    *slog.Logger
}

var _ executor.Executor = (*Executor)(nil)

// New creates an executor on an existing pool.
func New(config Config) (*Executor, error) {
	if config.DB == nil {
		return nil, ErrNoDB
	}

	e := &Executor{
		db:        config.DB,
		ownsDB:    config.OwnsDB,
		dialect:   config.Dialect,
		batchSize: config.BatchSize,
		allocator: config.Allocator,
		logger:    config.Logger,
	}
	if e.dialect == nil {
		e.dialect = sqlgen.Doris{}
	}
	if e.batchSize <= 0 {
		e.batchSize = arrowconv.DefaultBatchSize
	}
	if e.allocator == nil {
		e.allocator = memory.DefaultAllocator
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// DorisDSN builds a MySQL-protocol DSN for a Doris frontend
// (query_port, 9030 by default).
func DorisDSN(address, user, password, database string) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = address
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

// OpenDoris opens a pool to a Doris frontend with the MySQL driver and
// renders SQL in the Doris dialect. The executor owns the pool.
func OpenDoris(dsn string, config Config) (*Executor, error) {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid doris dsn: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open doris connection: %w", err)
	}
	config.DB = db
	config.OwnsDB = true
	if config.Dialect == nil {
		config.Dialect = sqlgen.Doris{}
	}
	return New(config)
}

// OpenDuckDB opens an embedded DuckDB database and renders SQL in the
// DuckDB dialect. An empty path opens an in-memory database whose catalog
// is named "memory". The executor owns the pool.
func OpenDuckDB(path string, config Config) (*Executor, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	config.DB = db
	config.OwnsDB = true
	config.Dialect = sqlgen.DuckDB{}
	return New(config)
}

// DB returns the underlying pool.
func (e *Executor) DB() *sql.DB {
	return e.db
}

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context, req executor.Request) (array.RecordReader, error) {
	stmt, err := sqlgen.Build(e.dialect, req)
	if err != nil {
		if errors.Is(err, sqlgen.ErrInvalidSessionName) {
			return nil, fmt.Errorf("%w: %v", executor.ErrSessionRejected, err)
		}
		return nil, err
	}

	logger := e.logger.With("query_id", req.QueryID)

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	for _, s := range stmt.Setup {
		if _, err := conn.ExecContext(ctx, s); err != nil {
			e.discard(conn, logger)
			return nil, fmt.Errorf("%w: %s: %v", executor.ErrSessionRejected, s, err)
		}
	}
	if len(stmt.Teardown) > 0 {
		defer e.teardown(context.WithoutCancel(ctx), conn, logger, stmt.Teardown)
	}

	logger.Debug("Executing SQL statement", "dialect", e.dialect.Name(), "sql", stmt.Query)

	rows, err := conn.QueryContext(ctx, stmt.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schema, records, err := arrowconv.ReadRows(rows, e.allocator, e.batchSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	return array.NewRecordReader(schema, records)
}

func (e *Executor) teardown(ctx context.Context, conn *sql.Conn, logger *slog.Logger, statements []string) {
	for _, s := range statements {
		if _, err := conn.ExecContext(ctx, s); err != nil {
			logger.Warn("Failed to reset session parameter", "sql", s, "error", err)
			e.discard(conn, logger)
			return
		}
	}
}

// discard makes the pool drop conn instead of reusing it, since its
// session state is unknown.
func (e *Executor) discard(conn *sql.Conn, logger *slog.Logger) {
	err := conn.Raw(func(any) error { return driver.ErrBadConn })
	if err != nil && !errors.Is(err, driver.ErrBadConn) {
		logger.Debug("Failed to discard connection", "error", err)
	}
}

// Close closes the pool if the executor owns it.
func (e *Executor) Close() error {
	if !e.ownsDB {
		return nil
	}
	return e.db.Close()
}
