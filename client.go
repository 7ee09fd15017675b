package dorisvec

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/internal/recovery"
	"github.com/hugr-lab/doris-vector-go/session"
	"github.com/hugr-lab/doris-vector-go/sqlgen"
)

// Client is a handle to one logical database.
//
// A Client owns the session overrides applied to every query it executes.
// Tables opened from the same Client share its Executor and session state,
// so an override made through one is observed by all.
// Safe for concurrent use.
type Client struct {
	database     string
	executor     executor.Executor
	sessions     *session.Config
	logger       *slog.Logger
	vectorColumn string
	metric       executor.Metric
}

// NewClient creates a client bound to the named database.
// It does not contact the backend; table existence is checked when a query runs.
//
// Example:
//
//	exec, err := flight.NewExecutor(flight.Config{Address: "doris-fe:8070", Username: "root"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := dorisvec.NewClient("test_database", dorisvec.Config{Executor: exec})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
func NewClient(database string, config Config) (*Client, error) {
	if err := validateConfig(database, config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := config.Logger
	if logger == nil {
		if config.LogLevel != nil {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
		} else {
			logger = slog.Default()
		}
	}

	vectorColumn := config.VectorColumn
	if vectorColumn == "" {
		vectorColumn = sqlgen.DefaultVectorColumn
	}

	metric := config.Metric
	if metric == "" {
		metric = executor.MetricL2
	}

	return &Client{
		database:     database,
		executor:     config.Executor,
		sessions:     session.NewConfig(),
		logger:       logger.With("database", database),
		vectorColumn: vectorColumn,
		metric:       metric,
	}, nil
}

// validateConfig checks that required Config fields are valid.
func validateConfig(database string, config Config) error {
	if database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if config.Metric != "" {
		if err := config.Metric.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Database returns the database name.
func (c *Client) Database() string {
	return c.database
}

// OpenTable returns a handle to the named table.
// Handles are cheap; repeated calls with the same name return equivalent handles.
func (c *Client) OpenTable(name string) *Table {
	return &Table{name: name, client: c}
}

// WithSession sets one session parameter for all subsequent queries.
// An invalid (zero) Value is not a scalar and is ignored.
// Returns the client for chaining.
//
// Example:
//
//	db.WithSession("parallel_pipeline_task_num", session.Int(1)).
//	    WithSession("enable_profile", session.Bool(false))
func (c *Client) WithSession(name string, value session.Value) *Client {
	if !value.IsValid() {
		c.logger.Warn("Session parameter ignored: no value", "name", name)
		return c
	}
	c.sessions.Set(name, value)
	c.logger.Debug("Session parameter set", "name", name, "value", value.String())
	return c
}

// WithSessions merges params into the session configuration atomically.
// Existing names are overwritten, new names added, others left unchanged.
// Entries with an invalid (zero) Value are ignored.
// Returns the client for chaining.
func (c *Client) WithSessions(params session.Params) *Client {
	for name, v := range params {
		if !v.IsValid() {
			c.logger.Warn("Session parameter ignored: no value", "name", name)
		}
	}
	c.sessions.Merge(params)
	c.logger.Debug("Session parameters merged", "count", len(params))
	return c
}

// Sessions returns a snapshot of the current session parameters.
func (c *Client) Sessions() session.Snapshot {
	return c.sessions.Snapshot()
}

// Close releases the executor if it holds resources.
func (c *Client) Close() error {
	closer, ok := c.executor.(io.Closer)
	if !ok {
		return nil
	}
	return recovery.RecoverToError(c.logger, "Close", closer.Close)
}
