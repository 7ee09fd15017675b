package dorisvec

import (
	"errors"
	"log/slog"

	"github.com/hugr-lab/doris-vector-go/executor"
)

// Config contains configuration for a database client.
type Config struct {
	// Executor runs finalized queries against the backend.
	// REQUIRED: MUST NOT be nil.
	Executor executor.Executor

	// VectorColumn names the column holding stored embeddings.
	// OPTIONAL: Uses "embedding" if empty. Queries may override it.
	VectorColumn string

	// Metric is the default distance function.
	// OPTIONAL: Uses executor.MetricL2 if empty. Queries may override it.
	Metric executor.Metric

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, the Logger (or slog.Default()) is used as is.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level
}

// Standard errors returned by dorisvec package.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("invalid client config")

	// ErrInvalidQuery indicates a locally detected argument error
	// (empty or non-finite vector, negative limit, reused query).
	// Queries failing with it never reach the executor.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrExecution matches every *ExecutionError.
	ErrExecution = errors.New("query execution failed")

	// ErrConfiguration matches execution errors attributed to session parameters.
	ErrConfiguration = errors.New("session configuration rejected")
)
