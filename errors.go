package dorisvec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/session"
)

// ExecutionError reports a failure returned by the executor or the backend
// behind it. The backend error is kept verbatim and can be accessed via
// errors.Unwrap.
//
// errors.Is(err, ErrExecution) is true for every ExecutionError;
// errors.Is(err, ErrConfiguration) is additionally true when the failure
// was attributed to session parameters.
type ExecutionError struct {
	QueryID  string
	Table    string
	Sessions session.Snapshot
	// Config is set when the backend rejected session parameters.
	Config bool
	cause  error
}

func (e *ExecutionError) Error() string {
	kind := "execution failed"
	if e.Config {
		kind = "session configuration rejected"
	}
	return fmt.Sprintf("%s: table %q, query %s, sessions %s: %v", kind, e.Table, e.QueryID, e.Sessions, e.cause)
}

func (e *ExecutionError) Unwrap() error { return e.cause }

// Is matches ErrExecution, and ErrConfiguration for session failures.
func (e *ExecutionError) Is(target error) bool {
	switch target {
	case ErrExecution:
		return true
	case ErrConfiguration:
		return e.Config
	default:
		return false
	}
}

func newExecutionError(req executor.Request, err error) *ExecutionError {
	return &ExecutionError{
		QueryID:  req.QueryID,
		Table:    req.Table,
		Sessions: req.Sessions,
		Config:   isSessionError(err, req.Sessions),
		cause:    err,
	}
}

// variablePrefixes precede a quoted variable name in backend rejections,
// e.g. "Unknown system variable 'x'" or "Variable 'x' can't be set to ...".
var variablePrefixes = []string{"variable ", "variable: "}

// isSessionError attributes err to session parameters when the executor
// says so, or when the backend rejects a quoted parameter from the snapshot
// by name. Statements echoed back in syntax errors do not match.
func isSessionError(err error, snap session.Snapshot) bool {
	if errors.Is(err, executor.ErrSessionRejected) {
		return true
	}
	if snap.Len() == 0 {
		return false
	}

	msg := strings.ToLower(err.Error())
	for name := range snap.All() {
		name = strings.ToLower(name)
		for _, q := range []string{"'" + name + "'", "`" + name + "`", `"` + name + `"`} {
			for _, p := range variablePrefixes {
				if strings.Contains(msg, p+q) {
					return true
				}
			}
		}
	}
	return false
}
