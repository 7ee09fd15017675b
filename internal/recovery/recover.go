// Package recovery converts panics in pluggable executors into errors.
// Keeps a faulty Executor implementation from crashing the calling program.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrPanic is wrapped by every error produced from a recovered panic.
var ErrPanic = errors.New("panic recovered")

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns the zero value and an error wrapping ErrPanic.
//
// Example:
//
//	reader, err := recovery.RecoverToValue(logger, "Execute", func() (array.RecordReader, error) {
//	    return exec.Execute(ctx, req)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)

			var zero T
			result = zero
			err = fmt.Errorf("%w: %s: %v", ErrPanic, operation, r)
		}
	}()

	return fn()
}

// RecoverToError wraps a function returning only an error.
func RecoverToError(logger *slog.Logger, operation string, fn func() error) error {
	_, err := RecoverToValue(logger, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
