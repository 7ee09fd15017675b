package flight

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey int

const (
	traceMetaKey contextKey = iota
)

// Metadata header keys attached to every Flight SQL call.
const (
	// HeaderQueryID carries the id of the execution that issued the call.
	HeaderQueryID = "dorisvec-query-id"
	// HeaderTraceID carries a caller-supplied distributed trace identifier.
	HeaderTraceID = "dorisvec-trace-id"
	// HeaderSessionID carries a caller-supplied client session identifier.
	HeaderSessionID = "dorisvec-client-session-id"
)

// TraceMeta holds caller-supplied observability identifiers.
type TraceMeta struct {
	TraceID   string
	SessionID string
}

// WithTraceMeta attaches trace identifiers that the executor forwards as
// gRPC metadata on every call made with ctx.
func WithTraceMeta(ctx context.Context, meta TraceMeta) context.Context {
	return context.WithValue(ctx, traceMetaKey, &meta)
}

// TraceMetaFromContext returns the identifiers set by WithTraceMeta, or nil.
func TraceMetaFromContext(ctx context.Context) *TraceMeta {
	meta, ok := ctx.Value(traceMetaKey).(*TraceMeta)
	if !ok {
		return nil
	}
	return meta
}

// outgoingContext appends the query id and any trace identifiers to the
// outgoing gRPC metadata of ctx.
func outgoingContext(ctx context.Context, queryID string) context.Context {
	kv := make([]string, 0, 6)
	if queryID != "" {
		kv = append(kv, HeaderQueryID, queryID)
	}
	if meta := TraceMetaFromContext(ctx); meta != nil {
		if meta.TraceID != "" {
			kv = append(kv, HeaderTraceID, meta.TraceID)
		}
		if meta.SessionID != "" {
			kv = append(kv, HeaderSessionID, meta.SessionID)
		}
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
