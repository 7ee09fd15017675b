// Package msgpack provides canonical MessagePack encoding of executor requests.
// The result cache hashes these bytes to build its keys.
package msgpack

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/filter"
)

// requestKey is the wire shape of a request. QueryID is excluded so that
// repeated executions of the same search share one encoding.
type requestKey struct {
	Database     string         `msgpack:"database"`
	Table        string         `msgpack:"table"`
	Vector       []float32      `msgpack:"vector"`
	Columns      []string       `msgpack:"columns,omitempty"`
	Limit        int64          `msgpack:"limit"`
	Metric       string         `msgpack:"metric,omitempty"`
	VectorColumn string         `msgpack:"vector_column,omitempty"`
	Filter       string         `msgpack:"filter,omitempty"`
	Predicate    string         `msgpack:"predicate,omitempty"`
	Sessions     []sessionParam `msgpack:"sessions,omitempty"`
}

type sessionParam struct {
	Name  string `msgpack:"name"`
	Kind  uint8  `msgpack:"kind"`
	Value any    `msgpack:"value"`
}

// EncodeRequest serializes req into deterministic MessagePack bytes.
// Session parameters keep snapshot order, since it is part of the statement.
func EncodeRequest(req executor.Request) ([]byte, error) {
	key := requestKey{
		Database:     req.Database,
		Table:        req.Table,
		Vector:       req.Vector,
		Columns:      req.Columns,
		Limit:        req.Limit,
		Metric:       string(req.Metric),
		VectorColumn: req.VectorColumn,
		Filter:       req.Filter,
	}
	if req.Predicate != nil {
		key.Predicate = filter.String(req.Predicate)
	}
	for name, v := range req.Sessions.All() {
		key.Sessions = append(key.Sessions, sessionParam{
			Name:  name,
			Kind:  uint8(v.Kind()),
			Value: v.Interface(),
		})
	}

	return Encode(key)
}

// Encode serializes a Go value into MessagePack format with sorted map keys.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	return buf.Bytes(), nil
}
