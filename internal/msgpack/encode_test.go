package msgpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/filter"
	"github.com/hugr-lab/doris-vector-go/session"
)

func request() executor.Request {
	return executor.Request{
		QueryID:  "q1",
		Database: "db",
		Table:    "t",
		Vector:   []float32{0.5, 0.9},
		Columns:  []string{"text"},
		Limit:    3,
		Sessions: session.NewSnapshot(session.Param{Name: "enable_profile", Value: session.Bool(false)}),
	}
}

func TestEncodeRequestIgnoresQueryID(t *testing.T) {
	a := request()
	b := request()
	b.QueryID = "q2"

	encA, err := EncodeRequest(a)
	require.NoError(t, err)
	encB, err := EncodeRequest(b)
	require.NoError(t, err)

	assert.Equal(t, encA, encB)
}

func TestEncodeRequestDistinguishesFields(t *testing.T) {
	base, err := EncodeRequest(request())
	require.NoError(t, err)

	mutations := map[string]func(*executor.Request){
		"limit":   func(r *executor.Request) { r.Limit = 4 },
		"vector":  func(r *executor.Request) { r.Vector = []float32{0.5, 0.8} },
		"columns": func(r *executor.Request) { r.Columns = []string{"id"} },
		"session": func(r *executor.Request) {
			r.Sessions = session.NewSnapshot(session.Param{Name: "enable_profile", Value: session.Bool(true)})
		},
		"session kind": func(r *executor.Request) {
			r.Sessions = session.NewSnapshot(session.Param{Name: "enable_profile", Value: session.Int(0)})
		},
		"filter": func(r *executor.Request) { r.Filter = "id > 1" },
		"predicate": func(r *executor.Request) {
			r.Predicate = filter.Gt(filter.Col("id"), filter.Lit(1))
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := request()
			mutate(&req)
			enc, err := EncodeRequest(req)
			require.NoError(t, err)
			assert.NotEqual(t, base, enc)
		})
	}
}

func TestEncodeSortsMapKeys(t *testing.T) {
	data, err := Encode(map[string]any{"b": 2, "a": "x"})
	require.NoError(t, err)

	// fixmap of two entries, then the key "a" first.
	require.Greater(t, len(data), 3)
	assert.Equal(t, []byte{0x82, 0xa1, 'a'}, data[:3])
}
