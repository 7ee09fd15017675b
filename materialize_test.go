package dorisvec

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Record(t *testing.T, alloc memory.Allocator, names []string, values ...[]int64) arrow.Record {
	t.Helper()
	fields := make([]arrow.Field, len(names))
	for i, n := range names {
		fields[i] = arrow.Field{Name: n, Type: arrow.PrimitiveTypes.Int64}
	}
	builder := array.NewRecordBuilder(alloc, arrow.NewSchema(fields, nil))
	defer builder.Release()
	for i, v := range values {
		builder.Field(i).(*array.Int64Builder).AppendValues(v, nil)
	}
	return builder.NewRecord()
}

func TestResolveProjection(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "ID", Type: arrow.PrimitiveTypes.Int64},
		{Name: "text", Type: arrow.BinaryTypes.String},
	}, nil)

	tests := []struct {
		name    string
		columns []string
		want    []int
		names   []string
		wantErr bool
	}{
		{"all", nil, []int{0, 1}, []string{"ID", "text"}, false},
		{"exact", []string{"text"}, []int{1}, []string{"text"}, false},
		{"case insensitive", []string{"id"}, []int{0}, []string{"id"}, false},
		{"reordered", []string{"text", "ID"}, []int{1, 0}, []string{"text", "ID"}, false},
		{"positional fallback", []string{"a", "b"}, []int{0, 1}, []string{"a", "b"}, false},
		{"missing", []string{"nope"}, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := resolveProjection(schema, tt.columns)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.indices)
			for i, n := range tt.names {
				assert.Equal(t, n, p.schema.Field(i).Name)
			}
		})
	}
}

func TestMaterializeAcrossBatches(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)

	r1 := int64Record(t, alloc, []string{"id", "n"}, []int64{1, 2}, []int64{10, 20})
	r2 := int64Record(t, alloc, []string{"id", "n"}, []int64{3, 4}, []int64{30, 40})
	reader, err := array.NewRecordReader(r1.Schema(), []arrow.Record{r1, r2})
	require.NoError(t, err)
	r1.Release()
	r2.Release()

	tbl, err := materialize(reader, []string{"n"}, 3)
	reader.Release()
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, int64(1), tbl.NumCols())

	var got []int64
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		got = append(got, chunk.(*array.Int64).Int64Values()...)
	}
	assert.Equal(t, []int64{10, 20, 30}, got)
}

func TestMaterializeEmpty(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "text", Type: arrow.BinaryTypes.String}}, nil)
	reader, err := array.NewRecordReader(schema, nil)
	require.NoError(t, err)
	defer reader.Release()

	tbl, err := materialize(reader, []string{"text"}, -1)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(0), tbl.NumRows())
	assert.Equal(t, "text", tbl.Schema().Field(0).Name)
}
