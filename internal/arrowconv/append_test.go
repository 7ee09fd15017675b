package arrowconv

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendScalars(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "b", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "i", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "f", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "ts", Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	ts := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	rows := [][]any{
		{true, int64(7), 1.5, "a", ts},
		{[]byte("1"), []byte("42"), []byte("2.25"), []byte("b"), []byte("2024-03-01 12:30:00")},
		{int64(0), int32(-3), float32(0.5), 9, nil},
		{nil, nil, nil, nil, nil},
	}
	for _, row := range rows {
		for i, v := range row {
			require.NoError(t, appendValue(builder.Field(i), v))
		}
	}

	rec := builder.NewRecord()
	defer rec.Release()

	bools := rec.Column(0).(*array.Boolean)
	assert.True(t, bools.Value(0))
	assert.True(t, bools.Value(1))
	assert.False(t, bools.Value(2))
	assert.True(t, bools.IsNull(3))

	ints := rec.Column(1).(*array.Int64)
	assert.Equal(t, []int64{7, 42, -3}, ints.Int64Values()[:3])
	assert.True(t, ints.IsNull(3))

	floats := rec.Column(2).(*array.Float64)
	assert.Equal(t, []float64{1.5, 2.25, 0.5}, floats.Float64Values()[:3])

	strs := rec.Column(3).(*array.String)
	assert.Equal(t, "a", strs.Value(0))
	assert.Equal(t, "b", strs.Value(1))
	assert.Equal(t, "9", strs.Value(2))

	times := rec.Column(4).(*array.Timestamp)
	assert.Equal(t, arrow.Timestamp(ts.UnixMicro()), times.Value(0))
	assert.Equal(t, arrow.Timestamp(ts.UnixMicro()), times.Value(1))
	assert.True(t, times.IsNull(2))
}

func TestAppendList(t *testing.T) {
	builder := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Float32)
	defer builder.Release()

	require.NoError(t, appendValue(builder, []any{float32(1), 2.5, nil}))
	require.NoError(t, appendValue(builder, []float32{3}))
	require.NoError(t, appendValue(builder, nil))

	arr := builder.NewListArray()
	defer arr.Release()

	require.Equal(t, 3, arr.Len())
	assert.True(t, arr.IsNull(2))

	values := arr.ListValues().(*array.Float32)
	require.Equal(t, 4, values.Len())
	assert.Equal(t, float32(1), values.Value(0))
	assert.Equal(t, float32(2.5), values.Value(1))
	assert.True(t, values.IsNull(2))
	assert.Equal(t, float32(3), values.Value(3))
}

func TestAppendRejectsMismatchedValues(t *testing.T) {
	ib := array.NewInt64Builder(memory.DefaultAllocator)
	defer ib.Release()
	assert.Error(t, appendValue(ib, []byte("not a number")))
	assert.Error(t, appendValue(ib, uint64(1<<63)))

	lb := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Float32)
	defer lb.Release()
	assert.Error(t, appendValue(lb, "[1, 2]"))
}
