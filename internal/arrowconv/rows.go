// Package arrowconv converts database/sql result sets into Arrow records.
package arrowconv

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DefaultBatchSize is the number of rows per record when none is given.
const DefaultBatchSize = 4096

var (
	timeType        = reflect.TypeOf(time.Time{})
	nullTimeType    = reflect.TypeOf(sql.NullTime{})
	nullBoolType    = reflect.TypeOf(sql.NullBool{})
	nullInt64Type   = reflect.TypeOf(sql.NullInt64{})
	nullInt32Type   = reflect.TypeOf(sql.NullInt32{})
	nullInt16Type   = reflect.TypeOf(sql.NullInt16{})
	nullByteType    = reflect.TypeOf(sql.NullByte{})
	nullFloat64Type = reflect.TypeOf(sql.NullFloat64{})
	nullStringType  = reflect.TypeOf(sql.NullString{})
	rawBytesType    = reflect.TypeOf(sql.RawBytes{})
)

// Schema derives an Arrow schema from result column types.
func Schema(cols []*sql.ColumnType) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, col := range cols {
		fields[i] = arrow.Field{
			Name:     col.Name(),
			Type:     DataType(col),
			Nullable: true,
		}
	}
	return arrow.NewSchema(fields, nil)
}

// DataType maps one result column to an Arrow type. Unknown types fall back
// to strings.
func DataType(col *sql.ColumnType) arrow.DataType {
	dbType := strings.ToUpper(col.DatabaseTypeName())
	st := col.ScanType()

	if st != nil {
		switch st {
		case timeType, nullTimeType:
			return arrow.FixedWidthTypes.Timestamp_us
		case nullBoolType:
			return arrow.FixedWidthTypes.Boolean
		case nullInt64Type, nullInt32Type, nullInt16Type, nullByteType:
			return arrow.PrimitiveTypes.Int64
		case nullFloat64Type:
			return arrow.PrimitiveTypes.Float64
		case nullStringType:
			return arrow.BinaryTypes.String
		case rawBytesType:
			return bytesType(dbType)
		}

		switch st.Kind() {
		case reflect.Bool:
			return arrow.FixedWidthTypes.Boolean
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint8, reflect.Uint16, reflect.Uint32:
			return arrow.PrimitiveTypes.Int64
		case reflect.Uint, reflect.Uint64:
			return arrow.PrimitiveTypes.Uint64
		case reflect.Float32:
			return arrow.PrimitiveTypes.Float32
		case reflect.Float64:
			return arrow.PrimitiveTypes.Float64
		case reflect.String:
			return arrow.BinaryTypes.String
		case reflect.Slice:
			if st.Elem().Kind() == reflect.Uint8 {
				return bytesType(dbType)
			}
			return arrow.ListOf(arrow.PrimitiveTypes.Float32)
		}
	}

	switch {
	case strings.Contains(dbType, "[") || strings.HasPrefix(dbType, "LIST") || strings.HasPrefix(dbType, "ARRAY"):
		return arrow.ListOf(arrow.PrimitiveTypes.Float32)
	case dbType == "BOOLEAN" || dbType == "BOOL":
		return arrow.FixedWidthTypes.Boolean
	case strings.HasSuffix(dbType, "INT") || dbType == "INTEGER":
		return arrow.PrimitiveTypes.Int64
	case dbType == "FLOAT":
		return arrow.PrimitiveTypes.Float32
	case dbType == "DOUBLE":
		return arrow.PrimitiveTypes.Float64
	}
	return arrow.BinaryTypes.String
}

func bytesType(dbType string) arrow.DataType {
	if strings.Contains(dbType, "BLOB") || strings.Contains(dbType, "BINARY") {
		return arrow.BinaryTypes.Binary
	}
	return arrow.BinaryTypes.String
}

// ReadRows drains rows into records of at most batchSize rows each.
// The caller owns the returned records and must Release each of them.
// An empty result yields the schema and no records.
func ReadRows(rows *sql.Rows, allocator memory.Allocator, batchSize int) (*arrow.Schema, []arrow.Record, error) {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read column types: %w", err)
	}
	schema := Schema(colTypes)

	builder := array.NewRecordBuilder(allocator, schema)
	defer builder.Release()

	var records []arrow.Record
	release := func() {
		for _, rec := range records {
			rec.Release()
		}
	}

	values := make([]any, len(colTypes))
	dest := make([]any, len(colTypes))
	for i := range values {
		dest[i] = &values[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if err := appendValue(builder.Field(i), v); err != nil {
				release()
				return nil, nil, fmt.Errorf("column %q: %w", colTypes[i].Name(), err)
			}
		}

		n++
		if n == batchSize {
			records = append(records, builder.NewRecord())
			n = 0
		}
	}
	if err := rows.Err(); err != nil {
		release()
		return nil, nil, err
	}
	if n > 0 {
		records = append(records, builder.NewRecord())
	}

	return schema, records, nil
}
