package dorisvec

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// materialize drains reader into a table.
//
// Columns are named after the requested projection and rows keep the reader's
// order. At most limit rows are kept when limit is non-negative.
func materialize(reader array.RecordReader, columns []string, limit int64) (arrow.Table, error) {
	mapping, err := resolveProjection(reader.Schema(), columns)
	if err != nil {
		return nil, err
	}

	var records []arrow.Record
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	var rows int64
	for reader.Next() {
		if limit >= 0 && rows >= limit {
			break
		}

		rec := reader.Record()
		n := rec.NumRows()
		if limit >= 0 && rows+n > limit {
			n = limit - rows
		}
		if n == 0 {
			continue
		}

		out, err := mapping.apply(rec, n)
		if err != nil {
			return nil, err
		}
		records = append(records, out)
		rows += n
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	return array.NewTableFromRecords(mapping.schema, records), nil
}

// projection maps backend columns onto the requested ones.
type projection struct {
	schema  *arrow.Schema
	indices []int
}

// resolveProjection matches requested columns against the backend schema by
// name, then case-insensitively, then by position when the widths agree.
func resolveProjection(schema *arrow.Schema, columns []string) (*projection, error) {
	if schema == nil {
		return nil, fmt.Errorf("result has no schema")
	}
	if len(columns) == 0 {
		indices := make([]int, schema.NumFields())
		for i := range indices {
			indices[i] = i
		}
		return &projection{schema: schema, indices: indices}, nil
	}

	indices := make([]int, len(columns))
	for i, name := range columns {
		indices[i] = findColumn(schema, name)
	}

	for i, idx := range indices {
		if idx >= 0 {
			continue
		}
		if schema.NumFields() != len(columns) {
			return nil, fmt.Errorf("result is missing column %q", columns[i])
		}
		for j := range indices {
			indices[j] = j
		}
		break
	}

	fields := make([]arrow.Field, len(columns))
	for i, idx := range indices {
		field := schema.Field(idx)
		field.Name = columns[i]
		fields[i] = field
	}

	meta := schema.Metadata()
	return &projection{schema: arrow.NewSchema(fields, &meta), indices: indices}, nil
}

func findColumn(schema *arrow.Schema, name string) int {
	if idx := schema.FieldIndices(name); len(idx) > 0 {
		return idx[0]
	}
	for i, f := range schema.Fields() {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// apply returns the first n rows of rec rearranged into the projection.
func (p *projection) apply(rec arrow.Record, n int64) (arrow.Record, error) {
	if int(rec.NumCols()) <= maxIndex(p.indices) {
		return nil, fmt.Errorf("result batch has %d columns, expected at least %d", rec.NumCols(), maxIndex(p.indices)+1)
	}

	if n < rec.NumRows() {
		rec = rec.NewSlice(0, n)
		defer rec.Release()
	}

	cols := make([]arrow.Array, len(p.indices))
	for i, idx := range p.indices {
		cols[i] = rec.Column(idx)
	}
	return array.NewRecord(p.schema, cols, n), nil
}

func maxIndex(indices []int) int {
	m := -1
	for _, i := range indices {
		m = max(m, i)
	}
	return m
}
