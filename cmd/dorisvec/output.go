package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

const (
	formatJSON = "json"
	formatText = "text"
)

func writeTable(w io.Writer, format string, tbl arrow.Table) error {
	if format == formatText {
		return writeText(w, tbl)
	}
	return writeJSON(w, tbl)
}

// writeJSON prints one JSON object per row.
func writeJSON(w io.Writer, tbl arrow.Table) error {
	rdr := array.NewTableReader(tbl, 0)
	defer rdr.Release()

	for rdr.Next() {
		if err := array.RecordToJSON(rdr.Record(), w); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	}
	return rdr.Err()
}

// writeText prints an aligned table with a header row.
func writeText(w io.Writer, tbl arrow.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	schema := tbl.Schema()
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	rdr := array.NewTableReader(tbl, 0)
	defer rdr.Release()

	cells := make([]string, len(names))
	for rdr.Next() {
		rec := rdr.Record()
		for row := 0; row < int(rec.NumRows()); row++ {
			for col := range cells {
				arr := rec.Column(col)
				if arr.IsNull(row) {
					cells[col] = "NULL"
				} else {
					cells[col] = arr.ValueStr(row)
				}
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
	}
	if err := rdr.Err(); err != nil {
		return err
	}
	return tw.Flush()
}
