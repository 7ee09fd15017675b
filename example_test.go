package dorisvec_test

import (
	"context"
	"fmt"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	dorisvec "github.com/hugr-lab/doris-vector-go"
	"github.com/hugr-lab/doris-vector-go/executor/mock"
	"github.com/hugr-lab/doris-vector-go/filter"
	"github.com/hugr-lab/doris-vector-go/session"
	"github.com/hugr-lab/doris-vector-go/sqlgen"
)

func exampleExecutor() *mock.Executor {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "text", Type: arrow.BinaryTypes.String},
	}, nil)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{7, 2, 9, 4}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"apple", "pear", "plum", "fig"}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	return mock.New(mock.Config{Seed: map[string]arrow.Record{"test_table": rec}})
}

func Example() {
	db, err := dorisvec.NewClient("test_database", dorisvec.Config{Executor: exampleExecutor()})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	tbl, err := db.OpenTable("test_table").
		Search([]float32{0.5, 0.9, 0.6}).
		Select("text").
		Limit(3).
		ToArrow(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	defer tbl.Release()

	fmt.Println(tbl.Schema().Field(0).Name, tbl.NumRows())
	// Output: text 3
}

func ExampleClient_WithSession() {
	db, err := dorisvec.NewClient("test_database", dorisvec.Config{Executor: exampleExecutor()})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	db.WithSession("parallel_pipeline_task_num", session.Int(1)).
		WithSession("enable_profile", session.Bool(false))
	fmt.Println(db.Sessions())

	db.WithSessions(session.Params{
		"parallel_pipeline_task_num": session.Int(4),
		"enable_profile":             session.Bool(true),
	})
	fmt.Println(db.Sessions())
	// Output:
	// {parallel_pipeline_task_num=1, enable_profile=false}
	// {parallel_pipeline_task_num=4, enable_profile=true}
}

func ExampleQuery_SQL() {
	db, err := dorisvec.NewClient("test_database", dorisvec.Config{Executor: exampleExecutor()})
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	db.WithSession("enable_profile", session.Bool(false))

	stmt, err := db.OpenTable("test_table").
		Search([]float32{0.5, 0.9, 0.6}).
		Select("text").
		Filter(filter.Eq(filter.Col("lang"), filter.Lit("en"))).
		Limit(3).
		SQL(sqlgen.Doris{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(stmt)
	// Output: SELECT /*+ SET_VAR(enable_profile = false) */ `text` FROM `test_database`.`test_table` WHERE `lang` = 'en' ORDER BY l2_distance_approximate(`embedding`, [0.5, 0.9, 0.6]) ASC LIMIT 3
}
