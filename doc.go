// Package dorisvec builds vector similarity searches against Apache Doris
// (and compatible analytical engines) and returns results as Arrow tables.
//
// The package provides:
//   - A Client bound to one database, owning session parameter overrides
//   - Table handles opened from the Client
//   - An immutable, chainable Query: Search → Select → Limit → ToArrow
//   - A pluggable Executor boundary (Flight SQL, database/sql, mock)
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/hugr-lab/doris-vector-go"
//	    "github.com/hugr-lab/doris-vector-go/flight"
//	    "github.com/hugr-lab/doris-vector-go/session"
//	)
//
//	func main() {
//	    exec, err := flight.NewExecutor(flight.Config{
//	        Address:  "doris-fe:8070",
//	        Username: "root",
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    db, err := dorisvec.NewClient("test_database", dorisvec.Config{Executor: exec})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer db.Close()
//
//	    db.WithSession("parallel_pipeline_task_num", session.Int(1)).
//	        WithSession("enable_profile", session.Bool(false))
//
//	    tbl, err := db.OpenTable("test_table").
//	        Search([]float32{0.5, 0.9, 0.6}).
//	        Select("text").
//	        Limit(3).
//	        ToArrow(context.Background())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer tbl.Release()
//	    fmt.Println(tbl.NumRows())
//	}
//
// # Session Parameters
//
// WithSession sets one parameter; WithSessions merges a set atomically. Both
// follow last-write-wins. Every execution takes a snapshot of the parameters
// at call time, so overrides issued later never affect a query in flight.
// Parameter names are not validated locally; the backend rejects unknown
// names and the failure surfaces as an ExecutionError matching
// ErrConfiguration.
//
// # Errors
//
// ErrInvalidQuery reports locally detectable mistakes (empty or non-finite
// vector, negative limit, reusing an executed query). Such queries never
// reach the executor. Backend failures are returned as *ExecutionError,
// which carries the table name, query id and session snapshot.
//
// # Logging
//
// The package uses log/slog.Default() unless Config.Logger or
// Config.LogLevel is set. Each execution logs at Debug with its query id.
//
// # Memory Management
//
// Arrow uses manual reference counting. Callers MUST call Release() on the
// table returned by ToArrow.
package dorisvec
