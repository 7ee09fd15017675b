// Package sqlgen renders vector search requests into backend SQL.
//
// A Dialect knows how one engine quotes identifiers, spells literals, ranks by
// vector distance and applies session parameters. Build combines a Dialect
// with an executor.Request into a Statement ready for execution.
package sqlgen

import (
	"strconv"
	"strings"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/session"
)

// Dialect encodes request parts in one engine's SQL syntax.
type Dialect interface {
	// Name returns the dialect name used in logs.
	Name() string

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// Literal renders a session value as a SQL literal.
	Literal(v session.Value) string

	// VectorLiteral renders the target vector as an array literal.
	VectorLiteral(vec []float32) string

	// DistanceFunc returns the distance function for m and whether larger
	// values rank first.
	DistanceFunc(m executor.Metric) (fn string, desc bool)

	// SessionHint returns an optimizer hint placed after SELECT that applies
	// the snapshot to this statement only. Empty if the dialect uses
	// session statements instead.
	SessionHint(snap session.Snapshot) string

	// SessionStatements returns statements run before and after the query
	// to apply and undo the snapshot on a dedicated connection.
	SessionStatements(snap session.Snapshot) (setup, teardown []string)
}

// Doris renders Apache Doris SQL. Session parameters are applied per
// statement with a SET_VAR hint, so pooled connections stay clean.
type Doris struct{}

func (Doris) Name() string { return "doris" }

func (Doris) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (Doris) Literal(v session.Value) string {
	if s, ok := v.AsString(); ok {
		s = strings.ReplaceAll(s, `\`, `\\`)
		return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	return scalarLiteral(v)
}

func (Doris) VectorLiteral(vec []float32) string {
	return "[" + joinFloats(vec) + "]"
}

func (Doris) DistanceFunc(m executor.Metric) (string, bool) {
	if m == executor.MetricInnerProduct {
		return "inner_product_approximate", true
	}
	return "l2_distance_approximate", false
}

func (d Doris) SessionHint(snap session.Snapshot) string {
	if snap.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, snap.Len())
	for name, v := range snap.All() {
		parts = append(parts, name+" = "+d.Literal(v))
	}
	return "/*+ SET_VAR(" + strings.Join(parts, ", ") + ") */"
}

func (Doris) SessionStatements(session.Snapshot) (setup, teardown []string) {
	return nil, nil
}

// DuckDB renders DuckDB SQL. Session parameters become SET statements
// followed by RESET once the query completes.
type DuckDB struct{}

func (DuckDB) Name() string { return "duckdb" }

func (DuckDB) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (DuckDB) Literal(v session.Value) string {
	if s, ok := v.AsString(); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return scalarLiteral(v)
}

func (DuckDB) VectorLiteral(vec []float32) string {
	return "[" + joinFloats(vec) + "]::FLOAT[" + strconv.Itoa(len(vec)) + "]"
}

func (DuckDB) DistanceFunc(m executor.Metric) (string, bool) {
	if m == executor.MetricInnerProduct {
		return "array_inner_product", true
	}
	return "array_distance", false
}

func (DuckDB) SessionHint(session.Snapshot) string { return "" }

func (d DuckDB) SessionStatements(snap session.Snapshot) (setup, teardown []string) {
	for name, v := range snap.All() {
		setup = append(setup, "SET "+name+" = "+d.Literal(v))
		teardown = append(teardown, "RESET "+name)
	}
	return setup, teardown
}

func scalarLiteral(v session.Value) string {
	switch v.Kind() {
	case session.KindBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case session.KindInt:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10)
	case session.KindFloat:
		f, _ := v.AsFloat()
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		return "NULL"
	}
}

func joinFloats(vec []float32) string {
	var sb strings.Builder
	for i, f := range vec {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	return sb.String()
}

// DialectByName returns the dialect registered under name.
func DialectByName(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case "doris", "mysql":
		return Doris{}, true
	case "duckdb":
		return DuckDB{}, true
	default:
		return nil, false
	}
}
