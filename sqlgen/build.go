package sqlgen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hugr-lab/doris-vector-go/executor"
	"github.com/hugr-lab/doris-vector-go/filter"
)

var (
	// ErrInvalidSessionName is returned when a session parameter name is not
	// a plain identifier and cannot be rendered safely.
	ErrInvalidSessionName = errors.New("invalid session parameter name")

	// ErrInvalidRequest is returned for requests that cannot be rendered.
	ErrInvalidRequest = errors.New("invalid request")
)

// DefaultVectorColumn is used when a request names no vector column.
const DefaultVectorColumn = "embedding"

// Statement is a rendered request.
type Statement struct {
	// Setup runs before Query on the same connection.
	Setup []string
	// Query returns the result rows.
	Query string
	// Teardown runs after Query on the same connection, even on failure.
	Teardown []string
}

// Build renders req in the given dialect.
//
// The generated query has the shape:
//
//	SELECT [hint] <columns|*> FROM <db>.<table> [WHERE (<filter>) AND <predicate>]
//	ORDER BY <distance>(<vector column>, <vector>) ASC|DESC [LIMIT n]
func Build(d Dialect, req executor.Request) (Statement, error) {
	if req.Table == "" {
		return Statement{}, fmt.Errorf("%w: table name is empty", ErrInvalidRequest)
	}
	if len(req.Vector) == 0 {
		return Statement{}, fmt.Errorf("%w: vector is empty", ErrInvalidRequest)
	}
	for i, f := range req.Vector {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return Statement{}, fmt.Errorf("%w: vector[%d] is not finite", ErrInvalidRequest, i)
		}
	}
	for name := range req.Sessions.All() {
		if !isIdentifier(name) {
			return Statement{}, fmt.Errorf("%w: %q", ErrInvalidSessionName, name)
		}
	}

	metric := req.Metric
	if metric == "" {
		metric = executor.MetricL2
	}
	if err := metric.Validate(); err != nil {
		return Statement{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	vectorColumn := req.VectorColumn
	if vectorColumn == "" {
		vectorColumn = DefaultVectorColumn
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if hint := d.SessionHint(req.Sessions); hint != "" {
		sb.WriteString(hint)
		sb.WriteByte(' ')
	}

	if len(req.Columns) == 0 {
		sb.WriteByte('*')
	} else {
		for i, col := range req.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.QuoteIdent(col))
		}
	}

	sb.WriteString(" FROM ")
	if req.Database != "" {
		sb.WriteString(d.QuoteIdent(req.Database))
		sb.WriteByte('.')
	}
	sb.WriteString(d.QuoteIdent(req.Table))

	var conds []string
	if raw := strings.TrimSpace(req.Filter); raw != "" {
		conds = append(conds, "("+raw+")")
	}
	if req.Predicate != nil {
		pred, err := filter.NewEncoder(d).Encode(req.Predicate)
		if err != nil {
			return Statement{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		conds = append(conds, pred)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	fn, desc := d.DistanceFunc(metric)
	sb.WriteString(" ORDER BY ")
	sb.WriteString(fn)
	sb.WriteByte('(')
	sb.WriteString(d.QuoteIdent(vectorColumn))
	sb.WriteString(", ")
	sb.WriteString(d.VectorLiteral(req.Vector))
	sb.WriteByte(')')
	if desc {
		sb.WriteString(" DESC")
	} else {
		sb.WriteString(" ASC")
	}

	if req.HasLimit() {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.FormatInt(req.Limit, 10))
	}

	setup, teardown := d.SessionStatements(req.Sessions)
	return Statement{
		Setup:    setup,
		Query:    sb.String(),
		Teardown: teardown,
	}, nil
}

// isIdentifier reports whether name is a plain (optionally dotted) identifier.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '.' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
