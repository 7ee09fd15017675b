package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/hugr-lab/doris-vector-go/session"
)

// Dialect renders identifiers and literals. sqlgen dialects implement it.
type Dialect interface {
	QuoteIdent(name string) string
	Literal(v session.Value) string
}

// Encoder converts filter expressions to SQL in one dialect.
// Safe for concurrent use.
type Encoder struct {
	dialect Dialect
}

// NewEncoder creates an encoder for d.
func NewEncoder(d Dialect) *Encoder {
	return &Encoder{dialect: d}
}

// Encode converts expr to a SQL boolean expression without the WHERE keyword.
func (e *Encoder) Encode(expr Expression) (string, error) {
	var sb strings.Builder
	if err := e.encode(&sb, expr); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (e *Encoder) encode(sb *strings.Builder, expr Expression) error {
	switch ex := expr.(type) {
	case nil:
		return fmt.Errorf("%w: nil expression", ErrInvalidExpression)
	case *invalidExpression:
		return ex.err
	case *ColumnRefExpression:
		sb.WriteString(e.dialect.QuoteIdent(ex.Name))
	case *ConstantExpression:
		if ex.IsNull() {
			sb.WriteString("NULL")
			return nil
		}
		if f, ok := ex.Value.AsFloat(); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return fmt.Errorf("%w: non-finite constant %v", ErrInvalidExpression, f)
		}
		sb.WriteString(e.dialect.Literal(ex.Value))
	case *ComparisonExpression:
		return e.encodeComparison(sb, ex)
	case *InExpression:
		return e.encodeIn(sb, ex)
	case *BetweenExpression:
		return e.encodeBetween(sb, ex)
	case *ConjunctionExpression:
		return e.encodeConjunction(sb, ex)
	case *OperatorExpression:
		return e.encodeOperator(sb, ex)
	default:
		return fmt.Errorf("%w: unsupported expression %T", ErrInvalidExpression, expr)
	}
	return nil
}

var comparisonOps = map[ExpressionType]string{
	TypeCompareEqual:              " = ",
	TypeCompareNotEqual:           " <> ",
	TypeCompareLessThan:           " < ",
	TypeCompareGreaterThan:        " > ",
	TypeCompareLessThanOrEqual:    " <= ",
	TypeCompareGreaterThanOrEqual: " >= ",
	TypeCompareLike:               " LIKE ",
	TypeCompareNotLike:            " NOT LIKE ",
}

func (e *Encoder) encodeComparison(sb *strings.Builder, c *ComparisonExpression) error {
	op, ok := comparisonOps[c.Type()]
	if !ok {
		return fmt.Errorf("%w: unknown comparison %s", ErrInvalidExpression, c.Type())
	}
	if isNullConstant(c.Left) || isNullConstant(c.Right) {
		return fmt.Errorf("%w: comparison with NULL is never true; use IsNull", ErrInvalidExpression)
	}
	if err := e.encode(sb, c.Left); err != nil {
		return err
	}
	sb.WriteString(op)
	return e.encode(sb, c.Right)
}

func (e *Encoder) encodeIn(sb *strings.Builder, c *InExpression) error {
	if len(c.Values) == 0 {
		return fmt.Errorf("%w: IN requires at least one value", ErrInvalidExpression)
	}
	if err := e.encode(sb, c.Input); err != nil {
		return err
	}
	if c.Type() == TypeCompareNotIn {
		sb.WriteString(" NOT IN (")
	} else {
		sb.WriteString(" IN (")
	}
	for i, v := range c.Values {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := e.encode(sb, v); err != nil {
			return err
		}
	}
	sb.WriteByte(')')
	return nil
}

func (e *Encoder) encodeBetween(sb *strings.Builder, b *BetweenExpression) error {
	if err := e.encode(sb, b.Input); err != nil {
		return err
	}
	if b.Type() == TypeCompareNotBetween {
		sb.WriteString(" NOT BETWEEN ")
	} else {
		sb.WriteString(" BETWEEN ")
	}
	if err := e.encode(sb, b.Lower); err != nil {
		return err
	}
	sb.WriteString(" AND ")
	return e.encode(sb, b.Upper)
}

// encodeConjunction parenthesizes multi-child conjunctions so they nest
// correctly inside any parent.
func (e *Encoder) encodeConjunction(sb *strings.Builder, c *ConjunctionExpression) error {
	switch len(c.Children) {
	case 0:
		return fmt.Errorf("%w: empty %s", ErrInvalidExpression, c.Type())
	case 1:
		return e.encode(sb, c.Children[0])
	}

	op := " AND "
	if c.Type() == TypeConjunctionOr {
		op = " OR "
	}
	sb.WriteByte('(')
	for i, child := range c.Children {
		if i > 0 {
			sb.WriteString(op)
		}
		if err := e.encode(sb, child); err != nil {
			return err
		}
	}
	sb.WriteByte(')')
	return nil
}

func (e *Encoder) encodeOperator(sb *strings.Builder, o *OperatorExpression) error {
	switch o.Type() {
	case TypeOperatorNot:
		sb.WriteString("NOT (")
		if err := e.encode(sb, o.Child); err != nil {
			return err
		}
		sb.WriteByte(')')
	case TypeOperatorIsNull, TypeOperatorIsNotNull:
		if err := e.encode(sb, o.Child); err != nil {
			return err
		}
		if o.Type() == TypeOperatorIsNull {
			sb.WriteString(" IS NULL")
		} else {
			sb.WriteString(" IS NOT NULL")
		}
	default:
		return fmt.Errorf("%w: unknown operator %s", ErrInvalidExpression, o.Type())
	}
	return nil
}

func isNullConstant(expr Expression) bool {
	c, ok := expr.(*ConstantExpression)
	return ok && c.IsNull()
}

// ansi renders with double-quoted identifiers and standard string escaping.
type ansi struct{}

func (ansi) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (ansi) Literal(v session.Value) string {
	if s, ok := v.AsString(); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return v.String()
}

var validator = NewEncoder(ansi{})

// Validate reports whether expr can be encoded.
func Validate(expr Expression) error {
	_, err := validator.Encode(expr)
	return err
}

// String renders expr in a dialect-neutral form, for logs and cache keys.
// Invalid expressions render as their error.
func String(expr Expression) string {
	s, err := validator.Encode(expr)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return s
}
