package filter

import (
	"errors"

	"github.com/hugr-lab/doris-vector-go/session"
)

// ErrInvalidExpression is returned for predicates that cannot be encoded.
var ErrInvalidExpression = errors.New("invalid filter expression")

// ExpressionType identifies the specific operation type.
type ExpressionType string

const (
	// Comparison operators
	TypeCompareEqual              ExpressionType = "COMPARE_EQUAL"
	TypeCompareNotEqual           ExpressionType = "COMPARE_NOTEQUAL"
	TypeCompareLessThan           ExpressionType = "COMPARE_LESSTHAN"
	TypeCompareGreaterThan        ExpressionType = "COMPARE_GREATERTHAN"
	TypeCompareLessThanOrEqual    ExpressionType = "COMPARE_LESSTHANOREQUALTO"
	TypeCompareGreaterThanOrEqual ExpressionType = "COMPARE_GREATERTHANOREQUALTO"
	TypeCompareLike               ExpressionType = "COMPARE_LIKE"
	TypeCompareNotLike            ExpressionType = "COMPARE_NOT_LIKE"
	TypeCompareIn                 ExpressionType = "COMPARE_IN"
	TypeCompareNotIn              ExpressionType = "COMPARE_NOT_IN"
	TypeCompareBetween            ExpressionType = "COMPARE_BETWEEN"
	TypeCompareNotBetween         ExpressionType = "COMPARE_NOT_BETWEEN"

	// Conjunction operators
	TypeConjunctionAnd ExpressionType = "CONJUNCTION_AND"
	TypeConjunctionOr  ExpressionType = "CONJUNCTION_OR"

	// Unary operators
	TypeOperatorNot       ExpressionType = "OPERATOR_NOT"
	TypeOperatorIsNull    ExpressionType = "OPERATOR_IS_NULL"
	TypeOperatorIsNotNull ExpressionType = "OPERATOR_IS_NOT_NULL"

	// Leaves
	TypeValueConstant ExpressionType = "VALUE_CONSTANT"
	TypeColumnRef     ExpressionType = "COLUMN_REF"
)

// Expression is the interface implemented by all filter expression types.
// Use type assertions or type switches to access specific expression data.
// Expressions are immutable once built.
type Expression interface {
	// Type returns the specific expression type (e.g., COMPARE_EQUAL, CONJUNCTION_AND).
	Type() ExpressionType

	// expressionMarker is a marker method to prevent external implementation.
	expressionMarker()
}

// BaseExpression contains common fields for all expression types.
type BaseExpression struct {
	ExprType ExpressionType
}

// Type returns the expression type.
func (b *BaseExpression) Type() ExpressionType { return b.ExprType }

func (b *BaseExpression) expressionMarker() {}

// ComparisonExpression represents binary comparisons (=, <>, <, >, <=, >=, LIKE).
type ComparisonExpression struct {
	BaseExpression
	Left  Expression
	Right Expression
}

// InExpression represents IN and NOT IN over a list of values.
type InExpression struct {
	BaseExpression
	Input  Expression
	Values []Expression
}

// BetweenExpression represents BETWEEN lower AND upper, bounds inclusive.
type BetweenExpression struct {
	BaseExpression
	Input Expression
	Lower Expression
	Upper Expression
}

// ConjunctionExpression represents AND/OR with multiple children.
type ConjunctionExpression struct {
	BaseExpression
	Children []Expression
}

// OperatorExpression represents unary operators (NOT, IS NULL, IS NOT NULL).
type OperatorExpression struct {
	BaseExpression
	Child Expression
}

// ConstantExpression represents a literal value. An invalid Value is NULL.
type ConstantExpression struct {
	BaseExpression
	Value session.Value
}

// IsNull reports whether the constant is NULL.
func (c *ConstantExpression) IsNull() bool { return !c.Value.IsValid() }

// ColumnRefExpression represents a reference to a table column.
type ColumnRefExpression struct {
	BaseExpression
	Name string
}

// invalidExpression carries a construction error until encoding.
type invalidExpression struct {
	BaseExpression
	err error
}
