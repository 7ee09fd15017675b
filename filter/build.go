package filter

import (
	"fmt"

	"github.com/hugr-lab/doris-vector-go/session"
)

// Col references a column by name.
func Col(name string) Expression {
	if name == "" {
		return invalid(fmt.Errorf("%w: empty column name", ErrInvalidExpression))
	}
	return &ColumnRefExpression{BaseExpression: BaseExpression{ExprType: TypeColumnRef}, Name: name}
}

// Lit wraps a scalar Go value (bool, integer, float or string) as a constant.
// nil is NULL. Other types make the expression invalid.
func Lit(v any) Expression {
	if v == nil {
		return Null()
	}
	if sv, ok := v.(session.Value); ok {
		return constant(sv)
	}
	sv, err := session.ValueOf(v)
	if err != nil {
		return invalid(fmt.Errorf("%w: %v", ErrInvalidExpression, err))
	}
	return constant(sv)
}

// Null is the NULL constant.
func Null() Expression {
	return constant(session.Value{})
}

func constant(v session.Value) Expression {
	return &ConstantExpression{BaseExpression: BaseExpression{ExprType: TypeValueConstant}, Value: v}
}

func invalid(err error) Expression {
	return &invalidExpression{err: err}
}

func compare(t ExpressionType, left, right Expression) Expression {
	return &ComparisonExpression{BaseExpression: BaseExpression{ExprType: t}, Left: left, Right: right}
}

// Eq is left = right.
func Eq(left, right Expression) Expression { return compare(TypeCompareEqual, left, right) }

// Ne is left <> right.
func Ne(left, right Expression) Expression { return compare(TypeCompareNotEqual, left, right) }

// Lt is left < right.
func Lt(left, right Expression) Expression { return compare(TypeCompareLessThan, left, right) }

// Le is left <= right.
func Le(left, right Expression) Expression { return compare(TypeCompareLessThanOrEqual, left, right) }

// Gt is left > right.
func Gt(left, right Expression) Expression { return compare(TypeCompareGreaterThan, left, right) }

// Ge is left >= right.
func Ge(left, right Expression) Expression {
	return compare(TypeCompareGreaterThanOrEqual, left, right)
}

// Like matches input against a LIKE pattern.
func Like(input Expression, pattern string) Expression {
	return compare(TypeCompareLike, input, Lit(pattern))
}

// NotLike is the negation of Like.
func NotLike(input Expression, pattern string) Expression {
	return compare(TypeCompareNotLike, input, Lit(pattern))
}

// In is input IN (values...). Plain Go values are wrapped with Lit.
func In(input Expression, values ...any) Expression {
	return in(TypeCompareIn, input, values)
}

// NotIn is input NOT IN (values...).
func NotIn(input Expression, values ...any) Expression {
	return in(TypeCompareNotIn, input, values)
}

func in(t ExpressionType, input Expression, values []any) Expression {
	exprs := make([]Expression, len(values))
	for i, v := range values {
		if e, ok := v.(Expression); ok {
			exprs[i] = e
		} else {
			exprs[i] = Lit(v)
		}
	}
	return &InExpression{BaseExpression: BaseExpression{ExprType: t}, Input: input, Values: exprs}
}

// Between is input BETWEEN lower AND upper.
func Between(input, lower, upper Expression) Expression {
	return &BetweenExpression{
		BaseExpression: BaseExpression{ExprType: TypeCompareBetween},
		Input:          input, Lower: lower, Upper: upper,
	}
}

// NotBetween is input NOT BETWEEN lower AND upper.
func NotBetween(input, lower, upper Expression) Expression {
	return &BetweenExpression{
		BaseExpression: BaseExpression{ExprType: TypeCompareNotBetween},
		Input:          input, Lower: lower, Upper: upper,
	}
}

// And joins children with AND. Nil children are skipped.
func And(children ...Expression) Expression {
	return conjunction(TypeConjunctionAnd, children)
}

// Or joins children with OR. Nil children are skipped.
func Or(children ...Expression) Expression {
	return conjunction(TypeConjunctionOr, children)
}

func conjunction(t ExpressionType, children []Expression) Expression {
	kept := make([]Expression, 0, len(children))
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &ConjunctionExpression{BaseExpression: BaseExpression{ExprType: t}, Children: kept}
}

// Not negates child.
func Not(child Expression) Expression {
	return &OperatorExpression{BaseExpression: BaseExpression{ExprType: TypeOperatorNot}, Child: child}
}

// IsNull tests child for NULL.
func IsNull(child Expression) Expression {
	return &OperatorExpression{BaseExpression: BaseExpression{ExprType: TypeOperatorIsNull}, Child: child}
}

// IsNotNull tests child for non-NULL.
func IsNotNull(child Expression) Expression {
	return &OperatorExpression{BaseExpression: BaseExpression{ExprType: TypeOperatorIsNotNull}, Child: child}
}
