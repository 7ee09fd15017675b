// Package session holds backend session parameters for a database client.
//
// A Config is the live, shared set of overrides owned by one client. Every
// query execution works from a Snapshot taken at the moment it is dispatched,
// so overrides issued afterwards never leak into a request already in flight.
//
// Values are a closed set of scalar kinds (bool, int64, float64, string).
// Parameter names are not validated here: unknown names are forwarded to the
// backend and rejected there.
package session

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnsupportedValue is returned by ValueOf for non-scalar Go values.
var ErrUnsupportedValue = errors.New("unsupported session value type")

// Kind identifies the scalar type stored in a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a scalar session parameter value.
// The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating-point Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String returns a text Value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// ValueOf converts a Go scalar into a Value.
// Accepts bool, signed and unsigned integers, float32/float64, string, and Value itself.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		if x.kind == KindInvalid {
			return Value{}, fmt.Errorf("%w: invalid value", ErrUnsupportedValue)
		}
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return uintValue(x)
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func uintValue(v uint64) (Value, error) {
	if v > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, v)
	}
	return Int(int64(v)), nil
}

// MustValueOf is like ValueOf but panics on unsupported types.
func MustValueOf(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Kind reports the scalar kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float held by v.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the text held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Interface returns v as a plain Go value (bool, int64, float64, string or nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// String formats v for logs. Text values are quoted.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	default:
		return "<invalid>"
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	return v == o
}
