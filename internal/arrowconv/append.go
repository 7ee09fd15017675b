package arrowconv

import (
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// timeLayouts are tried in order for textual timestamps.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	time.RFC3339Nano,
	"2006-01-02",
}

// appendValue appends one scanned driver value to b.
func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.BooleanBuilder:
		x, err := toBool(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.Int64Builder:
		x, err := toInt64(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.Uint64Builder:
		x, err := toInt64(v)
		if err != nil {
			if u, ok := v.(uint64); ok {
				b.Append(u)
				return nil
			}
			return err
		}
		b.Append(uint64(x))
	case *array.Float32Builder:
		x, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(float32(x))
	case *array.Float64Builder:
		x, err := toFloat64(v)
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.TimestampBuilder:
		x, err := toTime(v)
		if err != nil {
			return err
		}
		b.Append(arrow.Timestamp(x.UnixMicro()))
	case *array.StringBuilder:
		b.Append(toString(v))
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			b.Append(x)
		default:
			b.Append([]byte(toString(v)))
		}
	case *array.ListBuilder:
		return appendList(b, v)
	default:
		return fmt.Errorf("unsupported arrow builder %T", b)
	}
	return nil
}

func appendList(b *array.ListBuilder, v any) error {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case []float32:
		items = make([]any, len(x))
		for i, f := range x {
			items[i] = f
		}
	case []float64:
		items = make([]any, len(x))
		for i, f := range x {
			items[i] = f
		}
	default:
		return fmt.Errorf("cannot convert %T to list", v)
	}

	b.Append(true)
	vb := b.ValueBuilder().(*array.Float32Builder)
	for _, item := range items {
		if item == nil {
			vb.AppendNull()
			continue
		}
		f, err := toFloat64(item)
		if err != nil {
			return err
		}
		vb.Append(float32(f))
	}
	return nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case []byte, string:
		return strconv.ParseBool(toString(x))
	default:
		i, err := toInt64(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert %T to bool", v)
		}
		return i != 0, nil
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > 1<<63-1 {
			return 0, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte, string:
		return strconv.ParseInt(toString(x), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case []byte, string:
		return strconv.ParseFloat(toString(x), 64)
	default:
		i, err := toInt64(v)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %T to float64", v)
		}
		return float64(i), nil
	}
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte, string:
		s := toString(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to timestamp", v)
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
