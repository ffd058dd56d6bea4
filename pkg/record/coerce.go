package record

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing textual timestamps.
// SQLite stores DATETIME columns as text in one of these forms.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

func coerce(t Type, v any) (any, error) {
	switch t {
	case Any:
		return v, nil
	case String:
		return toString(v)
	case Int:
		return toInt(v)
	case Float:
		return toFloat(v)
	case Bool:
		return toBool(v)
	case Time:
		return toTime(v)
	case Bytes:
		return toBytes(v)
	default:
		return nil, fmt.Errorf("unknown field type %s", t)
	}
}

func mismatch(t Type, v any) error {
	return fmt.Errorf("cannot convert %v (%T) to %s", v, v, t)
}

func toString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return nil, mismatch(String, v)
	}
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return uintToInt(uint64(x), v)
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return uintToInt(x, v)
	case float32:
		return floatToInt(float64(x), v)
	case float64:
		return floatToInt(x, v)
	case string:
		return parseInt(x, v)
	case []byte:
		return parseInt(string(x), v)
	case *big.Int:
		if x == nil || !x.IsInt64() {
			return nil, fmt.Errorf("value %v overflows int", v)
		}
		return x.Int64(), nil
	default:
		if str, ok := numericText(v); ok {
			return parseInt(str, v)
		}
		return nil, mismatch(Int, v)
	}
}

func uintToInt(u uint64, v any) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("value %v overflows int", v)
	}
	return int64(u), nil
}

func floatToInt(f float64, v any) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("value %v has a fractional part", v)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("value %v overflows int", v)
	}
	return int64(f), nil
}

func parseInt(s string, v any) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, mismatch(Int, v)
	}
	return n, nil
}

func toFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		return parseFloat(x, v)
	case []byte:
		return parseFloat(string(x), v)
	case *big.Int:
		if x == nil {
			return nil, mismatch(Float, v)
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	default:
		if str, ok := numericText(v); ok {
			return parseFloat(str, v)
		}
		return nil, mismatch(Float, v)
	}
}

// numericText returns the text form of a numeric value a driver hands back
// as its own type, such as DuckDB's DECIMAL. Such types implement
// fmt.Stringer, sometimes only on the pointer, so a value is copied to make
// the method reachable. time.Time is excluded since its text is not a number.
func numericText(v any) (string, bool) {
	if _, ok := v.(time.Time); ok {
		return "", false
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() == reflect.Pointer {
		return "", false
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	if s, ok := p.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}
	return "", false
}

func parseFloat(s string, v any) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, mismatch(Float, v)
	}
	return f, nil
}

func toBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return intToBool(x, v)
	case int:
		return intToBool(int64(x), v)
	case int32:
		return intToBool(int64(x), v)
	case string:
		return parseBool(x, v)
	case []byte:
		return parseBool(string(x), v)
	default:
		return nil, mismatch(Bool, v)
	}
}

func intToBool(n int64, v any) (any, error) {
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return nil, mismatch(Bool, v)
	}
}

func parseBool(s string, v any) (any, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil, mismatch(Bool, v)
	}
	return b, nil
}

func toTime(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		return parseTime(x, v)
	case []byte:
		return parseTime(string(x), v)
	default:
		return nil, mismatch(Time, v)
	}
}

func parseTime(s string, v any) (any, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, mismatch(Time, v)
}

func toBytes(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		out := make([]byte, len(x))
		copy(out, x)
		return out, nil
	case string:
		return []byte(x), nil
	default:
		return nil, mismatch(Bytes, v)
	}
}
