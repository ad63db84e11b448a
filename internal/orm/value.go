package orm

import (
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"
)

// Kind enumerates the variants a Value can hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt64
	KindFloat64
	KindBytes
	KindUint
	KindTime
	KindText
	KindBool
	KindColumn
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBytes:
		return "bytes"
	case KindUint:
		return "uint"
	case KindTime:
		return "time"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindColumn:
		return "column"
	default:
		return "unknown"
	}
}

// TimeLayout is the fixed-width UTC form timestamps are stored and compared
// in. Text order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Value is a storable scalar. The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	b    []byte
	s    string
	t    time.Time
}

func Null() Value              { return Value{} }
func Int(v int64) Value        { return Value{kind: KindInt64, i: v} }
func Float(v float64) Value    { return Value{kind: KindFloat64, f: v} }
func Uint(v uint64) Value      { return Value{kind: KindUint, u: v} }
func Text(v string) Value      { return Value{kind: KindText, s: v} }
func Time(v time.Time) Value   { return Value{kind: KindTime, t: v.UTC()} }
func Column(name string) Value { return Value{kind: KindColumn, s: name} }

func Bytes(v []byte) Value {
	return Value{kind: KindBytes, b: append([]byte(nil), v...)}
}

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// OptInt maps a nil pointer to Null.
func OptInt(v *int64) Value {
	if v == nil {
		return Null()
	}
	return Int(*v)
}

// OptTime maps a nil pointer to Null.
func OptTime(v *time.Time) Value {
	if v == nil {
		return Null()
	}
	return Time(*v)
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// ColumnName returns the referenced column of a Column value.
func (v Value) ColumnName() (string, bool) {
	return v.s, v.kind == KindColumn
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBytes:
		return fmt.Sprintf("%x", v.b)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindTime:
		return v.t.Format(TimeLayout)
	case KindText, KindColumn:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.i == 1)
	default:
		return "?"
	}
}

func (v Value) mismatch(target string) error {
	return Convertf("cannot convert %s value to %s", v.kind, target)
}

// AsInt64 accepts Int64 and Uint values that fit.
func (v Value) AsInt64() (int64, error) {
	switch v.kind {
	case KindInt64:
		return v.i, nil
	case KindUint:
		if v.u > math.MaxInt64 {
			return 0, Convertf("uint value %d overflows int64", v.u)
		}
		return int64(v.u), nil
	default:
		return 0, v.mismatch("int64")
	}
}

// AsUint accepts Uint and non-negative Int64 values.
func (v Value) AsUint() (uint64, error) {
	switch v.kind {
	case KindUint:
		return v.u, nil
	case KindInt64:
		if v.i < 0 {
			return 0, Convertf("negative value %d for uint", v.i)
		}
		return uint64(v.i), nil
	default:
		return 0, v.mismatch("uint")
	}
}

func (v Value) AsFloat64() (float64, error) {
	switch v.kind {
	case KindFloat64:
		return v.f, nil
	case KindInt64:
		return float64(v.i), nil
	default:
		return 0, v.mismatch("float64")
	}
}

func (v Value) AsBytes() ([]byte, error) {
	switch v.kind {
	case KindBytes:
		return append([]byte(nil), v.b...), nil
	case KindText:
		return []byte(v.s), nil
	default:
		return nil, v.mismatch("bytes")
	}
}

// AsText accepts Text and valid UTF-8 Bytes.
func (v Value) AsText() (string, error) {
	switch v.kind {
	case KindText:
		return v.s, nil
	case KindBytes:
		if !utf8.Valid(v.b) {
			return "", Convertf("bytes value is not valid utf-8")
		}
		return string(v.b), nil
	default:
		return "", v.mismatch("text")
	}
}

// AsBool accepts Bool and Int64 (positive is true).
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.i == 1, nil
	case KindInt64:
		return v.i > 0, nil
	default:
		return false, v.mismatch("bool")
	}
}

// AsTime accepts Time, Int64 epoch milliseconds, and Text or Bytes in
// TimeLayout or RFC 3339.
func (v Value) AsTime() (time.Time, error) {
	switch v.kind {
	case KindTime:
		return v.t, nil
	case KindInt64:
		return time.UnixMilli(v.i).UTC(), nil
	case KindText, KindBytes:
		s, err := v.AsText()
		if err != nil {
			return time.Time{}, err
		}
		return parseTime(s)
	default:
		return time.Time{}, v.mismatch("time")
	}
}

func (v Value) AsOptInt64() (*int64, error) {
	if v.IsNull() {
		return nil, nil
	}
	i, err := v.AsInt64()
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (v Value) AsOptTime() (*time.Time, error) {
	if v.IsNull() {
		return nil, nil
	}
	t, err := v.AsTime()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var timeLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, Convertf("unrecognized timestamp %q", s)
}

// FromRaw converts a value scanned from the engine into a Value.
func FromRaw(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Int(v), nil
	case int:
		return Int(int64(v)), nil
	case float64:
		return Float(v), nil
	case string:
		return Text(v), nil
	case []byte:
		return Bytes(v), nil
	case bool:
		return Bool(v), nil
	case time.Time:
		return Time(v), nil
	default:
		return Null(), Convertf("unsupported column type %T", raw)
	}
}

// Arg lowers v to a driver argument.
func (v Value) Arg() (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindInt64:
		return v.i, nil
	case KindFloat64:
		return v.f, nil
	case KindBytes:
		return v.b, nil
	case KindUint:
		if v.u > math.MaxInt64 {
			return nil, Convertf("uint value %d overflows sqlite integer", v.u)
		}
		return int64(v.u), nil
	case KindTime:
		return v.t.Format(TimeLayout), nil
	case KindText:
		return v.s, nil
	case KindBool:
		return v.i, nil
	default:
		return nil, Convertf("%s value %q cannot be bound as a parameter", v.kind, v.s)
	}
}
