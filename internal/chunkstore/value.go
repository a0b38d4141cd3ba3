package chunkstore

import "fmt"

// Kind identifies the scalar type stored in a Column
// Column definition (signed/unsigned integer, floating, UTF-8 string,
// null-aware).
type Kind uint8

const (
	KindInt64 Kind = iota
	KindUint64
	KindFloat64
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a single null-aware scalar cell. Only the field matching Kind
// is meaningful when Null is false.
type Value struct {
	Kind Kind
	I64  int64
	U64  uint64
	F64  float64
	Str  string
	Null bool
}

// NullValue returns a null cell of the given kind.
func NullValue(k Kind) Value { return Value{Kind: k, Null: true} }

// IntValue constructs a non-null signed integer cell.
func IntValue(v int64) Value { return Value{Kind: KindInt64, I64: v} }

// UintValue constructs a non-null unsigned integer cell.
func UintValue(v uint64) Value { return Value{Kind: KindUint64, U64: v} }

// FloatValue constructs a non-null floating point cell.
func FloatValue(v float64) Value { return Value{Kind: KindFloat64, F64: v} }

// StringValue constructs a non-null string cell.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// Any unwraps a Value into its natural Go representation, nil when null.
func (v Value) Any() any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case KindInt64:
		return v.I64
	case KindUint64:
		return v.U64
	case KindFloat64:
		return v.F64
	case KindString:
		return v.Str
	default:
		return nil
	}
}

// byteSize estimates the in-memory footprint of the cell for
// BaseMemorySize accounting. Strings are measured by UTF-8 byte length per
// ; scalars use a fixed machine-word estimate.
func (v Value) byteSize() int64 {
	if v.Kind == KindString {
		return int64(len(v.Str))
	}
	return 8
}

// FromAny converts a native Go value into a Value of the requested Kind,
// returning an error if the dynamic type does not match.
func FromAny(k Kind, v any) (Value, error) {
	if v == nil {
		return NullValue(k), nil
	}
	switch k {
	case KindInt64:
		switch n := v.(type) {
		case int:
			return IntValue(int64(n)), nil
		case int64:
			return IntValue(n), nil
		}
	case KindUint64:
		switch n := v.(type) {
		case uint:
			return UintValue(uint64(n)), nil
		case uint64:
			return UintValue(n), nil
		}
	case KindFloat64:
		switch n := v.(type) {
		case float32:
			return FloatValue(float64(n)), nil
		case float64:
			return FloatValue(n), nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return StringValue(s), nil
		}
	}
	return Value{}, fmt.Errorf("%w: cannot represent %T as %s", ErrSchemaMismatch, v, k)
}
