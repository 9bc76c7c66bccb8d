package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the variant tag of a Value
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a single cell of a captured row: a string, a number, a boolean or null.
// Numbers keep their decimal text exactly as the database produced it.
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
	b    bool
}

// Null is the null Value
var Null = Value{}

// String returns a string Value
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric Value
func Number(d decimal.Decimal) Value {
	return Value{kind: KindNumber, num: d}
}

// Int returns a numeric Value for an integer
func Int(i int64) Value {
	return Number(decimal.NewFromInt(i))
}

// Bool returns a boolean Value
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind returns the variant tag
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// Decimal returns the numeric payload; ok is false for non-numbers
func (v Value) Decimal() (decimal.Decimal, bool) {
	return v.num, v.kind == KindNumber
}

// Text renders the value the way it is shown in a UI. Null renders as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// String implements fmt.Stringer
func (v Value) String() string {
	if v.kind == KindNull {
		return "<null>"
	}

	return v.Text()
}

// Equal compares two values by kind and payload
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}

	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num.Equal(other.num)
	case KindBool:
		return v.b == other.b
	default:
		return true
	}
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler. Objects and arrays (json/jsonb columns)
// are kept as their compact JSON text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", errInvalidValue)
	}

	switch data[0] {
	case 'n':
		*v = Null
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}

		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*v = String(s)
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}

		*v = String(buf.String())
	default:
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("%w: %s", errInvalidValue, string(data))
		}

		*v = Number(d)
	}

	return nil
}

// FromSQL converts a value scanned from database/sql into a Value.
// Timestamps are rendered as ISO-8601 instants in UTC with millisecond precision.
func FromSQL(src any) Value {
	switch value := src.(type) {
	case nil:
		return Null
	case string:
		return String(value)
	case []byte:
		return String(string(value))
	case bool:
		return Bool(value)
	case int:
		return Int(int64(value))
	case int8:
		return Int(int64(value))
	case int16:
		return Int(int64(value))
	case int32:
		return Int(int64(value))
	case int64:
		return Int(value)
	case uint:
		return Number(decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(value)), 0))
	case uint8:
		return Int(int64(value))
	case uint16:
		return Int(int64(value))
	case uint32:
		return Int(int64(value))
	case uint64:
		return Number(decimal.NewFromBigInt(new(big.Int).SetUint64(value), 0))
	case float32:
		return Number(decimal.NewFromFloat32(value))
	case float64:
		return Number(decimal.NewFromFloat(value))
	case decimal.Decimal:
		return Number(value)
	case *big.Int:
		return Number(decimal.NewFromBigInt(value, 0))
	case time.Time:
		return String(value.UTC().Format(isoInstantLayout))
	case fmt.Stringer:
		return String(value.String())
	default:
		return String(fmt.Sprintf("%v", value))
	}
}

const isoInstantLayout = "2006-01-02T15:04:05.000Z07:00"
