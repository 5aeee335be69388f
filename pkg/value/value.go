// Package value holds the answer value type shared by submission, storage,
// aggregation and export.
//
// A Value is a closed sum of the JSON shapes an answer may take: null, string,
// number, boolean, or a list of values. JSON objects are not answers and are
// rejected while decoding.
package value

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	Null Kind = iota
	String
	Number
	Bool
	List
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case List:
		return "list"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ErrObject is returned when a JSON object is found where a value was expected.
var ErrObject = errors.New("objects are not valid answer values")

// Value is the zero-value-is-null answer value.
type Value struct {
	kind Kind
	// str carries the String payload, or the JSON text of a Number so that
	// integers and decimals round-trip exactly as submitted.
	str  string
	b    bool
	list []Value
}

func NewNull() Value { return Value{} }

func NewString(s string) Value { return Value{kind: String, str: s} }

func NewBool(b bool) Value { return Value{kind: Bool, b: b} }

func NewInt(i int64) Value { return Value{kind: Number, str: strconv.FormatInt(i, 10)} }

// NewFloat panics on NaN and infinities, which JSON cannot carry.
func NewFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		panic("value: non-finite number")
	}
	return Value{kind: Number, str: strconv.FormatFloat(f, 'g', -1, 64)}
}

func NewList(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: List, list: items}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

// Str returns the payload of a String value.
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.str, true
}

func (v Value) Boolean() (bool, bool) {
	if v.kind != Bool {
		return false, false
	}
	return v.b, true
}

// Items returns the elements of a List value.
func (v Value) Items() ([]Value, bool) {
	if v.kind != List {
		return nil, false
	}
	return v.list, true
}

// Float returns a Number value as float64.
func (v Value) Float() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.str, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Int coerces the value to an integer. Integral numbers and strings holding a
// base-10 integer (surrounding whitespace allowed) succeed; everything else,
// including booleans and fractional numbers, fails.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case Number:
		if i, err := strconv.ParseInt(v.str, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	case String:
		i, err := strconv.ParseInt(strings.TrimSpace(v.str), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// IsEmpty reports whether the value counts as "no answer": null, the empty
// string, or the empty list.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case Null:
		return true
	case String:
		return v.str == ""
	case List:
		return len(v.list) == 0
	default:
		return false
	}
}

// Equal compares structurally. Numbers compare by numeric value, so 3 equals 3.0.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case String:
		return v.str == o.str
	case Bool:
		return v.b == o.b
	case Number:
		if v.str == o.str {
			return true
		}
		a, errA := strconv.ParseInt(v.str, 10, 64)
		b, errB := strconv.ParseInt(o.str, 10, 64)
		if errA == nil && errB == nil {
			return a == b
		}
		fa, okA := v.Float()
		fb, okB := o.Float()
		return okA && okB && fa == fb
	case List:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Contains reports whether any element of set equals v.
func Contains(set []Value, v Value) bool {
	for _, s := range set {
		if s.Equal(v) {
			return true
		}
	}
	return false
}

// Key is the histogram bucket for the value: strings as-is, integral numbers
// in canonical form (6 and 6.0 share a bucket), anything else its JSON text.
func (v Value) Key() string {
	switch v.kind {
	case String:
		return v.str
	case Number:
		if i, ok := v.Int(); ok {
			return strconv.FormatInt(i, 10)
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v.str
	}
	return string(b)
}

// Display renders the value for a spreadsheet cell. Lists become their
// elements joined with ", "; null renders empty.
func (v Value) Display() string {
	switch v.kind {
	case Null:
		return ""
	case String, Number:
		return v.str
	case Bool:
		return strconv.FormatBool(v.b)
	case List:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Display()
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func (v Value) String() string { return v.Key() }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(v.str)
	case Number:
		if !json.Valid([]byte(v.str)) {
			return nil, fmt.Errorf("value: invalid number %q", v.str)
		}
		return []byte(v.str), nil
	case Bool:
		return json.Marshal(v.b)
	case List:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return nil, fmt.Errorf("value: unknown kind %d", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Decode(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Value stores the encoded JSON text in a text column.
func (v Value) Value() (driver.Value, error) {
	return Encode(v)
}

// Scan reads a column written by Value. Text that does not decode is kept as
// a plain string so a damaged row still reads back.
func (v *Value) Scan(src any) error {
	var raw string
	switch t := src.(type) {
	case nil:
		*v = NewNull()
		return nil
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return fmt.Errorf("value: cannot scan %T", src)
	}
	parsed, err := Decode(raw)
	if err != nil {
		parsed = NewString(raw)
	}
	*v = parsed
	return nil
}

// Encode serializes the value into its storage text.
func Encode(v Value) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses storage text produced by Encode (or any JSON document that is
// not an object).
func Decode(raw string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return Value{}, fmt.Errorf("value: decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("value: decode: trailing data")
	}
	return FromAny(generic)
}

// FromAny converts the output of a json.Decoder with UseNumber enabled.
// Plain float64 input is accepted as well.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NewNull(), nil
	case string:
		return NewString(t), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		return Value{kind: Number, str: t.String()}, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}, errors.New("value: non-finite number")
		}
		return NewFloat(t), nil
	case int:
		return NewInt(int64(t)), nil
	case int64:
		return NewInt(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return NewList(items...), nil
	case map[string]any:
		return Value{}, ErrObject
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", x)
	}
}

// FromJSON is Decode for raw bytes that may contain surrounding whitespace.
func FromJSON(data []byte) (Value, error) {
	return Decode(string(bytes.TrimSpace(data)))
}
