package radon

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Type identifies the active variant of a Value.
type Type uint8

// Value variants. The order is part of the wire contract of ByType clustering.
const (
	TypeArray Type = iota
	TypeBoolean
	TypeBytes
	TypeFloat
	TypeInteger
	TypeMap
	TypeString
	TypeError

	numTypes = int(TypeError) + 1
)

// typeNames are the canonical RADON type names used in messages and on the wire.
var typeNames = [numTypes]string{
	TypeArray:   "RadonArray",
	TypeBoolean: "RadonBoolean",
	TypeBytes:   "RadonBytes",
	TypeFloat:   "RadonFloat",
	TypeInteger: "RadonInteger",
	TypeMap:     "RadonMap",
	TypeString:  "RadonString",
	TypeError:   "RadonError",
}

// String returns the RADON name of the type.
func (t Type) String() string {
	if int(t) < numTypes {
		return typeNames[t]
	}

	return fmt.Sprintf("RadonType(%d)", uint8(t))
}

// Value is a sealed tagged union: exactly one of Array, Boolean, Bytes, Float,
// Integer, Map, String or *Error. Values are immutable once constructed.
type Value interface {
	// Type returns the active variant.
	Type() Type

	// String renders the value for logs and error messages.
	String() string

	radonValue()
}

// Array is an ordered sequence of values.
type Array []Value

// Boolean is a boolean value.
type Boolean bool

// Bytes is an opaque byte string.
type Bytes []byte

// Float is an IEEE-754 double.
type Float float64

// Map is a string-keyed mapping. Use SortedKeys for deterministic iteration.
type Map map[string]Value

// String is a UTF-8 text value.
type String string

func (Array) radonValue()   {}
func (Boolean) radonValue() {}
func (Bytes) radonValue()   {}
func (Float) radonValue()   {}
func (Integer) radonValue() {}
func (Map) radonValue()     {}
func (String) radonValue()  {}
func (*Error) radonValue()  {}

func (Array) Type() Type   { return TypeArray }
func (Boolean) Type() Type { return TypeBoolean }
func (Bytes) Type() Type   { return TypeBytes }
func (Float) Type() Type   { return TypeFloat }
func (Integer) Type() Type { return TypeInteger }
func (Map) Type() Type     { return TypeMap }
func (String) Type() Type  { return TypeString }
func (*Error) Type() Type  { return TypeError }

// String renders the array as a bracketed list.
func (a Array) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// String renders the boolean.
func (b Boolean) String() string {
	return strconv.FormatBool(bool(b))
}

// String renders the bytes as lowercase hex.
func (b Bytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// String renders the float with the shortest exact representation.
func (f Float) String() string {
	return formatFloat(float64(f))
}

// String renders the map with keys in sorted order.
func (m Map) String() string {
	keys := m.SortedKeys()
	parts := make([]string, len(keys))

	for i, k := range keys {
		parts[i] = strconv.Quote(k) + ": " + m[k].String()
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

// String renders the string quoted.
func (s String) String() string {
	return strconv.Quote(string(s))
}

// SortedKeys returns the map keys in byte-wise ascending order.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// formatFloat renders a float without exponent, matching the text form other
// nodes produce for AsString.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equal reports whether two values are structurally equal.
// Equality is total: NaN equals NaN, and an Integer never equals a Float.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if a.Type() != b.Type() {
		return false
	}

	switch av := a.(type) {
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}

		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}

		return true

	case Boolean:
		return av == b.(Boolean)

	case Bytes:
		return string(av) == string(b.(Bytes))

	case Float:
		bv := b.(Float)
		if math.IsNaN(float64(av)) || math.IsNaN(float64(bv)) {
			return math.IsNaN(float64(av)) && math.IsNaN(float64(bv))
		}

		return av == bv

	case Integer:
		return av.Cmp(b.(Integer)) == 0

	case Map:
		bv := b.(Map)
		if len(av) != len(bv) {
			return false
		}

		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}

		return true

	case String:
		return av == b.(String)

	case *Error:
		return av.Equal(b.(*Error))
	}

	return false
}

// ValuesEqual reports whether two value slices are element-wise equal.
func ValuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}

	return true
}

// size returns the number of direct children of a collection value, used by
// the gas meter. Scalars have size zero.
func size(v Value) int {
	switch tv := v.(type) {
	case Array:
		return len(tv)
	case Map:
		return len(tv)
	case Bytes:
		return len(tv) / 32
	case String:
		return len(tv) / 32
	}

	return 0
}
