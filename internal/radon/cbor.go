package radon

import (
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// errorTag is the CBOR tag wrapping an Error value as [code, args...].
const errorTag = 39

// cborValueName is the source kind reported by Decode errors raised while
// viewing a raw CBOR value as a typed Value.
const cborValueName = "cbor.Value"

var (
	// encMode produces deterministic CBOR: sorted map keys, shortest integers and floats.
	encMode = mustEncMode()

	// decMode decodes into generic Go values with string-or-any keyed maps.
	decMode = mustDecMode()
)

// mustEncMode builds the deterministic encoding mode.
func mustEncMode() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.BigIntConvert = cbor.BigIntConvertShortest

	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("radon: cbor encode mode: %v", err))
	}

	return em
}

// mustDecMode builds the decoding mode used for values, scripts and arguments.
func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[any]any(nil)),
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 256,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("radon: cbor decode mode: %v", err))
	}

	return dm
}

// Marshal encodes any Go value with the deterministic encoding mode.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR into v with the package decoding mode.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encode serializes a value to its canonical CBOR form.
func Encode(v Value) ([]byte, error) {
	data, err := encMode.Marshal(ToCBOR(v))
	if err != nil {
		return nil, fmt.Errorf("encode %s:\n%w", v.Type(), err)
	}

	return data, nil
}

// Decode parses CBOR bytes into a value.
func Decode(data []byte) (Value, error) {
	var raw any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, NewDecodeError(typeNames[TypeBytes], cborValueName)
	}

	return FromCBOR(raw)
}

// ToCBOR converts a value into the generic Go form understood by the encoder.
func ToCBOR(v Value) any {
	switch tv := v.(type) {
	case Array:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = ToCBOR(item)
		}

		return out

	case Boolean:
		return bool(tv)

	case Bytes:
		if tv == nil {
			return []byte{}
		}

		return []byte(tv)

	case Float:
		return float64(tv)

	case Integer:
		b := tv.bigInt()
		if b.IsInt64() {
			return b.Int64()
		}

		if b.IsUint64() {
			return b.Uint64()
		}

		return tv.Big()

	case Map:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = ToCBOR(item)
		}

		return out

	case String:
		return string(tv)

	case *Error:
		content := make([]any, 0, len(tv.Args)+1)
		content = append(content, uint64(tv.Code))

		for _, arg := range tv.Args {
			content = append(content, ToCBOR(arg))
		}

		return cbor.Tag{Number: errorTag, Content: content}
	}

	return nil
}

// FromCBOR converts a generic decoded CBOR value into a Value. Null,
// undefined, non-string map keys and unknown tags fail with a Decode error.
func FromCBOR(raw any) (Value, error) {
	switch tv := raw.(type) {
	case []any:
		out := make(Array, len(tv))
		for i, item := range tv {
			v, err := FromCBOR(item)
			if err != nil {
				return nil, err
			}

			out[i] = v
		}

		return out, nil

	case bool:
		return Boolean(tv), nil

	case []byte:
		return Bytes(append([]byte(nil), tv...)), nil

	case float64:
		return Float(tv), nil

	case float32:
		return Float(float64(tv)), nil

	case int64:
		return NewInteger(tv), nil

	case uint64:
		return Integer{v: new(big.Int).SetUint64(tv)}, nil

	case int:
		return NewInteger(int64(tv)), nil

	case big.Int:
		return IntegerFromBig(&tv)

	case *big.Int:
		return IntegerFromBig(tv)

	case string:
		return String(tv), nil

	case map[any]any:
		out := make(Map, len(tv))
		for k, item := range tv {
			key, ok := k.(string)
			if !ok {
				return nil, NewDecodeError(cborValueName, typeNames[TypeMap])
			}

			v, err := FromCBOR(item)
			if err != nil {
				return nil, err
			}

			out[key] = v
		}

		return out, nil

	case map[string]any:
		out := make(Map, len(tv))
		for k, item := range tv {
			v, err := FromCBOR(item)
			if err != nil {
				return nil, err
			}

			out[k] = v
		}

		return out, nil

	case cbor.Tag:
		if tv.Number == errorTag {
			return errorFromCBOR(tv.Content)
		}
	}

	return nil, NewDecodeError(cborValueName, "RadonTypes")
}

// errorFromCBOR rebuilds an Error from the content of tag 39.
func errorFromCBOR(content any) (Value, error) {
	items, ok := content.([]any)
	if !ok || len(items) == 0 {
		return nil, NewDecodeError(cborValueName, typeNames[TypeError])
	}

	code, ok := smallUint(items[0])
	if !ok || code > math.MaxUint8 {
		return nil, NewDecodeError(cborValueName, typeNames[TypeError])
	}

	args := make([]Value, 0, len(items)-1)
	for _, item := range items[1:] {
		v, err := FromCBOR(item)
		if err != nil {
			return nil, err
		}

		args = append(args, v)
	}

	return &Error{Code: ErrorCode(code), Args: args}, nil
}

// DecodeAs converts a raw CBOR value into a Value of the given variant. A
// mismatching variant fails with Decode{cbor.Value, target}.
func DecodeAs(raw any, t Type) (Value, error) {
	v, err := FromCBOR(raw)
	if err != nil || v.Type() != t {
		return nil, NewDecodeError(cborValueName, t.String())
	}

	return v, nil
}

// smallUint reads a non-negative integer argument.
func smallUint(raw any) (uint64, bool) {
	switch tv := raw.(type) {
	case uint64:
		return tv, true
	case int64:
		if tv >= 0 {
			return uint64(tv), true
		}
	case int:
		if tv >= 0 {
			return uint64(tv), true
		}
	}

	return 0, false
}
