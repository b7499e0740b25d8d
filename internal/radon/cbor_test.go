package radon

import (
	"bytes"
	"math"
	"math/big"
	"testing"
)

// sampleValues returns one value of every variant, including edge cases.
func sampleValues(t *testing.T) []Value {
	t.Helper()

	huge, err := IntegerFromBig(new(big.Int).Lsh(big.NewInt(1), 100))
	if err != nil {
		t.Fatalf("big integer: %v", err)
	}

	negHuge, err := IntegerFromBig(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 100)))
	if err != nil {
		t.Fatalf("negative big integer: %v", err)
	}

	return []Value{
		Array{},
		Array{NewInteger(1), String("two"), Float(3.5)},
		Boolean(true),
		Boolean(false),
		Bytes{},
		Bytes{0xde, 0xad, 0xbe, 0xef},
		Float(0),
		Float(2.0),
		Float(math.Pi),
		Float(math.NaN()),
		Float(math.Inf(-1)),
		NewInteger(0),
		NewInteger(-1),
		NewInteger(math.MaxInt64),
		Integer{v: new(big.Int).SetUint64(math.MaxUint64)},
		huge,
		negHuge,
		Integer{v: new(big.Int).Set(maxI128)},
		Integer{v: new(big.Int).Set(minI128)},
		Map{},
		Map{"a": NewInteger(1), "b": Array{Map{"c": Boolean(true)}}},
		String(""),
		String("hello, wörld"),
		NewError(ErrRetrieveTimeout),
		NewParseError(TypeInteger, "abc"),
	}
}

// TestValueRoundTrip verifies that every value survives encode and decode.
func TestValueRoundTrip(t *testing.T) {
	for _, v := range sampleValues(t) {
		data, err := Encode(v)
		if err != nil {
			t.Fatalf("encode %s: %v", v, err)
		}

		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", v, err)
		}

		if !Equal(v, decoded) {
			t.Errorf("round trip mismatch: %s became %s", v, decoded)
		}
	}
}

// TestEncodeDeterministic verifies that maps encode identically regardless of insertion order.
func TestEncodeDeterministic(t *testing.T) {
	a := Map{}
	b := Map{}

	keys := []string{"zeta", "alpha", "mid", "b", "aa"}
	for i, k := range keys {
		a[k] = NewInteger(int64(i))
	}

	for i := len(keys) - 1; i >= 0; i-- {
		b[keys[i]] = NewInteger(int64(i))
	}

	for i := 0; i < 10; i++ {
		da, _ := Encode(a)
		db, _ := Encode(b)

		if !bytes.Equal(da, db) {
			t.Fatalf("encodings differ: %x vs %x", da, db)
		}
	}
}

// TestIntegerAndFloatNotEqual verifies there is no implicit numeric coercion.
func TestIntegerAndFloatNotEqual(t *testing.T) {
	if Equal(NewInteger(2), Float(2)) {
		t.Fatal("Integer(2) should not equal Float(2)")
	}

	data, _ := Encode(Float(2))
	v, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if v.Type() != TypeFloat {
		t.Errorf("Float(2) decoded as %s", v.Type())
	}
}

// TestDecodeAsMismatch verifies the Decode error names the requested variant.
func TestDecodeAsMismatch(t *testing.T) {
	_, err := DecodeAs("text", TypeArray)
	if err == nil {
		t.Fatal("expected decode error")
	}

	if !IsCode(err, ErrDecode) {
		t.Fatalf("expected Decode, got %v", err)
	}

	want := "Failed to decode RadonArray from cbor.Value"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

// TestFromCBORRejects verifies unsupported CBOR shapes are refused.
func TestFromCBORRejects(t *testing.T) {
	cases := map[string]any{
		"null":         nil,
		"non-text key": map[any]any{uint64(1): "x"},
		"nested null":  []any{uint64(1), nil},
	}

	for name, raw := range cases {
		if _, err := FromCBOR(raw); !IsCode(err, ErrDecode) {
			t.Errorf("%s: expected Decode error, got %v", name, err)
		}
	}
}

// TestIntegerRange verifies 128-bit range enforcement.
func TestIntegerRange(t *testing.T) {
	over := new(big.Int).Add(maxI128, big.NewInt(1))
	if _, err := IntegerFromBig(over); !IsCode(err, ErrOverflow) {
		t.Errorf("expected Overflow, got %v", err)
	}

	under := new(big.Int).Sub(minI128, big.NewInt(1))
	if _, err := IntegerFromBig(under); !IsCode(err, ErrUnderflow) {
		t.Errorf("expected Underflow, got %v", err)
	}

	if got := IntegerFromFloat(1e60); got.Cmp(Integer{v: maxI128}) != 0 {
		t.Errorf("float saturation = %s", got)
	}

	if got := IntegerFromFloat(math.NaN()); got.Sign() != 0 {
		t.Errorf("NaN conversion = %s", got)
	}

	if got := IntegerFromFloat(-7.9); got.Cmp(NewInteger(-7)) != 0 {
		t.Errorf("truncation = %s", got)
	}
}
