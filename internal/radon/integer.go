package radon

import (
	"math"
	"math/big"
)

var (
	// maxI128 is 2^127 - 1.
	maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

	// minI128 is -2^127.
	minI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Integer is a signed 128-bit integer. The zero value is 0.
type Integer struct {
	v *big.Int // v is never mutated after construction
}

// NewInteger creates an Integer from an int64.
func NewInteger(n int64) Integer {
	return Integer{v: big.NewInt(n)}
}

// IntegerFromBig creates an Integer from a big.Int, failing with Overflow or
// Underflow when the value does not fit in 128 bits.
func IntegerFromBig(b *big.Int) (Integer, error) {
	if b.Cmp(maxI128) > 0 {
		return Integer{}, NewError(ErrOverflow)
	}

	if b.Cmp(minI128) < 0 {
		return Integer{}, NewError(ErrUnderflow)
	}

	return Integer{v: new(big.Int).Set(b)}, nil
}

// IntegerFromFloat converts a float to an Integer with saturating semantics:
// the fractional part is truncated, NaN becomes 0, and values beyond the
// 128-bit range clamp to the nearest bound.
func IntegerFromFloat(f float64) Integer {
	if math.IsNaN(f) {
		return NewInteger(0)
	}

	if math.IsInf(f, 1) {
		return Integer{v: new(big.Int).Set(maxI128)}
	}

	if math.IsInf(f, -1) {
		return Integer{v: new(big.Int).Set(minI128)}
	}

	b, _ := big.NewFloat(math.Trunc(f)).Int(nil)

	if b.Cmp(maxI128) > 0 {
		return Integer{v: new(big.Int).Set(maxI128)}
	}

	if b.Cmp(minI128) < 0 {
		return Integer{v: new(big.Int).Set(minI128)}
	}

	return Integer{v: b}
}

// bigInt returns the underlying value without copying. Callers must not mutate it.
func (i Integer) bigInt() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}

	return i.v
}

// Big returns a copy of the integer as a big.Int.
func (i Integer) Big() *big.Int {
	return new(big.Int).Set(i.bigInt())
}

// Int64 returns the value as an int64 and whether it fits.
func (i Integer) Int64() (int64, bool) {
	b := i.bigInt()
	if !b.IsInt64() {
		return 0, false
	}

	return b.Int64(), true
}

// Float64 returns the nearest float64.
func (i Integer) Float64() float64 {
	f, _ := new(big.Float).SetInt(i.bigInt()).Float64()
	return f
}

// Sign returns -1, 0 or +1.
func (i Integer) Sign() int {
	return i.bigInt().Sign()
}

// Cmp compares two integers.
func (i Integer) Cmp(other Integer) int {
	return i.bigInt().Cmp(other.bigInt())
}

// String renders the integer in base 10.
func (i Integer) String() string {
	return i.bigInt().String()
}

// checkedInteger wraps an arithmetic result, failing when it leaves the i128 range.
func checkedInteger(b *big.Int) (Value, error) {
	i, err := IntegerFromBig(b)
	if err != nil {
		return nil, err
	}

	return i, nil
}
