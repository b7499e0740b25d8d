package radon

import (
	"math/big"
)

// integerBytes is the width of the AsBytes rendering of an Integer.
const integerBytes = 16

// integerOperators returns the operator table of Integer.
func integerOperators() map[OpCode]operator {
	return map[OpCode]operator{
		OpIntegerAbsolute: noArgs(TypeInteger, OpIntegerAbsolute, func(in Value) (Value, error) {
			return checkedInteger(new(big.Int).Abs(in.(Integer).bigInt()))
		}),
		OpIntegerAsBytes: noArgs(TypeInteger, OpIntegerAsBytes, integerAsBytes),
		OpIntegerAsFloat: noArgs(TypeInteger, OpIntegerAsFloat, func(in Value) (Value, error) {
			return Float(in.(Integer).Float64()), nil
		}),
		OpIntegerAsString: noArgs(TypeInteger, OpIntegerAsString, func(in Value) (Value, error) {
			return String(in.(Integer).String()), nil
		}),
		OpIntegerGreaterThan: integerCompare(OpIntegerGreaterThan, func(c int) bool { return c > 0 }),
		OpIntegerLessThan:    integerCompare(OpIntegerLessThan, func(c int) bool { return c < 0 }),
		OpIntegerMatch: func(_ *state, in Value, args []any) (Value, error) {
			return matchValue(TypeInteger, OpIntegerMatch, in.(Integer).String(), args)
		},
		OpIntegerModulo: integerBinary(OpIntegerModulo, func(a, b *big.Int) (*big.Int, error) {
			if b.Sign() == 0 {
				return nil, NewError(ErrDivisionByZero)
			}

			return new(big.Int).Rem(a, b), nil
		}),
		OpIntegerMultiply: integerBinary(OpIntegerMultiply, func(a, b *big.Int) (*big.Int, error) {
			return new(big.Int).Mul(a, b), nil
		}),
		OpIntegerNegate: noArgs(TypeInteger, OpIntegerNegate, func(in Value) (Value, error) {
			return checkedInteger(new(big.Int).Neg(in.(Integer).bigInt()))
		}),
		OpIntegerPower: integerPower,
		OpIntegerReciprocal: noArgs(TypeInteger, OpIntegerReciprocal, func(in Value) (Value, error) {
			i := in.(Integer)
			if i.Sign() == 0 {
				return nil, NewError(ErrDivisionByZero)
			}

			return Float(1 / i.Float64()), nil
		}),
		OpIntegerSum: integerBinary(OpIntegerSum, func(a, b *big.Int) (*big.Int, error) {
			return new(big.Int).Add(a, b), nil
		}),
	}
}

// integerAsBytes renders the integer as 16 big-endian two's complement bytes.
func integerAsBytes(in Value) (Value, error) {
	b := in.(Integer).Big()
	if b.Sign() < 0 {
		b.Add(b, new(big.Int).Lsh(big.NewInt(1), 8*integerBytes))
	}

	out := make([]byte, integerBytes)
	b.FillBytes(out)

	return Bytes(out), nil
}

// integerCompare builds a comparison operator against an integer argument.
func integerCompare(code OpCode, accept func(int) bool) operator {
	return func(_ *state, in Value, args []any) (Value, error) {
		if len(args) != 1 {
			return nil, wrongArgs(TypeInteger, code, args)
		}

		other, ok := argInteger(args[0])
		if !ok {
			return nil, wrongArgs(TypeInteger, code, args)
		}

		return Boolean(accept(in.(Integer).Cmp(other))), nil
	}
}

// integerBinary builds an arithmetic operator with one integer argument.
func integerBinary(code OpCode, fn func(a, b *big.Int) (*big.Int, error)) operator {
	return func(_ *state, in Value, args []any) (Value, error) {
		if len(args) != 1 {
			return nil, wrongArgs(TypeInteger, code, args)
		}

		other, ok := argInteger(args[0])
		if !ok {
			return nil, wrongArgs(TypeInteger, code, args)
		}

		r, err := fn(in.(Integer).bigInt(), other.bigInt())
		if err != nil {
			return nil, err
		}

		return checkedInteger(r)
	}
}

// integerPower raises the receiver to a non-negative integer exponent.
func integerPower(_ *state, in Value, args []any) (Value, error) {
	if len(args) != 1 {
		return nil, wrongArgs(TypeInteger, OpIntegerPower, args)
	}

	exp, ok := argInteger(args[0])
	if !ok || exp.Sign() < 0 {
		return nil, wrongArgs(TypeInteger, OpIntegerPower, args)
	}

	base := in.(Integer).bigInt()

	// |base| >= 2 with an exponent of 128 or more always leaves the range.
	if base.CmpAbs(big.NewInt(1)) > 0 && exp.Cmp(NewInteger(128)) >= 0 {
		if base.Sign() < 0 && exp.bigInt().Bit(0) == 1 {
			return nil, NewError(ErrUnderflow)
		}

		return nil, NewError(ErrOverflow)
	}

	if base.CmpAbs(big.NewInt(1)) <= 0 {
		// 0, 1 and -1 cycle; reduce the exponent to its parity.
		e := int64(exp.bigInt().Bit(0))
		if exp.Sign() > 0 && e == 0 {
			e = 2
		}

		return checkedInteger(new(big.Int).Exp(base, big.NewInt(e), nil))
	}

	return checkedInteger(new(big.Int).Exp(base, exp.bigInt(), nil))
}
