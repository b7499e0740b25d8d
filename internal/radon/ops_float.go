package radon

import (
	"encoding/binary"
	"math"
)

// floatOperators returns the operator table of Float.
func floatOperators() map[OpCode]operator {
	return map[OpCode]operator{
		OpFloatAbsolute: floatUnary(OpFloatAbsolute, math.Abs),
		OpFloatAsBytes: noArgs(TypeFloat, OpFloatAsBytes, func(in Value) (Value, error) {
			out := make([]byte, 8)
			binary.BigEndian.PutUint64(out, math.Float64bits(float64(in.(Float))))

			return Bytes(out), nil
		}),
		OpFloatAsString: noArgs(TypeFloat, OpFloatAsString, func(in Value) (Value, error) {
			return String(in.(Float).String()), nil
		}),
		OpFloatCeiling:     floatToInteger(OpFloatCeiling, math.Ceil),
		OpFloatGreaterThan: floatCompare(OpFloatGreaterThan, func(a, b float64) bool { return a > b }),
		OpFloatFloor:       floatToInteger(OpFloatFloor, math.Floor),
		OpFloatLessThan:    floatCompare(OpFloatLessThan, func(a, b float64) bool { return a < b }),
		OpFloatModulo: floatBinary(OpFloatModulo, func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, NewError(ErrDivisionByZero)
			}

			return math.Mod(a, b), nil
		}),
		OpFloatMultiply: floatBinary(OpFloatMultiply, func(a, b float64) (float64, error) {
			return a * b, nil
		}),
		OpFloatNegate: floatUnary(OpFloatNegate, func(f float64) float64 { return -f }),
		OpFloatPower: floatBinary(OpFloatPower, func(a, b float64) (float64, error) {
			return math.Pow(a, b), nil
		}),
		OpFloatReciprocal: noArgs(TypeFloat, OpFloatReciprocal, func(in Value) (Value, error) {
			if in.(Float) == 0 {
				return nil, NewError(ErrDivisionByZero)
			}

			return 1 / in.(Float), nil
		}),
		OpFloatRound: floatToInteger(OpFloatRound, math.Round),
		OpFloatSum: floatBinary(OpFloatSum, func(a, b float64) (float64, error) {
			return a + b, nil
		}),
		OpFloatTruncate: floatToInteger(OpFloatTruncate, math.Trunc),
	}
}

// floatUnary builds an operator applying fn to the receiver.
func floatUnary(code OpCode, fn func(float64) float64) operator {
	return noArgs(TypeFloat, code, func(in Value) (Value, error) {
		return Float(fn(float64(in.(Float)))), nil
	})
}

// floatToInteger builds a rounding operator producing a saturated Integer.
func floatToInteger(code OpCode, round func(float64) float64) operator {
	return noArgs(TypeFloat, code, func(in Value) (Value, error) {
		return IntegerFromFloat(round(float64(in.(Float)))), nil
	})
}

// floatCompare builds a comparison operator against a numeric argument.
func floatCompare(code OpCode, accept func(a, b float64) bool) operator {
	return func(_ *state, in Value, args []any) (Value, error) {
		if len(args) != 1 {
			return nil, wrongArgs(TypeFloat, code, args)
		}

		other, ok := argNumber(args[0])
		if !ok {
			return nil, wrongArgs(TypeFloat, code, args)
		}

		return Boolean(accept(float64(in.(Float)), other)), nil
	}
}

// floatBinary builds an arithmetic operator with one numeric argument.
func floatBinary(code OpCode, fn func(a, b float64) (float64, error)) operator {
	return func(_ *state, in Value, args []any) (Value, error) {
		if len(args) != 1 {
			return nil, wrongArgs(TypeFloat, code, args)
		}

		other, ok := argNumber(args[0])
		if !ok {
			return nil, wrongArgs(TypeFloat, code, args)
		}

		r, err := fn(float64(in.(Float)), other)
		if err != nil {
			return nil, err
		}

		return Float(r), nil
	}
}
