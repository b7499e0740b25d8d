package radon

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// stringOperators returns the operator table of String.
func stringOperators() map[OpCode]operator {
	return map[OpCode]operator{
		OpStringAsBoolean: noArgs(TypeString, OpStringAsBoolean, func(in Value) (Value, error) {
			return StringToBoolean(in.(String))
		}),
		OpStringAsBytes: noArgs(TypeString, OpStringAsBytes, func(in Value) (Value, error) {
			return Bytes(string(in.(String))), nil
		}),
		OpStringAsFloat: noArgs(TypeString, OpStringAsFloat, func(in Value) (Value, error) {
			return StringToFloat(in.(String))
		}),
		OpStringAsInteger: noArgs(TypeString, OpStringAsInteger, func(in Value) (Value, error) {
			return StringToInteger(in.(String))
		}),
		OpStringLength: noArgs(TypeString, OpStringLength, func(in Value) (Value, error) {
			return NewInteger(int64(len(in.(String)))), nil
		}),
		OpStringMatch: func(_ *state, in Value, args []any) (Value, error) {
			return matchValue(TypeString, OpStringMatch, string(in.(String)), args)
		},
		OpStringParseJSONArray: noArgs(TypeString, OpStringParseJSONArray, func(in Value) (Value, error) {
			return parseJSONAs(in.(String), TypeArray)
		}),
		OpStringParseJSONMap: noArgs(TypeString, OpStringParseJSONMap, func(in Value) (Value, error) {
			return parseJSONAs(in.(String), TypeMap)
		}),
		OpStringParseXML: func(_ *state, _ Value, _ []any) (Value, error) {
			return nil, NewUnsupportedOperatorError(TypeString, OpStringParseXML)
		},
		OpStringToLowerCase: noArgs(TypeString, OpStringToLowerCase, func(in Value) (Value, error) {
			return String(cases.Lower(language.Und).String(string(in.(String)))), nil
		}),
		OpStringToUpperCase: noArgs(TypeString, OpStringToUpperCase, func(in Value) (Value, error) {
			return String(cases.Upper(language.Und).String(string(in.(String)))), nil
		}),
		OpStringHash: func(_ *state, in Value, args []any) (Value, error) {
			digest, err := hashArgs(TypeString, OpStringHash, []byte(in.(String)), args)
			if err != nil {
				return nil, err
			}

			return String(hex.EncodeToString(digest)), nil
		},
	}
}

// trimNewline removes exactly one trailing newline, if present.
func trimNewline(s String) string {
	return strings.TrimSuffix(string(s), "\n")
}

// StringToBoolean parses "true" or "false" after trimming one trailing newline.
func StringToBoolean(s String) (Value, error) {
	switch text := trimNewline(s); text {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	default:
		return nil, NewParseError(TypeBoolean, text)
	}
}

// StringToFloat parses a decimal float after trimming one trailing newline.
func StringToFloat(s String) (Value, error) {
	text := trimNewline(s)

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || strings.ContainsAny(text, "_xXpP") {
		return nil, NewParseError(TypeFloat, text)
	}

	return Float(f), nil
}

// StringToInteger parses a base-10 128-bit integer after trimming one trailing newline.
func StringToInteger(s String) (Value, error) {
	text := trimNewline(s)

	b, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, NewParseError(TypeInteger, text)
	}

	i, err := IntegerFromBig(b)
	if err != nil {
		return nil, NewParseError(TypeInteger, text)
	}

	return i, nil
}

// parseJSONAs parses JSON and requires the top-level value to be of type want.
func parseJSONAs(s String, want Type) (Value, error) {
	v, err := ParseJSON(string(s))
	if err != nil {
		return nil, err
	}

	if v.Type() != want {
		return nil, NewDecodeError(cborValueName, want.String())
	}

	return v, nil
}
