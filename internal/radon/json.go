package radon

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
)

// maxIntegerExponent is the largest decimal exponent magnitude (exclusive)
// for which a whole JSON number becomes an Integer instead of a Float.
const maxIntegerExponent = 38

// ParseJSON parses text as a single JSON document and converts it to a Value.
// Numbers follow the integer policy of jsonNumber; null is rejected.
func ParseJSON(text string) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, NewError(ErrJSONParse, String(err.Error()))
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, NewError(ErrJSONParse, String("unexpected data after JSON document"))
	}

	return jsonToValue(doc)
}

// jsonToValue converts a decoded JSON document into a Value.
func jsonToValue(doc any) (Value, error) {
	switch tv := doc.(type) {
	case map[string]any:
		out := make(Map, len(tv))
		for k, item := range tv {
			v, err := jsonToValue(item)
			if err != nil {
				return nil, err
			}

			out[k] = v
		}

		return out, nil

	case []any:
		out := make(Array, len(tv))
		for i, item := range tv {
			v, err := jsonToValue(item)
			if err != nil {
				return nil, err
			}

			out[i] = v
		}

		return out, nil

	case string:
		return String(tv), nil

	case bool:
		return Boolean(tv), nil

	case json.Number:
		return jsonNumber(string(tv))
	}

	return nil, NewDecodeError("null", "RadonTypes")
}

// jsonNumber converts a JSON number literal. The result is an Integer when the
// literal's decimal exponent magnitude is below 38 and the float64 reading has
// no fractional part; otherwise it is a Float.
func jsonNumber(lit string) (Value, error) {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, NewError(ErrJSONParse, String(err.Error()))
	}

	exp := decimalExponent(lit)
	if f == math.Trunc(f) && !math.IsInf(f, 0) && exp > -maxIntegerExponent && exp < maxIntegerExponent {
		return IntegerFromFloat(f), nil
	}

	return Float(f), nil
}

// decimalExponent returns the exponent e of the literal written as m * 10^e,
// where m is the longest prefix of significant digits that fits a uint64.
// Integer digits past that prefix raise the exponent; fraction digits past it
// are dropped.
func decimalExponent(lit string) int {
	var (
		mantissa uint64
		exp      int
		i        int
	)

	if i < len(lit) && lit[i] == '-' {
		i++
	}

	for ; i < len(lit) && isDigit(lit[i]); i++ {
		if next, ok := pushDigit(mantissa, lit[i]); ok {
			mantissa = next
		} else {
			exp++
		}
	}

	if i < len(lit) && lit[i] == '.' {
		i++

		for ; i < len(lit) && isDigit(lit[i]); i++ {
			if next, ok := pushDigit(mantissa, lit[i]); ok {
				mantissa = next
				exp--
			}
		}
	}

	if i < len(lit) && (lit[i] == 'e' || lit[i] == 'E') {
		i++

		sign := 1
		if i < len(lit) && (lit[i] == '+' || lit[i] == '-') {
			if lit[i] == '-' {
				sign = -1
			}
			i++
		}

		explicit := 0
		for ; i < len(lit) && isDigit(lit[i]); i++ {
			if explicit < 1<<20 {
				explicit = explicit*10 + int(lit[i]-'0')
			}
		}

		exp += sign * explicit
	}

	return exp
}

// pushDigit appends a decimal digit to m, reporting false on uint64 overflow.
func pushDigit(m uint64, c byte) (uint64, bool) {
	d := uint64(c - '0')
	if m > (math.MaxUint64-d)/10 {
		return m, false
	}

	return m*10 + d, true
}

// isDigit reports whether c is an ASCII decimal digit.
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
