package radon

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ErrorCode is the closed enumeration of failures the RADON engine can report.
// The numeric values are part of the CBOR wire contract.
type ErrorCode uint8

const (
	// ErrUnknown is an error that could not be classified.
	ErrUnknown ErrorCode = 0x00

	// ErrScriptNotCBOR means a script is not valid CBOR.
	ErrScriptNotCBOR ErrorCode = 0x01
	// ErrScriptNotArray means a script is valid CBOR but not an array.
	ErrScriptNotArray ErrorCode = 0x02
	// ErrScriptNotRADON means a script call is malformed.
	ErrScriptNotRADON ErrorCode = 0x03
	// ErrGasExhausted means a script exceeded its computation budget.
	ErrGasExhausted ErrorCode = 0x04

	// ErrUnsupportedOperator means no operator with that code exists for the input type.
	ErrUnsupportedOperator ErrorCode = 0x10
	// ErrWrongArguments means an operator got arguments of the wrong count, shape or value.
	ErrWrongArguments ErrorCode = 0x11
	// ErrUnsupportedHashFunction means a known hash function is not implemented.
	ErrUnsupportedHashFunction ErrorCode = 0x12
	// ErrUnsupportedReducer means a known reducer is not implemented for the input.
	ErrUnsupportedReducer ErrorCode = 0x13
	// ErrUnsupportedFilter means a known filter is not implemented for the input.
	ErrUnsupportedFilter ErrorCode = 0x14
	// ErrUnsupportedSourceKind means a retrieval source kind is unknown.
	ErrUnsupportedSourceKind ErrorCode = 0x15

	// ErrDecode means a value has a different variant than the one required.
	ErrDecode ErrorCode = 0x20
	// ErrJSONParse means a string is not valid JSON.
	ErrJSONParse ErrorCode = 0x21
	// ErrParse means text could not be parsed as a number or boolean.
	ErrParse ErrorCode = 0x22
	// ErrMismatchingTypes means an array mixes variants where one is required.
	ErrMismatchingTypes ErrorCode = 0x23

	// ErrHTTP means the transport failed to fetch a source.
	ErrHTTP ErrorCode = 0x30
	// ErrHTTPStatus means a source answered with a non-success status.
	ErrHTTPStatus ErrorCode = 0x31
	// ErrRetrieveTimeout means a source or batch exceeded its deadline.
	ErrRetrieveTimeout ErrorCode = 0x32
	// ErrSourceExecution means a sandboxed source failed to run.
	ErrSourceExecution ErrorCode = 0x33

	// ErrUnderflow means an integer result is below the 128-bit range.
	ErrUnderflow ErrorCode = 0x40
	// ErrOverflow means an integer result is above the 128-bit range.
	ErrOverflow ErrorCode = 0x41
	// ErrDivisionByZero means a division or modulo by zero.
	ErrDivisionByZero ErrorCode = 0x42
	// ErrIndexOutOfBounds means an array index is not present.
	ErrIndexOutOfBounds ErrorCode = 0x43
	// ErrMapKeyNotFound means a map key is not present.
	ErrMapKeyNotFound ErrorCode = 0x44
	// ErrEmptyArray means an operation needs at least one element.
	ErrEmptyArray ErrorCode = 0x45

	// ErrNoReports means a tally was requested over zero reports.
	ErrNoReports ErrorCode = 0x50
	// ErrInsufficientConsensus means no group reached the consensus ratio.
	ErrInsufficientConsensus ErrorCode = 0x51
)

// errorCodeNames are used for rendering and the symbolic notation.
var errorCodeNames = map[ErrorCode]string{
	ErrUnknown:                 "Unknown",
	ErrScriptNotCBOR:           "ScriptNotCBOR",
	ErrScriptNotArray:          "ScriptNotArray",
	ErrScriptNotRADON:          "ScriptNotRADON",
	ErrGasExhausted:            "GasExhausted",
	ErrUnsupportedOperator:     "UnsupportedOperator",
	ErrWrongArguments:          "WrongArguments",
	ErrUnsupportedHashFunction: "UnsupportedHashFunction",
	ErrUnsupportedReducer:      "UnsupportedReducer",
	ErrUnsupportedFilter:       "UnsupportedFilter",
	ErrUnsupportedSourceKind:   "UnsupportedSourceKind",
	ErrDecode:                  "Decode",
	ErrJSONParse:               "JSONParse",
	ErrParse:                   "Parse",
	ErrMismatchingTypes:        "MismatchingTypes",
	ErrHTTP:                    "HTTPError",
	ErrHTTPStatus:              "HTTPStatus",
	ErrRetrieveTimeout:         "RetrieveTimeout",
	ErrSourceExecution:         "SourceExecution",
	ErrUnderflow:               "Underflow",
	ErrOverflow:                "Overflow",
	ErrDivisionByZero:          "DivisionByZero",
	ErrIndexOutOfBounds:        "IndexOutOfBounds",
	ErrMapKeyNotFound:          "MapKeyNotFound",
	ErrEmptyArray:              "EmptyArray",
	ErrNoReports:               "NoReports",
	ErrInsufficientConsensus:   "InsufficientConsensus",
}

// String returns the name of the error code.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}

	return fmt.Sprintf("ErrorCode(0x%02x)", uint8(c))
}

// Error is both the Go error returned by operators and the Error variant of
// Value. Args carry the structured payload; they take part in equality and in
// the CBOR encoding, so two nodes failing the same way produce equal errors.
type Error struct {
	Code ErrorCode // Code identifies the error kind
	Args []Value   // Args is the structured payload, layout depends on Code
}

// NewError creates an error with the given code and payload.
func NewError(code ErrorCode, args ...Value) *Error {
	return &Error{Code: code, Args: args}
}

// NewDecodeError reports that a value of kind from could not be viewed as to.
func NewDecodeError(from, to string) *Error {
	return NewError(ErrDecode, String(from), String(to))
}

// NewWrongArgumentsError reports invalid arguments for an operator.
func NewWrongArgumentsError(inputType Type, operator string, args []any) *Error {
	return NewError(ErrWrongArguments, String(inputType.String()), String(operator), String(renderArgs(args)))
}

// NewParseError reports text that could not be parsed into the target type.
func NewParseError(target Type, text string) *Error {
	return NewError(ErrParse, String(target.String()), String(text))
}

// NewUnsupportedOperatorError reports an opcode that does not exist for a type.
func NewUnsupportedOperatorError(inputType Type, code OpCode) *Error {
	return NewError(ErrUnsupportedOperator, String(inputType.String()), NewInteger(int64(code)))
}

// NewInsufficientConsensusError reports the achieved and required ratios.
func NewInsufficientConsensusError(achieved, required float64) *Error {
	return NewError(ErrInsufficientConsensus, Float(achieved), Float(required))
}

// Equal reports whether two errors have the same code and payload.
func (e *Error) Equal(other *Error) bool {
	if e == nil || other == nil {
		return e == nil && other == nil
	}

	return e.Code == other.Code && ValuesEqual(e.Args, other.Args)
}

// Error renders a human readable message.
func (e *Error) Error() string {
	arg := func(i int) string {
		if i >= len(e.Args) {
			return "?"
		}

		if s, ok := e.Args[i].(String); ok {
			return string(s)
		}

		return e.Args[i].String()
	}

	switch e.Code {
	case ErrDecode:
		return fmt.Sprintf("Failed to decode %s from %s", arg(1), arg(0))
	case ErrWrongArguments:
		return fmt.Sprintf("Wrong `%s::%s()` arguments: `%s`", arg(0), arg(1), arg(2))
	case ErrJSONParse:
		return fmt.Sprintf("Failed to parse JSON: %s", arg(0))
	case ErrParse:
		return fmt.Sprintf("Failed to parse %s from %q", arg(0), arg(1))
	case ErrUnsupportedOperator:
		return fmt.Sprintf("Operator code %s is not supported for %s", arg(1), arg(0))
	case ErrUnsupportedHashFunction:
		return fmt.Sprintf("Hash function `RadonHashFunctions::%s` is not implemented", arg(0))
	case ErrUnsupportedReducer:
		return fmt.Sprintf("Reducer `%s` is not implemented for %s", arg(0), arg(1))
	case ErrUnsupportedFilter:
		return fmt.Sprintf("Filter `%s` is not implemented for %s", arg(0), arg(1))
	case ErrUnsupportedSourceKind:
		return fmt.Sprintf("Retrieval source kind %s is not supported", arg(0))
	case ErrMismatchingTypes:
		return fmt.Sprintf("Mismatching types in %s: expected %s, found %s", arg(0), arg(1), arg(2))
	case ErrHTTP:
		return fmt.Sprintf("HTTP request failed: %s", arg(0))
	case ErrHTTPStatus:
		return fmt.Sprintf("HTTP request returned status %s", arg(0))
	case ErrRetrieveTimeout:
		return "Retrieval timed out"
	case ErrSourceExecution:
		return fmt.Sprintf("Source execution failed: %s", arg(0))
	case ErrIndexOutOfBounds:
		return fmt.Sprintf("Index %s out of bounds for length %s", arg(0), arg(1))
	case ErrMapKeyNotFound:
		return fmt.Sprintf("Key %q not found in map", arg(0))
	case ErrGasExhausted:
		return fmt.Sprintf("Script exceeded its gas limit of %s", arg(0))
	case ErrInsufficientConsensus:
		return fmt.Sprintf("Insufficient consensus: achieved %s, required %s", arg(0), arg(1))
	case ErrScriptNotCBOR, ErrScriptNotRADON:
		return fmt.Sprintf("%s: %s", e.Code, arg(0))
	}

	if len(e.Args) == 0 {
		return e.Code.String()
	}

	parts := make([]string, len(e.Args))
	for i := range e.Args {
		parts[i] = arg(i)
	}

	return fmt.Sprintf("%s(%s)", e.Code, strings.Join(parts, ", "))
}

// String renders the error as a value.
func (e *Error) String() string {
	return "RadonError(" + e.Error() + ")"
}

// AsError extracts a *Error from an error chain. Errors that are not RADON
// errors are wrapped as ErrUnknown with their message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var radErr *Error
	if errors.As(err, &radErr) {
		return radErr
	}

	return NewError(ErrUnknown, String(err.Error()))
}

// IsCode reports whether err carries a RADON error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var radErr *Error
	return errors.As(err, &radErr) && radErr.Code == code
}

// renderArgs renders raw CBOR arguments for messages.
func renderArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = renderRaw(a)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// renderRaw renders a raw CBOR value in a tagged debug form such as
// Integer(254) or Text("key").
func renderRaw(a any) string {
	switch tv := a.(type) {
	case nil:
		return "Null"
	case bool:
		return fmt.Sprintf("Bool(%t)", tv)
	case int, int64, uint64:
		return fmt.Sprintf("Integer(%d)", tv)
	case big.Int:
		return "Integer(" + tv.String() + ")"
	case *big.Int:
		return "Integer(" + tv.String() + ")"
	case float32:
		return "Float(" + renderRawFloat(float64(tv)) + ")"
	case float64:
		return "Float(" + renderRawFloat(tv) + ")"
	case string:
		return "Text(" + strconv.Quote(tv) + ")"
	case []byte:
		parts := make([]string, len(tv))
		for i, b := range tv {
			parts[i] = strconv.Itoa(int(b))
		}

		return "Bytes([" + strings.Join(parts, ", ") + "])"
	case []any:
		return "Array(" + renderArgs(tv) + ")"
	case map[any]any:
		parts := make([]string, 0, len(tv))
		for k, v := range tv {
			parts = append(parts, renderRaw(k)+": "+renderRaw(v))
		}

		sort.Strings(parts)

		return "Map({" + strings.Join(parts, ", ") + "})"
	case cbor.Tag:
		return fmt.Sprintf("Tag(%d, %s)", tv.Number, renderRaw(tv.Content))
	}

	return fmt.Sprintf("%v", a)
}

// renderRawFloat renders a float keeping a decimal point on whole numbers.
func renderRawFloat(f float64) string {
	s := formatFloat(f)
	if !strings.ContainsAny(s, ".naN") {
		s += ".0"
	}

	return s
}
