package radon

import "fmt"

// OpCode identifies an operator within the table of a receiver type.
type OpCode uint8

// OpIdentity is accepted by every type and returns the receiver unchanged.
const OpIdentity OpCode = 0x00

// Array operators.
const (
	OpArrayCount      OpCode = 0x10
	OpArrayFilter     OpCode = 0x11
	OpArrayFlatten    OpCode = 0x12
	OpArrayGetArray   OpCode = 0x13
	OpArrayGetBoolean OpCode = 0x14
	OpArrayGetBytes   OpCode = 0x15
	OpArrayGetFloat   OpCode = 0x16
	OpArrayGetInteger OpCode = 0x17
	OpArrayGetMap     OpCode = 0x18
	OpArrayGetString  OpCode = 0x19
	OpArrayMap        OpCode = 0x1A
	OpArrayReduce     OpCode = 0x1B
	OpArraySome       OpCode = 0x1C
	OpArraySort       OpCode = 0x1D
	OpArrayTake       OpCode = 0x1E
)

// Boolean operators.
const (
	OpBooleanAsString OpCode = 0x20
	OpBooleanMatch    OpCode = 0x21
	OpBooleanNegate   OpCode = 0x22
)

// Bytes operators.
const (
	OpBytesAsString OpCode = 0x30
	OpBytesHash     OpCode = 0x31
)

// Integer operators.
const (
	OpIntegerAbsolute    OpCode = 0x40
	OpIntegerAsBytes     OpCode = 0x41
	OpIntegerAsFloat     OpCode = 0x42
	OpIntegerAsString    OpCode = 0x43
	OpIntegerGreaterThan OpCode = 0x44
	OpIntegerLessThan    OpCode = 0x45
	OpIntegerMatch       OpCode = 0x46
	OpIntegerModulo      OpCode = 0x47
	OpIntegerMultiply    OpCode = 0x48
	OpIntegerNegate      OpCode = 0x49
	OpIntegerPower       OpCode = 0x4A
	OpIntegerReciprocal  OpCode = 0x4B
	OpIntegerSum         OpCode = 0x4C
)

// Float operators.
const (
	OpFloatAbsolute    OpCode = 0x50
	OpFloatAsBytes     OpCode = 0x51
	OpFloatAsString    OpCode = 0x52
	OpFloatCeiling     OpCode = 0x53
	OpFloatGreaterThan OpCode = 0x54
	OpFloatFloor       OpCode = 0x55
	OpFloatLessThan    OpCode = 0x56
	OpFloatModulo      OpCode = 0x57
	OpFloatMultiply    OpCode = 0x58
	OpFloatNegate      OpCode = 0x59
	OpFloatPower       OpCode = 0x5A
	OpFloatReciprocal  OpCode = 0x5B
	OpFloatRound       OpCode = 0x5C
	OpFloatSum         OpCode = 0x5D
	OpFloatTruncate    OpCode = 0x5E
)

// Map operators.
const (
	OpMapEntries    OpCode = 0x60
	OpMapGetArray   OpCode = 0x61
	OpMapGetBoolean OpCode = 0x62
	OpMapGetBytes   OpCode = 0x63
	OpMapGetFloat   OpCode = 0x64
	OpMapGetInteger OpCode = 0x65
	OpMapGetMap     OpCode = 0x66
	OpMapGetString  OpCode = 0x67
	OpMapKeys       OpCode = 0x68
	OpMapValues     OpCode = 0x69
)

// String operators.
const (
	OpStringAsBoolean      OpCode = 0x70
	OpStringAsBytes        OpCode = 0x71
	OpStringAsFloat        OpCode = 0x72
	OpStringAsInteger      OpCode = 0x73
	OpStringLength         OpCode = 0x74
	OpStringMatch          OpCode = 0x75
	OpStringParseJSONArray OpCode = 0x76
	OpStringParseJSONMap   OpCode = 0x77
	OpStringParseXML       OpCode = 0x78
	OpStringToLowerCase    OpCode = 0x79
	OpStringToUpperCase    OpCode = 0x7A
	OpStringHash           OpCode = 0x7B
)

// opNames maps opcodes to their symbolic names. The prefix names the receiver
// type; the names double as the symbolic script notation.
var opNames = map[OpCode]string{
	OpIdentity: "Identity",

	OpArrayCount:      "ArrayCount",
	OpArrayFilter:     "ArrayFilter",
	OpArrayFlatten:    "ArrayFlatten",
	OpArrayGetArray:   "ArrayGetArray",
	OpArrayGetBoolean: "ArrayGetBoolean",
	OpArrayGetBytes:   "ArrayGetBytes",
	OpArrayGetFloat:   "ArrayGetFloat",
	OpArrayGetInteger: "ArrayGetInteger",
	OpArrayGetMap:     "ArrayGetMap",
	OpArrayGetString:  "ArrayGetString",
	OpArrayMap:        "ArrayMap",
	OpArrayReduce:     "ArrayReduce",
	OpArraySome:       "ArraySome",
	OpArraySort:       "ArraySort",
	OpArrayTake:       "ArrayTake",

	OpBooleanAsString: "BooleanAsString",
	OpBooleanMatch:    "BooleanMatch",
	OpBooleanNegate:   "BooleanNegate",

	OpBytesAsString: "BytesAsString",
	OpBytesHash:     "BytesHash",

	OpIntegerAbsolute:    "IntegerAbsolute",
	OpIntegerAsBytes:     "IntegerAsBytes",
	OpIntegerAsFloat:     "IntegerAsFloat",
	OpIntegerAsString:    "IntegerAsString",
	OpIntegerGreaterThan: "IntegerGreaterThan",
	OpIntegerLessThan:    "IntegerLessThan",
	OpIntegerMatch:       "IntegerMatch",
	OpIntegerModulo:      "IntegerModulo",
	OpIntegerMultiply:    "IntegerMultiply",
	OpIntegerNegate:      "IntegerNegate",
	OpIntegerPower:       "IntegerPower",
	OpIntegerReciprocal:  "IntegerReciprocal",
	OpIntegerSum:         "IntegerSum",

	OpFloatAbsolute:    "FloatAbsolute",
	OpFloatAsBytes:     "FloatAsBytes",
	OpFloatAsString:    "FloatAsString",
	OpFloatCeiling:     "FloatCeiling",
	OpFloatGreaterThan: "FloatGreaterThan",
	OpFloatFloor:       "FloatFloor",
	OpFloatLessThan:    "FloatLessThan",
	OpFloatModulo:      "FloatModulo",
	OpFloatMultiply:    "FloatMultiply",
	OpFloatNegate:      "FloatNegate",
	OpFloatPower:       "FloatPower",
	OpFloatReciprocal:  "FloatReciprocal",
	OpFloatRound:       "FloatRound",
	OpFloatSum:         "FloatSum",
	OpFloatTruncate:    "FloatTruncate",

	OpMapEntries:    "MapEntries",
	OpMapGetArray:   "MapGetArray",
	OpMapGetBoolean: "MapGetBoolean",
	OpMapGetBytes:   "MapGetBytes",
	OpMapGetFloat:   "MapGetFloat",
	OpMapGetInteger: "MapGetInteger",
	OpMapGetMap:     "MapGetMap",
	OpMapGetString:  "MapGetString",
	OpMapKeys:       "MapKeys",
	OpMapValues:     "MapValues",

	OpStringAsBoolean:      "StringAsBoolean",
	OpStringAsBytes:        "StringAsBytes",
	OpStringAsFloat:        "StringAsFloat",
	OpStringAsInteger:      "StringAsInteger",
	OpStringLength:         "StringLength",
	OpStringMatch:          "StringMatch",
	OpStringParseJSONArray: "StringParseJSONArray",
	OpStringParseJSONMap:   "StringParseJSONMap",
	OpStringParseXML:       "StringParseXML",
	OpStringToLowerCase:    "StringToLowerCase",
	OpStringToUpperCase:    "StringToUpperCase",
	OpStringHash:           "StringHash",
}

// opCodesByName is the reverse of opNames.
var opCodesByName = func() map[string]OpCode {
	m := make(map[string]OpCode, len(opNames))
	for code, name := range opNames {
		m[name] = code
	}

	return m
}()

// String returns the symbolic name of the opcode.
func (c OpCode) String() string {
	if name, ok := opNames[c]; ok {
		return name
	}

	return fmt.Sprintf("OpCode(0x%02x)", uint8(c))
}

// OpCodeByName resolves a symbolic operator name.
func OpCodeByName(name string) (OpCode, bool) {
	code, ok := opCodesByName[name]
	return code, ok
}

// operatorName returns the short operator name used in WrongArguments errors,
// without the receiver type prefix.
func operatorName(t Type, code OpCode) string {
	name := code.String()
	prefix := typeNames[t][len("Radon"):]

	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}

	return name
}
