package radon

import (
	"fmt"
	"math"
	"strings"
)

// Call is one step of a script: an operator and its raw CBOR arguments.
type Call struct {
	Op   OpCode // Op is the operator code, resolved against the receiver type
	Args []any  // Args are raw CBOR values, decoded by the operator itself
}

// Script is an ordered list of calls. The empty script is the identity.
type Script []Call

// DecodeScript parses the binary form: a CBOR array whose items are either
// a bare opcode or an array [opcode, args...].
func DecodeScript(data []byte) (Script, error) {
	var raw any
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return nil, NewError(ErrScriptNotCBOR, String(err.Error()))
	}

	return scriptFromCBOR(raw)
}

// scriptFromCBOR converts a decoded CBOR array into a script.
func scriptFromCBOR(raw any) (Script, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, NewError(ErrScriptNotArray)
	}

	script := make(Script, 0, len(items))
	for i, item := range items {
		call, ok := callFromCBOR(item)
		if !ok {
			return nil, NewError(ErrScriptNotRADON, String(fmt.Sprintf("malformed call at position %d", i)))
		}

		script = append(script, call)
	}

	return script, nil
}

// callFromCBOR decodes one call.
func callFromCBOR(item any) (Call, bool) {
	if code, ok := smallUint(item); ok {
		if code > math.MaxUint8 {
			return Call{}, false
		}

		return Call{Op: OpCode(code)}, true
	}

	parts, ok := item.([]any)
	if !ok || len(parts) == 0 {
		return Call{}, false
	}

	code, ok := smallUint(parts[0])
	if !ok || code > math.MaxUint8 {
		return Call{}, false
	}

	var args []any
	if len(parts) > 1 {
		args = parts[1:]
	}

	return Call{Op: OpCode(code), Args: args}, true
}

// cbor returns the generic CBOR form of the script.
func (s Script) cbor() []any {
	out := make([]any, len(s))
	for i, call := range s {
		if len(call.Args) == 0 {
			out[i] = uint64(call.Op)
			continue
		}

		item := make([]any, 0, len(call.Args)+1)
		item = append(item, uint64(call.Op))
		item = append(item, call.Args...)
		out[i] = item
	}

	return out
}

// Encode serializes the script to its binary form.
func (s Script) Encode() ([]byte, error) {
	data, err := encMode.Marshal(s.cbor())
	if err != nil {
		return nil, fmt.Errorf("encode script:\n%w", err)
	}

	return data, nil
}

// MarshalCBOR embeds the script as a CBOR array inside larger structures.
func (s Script) MarshalCBOR() ([]byte, error) {
	return s.Encode()
}

// UnmarshalCBOR decodes an embedded script.
func (s *Script) UnmarshalCBOR(data []byte) error {
	decoded, err := DecodeScript(data)
	if err != nil {
		return err
	}

	*s = decoded
	return nil
}

// String renders the script in symbolic notation.
func (s Script) String() string {
	parts := make([]string, len(s))
	for i, call := range s {
		if len(call.Args) == 0 {
			parts[i] = call.Op.String()
			continue
		}

		parts[i] = call.Op.String() + renderArgs(call.Args)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseNotation compiles the symbolic notation into a script. Each step is an
// operator name, or a list whose head is the name and whose tail holds the
// arguments. Reducer, filter and hash function arguments may be given by
// name, and ArrayMap takes a nested notation script.
func ParseNotation(steps []any) (Script, error) {
	script := make(Script, 0, len(steps))

	for i, step := range steps {
		call, err := parseNotationStep(step)
		if err != nil {
			return nil, fmt.Errorf("step %d:\n%w", i, err)
		}

		script = append(script, call)
	}

	return script, nil
}

// parseNotationStep compiles one symbolic call.
func parseNotationStep(step any) (Call, error) {
	var (
		name string
		args []any
	)

	switch tv := step.(type) {
	case string:
		name = tv
	case []any:
		if len(tv) == 0 {
			return Call{}, fmt.Errorf("empty call")
		}

		s, ok := tv[0].(string)
		if !ok {
			return Call{}, fmt.Errorf("call head %v is not an operator name", tv[0])
		}

		name, args = s, tv[1:]
	default:
		return Call{}, fmt.Errorf("unexpected step %v", step)
	}

	op, ok := OpCodeByName(name)
	if !ok {
		return Call{}, fmt.Errorf("unknown operator %q", name)
	}

	compiled := make([]any, len(args))
	for i, arg := range args {
		c, err := notationArg(op, i, arg)
		if err != nil {
			return Call{}, fmt.Errorf("%s argument %d:\n%w", name, i, err)
		}

		compiled[i] = c
	}

	if len(compiled) == 0 {
		compiled = nil
	}

	return Call{Op: op, Args: compiled}, nil
}

// notationArg compiles a single symbolic argument.
func notationArg(op OpCode, pos int, arg any) (any, error) {
	name, isName := arg.(string)

	switch {
	case op == OpArrayMap && pos == 0:
		steps, ok := arg.([]any)
		if !ok {
			return nil, fmt.Errorf("ArrayMap expects a script")
		}

		sub, err := ParseNotation(steps)
		if err != nil {
			return nil, err
		}

		return sub.cbor(), nil

	case op == OpArrayReduce && pos == 0 && isName:
		r, ok := ReducerByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown reducer %q", name)
		}

		return uint64(r), nil

	case (op == OpArrayFilter || op == OpArraySome) && pos == 0 && isName:
		f, ok := FilterByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown filter %q", name)
		}

		return uint64(f), nil

	case (op == OpStringHash || op == OpBytesHash) && pos == 0 && isName:
		for fn, n := range hashFunctionNames {
			if n == name {
				return uint64(fn), nil
			}
		}

		return nil, fmt.Errorf("unknown hash function %q", name)
	}

	return normalizeArg(arg), nil
}

// normalizeArg maps values produced by JSON and YAML decoders to CBOR-friendly
// forms: whole floats become integers and maps get generic keys.
func normalizeArg(arg any) any {
	switch tv := arg.(type) {
	case float64:
		if tv == math.Trunc(tv) && math.Abs(tv) < 1<<53 {
			return int64(tv)
		}

		return tv
	case int:
		return int64(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = normalizeArg(item)
		}

		return out
	case map[string]any:
		out := make(map[any]any, len(tv))
		for k, item := range tv {
			out[k] = normalizeArg(item)
		}

		return out
	}

	return arg
}
