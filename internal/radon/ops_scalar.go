package radon

// booleanOperators returns the operator table of Boolean.
func booleanOperators() map[OpCode]operator {
	return map[OpCode]operator{
		OpBooleanAsString: noArgs(TypeBoolean, OpBooleanAsString, func(in Value) (Value, error) {
			return String(in.(Boolean).String()), nil
		}),
		OpBooleanMatch: func(_ *state, in Value, args []any) (Value, error) {
			return matchValue(TypeBoolean, OpBooleanMatch, in.(Boolean).String(), args)
		},
		OpBooleanNegate: noArgs(TypeBoolean, OpBooleanNegate, func(in Value) (Value, error) {
			return !in.(Boolean), nil
		}),
	}
}

// bytesOperators returns the operator table of Bytes.
func bytesOperators() map[OpCode]operator {
	return map[OpCode]operator{
		OpBytesAsString: noArgs(TypeBytes, OpBytesAsString, func(in Value) (Value, error) {
			return String(in.(Bytes).String()[2:]), nil
		}),
		OpBytesHash: func(_ *state, in Value, args []any) (Value, error) {
			digest, err := hashArgs(TypeBytes, OpBytesHash, []byte(in.(Bytes)), args)
			if err != nil {
				return nil, err
			}

			return Bytes(digest), nil
		},
	}
}
