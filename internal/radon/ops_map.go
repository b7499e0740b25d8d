package radon

// mapOperators returns the operator table of Map.
func mapOperators() map[OpCode]operator {
	return map[OpCode]operator{
		OpMapEntries: noArgs(TypeMap, OpMapEntries, func(in Value) (Value, error) {
			m := in.(Map)
			out := make(Array, 0, len(m))

			for _, k := range m.SortedKeys() {
				out = append(out, Array{String(k), m[k]})
			}

			return out, nil
		}),
		OpMapGetArray:   mapGet(OpMapGetArray, TypeArray),
		OpMapGetBoolean: mapGet(OpMapGetBoolean, TypeBoolean),
		OpMapGetBytes:   mapGet(OpMapGetBytes, TypeBytes),
		OpMapGetFloat:   mapGet(OpMapGetFloat, TypeFloat),
		OpMapGetInteger: mapGet(OpMapGetInteger, TypeInteger),
		OpMapGetMap:     mapGet(OpMapGetMap, TypeMap),
		OpMapGetString:  mapGet(OpMapGetString, TypeString),
		OpMapKeys: noArgs(TypeMap, OpMapKeys, func(in Value) (Value, error) {
			keys := in.(Map).SortedKeys()
			out := make(Array, len(keys))

			for i, k := range keys {
				out[i] = String(k)
			}

			return out, nil
		}),
		OpMapValues: noArgs(TypeMap, OpMapValues, func(in Value) (Value, error) {
			m := in.(Map)
			keys := m.SortedKeys()
			out := make(Array, len(keys))

			for i, k := range keys {
				out[i] = m[k]
			}

			return out, nil
		}),
	}
}

// mapGet builds the typed key accessor for the given variant.
func mapGet(code OpCode, want Type) operator {
	return func(_ *state, in Value, args []any) (Value, error) {
		key, ok := argString(args)
		if !ok {
			return nil, wrongArgs(TypeMap, code, args)
		}

		item, ok := in.(Map)[key]
		if !ok {
			return nil, NewError(ErrMapKeyNotFound, String(key))
		}

		if item.Type() != want {
			return nil, NewDecodeError(item.Type().String(), want.String())
		}

		return item, nil
	}
}
