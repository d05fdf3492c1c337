package pin

import (
	lua "github.com/yuin/gopher-lua"
)

// ToLValue converts a JSON-decoded Go value (map[string]any, []any, string,
// float64, bool, nil) into its gopher-lua equivalent. Exported so node
// handlers outside this package can share the same conversion rules as the
// pin-expression sandbox.
func ToLValue(L *lua.LState, v any) lua.LValue {
	return toLValue(L, v)
}

// FromLValue converts a gopher-lua value back into a JSON-compatible Go
// value, mirroring ToLValue.
func FromLValue(v lua.LValue) any {
	return fromLValue(v)
}

func toLValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case bool:
		return lua.LBool(val)
	case map[string]any:
		tbl := L.NewTable()
		for k, v2 := range val {
			tbl.RawSetString(k, toLValue(L, v2))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for i, v2 := range val {
			tbl.RawSetInt(i+1, toLValue(L, v2))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// fromLValue converts a gopher-lua value back into a JSON-compatible Go
// value. Lua tables are inferred as arrays when every key is a positive,
// contiguous integer, and as objects otherwise.
func fromLValue(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		return tableToGo(val)
	default:
		return nil
	}
}

func tableToGo(tbl *lua.LTable) any {
	isArray := true
	maxIndex := 0
	count := 0
	tbl.ForEach(func(k, _ lua.LValue) {
		count++
		if idx, ok := k.(lua.LNumber); ok && float64(idx) == float64(int(idx)) && int(idx) > 0 {
			if int(idx) > maxIndex {
				maxIndex = int(idx)
			}
		} else {
			isArray = false
		}
	})

	if isArray && count > 0 && count == maxIndex {
		arr := make([]any, maxIndex)
		tbl.ForEach(func(k, v lua.LValue) {
			arr[int(k.(lua.LNumber))-1] = fromLValue(v)
		})
		return arr
	}

	m := make(map[string]any, count)
	tbl.ForEach(func(k, v lua.LValue) {
		m[k.String()] = fromLValue(v)
	})
	return m
}
