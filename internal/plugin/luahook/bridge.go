package luahook

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// toLua converts a Go value to a Lua value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	case []string:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, lua.LString(item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, toLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// fromLua converts a Lua value to a Go value.
func fromLua(v lua.LValue) any {
	if v == nil || v == lua.LNil {
		return nil
	}

	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Array-like tables need contiguous integer keys starting at 1.
		isArray := true
		maxIdx := 0
		count := 0
		val.ForEach(func(k, _ lua.LValue) {
			count++
			if num, ok := k.(lua.LNumber); ok {
				idx := int(num)
				if float64(idx) != float64(num) || idx < 1 {
					isArray = false
					return
				}
				if idx > maxIdx {
					maxIdx = idx
				}
			} else {
				isArray = false
			}
		})

		if isArray && maxIdx > 0 && count == maxIdx {
			arr := make([]any, maxIdx)
			val.ForEach(func(k, v lua.LValue) {
				if num, ok := k.(lua.LNumber); ok {
					idx := int(num) - 1
					if idx >= 0 && idx < maxIdx {
						arr[idx] = fromLua(v)
					}
				}
			})
			return arr
		}

		result := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			var keyStr string
			switch key := k.(type) {
			case lua.LString:
				keyStr = string(key)
			case lua.LNumber:
				keyStr = fmt.Sprintf("%v", float64(key))
			default:
				keyStr = k.String()
			}
			result[keyStr] = fromLua(v)
		})
		return result
	default:
		return v.String()
	}
}
