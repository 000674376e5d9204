package executor

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

const (
	// KindScriptLua — тип узла Lua скрипта.
	KindScriptLua = "script_lua"
)

// Ключи конфигурации script_lua узла.
const (
	luaConfigSource = "source"
)

// luaDeniedKeywords — подстроки, запрещённые в исходнике скрипта.
// Стандартные библиотеки не открываются вовсе; денилист — независимый
// второй барьер.
var luaDeniedKeywords = []string{
	"os.",
	"io.",
	"require",
	"dofile",
	"loadfile",
	"loadstring",
	"load(",
	"debug.",
	"package.",
}

// LuaScriptExecutor — узел выполнения Lua скрипта в песочнице.
//
// Скрипт выполняется в изолированном состоянии без стандартных
// библиотек; доступны только разрешённые базовые функции (tostring,
// tonumber, pairs, ipairs, type, select, error). Bindings узла
// доступны как глобальные переменные, входные данные запуска — как
// input. Результат — значение, возвращённое скриптом через return.
//
// Конфигурация:
//
//	{"source": "return input.a + input.b"}
type LuaScriptExecutor struct{}

// NewLuaScriptExecutor создаёт LuaScriptExecutor.
func NewLuaScriptExecutor() *LuaScriptExecutor {
	return &LuaScriptExecutor{}
}

// Kind возвращает тип узла.
func (e *LuaScriptExecutor) Kind() string { return KindScriptLua }

// Category возвращает категорию брокера.
func (e *LuaScriptExecutor) Category() string { return CategoryScript }

// Execute выполняет Lua скрипт.
func (e *LuaScriptExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	source := GetConfigString(req.Config, luaConfigSource)
	if source == "" {
		return nil, fmt.Errorf("%w: %s: source is required", ErrInvalidConfig, KindScriptLua)
	}

	for _, kw := range luaDeniedKeywords {
		if strings.Contains(source, kw) {
			return nil, fmt.Errorf("%w: %s: script contains denied keyword %q",
				ErrInvalidConfig, KindScriptLua, kw)
		}
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	if err := e.openSandboxedBase(L); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExecutionFailed, KindScriptLua, err)
	}

	// Bindings доступны как глобальные переменные
	for key, val := range req.Bindings {
		L.SetGlobal(key, toLuaValue(L, val))
	}
	L.SetGlobal("input", toLuaValue(L, req.RunInput))

	if err := L.DoString(source); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrExecutionFailed, KindScriptLua, err)
	}

	var result any
	if L.GetTop() > 0 {
		result = fromLuaValue(L.Get(-1))
	}
	return NewResponse(result), nil
}

// openSandboxedBase открывает только base библиотеку и вычищает из неё
// всё, что даёт доступ к загрузке кода или окружению. Остаются
// tostring, tonumber, pairs, ipairs, type, select, error и арифметика.
func (e *LuaScriptExecutor) openSandboxedBase(L *lua.LState) error {
	if err := L.CallByParam(lua.P{
		Fn:      L.NewFunction(lua.OpenBase),
		NRet:    0,
		Protect: true,
	}, lua.LString(lua.BaseLibName)); err != nil {
		return fmt.Errorf("open base lib: %w", err)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "print",
		"collectgarbage", "getmetatable", "setmetatable", "rawget", "rawset",
		"rawequal", "getfenv", "setfenv", "module", "require", "newproxy", "_printregs"} {
		L.SetGlobal(name, lua.LNil)
	}
	return nil
}

// toLuaValue конвертирует Go значение в Lua.
func toLuaValue(L *lua.LState, val any) lua.LValue {
	switch v := val.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case []any:
		tbl := L.NewTable()
		for _, elem := range v {
			tbl.Append(toLuaValue(L, elem))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for key, elem := range v {
			tbl.RawSetString(key, toLuaValue(L, elem))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// fromLuaValue конвертирует Lua значение в Go.
func fromLuaValue(val lua.LValue) any {
	switch v := val.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LTable:
		return fromLuaTable(v)
	default:
		return v.String()
	}
}

// fromLuaTable конвертирует таблицу: последовательность — в список,
// иначе — в map.
func fromLuaTable(tbl *lua.LTable) any {
	maxN := tbl.MaxN()
	if maxN > 0 {
		list := make([]any, 0, maxN)
		for i := 1; i <= maxN; i++ {
			list = append(list, fromLuaValue(tbl.RawGetInt(i)))
		}
		return list
	}

	obj := make(map[string]any)
	tbl.ForEach(func(key, val lua.LValue) {
		obj[key.String()] = fromLuaValue(val)
	})
	if len(obj) == 0 {
		return []any{}
	}
	return obj
}
