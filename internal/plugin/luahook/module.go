package luahook

import (
	"fmt"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/pluginhost/internal/plugin/api"
	"github.com/dshills/pluginhost/internal/plugin/event"
)

// handlerTableKey is the global holding Lua handler functions, preventing
// their garbage collection while Go-side registrations reference them.
const handlerTableKey = "_host_handlers"

// hostModule installs the `host` Lua module and routes its calls through
// the capability currently bound to the plugin.
type hostModule struct {
	L *lua.LState

	mu         sync.Mutex
	capi       *api.Capability
	handlerTbl *lua.LTable
	subs       map[string]*event.Subscription
	nextID     atomic.Uint64
}

// newHostModule creates the module and installs it into the Lua state.
func newHostModule(L *lua.LState) *hostModule {
	m := &hostModule{
		L:    L,
		subs: make(map[string]*event.Subscription),
	}

	m.handlerTbl = L.NewTable()
	L.SetGlobal(handlerTableKey, m.handlerTbl)

	mod := L.NewTable()
	L.SetField(mod, "register_command", L.NewFunction(m.registerCommand))
	L.SetField(mod, "unregister_command", L.NewFunction(m.unregisterCommand))
	L.SetField(mod, "execute_command", L.NewFunction(m.executeCommand))
	L.SetField(mod, "on", L.NewFunction(m.on))
	L.SetField(mod, "off", L.NewFunction(m.off))
	L.SetField(mod, "emit", L.NewFunction(m.emit))
	L.SetField(mod, "config_get", L.NewFunction(m.configGet))
	L.SetField(mod, "config_set", L.NewFunction(m.configSet))
	L.SetField(mod, "plugin", L.NewFunction(m.plugin))
	L.SetField(mod, "load_css", L.NewFunction(m.loadCSS))
	L.SetField(mod, "load_js", L.NewFunction(m.loadJS))
	L.SetGlobal("host", mod)

	return m
}

// bind points the module at the capability for the current hook invocation.
func (m *hostModule) bind(capi *api.Capability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capi = capi
}

// capability returns the currently bound capability.
func (m *hostModule) capability() *api.Capability {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capi
}

// cleanup drops handler references after the state is destroyed.
func (m *hostModule) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capi = nil
	m.handlerTbl = nil
	m.subs = make(map[string]*event.Subscription)
}

// host.register_command(name, handler)
func (m *hostModule) registerCommand(L *lua.LState) int {
	name := L.CheckString(1)
	handler := L.CheckFunction(2)

	capi := m.capability()
	if capi == nil {
		L.RaiseError("register_command: plugin is not enabled")
		return 0
	}

	key := "cmd:" + name
	m.mu.Lock()
	if m.handlerTbl != nil {
		m.handlerTbl.RawSetString(key, handler)
	}
	m.mu.Unlock()

	if err := capi.RegisterCommand(name, m.commandHandler(key, name)); err != nil {
		m.mu.Lock()
		if m.handlerTbl != nil {
			m.handlerTbl.RawSetString(key, lua.LNil)
		}
		m.mu.Unlock()
		L.RaiseError("register_command: %v", err)
		return 0
	}

	return 0
}

// commandHandler creates a Go command handler that calls the Lua function.
func (m *hostModule) commandHandler(key, name string) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		m.mu.Lock()
		L := m.L
		handlerTbl := m.handlerTbl
		m.mu.Unlock()

		if handlerTbl == nil {
			return nil, fmt.Errorf("command %q: plugin unloaded", name)
		}

		handler := L.GetField(handlerTbl, key)
		if handler.Type() != lua.LTFunction {
			return nil, fmt.Errorf("command %q: handler not found", name)
		}

		L.Push(handler)
		for _, arg := range args {
			L.Push(toLua(L, arg))
		}
		if err := L.PCall(len(args), 1, nil); err != nil {
			return nil, fmt.Errorf("command %q: %w", name, err)
		}

		ret := L.Get(-1)
		L.Pop(1)
		return fromLua(ret), nil
	}
}

// host.unregister_command(name) -> bool
func (m *hostModule) unregisterCommand(L *lua.LState) int {
	name := L.CheckString(1)

	capi := m.capability()
	if capi == nil {
		L.Push(lua.LFalse)
		return 1
	}

	if err := capi.UnregisterCommand(name); err != nil {
		L.Push(lua.LFalse)
		return 1
	}

	m.mu.Lock()
	if m.handlerTbl != nil {
		m.handlerTbl.RawSetString("cmd:"+name, lua.LNil)
	}
	m.mu.Unlock()

	L.Push(lua.LTrue)
	return 1
}

// host.execute_command(name, ...) -> result
func (m *hostModule) executeCommand(L *lua.LState) int {
	name := L.CheckString(1)

	capi := m.capability()
	if capi == nil {
		L.RaiseError("execute_command: plugin is not enabled")
		return 0
	}

	var args []any
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, fromLua(L.Get(i)))
	}

	result, err := capi.ExecuteCommand(name, args...)
	if err != nil {
		L.RaiseError("execute_command: %v", err)
		return 0
	}

	L.Push(toLua(L, result))
	return 1
}

// host.on(event, handler) -> token
func (m *hostModule) on(L *lua.LState) int {
	eventName := L.CheckString(1)
	handler := L.CheckFunction(2)

	capi := m.capability()
	if capi == nil {
		L.RaiseError("on: plugin is not enabled")
		return 0
	}

	token := fmt.Sprintf("sub:%s:%d", eventName, m.nextID.Add(1))

	m.mu.Lock()
	if m.handlerTbl != nil {
		m.handlerTbl.RawSetString(token, handler)
	}
	m.mu.Unlock()

	sub := capi.On(eventName, m.eventHandler(token))

	m.mu.Lock()
	m.subs[token] = sub
	m.mu.Unlock()

	L.Push(lua.LString(token))
	return 1
}

// eventHandler creates a Go event handler that calls the Lua function.
func (m *hostModule) eventHandler(token string) event.Handler {
	return func(args ...any) {
		m.mu.Lock()
		L := m.L
		handlerTbl := m.handlerTbl
		m.mu.Unlock()

		if handlerTbl == nil {
			return // plugin unloaded
		}

		handler := L.GetField(handlerTbl, token)
		if handler.Type() != lua.LTFunction {
			return // handler was removed
		}

		L.Push(handler)
		for _, arg := range args {
			L.Push(toLua(L, arg))
		}
		// The bus recovers and logs handler panics; PCall errors surface as
		// panics so a broken handler cannot abort dispatch to others.
		if err := L.PCall(len(args), 0, nil); err != nil {
			panic(fmt.Sprintf("lua event handler: %v", err))
		}
	}
}

// host.off(token) -> bool
func (m *hostModule) off(L *lua.LState) int {
	token := L.CheckString(1)

	capi := m.capability()
	if capi == nil {
		L.Push(lua.LFalse)
		return 1
	}

	m.mu.Lock()
	sub, exists := m.subs[token]
	if exists {
		delete(m.subs, token)
		if m.handlerTbl != nil {
			m.handlerTbl.RawSetString(token, lua.LNil)
		}
	}
	m.mu.Unlock()

	if !exists {
		L.Push(lua.LFalse)
		return 1
	}

	L.Push(lua.LBool(capi.Off(sub)))
	return 1
}

// host.emit(event, ...)
func (m *hostModule) emit(L *lua.LState) int {
	eventName := L.CheckString(1)

	capi := m.capability()
	if capi == nil {
		L.RaiseError("emit: plugin is not enabled")
		return 0
	}

	var args []any
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, fromLua(L.Get(i)))
	}

	capi.Emit(eventName, args...)
	return 0
}

// host.config_get(key?) -> value | table
func (m *hostModule) configGet(L *lua.LState) int {
	capi := m.capability()
	if capi == nil {
		L.Push(lua.LNil)
		return 1
	}

	if L.GetTop() == 0 {
		L.Push(toLua(L, capi.Config()))
		return 1
	}

	key := L.CheckString(1)
	value, ok := capi.ConfigValue(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(L, value))
	return 1
}

// host.config_set(key, value)
func (m *hostModule) configSet(L *lua.LState) int {
	key := L.CheckString(1)
	value := L.Get(2)

	capi := m.capability()
	if capi == nil {
		L.RaiseError("config_set: plugin is not enabled")
		return 0
	}

	capi.SetConfig(key, fromLua(value))
	return 0
}

// host.plugin(name) -> table | nil
func (m *hostModule) plugin(L *lua.LState) int {
	name := L.CheckString(1)

	capi := m.capability()
	if capi == nil {
		L.Push(lua.LNil)
		return 1
	}

	view, ok := capi.Plugin(name)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}

	tbl := L.NewTable()
	L.SetField(tbl, "name", lua.LString(view.Name))
	L.SetField(tbl, "version", lua.LString(view.Version))
	L.SetField(tbl, "required", lua.LBool(view.Required))
	L.SetField(tbl, "status", lua.LString(view.Status))
	L.SetField(tbl, "dependencies", toLua(L, view.Dependencies))
	if view.Err != "" {
		L.SetField(tbl, "error", lua.LString(view.Err))
	}
	L.Push(tbl)
	return 1
}

// host.load_css(css) -> id
func (m *hostModule) loadCSS(L *lua.LState) int {
	css := L.CheckString(1)

	capi := m.capability()
	if capi == nil {
		L.RaiseError("load_css: plugin is not enabled")
		return 0
	}

	L.Push(lua.LString(capi.LoadCSS(css)))
	return 1
}

// host.load_js(code) -> id
func (m *hostModule) loadJS(L *lua.LState) int {
	code := L.CheckString(1)

	capi := m.capability()
	if capi == nil {
		L.RaiseError("load_js: plugin is not enabled")
		return 0
	}

	L.Push(lua.LString(capi.LoadJS(code)))
	return 1
}
