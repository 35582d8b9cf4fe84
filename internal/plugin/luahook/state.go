// Package luahook implements plugin lifecycle hooks backed by Lua scripts.
//
// A Lua plugin is a script defining optional global enable, disable, and
// destroy functions. The script runs in a Lua state with only the safe
// standard libraries opened, and reaches the host through the `host` module
// installed by this package.
//
// gopher-lua's LState is not goroutine-safe. The manager's operations and
// the command/event dispatch that reach back into Lua are all synchronous
// on the calling goroutine, which matches the host's single logical thread
// of plugin execution; callers must not invoke hooks for one plugin from
// multiple goroutines at once.
package luahook

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State errors.
var (
	// ErrStateClosed is returned when using a closed Lua state.
	ErrStateClosed = errors.New("lua state is closed")
)

// State wraps gopher-lua for plugin execution.
type State struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

// NewState creates a Lua state with only safe standard libraries opened.
func NewState() *State {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // opened selectively below
	})

	// base (print, type, pairs, ...), table, string, math.
	// io, os, debug, and package stay closed: plugins reach the host only
	// through the host module.
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	return &State{L: L}
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.doWithRecovery(func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes Lua code.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// HasFunction returns true if the script defined the named global function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Call calls a global Lua function with the given arguments.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fnVal := s.L.GetGlobal(fn)
	if fnVal == lua.LNil {
		return nil, fmt.Errorf("function %q not found", fn)
	}
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%q is not a function (got %s)", fn, fnVal.Type())
	}

	stackTop := s.L.GetTop()

	s.L.Push(fnVal)
	for _, arg := range args {
		s.L.Push(arg)
	}

	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("lua panic: %v", r)
			}
		}()
		callErr = s.L.PCall(len(args), lua.MultRet, nil)
	}()
	if callErr != nil {
		return nil, callErr
	}

	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(nRet)

	return results, nil
}

// LuaState returns the underlying gopher-lua state for module installation.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Close releases the Lua state. Safe to call more than once.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}
