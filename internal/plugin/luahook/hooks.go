package luahook

import (
	"context"
	"fmt"

	"github.com/dshills/pluginhost/internal/plugin/api"
)

// Script function names looked up as lifecycle hooks. All are optional.
const (
	fnEnable  = "enable"
	fnDisable = "disable"
	fnDestroy = "destroy"
)

// Hooks runs a Lua script's enable, disable, and destroy functions as
// plugin lifecycle hooks. It satisfies the manager's Hooks interface.
type Hooks struct {
	state *State
	mod   *hostModule
	path  string
}

// Load creates a Lua state, installs the host module, and executes the
// script at path. The script's top level runs once, here; its global
// enable/disable/destroy functions run on the matching lifecycle calls.
func Load(path string) (*Hooks, error) {
	state := NewState()
	mod := newHostModule(state.LuaState())

	if err := state.DoFile(path); err != nil {
		state.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	return &Hooks{state: state, mod: mod, path: path}, nil
}

// LoadString is Load for inline scripts. Used by tests and embedded plugins.
func LoadString(code string) (*Hooks, error) {
	state := NewState()
	mod := newHostModule(state.LuaState())

	if err := state.DoString(code); err != nil {
		state.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}

	return &Hooks{state: state, mod: mod, path: "<string>"}, nil
}

// Path returns the script path the hooks were loaded from.
func (h *Hooks) Path() string {
	return h.path
}

// Enable binds the capability to the host module and calls the script's
// enable function if it defined one.
func (h *Hooks) Enable(ctx context.Context, capi *api.Capability) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mod.bind(capi)

	if !h.state.HasFunction(fnEnable) {
		return nil
	}
	if _, err := h.state.Call(fnEnable); err != nil {
		return fmt.Errorf("%s: %w", h.path, err)
	}
	return nil
}

// Disable calls the script's disable function if it defined one. The
// capability stays bound so handlers still firing during teardown keep
// working until the manager strips the plugin's registrations.
func (h *Hooks) Disable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !h.state.HasFunction(fnDisable) {
		return nil
	}
	if _, err := h.state.Call(fnDisable); err != nil {
		return fmt.Errorf("%s: %w", h.path, err)
	}
	return nil
}

// Destroy calls the script's destroy function if it defined one, then
// closes the Lua state. The error, if any, comes from the script; the
// state is closed either way.
func (h *Hooks) Destroy(ctx context.Context) error {
	var callErr error
	if ctx.Err() == nil && h.state.HasFunction(fnDestroy) {
		if _, err := h.state.Call(fnDestroy); err != nil {
			callErr = fmt.Errorf("%s: %w", h.path, err)
		}
	}

	h.mod.cleanup()
	h.state.Close()
	return callErr
}
