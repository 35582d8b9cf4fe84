package plugin

import (
	"context"

	"github.com/dshills/pluginhost/internal/plugin/api"
)

// Hooks are the three lifecycle callables a plugin supplies. Each hook
// receives a context; Enable additionally receives a fresh Capability bound
// to the plugin's identity for that invocation.
//
// Hooks must not call back into the Manager's lifecycle operations for
// their own plugin; doing so deadlocks on the per-plugin lifecycle lock.
type Hooks interface {
	// Enable is called when the plugin transitions toward StatusEnabled.
	Enable(ctx context.Context, capi *api.Capability) error

	// Disable is called when the plugin transitions toward StatusDisabled.
	Disable(ctx context.Context) error

	// Destroy is called during unregistration, after the best-effort
	// disable. Its error is logged, never propagated.
	Destroy(ctx context.Context) error
}

// HookFuncs adapts plain functions to the Hooks interface.
// Nil functions are no-ops.
type HookFuncs struct {
	OnEnable  func(ctx context.Context, capi *api.Capability) error
	OnDisable func(ctx context.Context) error
	OnDestroy func(ctx context.Context) error
}

// Enable implements Hooks.
func (h HookFuncs) Enable(ctx context.Context, capi *api.Capability) error {
	if h.OnEnable == nil {
		return nil
	}
	return h.OnEnable(ctx, capi)
}

// Disable implements Hooks.
func (h HookFuncs) Disable(ctx context.Context) error {
	if h.OnDisable == nil {
		return nil
	}
	return h.OnDisable(ctx)
}

// Destroy implements Hooks.
func (h HookFuncs) Destroy(ctx context.Context) error {
	if h.OnDestroy == nil {
		return nil
	}
	return h.OnDestroy(ctx)
}
