// Package api builds the scoped capability surface handed to plugin hooks.
//
// A Capability is a pure factory product: it is created fresh for each hook
// invocation, bound to the invoking plugin's identity, and closes over the
// shared command registry, event bus, config store, and asset injector.
// Everything a plugin does through its Capability is attributed to it, so
// the manager can later remove exactly that plugin's commands,
// subscriptions, and injected nodes.
package api

import (
	"github.com/dshills/pluginhost/internal/plugin/command"
	"github.com/dshills/pluginhost/internal/plugin/dom"
	"github.com/dshills/pluginhost/internal/plugin/event"
	"github.com/dshills/pluginhost/internal/plugin/store"
)

// PluginView is a read-only view of another plugin's record.
type PluginView struct {
	Name          string
	Version       string
	Dependencies  []string
	Required      bool
	MinAppVersion string
	MaxAppVersion string
	Status        string
	Err           string
}

// PluginResolver looks up read-only plugin views. Implemented by the
// lifecycle manager.
type PluginResolver interface {
	Lookup(name string) (PluginView, bool)
}

// Context holds the shared tables a Capability closes over.
type Context struct {
	Commands *command.Registry
	Events   *event.Bus
	Config   *store.Store
	Assets   *dom.Injector
	Plugins  PluginResolver

	// Persist is invoked after config mutations so state-changing calls are
	// mirrored to the host's KV service immediately. May be nil.
	Persist func()
}

// Capability is the operation set exposed to one plugin's hooks.
type Capability struct {
	owner string
	ctx   *Context
}

// New creates a capability bound to the given plugin identity.
func New(owner string, ctx *Context) *Capability {
	return &Capability{owner: owner, ctx: ctx}
}

// Owner returns the plugin name the capability is bound to.
func (c *Capability) Owner() string {
	return c.owner
}

// RegisterCommand registers a command owned by this plugin.
func (c *Capability) RegisterCommand(name string, handler command.Handler) error {
	return c.ctx.Commands.Register(c.owner, name, handler)
}

// UnregisterCommand removes a command. Succeeds only if this plugin owns it.
func (c *Capability) UnregisterCommand(name string) error {
	return c.ctx.Commands.Unregister(c.owner, name)
}

// ExecuteCommand looks a command up globally and invokes it, returning the
// handler's result or error unchanged.
func (c *Capability) ExecuteCommand(name string, args ...any) (any, error) {
	return c.ctx.Commands.Execute(name, args...)
}

// On subscribes this plugin to an event. The returned token removes exactly
// this registration when passed to Off.
func (c *Capability) On(eventName string, handler event.Handler) *event.Subscription {
	return c.ctx.Events.Subscribe(eventName, c.owner, handler)
}

// Off removes a single subscription. Returns true if it existed.
func (c *Capability) Off(sub *event.Subscription) bool {
	return c.ctx.Events.Unsubscribe(sub)
}

// Emit publishes an event to all subscribers in subscription order.
func (c *Capability) Emit(eventName string, args ...any) {
	c.ctx.Events.Emit(eventName, args...)
}

// Config returns a copy of this plugin's config slice.
func (c *Capability) Config() map[string]any {
	return c.ctx.Config.Config(c.owner)
}

// ConfigValue returns one value from this plugin's config slice.
func (c *Capability) ConfigValue(key string) (any, bool) {
	return c.ctx.Config.ConfigValue(c.owner, key)
}

// SetConfig sets one value in this plugin's config slice and triggers
// persistence.
func (c *Capability) SetConfig(key string, value any) {
	c.ctx.Config.SetConfigValue(c.owner, key, value)
	if c.ctx.Persist != nil {
		c.ctx.Persist()
	}
}

// Plugin returns a read-only view of another plugin's record.
func (c *Capability) Plugin(name string) (PluginView, bool) {
	return c.ctx.Plugins.Lookup(name)
}

// LoadCSS injects a style node tagged with this plugin's identity.
// Returns the node's generated ID.
func (c *Capability) LoadCSS(css string) string {
	return c.ctx.Assets.InjectCSS(c.owner, css)
}

// LoadJS injects a script node tagged with this plugin's identity.
// Returns the node's generated ID.
func (c *Capability) LoadJS(code string) string {
	return c.ctx.Assets.InjectJS(c.owner, code)
}
