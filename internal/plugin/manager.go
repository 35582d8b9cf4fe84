package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/pluginhost/internal/plugin/api"
	"github.com/dshills/pluginhost/internal/plugin/command"
	"github.com/dshills/pluginhost/internal/plugin/dom"
	"github.com/dshills/pluginhost/internal/plugin/event"
	"github.com/dshills/pluginhost/internal/plugin/store"
)

// Manager is the lifecycle controller. It owns the plugin registry,
// enforces the state machine and its invariants, and coordinates the shared
// command registry, event bus, config store, and asset injector that
// capabilities close over.
type Manager struct {
	mu sync.RWMutex

	appVersion string
	autoEnable bool

	// Registered plugins by name, plus registration order for deterministic
	// iteration and reverse-order teardown.
	records map[string]*record
	order   []string

	// Status-change listeners (protected by mu)
	listeners []StatusListener

	commands *command.Registry
	events   *event.Bus
	store    *store.Store
	assets   *dom.Injector

	log *zap.Logger
}

// ManagerConfig configures the plugin manager.
type ManagerConfig struct {
	// AppVersion is the host application version plugins are validated
	// against at registration.
	AppVersion string

	// AutoEnable attempts to enable each plugin right after registration,
	// unless a persisted enabled:false exists for it. Failures are logged,
	// never returned through Register.
	AutoEnable bool

	// Store is the host's key-value persistence service. Nil falls back to
	// an in-memory store.
	Store store.KV

	// Document is the host document used for style/script injection. Nil
	// falls back to an in-memory document.
	Document dom.Document
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a plugin manager.
func NewManager(cfg ManagerConfig, opts ...Option) *Manager {
	m := &Manager{
		appVersion: cfg.AppVersion,
		autoEnable: cfg.AutoEnable,
		records:    make(map[string]*record),
		order:      make([]string, 0),
		log:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	doc := cfg.Document
	if doc == nil {
		doc = dom.NewMemoryDocument()
	}

	m.commands = command.NewRegistry()
	m.events = event.NewBus(event.WithLogger(m.log))
	m.store = store.New(cfg.Store, store.WithLogger(m.log))
	m.assets = dom.NewInjector(doc)

	return m
}

// LoadStates reads persisted plugin state from the KV service. Call it
// before registering plugins so auto-enable honors persisted enabled:false.
func (m *Manager) LoadStates() error {
	return m.store.Load()
}

// AppVersion returns the host application version.
func (m *Manager) AppVersion() string {
	return m.appVersion
}

// Commands returns the shared command registry, for host-side execution.
func (m *Manager) Commands() *command.Registry {
	return m.commands
}

// Events returns the shared event bus, for host-side emission.
func (m *Manager) Events() *event.Bus {
	return m.events
}

// Assets returns the shared asset injector.
func (m *Manager) Assets() *dom.Injector {
	return m.assets
}

// Store returns the config store, for host-side seeding of config defaults
// before registration.
func (m *Manager) Store() *store.Store {
	return m.store
}

// StatusChange describes one lifecycle transition.
type StatusChange struct {
	Plugin    string
	OldStatus Status
	NewStatus Status
	Err       string
}

// StatusListener observes lifecycle transitions. Listeners must not call
// back into lifecycle operations; panics are recovered and logged.
type StatusListener func(change StatusChange)

// OnStatusChange adds a status listener.
// Returns an unsubscribe function to remove it.
func (m *Manager) OnStatusChange(fn StatusListener) func() {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	index := len(m.listeners) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(m.listeners) {
			m.listeners[index] = nil
		}
	}
}

// Register validates metadata and inserts the plugin with StatusLoaded.
// Fails with ErrDuplicateName or ErrVersionIncompatible before any state
// mutation. With auto-enable active, an enable is attempted afterward; its
// failure is logged and never surfaces through Register.
func (m *Manager) Register(meta Metadata, hooks Hooks) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	if hooks == nil {
		hooks = HookFuncs{}
	}

	if !versionInRange(m.appVersion, meta.MinAppVersion, meta.MaxAppVersion) {
		return fmt.Errorf("plugin %q requires app version [%s, %s], have %s: %w",
			meta.Name, orAny(meta.MinAppVersion), orAny(meta.MaxAppVersion), m.appVersion, ErrVersionIncompatible)
	}

	m.mu.Lock()
	if _, exists := m.records[meta.Name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", meta.Name, ErrDuplicateName)
	}
	rec := &record{
		meta:   meta.Clone(),
		hooks:  hooks,
		status: StatusLoaded,
	}
	m.records[meta.Name] = rec
	m.order = append(m.order, meta.Name)
	m.mu.Unlock()

	m.emitStatus(StatusChange{Plugin: meta.Name, OldStatus: StatusUnloaded, NewStatus: StatusLoaded})

	if m.autoEnable {
		if enabled, ok := m.store.Enabled(meta.Name); !ok || enabled {
			if err := m.Enable(context.Background(), meta.Name); err != nil {
				m.log.Warn("auto-enable failed",
					zap.String("plugin", meta.Name),
					zap.Error(err))
			}
		}
	}

	return nil
}

// Enable transitions a plugin to StatusEnabled. It is a no-op for an
// already-enabled plugin: the enable hook runs at most once per transition.
// Every dependency must currently be enabled; the check happens once, here.
// A hook failure moves the plugin to StatusError, stores the message, and
// returns a HookError.
func (m *Manager) Enable(ctx context.Context, name string) error {
	rec, err := m.record(name)
	if err != nil {
		return err
	}

	rec.lifecycleMu.Lock()
	defer rec.lifecycleMu.Unlock()

	m.mu.RLock()
	if rec.status == StatusEnabled {
		m.mu.RUnlock()
		return nil
	}
	for _, dep := range rec.meta.Dependencies {
		depRec, ok := m.records[dep]
		if !ok || depRec.status != StatusEnabled {
			m.mu.RUnlock()
			return fmt.Errorf("plugin %q: dependency %q: %w", name, dep, ErrDependencyUnresolved)
		}
	}
	m.mu.RUnlock()

	capi := m.capability(name)
	if hookErr := rec.hooks.Enable(ctx, capi); hookErr != nil {
		change := m.transition(rec, name, StatusError, hookErr)
		m.persist()
		m.emitStatus(change)
		return &HookError{Plugin: name, Phase: "enable", Err: hookErr}
	}

	change := m.transition(rec, name, StatusEnabled, nil)
	m.store.SetEnabled(name, true)
	m.persist()
	m.emitStatus(change)
	return nil
}

// Disable transitions a plugin to StatusDisabled. It is a no-op for an
// already-disabled plugin. Required plugins and plugins with enabled
// dependents cannot be disabled.
func (m *Manager) Disable(ctx context.Context, name string) error {
	rec, err := m.record(name)
	if err != nil {
		return err
	}

	rec.lifecycleMu.Lock()
	defer rec.lifecycleMu.Unlock()

	return m.disableLocked(ctx, rec, name)
}

// disableLocked performs the disable transition.
// Must be called with rec.lifecycleMu held.
func (m *Manager) disableLocked(ctx context.Context, rec *record, name string) error {
	m.mu.RLock()
	if rec.status == StatusDisabled {
		m.mu.RUnlock()
		return nil
	}
	if rec.meta.Required {
		m.mu.RUnlock()
		return fmt.Errorf("plugin %q: %w", name, ErrRequiredPlugin)
	}
	for otherName, other := range m.records {
		if otherName == name {
			continue
		}
		if other.status == StatusEnabled && other.meta.DependsOn(name) {
			m.mu.RUnlock()
			return fmt.Errorf("plugin %q: dependent %q: %w", name, otherName, ErrDependentsStillEnabled)
		}
	}
	m.mu.RUnlock()

	if hookErr := rec.hooks.Disable(ctx); hookErr != nil {
		change := m.transition(rec, name, StatusError, hookErr)
		m.persist()
		m.emitStatus(change)
		return &HookError{Plugin: name, Phase: "disable", Err: hookErr}
	}

	change := m.transition(rec, name, StatusDisabled, nil)
	m.store.SetEnabled(name, false)
	m.persist()
	m.emitStatus(change)
	return nil
}

// Unregister removes a plugin from the registry. Required plugins cannot be
// removed. An enabled plugin gets a best-effort disable first; that error
// and any destroy-hook error are logged and swallowed so one broken plugin
// cannot block its own cleanup. Everything the plugin registered through
// its capability is removed with it.
func (m *Manager) Unregister(ctx context.Context, name string) error {
	rec, err := m.record(name)
	if err != nil {
		return err
	}

	rec.lifecycleMu.Lock()
	defer rec.lifecycleMu.Unlock()

	m.mu.RLock()
	required := rec.meta.Required
	status := rec.status
	m.mu.RUnlock()

	if required {
		return fmt.Errorf("plugin %q: %w", name, ErrRequiredPlugin)
	}

	if status == StatusEnabled {
		if err := m.disableLocked(ctx, rec, name); err != nil {
			m.log.Warn("pre-unregister disable failed",
				zap.String("plugin", name),
				zap.Error(err))
		}
	}

	m.removeLocked(ctx, rec, name)
	return nil
}

// removeLocked runs the destroy hook, tears down everything attributed to
// the plugin, and deletes the record.
// Must be called with rec.lifecycleMu held.
func (m *Manager) removeLocked(ctx context.Context, rec *record, name string) {
	if err := rec.hooks.Destroy(ctx); err != nil {
		m.log.Warn("destroy hook failed",
			zap.String("plugin", name),
			zap.Error(err))
	}

	m.commands.RemoveOwner(name)
	m.events.RemoveOwner(name)
	m.assets.RemoveOwner(name)
	m.store.Delete(name)

	m.mu.Lock()
	old := rec.status
	delete(m.records, name)
	m.removeFromOrder(name)
	m.mu.Unlock()

	m.persist()
	m.emitStatus(StatusChange{Plugin: name, OldStatus: old, NewStatus: StatusUnloaded})
}

// Shutdown tears down all plugins in reverse registration order, required
// plugins included. Hook failures are logged and do not stop the teardown;
// they are joined into the returned error for the caller's report.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, len(m.order))
	for i, name := range m.order {
		names[len(m.order)-1-i] = name
	}
	m.mu.RUnlock()

	var teardownErrors []error
	for _, name := range names {
		rec, err := m.record(name)
		if err != nil {
			continue
		}

		rec.lifecycleMu.Lock()

		m.mu.RLock()
		enabled := rec.status == StatusEnabled
		m.mu.RUnlock()

		if enabled {
			if hookErr := rec.hooks.Disable(ctx); hookErr != nil {
				m.log.Warn("shutdown disable failed",
					zap.String("plugin", name),
					zap.Error(hookErr))
				teardownErrors = append(teardownErrors, fmt.Errorf("%s: %w", name, hookErr))
				m.transition(rec, name, StatusError, hookErr)
			} else {
				m.transition(rec, name, StatusDisabled, nil)
			}
		}

		m.removeLocked(ctx, rec, name)
		rec.lifecycleMu.Unlock()
	}

	if len(teardownErrors) > 0 {
		return fmt.Errorf("shutdown completed with %d plugin errors: %w",
			len(teardownErrors), errors.Join(teardownErrors...))
	}
	return nil
}

// Plugins returns snapshots of all registered plugins in registration order.
func (m *Manager) Plugins() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Snapshot, 0, len(m.order))
	for _, name := range m.order {
		if rec, exists := m.records[name]; exists {
			result = append(result, snapshotLocked(rec))
		}
	}
	return result
}

// EnabledPlugins returns snapshots of all enabled plugins.
func (m *Manager) EnabledPlugins() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Snapshot, 0)
	for _, name := range m.order {
		if rec, exists := m.records[name]; exists && rec.status == StatusEnabled {
			result = append(result, snapshotLocked(rec))
		}
	}
	return result
}

// Plugin returns a snapshot of one plugin.
func (m *Manager) Plugin(name string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[name]
	if !exists {
		return Snapshot{}, false
	}
	return snapshotLocked(rec), true
}

// PluginConfig returns a plugin's persisted state: its enablement flag and
// a copy of its config slice. This is the administrative surface; plugins
// reach their own slice through their capability.
func (m *Manager) PluginConfig(name string) (store.PluginState, error) {
	if _, err := m.record(name); err != nil {
		return store.PluginState{}, err
	}

	st, ok := m.store.State(name)
	if !ok {
		return store.PluginState{Config: map[string]any{}}, nil
	}
	return st, nil
}

// SetPluginConfig merges a partial config into a plugin's slice and
// persists the result. Administrative surface bypassing the per-plugin API.
func (m *Manager) SetPluginConfig(name string, partial map[string]any) error {
	if _, err := m.record(name); err != nil {
		return err
	}

	m.store.MergeConfig(name, partial)
	m.persist()
	return nil
}

// Count returns the number of registered plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// HasErrors returns true if any plugin is in StatusError.
func (m *Manager) HasErrors() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.records {
		if rec.status == StatusError {
			return true
		}
	}
	return false
}

// Errors returns all plugins in StatusError with their errors.
func (m *Manager) Errors() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[string]error)
	for name, rec := range m.records {
		if rec.status == StatusError && rec.err != nil {
			errs[name] = rec.err
		}
	}
	return errs
}

// record looks a registry entry up by name.
func (m *Manager) record(name string) (*record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, ErrNotRegistered)
	}
	return rec, nil
}

// transition commits a status change and returns the event describing it.
func (m *Manager) transition(rec *record, name string, to Status, hookErr error) StatusChange {
	m.mu.Lock()
	old := rec.status
	rec.status = to
	rec.err = hookErr
	m.mu.Unlock()

	change := StatusChange{Plugin: name, OldStatus: old, NewStatus: to}
	if hookErr != nil {
		change.Err = hookErr.Error()
	}
	return change
}

// capability builds a fresh capability bound to the plugin's identity.
func (m *Manager) capability(name string) *api.Capability {
	return api.New(name, &api.Context{
		Commands: m.commands,
		Events:   m.events,
		Config:   m.store,
		Assets:   m.assets,
		Plugins:  resolver{m},
		Persist:  m.persist,
	})
}

// persist mirrors enablement flags and config slices to the KV service for
// every plugin currently Enabled or Disabled. Invoked synchronously after
// each state-changing call; failures are logged, never propagated.
func (m *Manager) persist() {
	m.mu.RLock()
	names := make([]string, 0, len(m.order))
	for _, name := range m.order {
		rec := m.records[name]
		if rec.status == StatusEnabled || rec.status == StatusDisabled {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()

	if err := m.store.Save(names); err != nil {
		m.log.Warn("persisting plugin state failed", zap.Error(err))
	}
}

// emitStatus delivers a status change to all listeners.
// Listeners are called outside any locks and panics are recovered.
func (m *Manager) emitStatus(change StatusChange) {
	m.mu.RLock()
	listeners := make([]StatusListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, listener := range listeners {
		if listener == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Warn("status listener panicked",
						zap.String("plugin", change.Plugin),
						zap.Any("panic", r))
				}
			}()
			listener(change)
		}()
	}
}

// removeFromOrder removes a name from the registration order slice.
// Must be called with mu held.
func (m *Manager) removeFromOrder(name string) {
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// resolver adapts the Manager to the capability package's lookup interface.
type resolver struct {
	m *Manager
}

// Lookup implements api.PluginResolver.
func (r resolver) Lookup(name string) (api.PluginView, bool) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	rec, ok := r.m.records[name]
	if !ok {
		return api.PluginView{}, false
	}

	view := api.PluginView{
		Name:          rec.meta.Name,
		Version:       rec.meta.Version,
		Required:      rec.meta.Required,
		MinAppVersion: rec.meta.MinAppVersion,
		MaxAppVersion: rec.meta.MaxAppVersion,
		Status:        rec.status.String(),
	}
	if len(rec.meta.Dependencies) > 0 {
		view.Dependencies = make([]string, len(rec.meta.Dependencies))
		copy(view.Dependencies, rec.meta.Dependencies)
	}
	if rec.err != nil {
		view.Err = rec.err.Error()
	}
	return view, true
}

// orAny renders an open version bound for error messages.
func orAny(bound string) string {
	if bound == "" {
		return "any"
	}
	return bound
}
