// Package plugin provides the plugin lifecycle manager for pluginhost.
//
// The manager tracks a registry of named, versioned extension units, each
// with declared dependencies and three lifecycle hooks (enable, disable,
// destroy). Everything a plugin does through its capability — commands,
// event subscriptions, config writes, injected style/script nodes — is
// attributed to it, so unregistering one plugin never disturbs another.
//
// # Lifecycle
//
// Plugins move through these states:
//
//	StatusUnloaded -> Register() -> StatusLoaded
//	StatusLoaded/StatusDisabled/StatusError -> Enable() -> StatusEnabled
//	StatusEnabled -> Disable() -> StatusDisabled
//	any -> Unregister() -> StatusUnloaded (removed)
//
// A failing enable or disable hook parks the plugin in StatusError with the
// message stored on its record; Enable can be retried from there.
//
// # Invariants
//
//   - Plugin names are unique; duplicate registration fails without mutating
//     state.
//   - A plugin enables only while every declared dependency is enabled. The
//     check runs once, at enable time.
//   - A plugin disables only while no enabled plugin depends on it.
//   - Required plugins are never disabled or unregistered while the host
//     runs; Shutdown tears them down with everything else.
//   - No command name has more than one owner.
//
// # Quick Start
//
//	mgr := plugin.NewManager(plugin.ManagerConfig{
//	    AppVersion: "2.1.0",
//	    AutoEnable: true,
//	    Store:      myKV,
//	}, plugin.WithLogger(log))
//
//	if err := mgr.LoadStates(); err != nil {
//	    log.Warn("no persisted plugin state", zap.Error(err))
//	}
//
//	err := mgr.Register(plugin.Metadata{
//	    Name:    "focus-timer",
//	    Version: "1.0.0",
//	}, myHooks)
//
//	defer mgr.Shutdown(context.Background())
//
// Hooks may be implemented directly in Go (see HookFuncs) or by Lua scripts
// through the luahook package. Enablement flags and per-plugin config are
// mirrored to a host-supplied key-value store after every state-changing
// call; see the store package for the blob format.
package plugin
