package plugin

import (
	"errors"
	"fmt"
)

// Lifecycle errors. Structural errors are detected before any state
// mutation; hook failures are reported through HookError after the record's
// status has been set to StatusError.
var (
	// ErrDuplicateName is returned when registering a name that already exists.
	ErrDuplicateName = errors.New("plugin name already registered")

	// ErrVersionIncompatible is returned when the application version falls
	// outside a plugin's declared [minAppVersion, maxAppVersion] range.
	ErrVersionIncompatible = errors.New("plugin incompatible with application version")

	// ErrNotRegistered is returned for any operation on an unknown name.
	ErrNotRegistered = errors.New("plugin is not registered")

	// ErrDependencyUnresolved is returned when enabling a plugin whose
	// dependency is missing or not enabled.
	ErrDependencyUnresolved = errors.New("plugin dependency is not enabled")

	// ErrRequiredPlugin is returned when disabling or unregistering a
	// required plugin.
	ErrRequiredPlugin = errors.New("plugin is required and cannot be disabled or removed")

	// ErrDependentsStillEnabled is returned when disabling a plugin that an
	// enabled plugin still depends on.
	ErrDependentsStillEnabled = errors.New("plugin has enabled dependents")
)

// HookError wraps a failure from a plugin's enable, disable, or destroy
// hook. By the time a caller sees it, the record's status is already
// StatusError and the record carries the message.
type HookError struct {
	Plugin string
	Phase  string
	Err    error
}

// Error implements error.
func (e *HookError) Error() string {
	return fmt.Sprintf("plugin %q: %s hook failed: %v", e.Plugin, e.Phase, e.Err)
}

// Unwrap returns the hook's underlying error.
func (e *HookError) Unwrap() error {
	return e.Err
}
