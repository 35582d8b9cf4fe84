package plugin

// Status represents the lifecycle state of a plugin.
type Status int

// Plugin statuses.
const (
	// StatusUnloaded - Plugin is not present in the registry. It appears only
	// in transition events, before registration and after removal.
	StatusUnloaded Status = iota

	// StatusLoaded - Plugin is registered but not enabled.
	StatusLoaded

	// StatusEnabled - Plugin is enabled and its capability grants are live.
	StatusEnabled

	// StatusDisabled - Plugin was enabled and has been switched off.
	StatusDisabled

	// StatusError - A lifecycle hook failed; see the record's error.
	StatusError
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusLoaded:
		return "loaded"
	case StatusEnabled:
		return "enabled"
	case StatusDisabled:
		return "disabled"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
