package plugin

import "sync"

// record is a registry entry. It is exclusively owned and mutated by the
// Manager; external readers only ever see Snapshot copies.
type record struct {
	// lifecycleMu serializes enable/disable/unregister for this plugin.
	// Hooks run while it is held, so concurrent lifecycle calls against one
	// name queue up instead of racing on status.
	lifecycleMu sync.Mutex

	meta   Metadata
	hooks  Hooks
	status Status
	err    error
}

// Snapshot is a read-only copy of a plugin record.
type Snapshot struct {
	Metadata Metadata
	Status   Status
	Err      string
}

// snapshotLocked copies a record for external consumption.
// Must be called with the Manager's mu held.
func snapshotLocked(rec *record) Snapshot {
	s := Snapshot{
		Metadata: rec.meta.Clone(),
		Status:   rec.status,
	}
	if rec.err != nil {
		s.Err = rec.err.Error()
	}
	return s
}
