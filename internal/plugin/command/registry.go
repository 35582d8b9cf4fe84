// Package command provides the process-wide command table.
//
// Every command is attributed to the plugin that registered it so that
// unregistering a plugin removes exactly its own commands and nothing else.
// Command names are globally unique: a second registration under a taken
// name is rejected rather than silently stealing ownership.
package command

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handler is a command implementation. It receives the caller's arguments
// and returns a result value or an error.
type Handler func(args ...any) (any, error)

// Command table errors.
var (
	// ErrCommandNotFound is returned when executing or removing an unknown command.
	ErrCommandNotFound = errors.New("command not found")

	// ErrCommandExists is returned when registering a name that is already taken.
	ErrCommandExists = errors.New("command name already registered")

	// ErrNotCommandOwner is returned when a plugin tries to unregister a command
	// it does not own.
	ErrNotCommandOwner = errors.New("command is owned by another plugin")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("command handler is nil")
)

// entry is a registered command with its owning plugin.
type entry struct {
	owner   string
	handler Handler
}

// Registry is the shared command table. All mutations are attributed to an
// owning plugin name.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]entry
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]entry),
	}
}

// Register adds a command owned by the given plugin.
// Returns ErrCommandExists if the name is already taken, by any owner.
func (r *Registry) Register(owner, name string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("command: %w", ErrCommandNotFound)
	}
	if handler == nil {
		return fmt.Errorf("command %q: %w", name, ErrNilHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.commands[name]; exists {
		return fmt.Errorf("command %q (owned by %q): %w", name, existing.owner, ErrCommandExists)
	}

	r.commands[name] = entry{owner: owner, handler: handler}
	return nil
}

// Unregister removes a command if the caller owns it.
func (r *Registry) Unregister(owner, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.commands[name]
	if !exists {
		return fmt.Errorf("command %q: %w", name, ErrCommandNotFound)
	}
	if existing.owner != owner {
		return fmt.Errorf("command %q (owned by %q): %w", name, existing.owner, ErrNotCommandOwner)
	}

	delete(r.commands, name)
	return nil
}

// Execute runs a command by name. The handler's result and error are
// returned to the caller unchanged.
func (r *Registry) Execute(name string, args ...any) (any, error) {
	r.mu.RLock()
	existing, exists := r.commands[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("command %q: %w", name, ErrCommandNotFound)
	}

	// Handler runs outside the lock so commands may call back into the registry.
	return existing.handler(args...)
}

// Owner returns the owning plugin of a command.
func (r *Registry) Owner(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing, exists := r.commands[name]
	return existing.owner, exists
}

// Has reports whether a command is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.commands[name]
	return exists
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamesByOwner returns the command names owned by a plugin, sorted.
func (r *Registry) NamesByOwner(owner string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, e := range r.commands {
		if e.owner == owner {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RemoveOwner removes every command owned by the plugin.
// Returns the number of commands removed.
func (r *Registry) RemoveOwner(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, e := range r.commands {
		if e.owner == owner {
			delete(r.commands, name)
			removed++
		}
	}
	return removed
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
