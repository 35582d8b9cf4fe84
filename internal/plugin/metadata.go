package plugin

import (
	"errors"
	"fmt"
	"regexp"
)

// Metadata describes a plugin's identity and requirements.
type Metadata struct {
	// Name uniquely identifies the plugin (e.g., "focus-timer").
	Name string `json:"name"`

	// Version is the plugin's dotted-integer version (e.g., "1.2.0").
	Version string `json:"version"`

	// Dependencies lists plugins that must be enabled before this one.
	Dependencies []string `json:"dependencies,omitempty"`

	// Required plugins can never be disabled or removed while the host runs.
	Required bool `json:"required,omitempty"`

	// MinAppVersion and MaxAppVersion bound the compatible application
	// versions. Empty bounds are open.
	MinAppVersion string `json:"minAppVersion,omitempty"`
	MaxAppVersion string `json:"maxAppVersion,omitempty"`
}

// Metadata validation errors.
var (
	ErrMissingName    = errors.New("metadata: name is required")
	ErrInvalidName    = errors.New("metadata: name must be lowercase alphanumeric with hyphens")
	ErrMissingVersion = errors.New("metadata: version is required")
	ErrInvalidVersion = errors.New("metadata: version must be dotted integers")
	ErrSelfDependency = errors.New("metadata: plugin cannot depend on itself")
)

// namePattern validates plugin names. Names double as JSON object keys and
// persistence path components, so dots and uppercase are excluded.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// versionPattern validates dotted-integer versions.
var versionPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Validate checks that the metadata is well formed.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, m.Name)
	}

	if m.Version == "" {
		return ErrMissingVersion
	}
	if !versionPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, m.Version)
	}

	for _, bound := range []string{m.MinAppVersion, m.MaxAppVersion} {
		if bound != "" && !versionPattern.MatchString(bound) {
			return fmt.Errorf("%w: %q", ErrInvalidVersion, bound)
		}
	}

	for _, dep := range m.Dependencies {
		if dep == m.Name {
			return fmt.Errorf("%w: %q", ErrSelfDependency, m.Name)
		}
	}

	return nil
}

// Clone creates a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	clone := m
	if m.Dependencies != nil {
		clone.Dependencies = make([]string, len(m.Dependencies))
		copy(clone.Dependencies, m.Dependencies)
	}
	return clone
}

// DependsOn reports whether the metadata lists the given plugin.
func (m Metadata) DependsOn(name string) bool {
	for _, dep := range m.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}

// String returns a string representation of the metadata.
func (m Metadata) String() string {
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}
