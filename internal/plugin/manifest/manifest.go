// Package manifest reads plugin.json descriptors and discovers plugin
// directories on disk.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/pluginhost/internal/plugin"
)

// Manifest describes a plugin's identity, requirements, and entry point.
type Manifest struct {
	// Identity
	Name        string `json:"name"`        // Unique identifier (e.g., "focus-timer")
	Version     string `json:"version"`     // Dotted numeric version (e.g., "1.2.0")
	DisplayName string `json:"displayName"` // Human-readable name
	Description string `json:"description"` // Short description
	Author      string `json:"author"`      // Author name or org

	// Entry point
	Main string `json:"main"` // Relative path to main Lua file (default: "init.lua")

	// Requirements
	Dependencies  []string `json:"dependencies"`  // Plugins that must be enabled first
	Required      bool     `json:"required"`      // Host cannot run without it
	MinAppVersion string   `json:"minAppVersion"` // Inclusive lower host version bound
	MaxAppVersion string   `json:"maxAppVersion"` // Inclusive upper host version bound

	// Initial per-plugin config, applied unless persisted values exist.
	ConfigDefaults map[string]any `json:"configDefaults"`

	// Internal: path to the plugin directory
	path string
}

// Validation errors.
var (
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file")
	ErrNoEntryPoint   = errors.New("manifest: no entry point found")
	ErrPluginNotFound = errors.New("manifest: plugin not found")
)

// Load loads and validates a plugin manifest from a file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.path = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadFromDir loads plugin.json from a plugin directory.
func LoadFromDir(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, "plugin.json"))
}

// NewMinimal creates a minimal manifest for single-file plugins.
func NewMinimal(name, path string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    "init.lua",
		path:    path,
	}
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "init.lua"
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid. Identity and requirement
// fields are validated through the lifecycle manager's metadata rules, so a
// manifest that passes here also passes registration.
func (m *Manifest) Validate() error {
	if err := m.Metadata().Validate(); err != nil {
		return err
	}
	if m.Main != "" && filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	return nil
}

// Metadata converts the manifest's identity and requirement fields to the
// lifecycle manager's registration form.
func (m *Manifest) Metadata() plugin.Metadata {
	deps := make([]string, len(m.Dependencies))
	copy(deps, m.Dependencies)
	return plugin.Metadata{
		Name:          m.Name,
		Version:       m.Version,
		Dependencies:  deps,
		Required:      m.Required,
		MinAppVersion: m.MinAppVersion,
		MaxAppVersion: m.MaxAppVersion,
	}
}

// Path returns the path to the plugin directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the main Lua file.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// String returns a display string for logs and listings.
func (m *Manifest) String() string {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}
