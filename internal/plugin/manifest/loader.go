package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader discovers plugins on the filesystem.
//
// A plugin is either a directory holding a plugin.json (or a bare init.lua
// or plugin.lua), or a standalone name.lua file. Search paths are checked
// in order and the first discovery of a name wins.
type Loader struct {
	paths      []string
	discovered map[string]*Info
}

// Info contains discovery information about a plugin.
type Info struct {
	Name     string
	Path     string
	Manifest *Manifest
	Err      error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the plugin search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a new plugin loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:      DefaultPaths(),
		discovered: make(map[string]*Info),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// DefaultPaths returns the default plugin search paths.
func DefaultPaths() []string {
	paths := make([]string, 0, 2)

	// User plugins: ~/.config/pluginhost/plugins/
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pluginhost", "plugins"))
	}

	// Project plugins: .pluginhost/plugins/
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".pluginhost", "plugins"))
	}

	return paths
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// AddPath adds a search path.
func (l *Loader) AddPath(path string) {
	l.paths = append(l.paths, path)
}

// Discover finds all plugins in the search paths.
// Returns plugins sorted by name.
func (l *Loader) Discover() []*Info {
	l.discovered = make(map[string]*Info)

	for _, basePath := range l.paths {
		l.discoverInPath(basePath)
	}

	plugins := make([]*Info, 0, len(l.discovered))
	for _, info := range l.discovered {
		plugins = append(plugins, info)
	}

	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})

	return plugins
}

// discoverInPath finds plugins in a single directory. A missing directory
// is not an error.
func (l *Loader) discoverInPath(basePath string) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			if filepath.Ext(entry.Name()) == ".lua" {
				name := strings.TrimSuffix(entry.Name(), ".lua")
				l.addSingleFilePlugin(name, filepath.Join(basePath, entry.Name()))
			}
			continue
		}

		pluginPath := filepath.Join(basePath, entry.Name())
		info := l.inspect(entry.Name(), pluginPath)

		// First path wins
		if _, exists := l.discovered[info.Name]; !exists {
			l.discovered[info.Name] = info
		}
	}
}

// addSingleFilePlugin registers a standalone name.lua file as a plugin.
func (l *Loader) addSingleFilePlugin(name, luaPath string) {
	if _, exists := l.discovered[name]; exists {
		return
	}

	m := NewMinimal(name, filepath.Dir(luaPath))
	m.Main = filepath.Base(luaPath)

	l.discovered[name] = &Info{
		Name:     name,
		Path:     filepath.Dir(luaPath),
		Manifest: m,
	}
}

// inspect examines a plugin directory and returns its info.
func (l *Loader) inspect(name, path string) *Info {
	info := &Info{
		Name: name,
		Path: path,
	}

	manifestPath := filepath.Join(path, "plugin.json")
	if _, err := os.Stat(manifestPath); err == nil {
		m, err := Load(manifestPath)
		if err != nil {
			info.Err = fmt.Errorf("invalid manifest: %w", err)
			return info
		}
		info.Manifest = m
		info.Name = m.Name // manifest name wins over directory name
		return info
	}

	// No manifest - check for init.lua
	if _, err := os.Stat(filepath.Join(path, "init.lua")); err == nil {
		info.Manifest = NewMinimal(name, path)
		return info
	}

	// Check for plugin.lua (alternative entry point)
	if _, err := os.Stat(filepath.Join(path, "plugin.lua")); err == nil {
		m := NewMinimal(name, path)
		m.Main = "plugin.lua"
		info.Manifest = m
		return info
	}

	info.Err = ErrNoEntryPoint
	return info
}

// Get returns info for a discovered plugin by name.
func (l *Loader) Get(name string) (*Info, bool) {
	info, ok := l.discovered[name]
	return info, ok
}

// Find searches for a plugin by name across all paths.
// Returns the first match found.
func (l *Loader) Find(name string) (*Info, error) {
	if info, ok := l.discovered[name]; ok {
		return info, nil
	}

	for _, basePath := range l.paths {
		pluginPath := filepath.Join(basePath, name)
		if stat, err := os.Stat(pluginPath); err == nil && stat.IsDir() {
			info := l.inspect(name, pluginPath)
			if info.Err == nil {
				l.discovered[name] = info
				return info, nil
			}
		}

		luaPath := filepath.Join(basePath, name+".lua")
		if _, err := os.Stat(luaPath); err == nil {
			m := NewMinimal(name, basePath)
			m.Main = name + ".lua"
			info := &Info{
				Name:     name,
				Path:     basePath,
				Manifest: m,
			}
			l.discovered[name] = info
			return info, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// Names returns the names of all discovered plugins, sorted.
func (l *Loader) Names() []string {
	names := make([]string, 0, len(l.discovered))
	for name := range l.discovered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of discovered plugins.
func (l *Loader) Count() int {
	return len(l.discovered)
}

// Errored returns all discovered plugins whose manifest or entry point is
// broken.
func (l *Loader) Errored() []*Info {
	var errored []*Info
	for _, info := range l.discovered {
		if info.Err != nil {
			errored = append(errored, info)
		}
	}
	return errored
}
