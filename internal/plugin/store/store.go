// Package store persists per-plugin enablement and configuration through a
// host-supplied key-value blob store.
//
// The persisted blob is a single JSON document of the shape
//
//	{"plugins": {"<name>": {"enabled": bool, "config": {...}}}}
//
// read with gjson and written with sjson. Plugin names are restricted to
// lowercase alphanumerics and hyphens by the manager, so they are always
// safe as sjson path components.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// DefaultKey is the key the state blob is stored under.
const DefaultKey = "plugins"

// KV is the host-supplied key-value persistence service.
// Get returns (nil, nil) for an absent key.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// PluginState is the persisted record for one plugin.
type PluginState struct {
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config,omitempty"`
}

// Store holds in-memory plugin state and mirrors it to the KV service.
type Store struct {
	mu     sync.RWMutex
	kv     KV
	key    string
	states map[string]*PluginState
	log    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the KV key the blob is stored under.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used for load/save diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a store over the given KV service.
// A nil kv falls back to an in-memory KV, useful for tests and headless runs.
func New(kv KV, opts ...Option) *Store {
	if kv == nil {
		kv = NewMemoryKV()
	}
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		states: make(map[string]*PluginState),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEnabled records the enablement flag for a plugin.
func (s *Store) SetEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(name).Enabled = enabled
}

// Enabled returns the recorded enablement flag and whether one exists.
func (s *Store) Enabled(name string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[name]
	if !ok {
		return false, false
	}
	return st.Enabled, true
}

// State returns a copy of a plugin's persisted state.
func (s *Store) State(name string) (PluginState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[name]
	if !ok {
		return PluginState{}, false
	}
	return PluginState{Enabled: st.Enabled, Config: copyConfig(st.Config)}, true
}

// Config returns a copy of a plugin's config slice.
func (s *Store) Config(name string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[name]
	if !ok {
		return map[string]any{}
	}
	return copyConfig(st.Config)
}

// ConfigValue returns one config value from a plugin's slice.
func (s *Store) ConfigValue(name, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[name]
	if !ok || st.Config == nil {
		return nil, false
	}
	v, ok := st.Config[key]
	return v, ok
}

// SetConfigValue sets one config value in a plugin's slice.
func (s *Store) SetConfigValue(name, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensure(name)
	if st.Config == nil {
		st.Config = make(map[string]any)
	}
	st.Config[key] = value
}

// MergeConfig merges a partial config into a plugin's slice.
func (s *Store) MergeConfig(name string, partial map[string]any) {
	if len(partial) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensure(name)
	if st.Config == nil {
		st.Config = make(map[string]any, len(partial))
	}
	for k, v := range partial {
		st.Config[k] = v
	}
}

// Delete removes a plugin's state entirely.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, name)
}

// Load reads the persisted blob and merges it into memory. Persisted values
// win wherever the blob has them; in-memory values survive only for keys the
// blob lacks.
func (s *Store) Load() error {
	data, err := s.kv.Get(s.key)
	if err != nil {
		return fmt.Errorf("store: load %q: %w", s.key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("store: load %q: %w", s.key, ErrCorruptBlob)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gjson.GetBytes(data, "plugins").ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		st := s.ensure(name)

		if enabled := value.Get("enabled"); enabled.Exists() {
			st.Enabled = enabled.Bool()
		}

		cfg := value.Get("config")
		if cfg.IsObject() {
			if st.Config == nil {
				st.Config = make(map[string]any)
			}
			cfg.ForEach(func(ck, cv gjson.Result) bool {
				st.Config[ck.String()] = cv.Value()
				return true
			})
		}
		return true
	})

	return nil
}

// ErrCorruptBlob is returned by Load when the persisted blob is not JSON.
var ErrCorruptBlob = errors.New("persisted plugin state is not valid JSON")

// Save serializes the enablement flags and config slices for the named
// plugins and writes the blob back to the KV service. The manager passes
// only plugins currently Enabled or Disabled.
func (s *Store) Save(names []string) error {
	s.mu.RLock()
	out := []byte(`{"plugins":{}}`)
	var err error
	for _, name := range names {
		st, ok := s.states[name]
		if !ok {
			continue
		}
		out, err = sjson.SetBytes(out, "plugins."+name+".enabled", st.Enabled)
		if err != nil {
			break
		}
		if len(st.Config) > 0 {
			out, err = sjson.SetBytes(out, "plugins."+name+".config", st.Config)
			if err != nil {
				break
			}
		}
	}
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("store: serialize: %w", err)
	}
	if err := s.kv.Set(s.key, out); err != nil {
		return fmt.Errorf("store: save %q: %w", s.key, err)
	}
	return nil
}

// ensure returns the state entry for a plugin, creating it if absent.
// Must be called with mu held for writing.
func (s *Store) ensure(name string) *PluginState {
	st, ok := s.states[name]
	if !ok {
		st = &PluginState{}
		s.states[name] = st
	}
	return st
}

// copyConfig deep-copies a config slice through JSON. Config values are
// JSON-shaped by contract, so a marshal round trip is a faithful copy.
func copyConfig(cfg map[string]any) map[string]any {
	if len(cfg) == 0 {
		return map[string]any{}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		// Non-JSON-shaped value slipped in; fall back to a shallow copy.
		out := make(map[string]any, len(cfg))
		for k, v := range cfg {
			out[k] = v
		}
		return out
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		out = make(map[string]any, len(cfg))
		for k, v := range cfg {
			out[k] = v
		}
	}
	return out
}
