package store

import (
	"errors"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	kv := NewMemoryKV()

	s1 := New(kv)
	s1.SetEnabled("focus-timer", true)
	s1.SetConfigValue("focus-timer", "interval", 25)
	s1.SetEnabled("word-count", false)

	if err := s1.Save([]string{"focus-timer", "word-count"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s2 := New(kv)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if enabled, ok := s2.Enabled("focus-timer"); !ok || !enabled {
		t.Errorf("Enabled(focus-timer) = %v, %v, want true, true", enabled, ok)
	}
	if enabled, ok := s2.Enabled("word-count"); !ok || enabled {
		t.Errorf("Enabled(word-count) = %v, %v, want false, true", enabled, ok)
	}

	// Numbers come back as float64 from the JSON blob.
	if v, ok := s2.ConfigValue("focus-timer", "interval"); !ok || v.(float64) != 25 {
		t.Errorf("ConfigValue(interval) = %v, %v, want 25, true", v, ok)
	}
}

func TestSaveSkipsUnnamedPlugins(t *testing.T) {
	kv := NewMemoryKV()

	s := New(kv)
	s.SetEnabled("kept", true)
	s.SetEnabled("dropped", true)

	if err := s.Save([]string{"kept"}); err != nil {
		t.Fatal(err)
	}

	s2 := New(kv)
	if err := s2.Load(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s2.Enabled("dropped"); ok {
		t.Error("plugin outside the save set was persisted")
	}
}

func TestLoadEmptyBlob(t *testing.T) {
	s := New(NewMemoryKV())

	if err := s.Load(); err != nil {
		t.Errorf("Load() on empty KV error = %v, want nil", err)
	}
}

func TestLoadCorruptBlob(t *testing.T) {
	kv := NewMemoryKV()
	if err := kv.Set(DefaultKey, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	s := New(kv)
	if err := s.Load(); !errors.Is(err, ErrCorruptBlob) {
		t.Errorf("Load() error = %v, want %v", err, ErrCorruptBlob)
	}
}

func TestLoadPersistedValuesWin(t *testing.T) {
	kv := NewMemoryKV()
	blob := []byte(`{"plugins":{"focus-timer":{"enabled":false,"config":{"interval":50}}}}`)
	if err := kv.Set(DefaultKey, blob); err != nil {
		t.Fatal(err)
	}

	s := New(kv)
	// Seeded defaults, set before Load.
	s.SetEnabled("focus-timer", true)
	s.SetConfigValue("focus-timer", "interval", 25)
	s.SetConfigValue("focus-timer", "sound", "bell")

	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	if enabled, _ := s.Enabled("focus-timer"); enabled {
		t.Error("persisted enabled:false lost to in-memory default")
	}
	if v, _ := s.ConfigValue("focus-timer", "interval"); v.(float64) != 50 {
		t.Errorf("interval = %v, want persisted 50", v)
	}
	// Keys the blob lacks keep their in-memory value.
	if v, _ := s.ConfigValue("focus-timer", "sound"); v != "bell" {
		t.Errorf("sound = %v, want seeded bell", v)
	}
}

func TestConfigCopySemantics(t *testing.T) {
	s := New(nil)
	s.SetConfigValue("p", "key", "value")

	cfg := s.Config("p")
	cfg["key"] = "mutated"

	if v, _ := s.ConfigValue("p", "key"); v != "value" {
		t.Error("Config() returned a reference into the store")
	}
}

func TestMergeConfig(t *testing.T) {
	s := New(nil)
	s.SetConfigValue("p", "a", 1)

	s.MergeConfig("p", map[string]any{"a": 2, "b": 3})

	if v, _ := s.ConfigValue("p", "a"); v != 2 {
		t.Errorf("a = %v, want 2", v)
	}
	if v, _ := s.ConfigValue("p", "b"); v != 3 {
		t.Errorf("b = %v, want 3", v)
	}
}

func TestDelete(t *testing.T) {
	s := New(nil)
	s.SetEnabled("p", true)
	s.SetConfigValue("p", "key", "value")

	s.Delete("p")

	if _, ok := s.State("p"); ok {
		t.Error("state still present after Delete")
	}
	if _, ok := s.ConfigValue("p", "key"); ok {
		t.Error("config value still present after Delete")
	}
}

func TestWithKey(t *testing.T) {
	kv := NewMemoryKV()

	s1 := New(kv, WithKey("custom"))
	s1.SetEnabled("p", true)
	if err := s1.Save([]string{"p"}); err != nil {
		t.Fatal(err)
	}

	if data, _ := kv.Get("custom"); len(data) == 0 {
		t.Fatal("blob not stored under the custom key")
	}
	if data, _ := kv.Get(DefaultKey); data != nil {
		t.Error("blob leaked to the default key")
	}
}

func TestMemoryKVCopies(t *testing.T) {
	kv := NewMemoryKV()

	value := []byte(`{"a":1}`)
	if err := kv.Set("k", value); err != nil {
		t.Fatal(err)
	}
	value[0] = 'X'

	got, err := kv.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Get() = %q, stored value was mutated through the caller's slice", got)
	}
}
