package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// fileKV implements store.KV over a single JSON file. Each key maps to a raw
// JSON value at the top level of the document.
type fileKV struct {
	path string
}

func newFileKV(path string) *fileKV {
	return &fileKV{path: path}
}

// Get returns the raw JSON value stored under key, or (nil, nil) when the
// file or key does not exist.
func (f *fileKV) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	result := gjson.GetBytes(data, key)
	if !result.Exists() {
		return nil, nil
	}
	return []byte(result.Raw), nil
}

// Set stores a raw JSON value under key, writing through a temp file and
// rename so a crash never leaves a truncated state file.
func (f *fileKV) Set(key string, value []byte) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", f.path, err)
		}
		data = []byte(`{}`)
	}

	data, err = sjson.SetRawBytes(data, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
