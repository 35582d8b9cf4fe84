package store

import "sync"

// MemoryKV is an in-process KV implementation for tests and headless hosts.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns the stored blob, or (nil, nil) if the key is absent.
func (kv *MemoryKV) Get(key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	data, ok := kv.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores a blob under the key.
func (kv *MemoryKV) Set(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	data := make([]byte, len(value))
	copy(data, value)
	kv.data[key] = data
	return nil
}
