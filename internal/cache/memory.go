package cache

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. A positive maxBytes bounds the
// total size of all values.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	size     int
	maxBytes int
}

// NewMemoryStore creates an in-memory store; maxBytes <= 0 means unbounded.
func NewMemoryStore(maxBytes int) *MemoryStore {
	return &MemoryStore{
		data:     make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSize := m.size - len(m.data[key]) + len(value)
	if m.maxBytes > 0 && newSize > m.maxBytes {
		return ErrCapacity
	}

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	m.size = newSize
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.size -= len(m.data[key])
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
