package storage

import (
	"sync"

	"github.com/ader1990/adpreplic/internal/errors"
)

// MemoryBackend is an in-memory Backend implementation. It is the default:
// the value store is a cache whose contents are reconstructible from peers.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string]map[string][]byte),
	}
}

// Create implements Backend
func (b *MemoryBackend) Create(namespace, key string, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns := b.namespace(namespace)
	if _, ok := ns[key]; ok {
		return errors.AlreadyExists(key)
	}
	ns[key] = append([]byte(nil), blob...)
	return nil
}

// Read implements Backend
func (b *MemoryBackend) Read(namespace, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ns, ok := b.data[namespace]
	if !ok {
		return nil, errors.NotFound(key)
	}
	blob, ok := ns[key]
	if !ok {
		return nil, errors.NotFound(key)
	}
	return append([]byte(nil), blob...), nil
}

// Update implements Backend
func (b *MemoryBackend) Update(namespace, key string, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns := b.namespace(namespace)
	if _, ok := ns[key]; !ok {
		return errors.NotFound(key)
	}
	ns[key] = append([]byte(nil), blob...)
	return nil
}

// Remove implements Backend
func (b *MemoryBackend) Remove(namespace, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, ok := b.data[namespace]
	if !ok {
		return errors.NotFound(key)
	}
	if _, ok := ns[key]; !ok {
		return errors.NotFound(key)
	}
	delete(ns, key)
	return nil
}

// Keys implements Backend
func (b *MemoryBackend) Keys(namespace string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ns := b.data[namespace]
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close implements Backend
func (b *MemoryBackend) Close() error {
	return nil
}

// namespace returns the map for namespace, creating it if needed.
// Callers must hold the write lock.
func (b *MemoryBackend) namespace(namespace string) map[string][]byte {
	ns, ok := b.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		b.data[namespace] = ns
	}
	return ns
}
