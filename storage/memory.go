package storage

import (
	"context"
	"sync"

	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// MemoryBackend keeps items in process memory. Contents are lost on restart.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]string
	name  string
}

func NewMemoryBackend(name string) *MemoryBackend {
	if name == "" {
		name = "default"
	}
	return &MemoryBackend{items: make(map[string]string), name: name}
}

func (b *MemoryBackend) GetItem(ctx context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.items[key]
	if !ok {
		return "", interfaces.ErrItemNotFound
	}
	return value, nil
}

func (b *MemoryBackend) SetItem(ctx context.Context, key string, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[key] = value
	return nil
}

func (b *MemoryBackend) RemoveItem(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.items, key)
	return nil
}

func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

func (b *MemoryBackend) Name() string {
	return "memory-" + b.name
}

func (b *MemoryBackend) LocationURI() string {
	return "memory://" + b.name
}
