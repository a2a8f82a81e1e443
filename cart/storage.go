// Package cart keeps shopping carts and wishlists per owner.
//
// Every mutation writes the whole list back to Storage. Storage has no
// cross-request coordination: two writers racing on one owner end up with
// whichever wrote last.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("key not found")

// Storage is a flat key/value store for serialized carts and session markers
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

func cartKey(owner string) string {
	return fmt.Sprintf("cart:%s", owner)
}

func wishlistKey(owner string) string {
	return fmt.Sprintf("wishlist:%s", owner)
}

// MemoryStorage is a process local Storage
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
