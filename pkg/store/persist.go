package store

import (
	"context"
	"sync"
)

// Keys written by the store. Namespaced per browser session by the shell.
const (
	KeyToken        = "token"
	KeyUser         = "user"
	KeyAuthState    = "auth-storage"
	KeyOrderState   = "order-storage"
	keyProcessedFmt = "checkout-processed:%s"
)

// Persister is a durable key/value store for slice state.
type Persister interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// BatchRemover is implemented by persisters that can drop several keys at once.
type BatchRemover interface {
	RemoveAll(ctx context.Context, keys ...string) error
}

// RemoveAll drops keys from p, in one call when p supports it.
func RemoveAll(ctx context.Context, p Persister, keys ...string) error {
	if br, ok := p.(BatchRemover); ok {
		return br.RemoveAll(ctx, keys...)
	}
	for _, key := range keys {
		if err := p.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// MemoryPersister keeps values in process memory.
type MemoryPersister struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{values: make(map[string]string)}
}

func (m *MemoryPersister) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryPersister) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryPersister) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryPersister) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

type namespaced struct {
	prefix string
	next   Persister
}

// Namespace scopes every key of p under prefix.
func Namespace(p Persister, prefix string) Persister {
	return &namespaced{prefix: prefix, next: p}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.next.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.next.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.next.Remove(ctx, n.prefix+key)
}

func (n *namespaced) RemoveAll(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, key := range keys {
		scoped[i] = n.prefix + key
	}
	return RemoveAll(ctx, n.next, scoped...)
}
