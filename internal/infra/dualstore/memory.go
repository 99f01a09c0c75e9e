package dualstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// errOffline simulates an unreachable replica.
var errOffline = errors.New("backend offline")

// MemoryBackend is an in-memory domain.Backend for tests. It supports key
// listing, external-change injection, and a fail switch that makes every
// operation error as if the replica were unreachable.
type MemoryBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	offline bool
	changes chan struct{}
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:    make(map[string][]byte),
		changes: make(chan struct{}, 1),
	}
}

// SetOffline toggles failure of every subsequent operation.
func (m *MemoryBackend) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Get returns the stored value and whether the key exists.
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, false, errOffline
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores a copy of value.
func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return errOffline
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

// Delete removes the key.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return errOffline
	}
	delete(m.data, key)
	return nil
}

// Keys lists stored keys with the given prefix, sorted.
func (m *MemoryBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, errOffline
	}
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch delivers signals injected by TriggerChange.
func (m *MemoryBackend) Watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.changes:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// TriggerChange simulates another device writing through this backend.
func (m *MemoryBackend) TriggerChange() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// Len reports the number of stored keys, for reset assertions.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
