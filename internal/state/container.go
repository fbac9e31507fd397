// Package state provides the injectable key/value container that holds
// persisted client state such as running timers.
package state

import (
	"context"
	"sync"
)

// Container is a key/value store whose writes can be observed.
type Container interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Subscribe delivers every value written to key until cancel is called or ctx ends.
	Subscribe(ctx context.Context, key string) (<-chan []byte, func())
}

// Memory is an in-process Container.
type Memory struct {
	mu          sync.RWMutex
	values      map[string][]byte
	subscribers map[string]map[int]chan []byte
	nextID      int
}

// NewMemory returns an empty container.
func NewMemory() *Memory {
	return &Memory{
		values:      make(map[string][]byte),
		subscribers: make(map[string]map[int]chan []byte),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), val...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	stored := append([]byte(nil), value...)

	// sends happen under the lock so a concurrent cancel cannot close ch mid-send
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = stored
	for _, ch := range m.subscribers[key] {
		select {
		case ch <- append([]byte(nil), stored...):
		default:
			// slow subscriber; latest value is still readable with Get
		}
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, key string) (<-chan []byte, func()) {
	ch := make(chan []byte, 16)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.subscribers[key] == nil {
		m.subscribers[key] = make(map[int]chan []byte)
	}
	m.subscribers[key][id] = ch
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers[key], id)
			if len(m.subscribers[key]) == 0 {
				delete(m.subscribers, key)
			}
			close(ch)
			m.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}
