package storage

import (
	"context"
	"sync"
)

// Memory is a process-local store. Sessions sharing one Memory see each
// other's writes through its hub.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
	hub  *Hub
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}, hub: NewHub(0)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := append([]byte{}, value...)
	m.mu.Lock()
	m.data[key] = stored
	m.mu.Unlock()
	m.hub.Publish(Event{Key: key, Value: append([]byte{}, stored...)})
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()
	if existed {
		m.hub.Publish(Event{Key: key})
	}
	return nil
}

func (m *Memory) Watch(ctx context.Context, fn func(Event)) (func(), error) {
	return m.hub.Watch(ctx, fn)
}

func (m *Memory) Close() error {
	return m.hub.Close()
}
