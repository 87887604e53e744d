// Package storage provides the durable key-value stores a cart session
// persists into, each paired with a change feed other sessions can watch.
package storage

import "context"

// Event is a change to one key. Value is nil when the key was removed.
type Event struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Removed reports whether the event announces a deletion.
func (e Event) Removed() bool {
	return e.Value == nil
}

// Store is a durable key-value store with last-write-visible semantics.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Watcher delivers change events asynchronously and at most once. The
// returned stop func is idempotent.
type Watcher interface {
	Watch(ctx context.Context, fn func(Event)) (stop func(), err error)
}

// Backend is a store with its change feed.
type Backend interface {
	Store
	Watcher
	Close() error
}
