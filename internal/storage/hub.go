package storage

import (
	"context"
	"sync"
)

const defaultHubBuffer = 64

// Hub fans change events out to in-process watchers. Each watcher has its own
// buffer; events beyond it are dropped for that watcher only.
type Hub struct {
	mu     sync.Mutex
	next   uint64
	subs   map[uint64]*hubSubscriber
	buffer int
}

type hubSubscriber struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *hubSubscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// NewHub builds a hub with buffer queued events per watcher.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	return &Hub{subs: map[uint64]*hubSubscriber{}, buffer: buffer}
}

// Publish queues event for every watcher without blocking.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		select {
		case sub.events <- event:
		default:
		}
	}
}

// Watch delivers events to fn on a dedicated goroutine until stop is called
// or ctx is done.
func (h *Hub) Watch(ctx context.Context, fn func(Event)) (func(), error) {
	sub := &hubSubscriber{
		events: make(chan Event, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = sub
	h.mu.Unlock()

	stop := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		sub.close()
	}

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-ctx.Done():
				stop()
				return
			case event := <-sub.events:
				fn(event)
			}
		}
	}()

	return stop, nil
}

// Watchers returns the number of active watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches every watcher.
func (h *Hub) Close() error {
	h.mu.Lock()
	subs := h.subs
	h.subs = map[uint64]*hubSubscriber{}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
	return nil
}
