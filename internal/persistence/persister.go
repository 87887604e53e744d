package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/intellisales-pos/internal/storage"
	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/metrics"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

const (
	stateKeyName = "intellisales_cart"
	syncKeyName  = "intellisales_cart_sync"
)

// Listener receives decoded sync events from the change feed.
type Listener func(types.CartSyncEvent)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// Options configures a Persister. Watcher is optional; without it listeners
// are accepted but never called.
type Options struct {
	Namespace string
	Store     storage.Store
	Watcher   storage.Watcher
	Expiry    time.Duration
	Clock     func() time.Time
	Logger    *logger.Logger
	Metrics   *metrics.CartMetrics
}

// Persister saves one namespace's cart and relays its sync events.
type Persister struct {
	store    storage.Store
	watcher  storage.Watcher
	expiry   time.Duration
	now      func() time.Time
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
	stateKey string
	syncKey  string

	mu        sync.Mutex
	nextID    ListenerID
	listeners map[ListenerID]Listener
	stopWatch func()
}

func New(opts Options) (*Persister, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	p := &Persister{
		store:     opts.Store,
		watcher:   opts.Watcher,
		expiry:    opts.Expiry,
		now:       opts.Clock,
		logg:      opts.Logger,
		metrics:   opts.Metrics,
		stateKey:  buildKey(opts.Namespace, stateKeyName),
		syncKey:   buildKey(opts.Namespace, syncKeyName),
		listeners: map[ListenerID]Listener{},
	}
	if p.expiry <= 0 {
		p.expiry = DefaultExpiry
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logg == nil {
		p.logg = logger.Nop()
	}
	return p, nil
}

func buildKey(namespace, name string) string {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return name
	}
	return namespace + ":" + name
}

// StateKey is the key holding the stored envelope.
func (p *Persister) StateKey() string { return p.stateKey }

// SyncKey prefixes every ephemeral broadcast key.
func (p *Persister) SyncKey() string { return p.syncKey }

// Save writes state under the state key.
func (p *Persister) Save(ctx context.Context, state *types.CartState) error {
	start := time.Now()
	err := p.save(ctx, state)
	p.metrics.ObserveSave(time.Since(start), err)
	if err != nil {
		p.metrics.IncPersistenceFailure("save")
	}
	return err
}

func (p *Persister) save(ctx context.Context, state *types.CartState) error {
	data, err := Serialize(state, p.now())
	if err != nil {
		return err
	}
	if err := p.store.Set(ctx, p.stateKey, data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save cart")
	}
	return nil
}

// Load returns the stored cart, or nil when none is stored. Corrupt and
// version-mismatched entries are removed and reported. Expired carts are
// reported as CART_EXPIRED and left in place.
func (p *Persister) Load(ctx context.Context, now time.Time) (*types.CartState, error) {
	data, ok, err := p.store.Get(ctx, p.stateKey)
	if err != nil {
		p.metrics.IncPersistenceFailure("load")
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load cart")
	}
	if !ok {
		return nil, nil
	}

	state, err := Deserialize(data)
	if err == nil {
		if invalid := ValidateCartState(state); invalid != nil {
			err = pkgerrors.Wrap(pkgerrors.CodePersistence, invalid, "stored cart is invalid")
		}
	}
	if err != nil {
		p.discard(ctx, err)
		return nil, err
	}

	if IsCartExpired(state, p.expiry, now) {
		return nil, pkgerrors.New(pkgerrors.CodeCartExpired, "stored cart expired").
			WithDetails(map[string]any{"cartId": state.CartID, "updatedAt": state.UpdatedAt})
	}
	return state, nil
}

func (p *Persister) discard(ctx context.Context, reason error) {
	p.logg.Warn(p.logg.WithField(ctx, "reason", reason.Error()), "discarding stored cart")
	if err := p.store.Remove(ctx, p.stateKey); err != nil {
		p.metrics.IncPersistenceFailure("clear")
		p.logg.Error(ctx, "failed to remove discarded cart", err)
	}
}

// Clear removes the stored cart.
func (p *Persister) Clear(ctx context.Context) error {
	if err := p.store.Remove(ctx, p.stateKey); err != nil {
		p.metrics.IncPersistenceFailure("clear")
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "clear cart")
	}
	return nil
}

// Broadcast stamps event and signals it through a key that is written and
// removed at once. The key never holds data between calls.
func (p *Persister) Broadcast(ctx context.Context, event types.CartSyncEvent) error {
	now := p.now()
	event.Timestamp = now.UnixMilli()

	payload, err := encodeEvent(event)
	if err != nil {
		p.metrics.IncPersistenceFailure("broadcast")
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "encode sync event")
	}

	key := fmt.Sprintf("%s_%d", p.syncKey, now.UnixNano())
	if err := p.store.Set(ctx, key, payload); err != nil {
		p.metrics.IncPersistenceFailure("broadcast")
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "broadcast sync event")
	}
	if err := p.store.Remove(ctx, key); err != nil {
		p.metrics.IncPersistenceFailure("broadcast")
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "remove sync signal")
	}

	p.metrics.IncSyncEvent(event.Type.String(), metrics.DirectionOutbound)
	return nil
}

// AddListener registers listener. The change feed is watched from the first
// listener on; ctx values carry into the watch but its cancellation does not.
func (p *Persister) AddListener(ctx context.Context, listener Listener) (ListenerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.listeners) == 0 && p.watcher != nil && p.stopWatch == nil {
		stop, err := p.watcher.Watch(context.WithoutCancel(ctx), p.handleChange)
		if err != nil {
			p.metrics.IncPersistenceFailure("watch")
			return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "watch sync events")
		}
		p.stopWatch = stop
	}

	p.nextID++
	id := p.nextID
	p.listeners[id] = listener
	return id, nil
}

// RemoveListener unregisters id. The watch closes with the last listener.
func (p *Persister) RemoveListener(id ListenerID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.listeners, id)
	if len(p.listeners) == 0 && p.stopWatch != nil {
		p.stopWatch()
		p.stopWatch = nil
	}
}

// Listeners returns the number of registered listeners.
func (p *Persister) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Close drops every listener and stops watching.
func (p *Persister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners = map[ListenerID]Listener{}
	if p.stopWatch != nil {
		p.stopWatch()
		p.stopWatch = nil
	}
	return nil
}

func (p *Persister) handleChange(change storage.Event) {
	if !strings.HasPrefix(change.Key, p.syncKey+"_") || change.Removed() {
		return
	}

	ctx := p.logg.WithField(context.Background(), "key", change.Key)
	event, err := decodeEvent(change.Value)
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "dropping malformed sync event")
		return
	}
	p.metrics.IncSyncEvent(event.Type.String(), metrics.DirectionInbound)

	p.mu.Lock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		p.notify(ctx, l, event)
	}
}

func (p *Persister) notify(ctx context.Context, listener Listener, event types.CartSyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logg.Error(ctx, "sync listener panicked", fmt.Errorf("panic: %v", r))
		}
	}()
	listener(event)
}
