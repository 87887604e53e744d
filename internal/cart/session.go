package cart

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/angelmondragon/intellisales-pos/internal/persistence"
	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/metrics"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
)

// Store is the persistence a session saves through. *persistence.Persister
// satisfies it.
type Store interface {
	Save(ctx context.Context, state *types.CartState) error
	Load(ctx context.Context, now time.Time) (*types.CartState, error)
	Clear(ctx context.Context) error
	Broadcast(ctx context.Context, event types.CartSyncEvent) error
}

type SessionOptions struct {
	Store    Store
	Clock    func() time.Time
	IDs      IDGenerator
	Logger   *logger.Logger
	Metrics  *metrics.CartMetrics
	Defaults *Defaults
}

// SyncNotice records that another context changed the shared cart. It is
// shown to the operator; nothing is merged until Refresh.
type SyncNotice struct {
	Type       enums.SyncEventType `json:"type"`
	CartID     string              `json:"cartId"`
	Timestamp  int64               `json:"timestamp"`
	ReceivedAt time.Time           `json:"receivedAt"`
}

// Session owns one execution context's cart. Its mutex keeps transitions,
// saves and refreshes from interleaving.
type Session struct {
	mu      sync.Mutex
	machine *Machine
	store   Store
	logg    *logger.Logger

	state   *types.CartState
	pending enums.SyncEventType
	notice  *SyncNotice
}

func NewSession(opts SessionOptions) *Session {
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	machineOpts := Options{
		Clock:    opts.Clock,
		IDs:      opts.IDs,
		Logger:   logg,
		Metrics:  opts.Metrics,
		Defaults: opts.Defaults,
	}
	if opts.Store != nil {
		machineOpts.Hooks = opts.Store
	}
	return &Session{
		machine: NewMachine(machineOpts),
		store:   opts.Store,
		logg:    logg,
	}
}

// Initialize restores the stored cart when one is usable and otherwise starts
// a fresh one. Store and cashier ids override the restored ones when given.
func (s *Session) Initialize(ctx context.Context, storeID, cashierID string) *types.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := s.machine.NewCart(storeID, cashierID)
	fresh.IsLoading = true
	s.state = fresh
	s.pending = ""
	s.notice = nil

	restored := s.load(ctx)
	if restored != nil {
		if storeID != "" {
			restored.StoreID = optionalString(storeID)
		}
		if cashierID != "" {
			restored.CashierID = optionalString(cashierID)
		}
		restored.UpdatedAt = s.machine.Now()
		s.state = restored
		s.logg.Info(s.logg.WithCartID(ctx, restored.CartID), "restored stored cart")
	}
	s.state.IsLoading = false
	return s.state.Clone()
}

func (s *Session) load(ctx context.Context) *types.CartState {
	if s.store == nil {
		return nil
	}
	state, err := s.store.Load(ctx, s.machine.Now())
	switch {
	case err == nil:
		return state
	case pkgerrors.HasCode(err, pkgerrors.CodeCartExpired):
		s.logg.Info(ctx, "stored cart expired, starting fresh")
	default:
		s.logg.Error(ctx, "failed to load stored cart", err)
	}
	return nil
}

// Snapshot returns a copy of the current cart, or nil before Initialize.
func (s *Session) Snapshot() *types.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Notice returns the pending remote change notice, if any.
func (s *Session) Notice() *SyncNotice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return nil
	}
	n := *s.notice
	return &n
}

func (s *Session) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = nil
}

func (s *Session) mutate(event enums.SyncEventType, fn func(*types.CartState) error) (*types.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.state); err != nil {
		return s.state.Clone(), err
	}
	s.pending = event
	return s.state.Clone(), nil
}

func (s *Session) AddItem(ctx context.Context, input AddItemInput) (*types.CartState, error) {
	return s.mutate(enums.SyncEventItemAdded, func(state *types.CartState) error {
		return s.machine.AddItem(ctx, state, input)
	})
}

func (s *Session) UpdateItem(ctx context.Context, itemID string, update ItemUpdate) (*types.CartState, error) {
	return s.mutate(enums.SyncEventCartUpdated, func(state *types.CartState) error {
		return s.machine.UpdateItem(ctx, state, itemID, update)
	})
}

func (s *Session) RemoveItem(ctx context.Context, itemID string) (*types.CartState, error) {
	return s.mutate(enums.SyncEventItemRemoved, func(state *types.CartState) error {
		return s.machine.RemoveItem(ctx, state, itemID)
	})
}

func (s *Session) ClearCart(ctx context.Context) (*types.CartState, error) {
	return s.mutate(enums.SyncEventCartCleared, func(state *types.CartState) error {
		return s.machine.ClearCart(ctx, state)
	})
}

func (s *Session) ApplyDiscount(ctx context.Context, discount types.CartDiscount) (*types.CartState, error) {
	return s.mutate(enums.SyncEventTotalsChanged, func(state *types.CartState) error {
		return s.machine.ApplyDiscount(ctx, state, discount)
	})
}

func (s *Session) RemoveDiscount(ctx context.Context, discountID string) (*types.CartState, error) {
	return s.mutate(enums.SyncEventTotalsChanged, func(state *types.CartState) error {
		return s.machine.RemoveDiscount(ctx, state, discountID)
	})
}

func (s *Session) SetCustomer(ctx context.Context, customer *types.CartCustomer) (*types.CartState, error) {
	return s.mutate(enums.SyncEventCartUpdated, func(state *types.CartState) error {
		return s.machine.SetCustomer(ctx, state, customer)
	})
}

func (s *Session) AddPaymentMethod(ctx context.Context, method types.PaymentMethod) (*types.CartState, error) {
	return s.mutate(enums.SyncEventCartUpdated, func(state *types.CartState) error {
		return s.machine.AddPaymentMethod(ctx, state, method)
	})
}

func (s *Session) RemovePaymentMethod(ctx context.Context, paymentID string) (*types.CartState, error) {
	return s.mutate(enums.SyncEventCartUpdated, func(state *types.CartState) error {
		return s.machine.RemovePaymentMethod(ctx, state, paymentID)
	})
}

func (s *Session) SetTaxConfig(ctx context.Context, cfg types.TaxConfig) (*types.CartState, error) {
	return s.mutate(enums.SyncEventTotalsChanged, func(state *types.CartState) error {
		return s.machine.SetTaxConfig(ctx, state, cfg)
	})
}

func (s *Session) UpdateSettings(ctx context.Context, update SettingsUpdate) (*types.CartState, error) {
	return s.mutate(enums.SyncEventTotalsChanged, func(state *types.CartState) error {
		return s.machine.UpdateSettings(ctx, state, update)
	})
}

func (s *Session) SetHold(ctx context.Context, reason string) (*types.CartState, error) {
	return s.mutate(enums.SyncEventCartUpdated, func(state *types.CartState) error {
		return s.machine.SetHold(ctx, state, reason)
	})
}

func (s *Session) CreateNewCart(ctx context.Context, storeID, cashierID string) (*types.CartState, error) {
	return s.mutate(enums.SyncEventCartUpdated, func(state *types.CartState) error {
		return s.machine.CreateNewCart(ctx, state, storeID, cashierID)
	})
}

type syncSummary struct {
	ItemCount  int             `json:"itemCount"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// Save persists the cart and announces the last recorded change. A failed
// save leaves the cart dirty and is returned; a failed announcement is only
// logged.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "session is not initialized")
	}
	if s.store == nil {
		return nil
	}

	ctx = s.logg.WithCartID(ctx, s.state.CartID)
	if err := s.store.Save(ctx, s.state); err != nil {
		s.logg.Error(ctx, "failed to save cart", err)
		return err
	}

	event := s.pending
	if event == "" {
		event = enums.SyncEventCartUpdated
	}
	data, err := json.Marshal(syncSummary{
		ItemCount:  s.state.Totals.ItemCount,
		GrandTotal: s.state.Totals.GrandTotal,
	})
	if err == nil {
		err = s.store.Broadcast(ctx, types.CartSyncEvent{Type: event, CartID: s.state.CartID, Data: data})
	}
	if err != nil {
		s.logg.Error(ctx, "cart sync broadcast failed", err)
	}

	s.machine.MarkSaved(s.state)
	s.pending = ""
	return nil
}

// HandleSync records a notice for changes made by other carts sharing the
// namespace. Events about this session's own cart are ignored.
func (s *Session) HandleSync(event types.CartSyncEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil && event.CartID == s.state.CartID {
		return
	}
	s.notice = &SyncNotice{
		Type:       event.Type,
		CartID:     event.CartID,
		Timestamp:  event.Timestamp,
		ReceivedAt: s.machine.Now(),
	}

	ctx := s.logg.WithFields(context.Background(), map[string]any{
		"remote_cart_id": event.CartID,
		"event_type":     event.Type.String(),
	})
	s.logg.Info(ctx, "cart changed in another context")
}

// Refresh merges the stored cart into the session, keeping whichever side
// was updated last.
func (s *Session) Refresh(ctx context.Context) (*types.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session is not initialized")
	}
	if s.store == nil {
		return s.state.Clone(), nil
	}

	remote, err := s.store.Load(ctx, s.machine.Now())
	if err != nil {
		return s.state.Clone(), err
	}
	s.state = persistence.MergeCartStates(s.state, remote)
	s.notice = nil
	return s.state.Clone(), nil
}
