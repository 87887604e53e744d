// Package registers hands out one cart session per point-of-sale register.
package registers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/intellisales-pos/internal/cart"
	"github.com/angelmondragon/intellisales-pos/internal/persistence"
	"github.com/angelmondragon/intellisales-pos/internal/storage"
	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/metrics"
	"go.uber.org/multierr"
)

const maxRegisterIDLength = 64

// Options configures a Registry. Namespace prefixes every register's storage
// namespace.
type Options struct {
	Namespace string
	Store     storage.Store
	Watcher   storage.Watcher
	Expiry    time.Duration
	Clock     func() time.Time
	Defaults  cart.Defaults
	Logger    *logger.Logger
	Metrics   *metrics.CartMetrics
}

type register struct {
	session   *cart.Session
	persister *persistence.Persister
	listener  persistence.ListenerID
}

// Registry tracks the sessions opened so far.
type Registry struct {
	opts Options
	logg *logger.Logger

	mu        sync.Mutex
	registers map[string]*register
	closed    bool
}

func New(opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{opts: opts, logg: logg, registers: map[string]*register{}}, nil
}

// Session returns the register's session, restoring or creating its cart on
// first use.
func (r *Registry) Session(ctx context.Context, registerID string) (*cart.Session, error) {
	registerID = strings.TrimSpace(registerID)
	if err := validateRegisterID(registerID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "register registry closed")
	}
	if reg, ok := r.registers[registerID]; ok {
		return reg.session, nil
	}

	ctx = r.logg.WithRegisterID(ctx, registerID)
	persister, err := persistence.New(persistence.Options{
		Namespace: r.namespace(registerID),
		Store:     r.opts.Store,
		Watcher:   r.opts.Watcher,
		Expiry:    r.opts.Expiry,
		Clock:     r.opts.Clock,
		Logger:    r.logg,
		Metrics:   r.opts.Metrics,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build register persister")
	}

	defaults := r.opts.Defaults
	session := cart.NewSession(cart.SessionOptions{
		Store:    persister,
		Clock:    r.opts.Clock,
		Logger:   r.logg,
		Metrics:  r.opts.Metrics,
		Defaults: &defaults,
	})
	session.Initialize(ctx, "", "")

	listener, err := persister.AddListener(ctx, session.HandleSync)
	if err != nil {
		r.logg.Error(ctx, "register sync subscription failed", err)
	}

	r.registers[registerID] = &register{session: session, persister: persister, listener: listener}
	r.logg.Info(ctx, "register session opened")
	return session, nil
}

func (r *Registry) namespace(registerID string) string {
	prefix := strings.TrimSpace(r.opts.Namespace)
	if prefix == "" {
		return registerID
	}
	return prefix + ":" + registerID
}

// Registers returns the ids of the open registers, sorted.
func (r *Registry) Registers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.registers))
	for id := range r.registers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close detaches every session from the change feed. Sessions handed out
// earlier keep working but no longer receive notices.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs error
	for id, reg := range r.registers {
		reg.persister.RemoveListener(reg.listener)
		if err := reg.persister.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("register %s: %w", id, err))
		}
	}
	r.registers = map[string]*register{}
	return errs
}

func validateRegisterID(registerID string) error {
	switch {
	case registerID == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "register id is required")
	case len(registerID) > maxRegisterIDLength:
		return pkgerrors.New(pkgerrors.CodeValidation, "register id is too long")
	case strings.ContainsAny(registerID, ": \t\n"):
		return pkgerrors.New(pkgerrors.CodeValidation, "register id contains invalid characters")
	}
	return nil
}
