package persistence

import (
	"errors"
	"time"

	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

// DefaultExpiry is how long a stored cart stays loadable after its last update.
const DefaultExpiry = 24 * time.Hour

// IsCartExpired reports whether more than maxAge passed since state.UpdatedAt.
// A non-positive maxAge uses DefaultExpiry.
func IsCartExpired(state *types.CartState, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		maxAge = DefaultExpiry
	}
	return now.Sub(state.UpdatedAt) > maxAge
}

// ValidateCartState checks the structural fields a loaded cart needs.
func ValidateCartState(state *types.CartState) error {
	if state == nil {
		return errors.New("cart state is missing")
	}
	if state.CartID == "" {
		return errors.New("cart id is missing")
	}
	if state.CreatedAt.IsZero() || state.UpdatedAt.IsZero() {
		return errors.New("cart timestamps are missing")
	}
	if state.Items == nil {
		return errors.New("cart items are missing")
	}
	for _, item := range state.Items {
		if item.ID == "" {
			return errors.New("cart item id is missing")
		}
		if item.Quantity <= 0 {
			return errors.New("cart item quantity must be positive")
		}
	}
	return nil
}

// MergeCartStates keeps whichever cart was updated last. Ties keep local.
func MergeCartStates(local, remote *types.CartState) *types.CartState {
	if remote == nil {
		return local
	}
	if local == nil || remote.UpdatedAt.After(local.UpdatedAt) {
		return remote
	}
	return local
}
