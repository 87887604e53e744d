// Package persistence stores a cart under a namespace and propagates change
// notices to the other sessions sharing that namespace.
package persistence

import (
	"encoding/json"
	"time"

	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
)

// SchemaVersion tags every stored envelope. Entries with any other version
// are discarded on load.
const SchemaVersion = "1.0.0"

// Envelope is the stored form of a cart. Timestamp is unix milliseconds.
type Envelope struct {
	CartState *types.CartState `json:"cartState"`
	Timestamp int64            `json:"timestamp"`
	Version   string           `json:"version"`
}

// Serialize wraps state in an envelope stamped with now.
func Serialize(state *types.CartState, now time.Time) ([]byte, error) {
	if state == nil {
		return nil, pkgerrors.New(pkgerrors.CodePersistence, "cart state is required")
	}
	data, err := json.Marshal(Envelope{
		CartState: state,
		Timestamp: now.UnixMilli(),
		Version:   SchemaVersion,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "serialize cart")
	}
	return data, nil
}

// Deserialize decodes an envelope and hands its state to MigrateCartState.
func Deserialize(data []byte) (*types.CartState, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "deserialize cart")
	}
	if envelope.CartState == nil {
		return nil, pkgerrors.New(pkgerrors.CodePersistence, "stored envelope has no cart state")
	}
	return MigrateCartState(envelope.CartState, envelope.Version, SchemaVersion)
}

// MigrateCartState returns state untouched when the versions match. No
// migrations are defined, so any other pair is a mismatch.
func MigrateCartState(state *types.CartState, fromVersion, toVersion string) (*types.CartState, error) {
	if fromVersion != toVersion {
		return nil, pkgerrors.New(pkgerrors.CodeSchemaVersionMismatch, "stored cart schema version is not supported").
			WithDetails(map[string]any{"from": fromVersion, "to": toVersion})
	}
	return state, nil
}

func encodeEvent(event types.CartSyncEvent) ([]byte, error) {
	return json.Marshal(event)
}

func decodeEvent(data []byte) (types.CartSyncEvent, error) {
	var event types.CartSyncEvent
	err := json.Unmarshal(data, &event)
	return event, err
}
