package enums

import "fmt"

// SyncEventType names the change a cross-context notification announces.
type SyncEventType string

const (
	SyncEventCartUpdated   SyncEventType = "CART_UPDATED"
	SyncEventCartCleared   SyncEventType = "CART_CLEARED"
	SyncEventItemAdded     SyncEventType = "ITEM_ADDED"
	SyncEventItemRemoved   SyncEventType = "ITEM_REMOVED"
	SyncEventTotalsChanged SyncEventType = "TOTALS_CHANGED"
)

var validSyncEventTypes = []SyncEventType{
	SyncEventCartUpdated,
	SyncEventCartCleared,
	SyncEventItemAdded,
	SyncEventItemRemoved,
	SyncEventTotalsChanged,
}

// String implements fmt.Stringer.
func (s SyncEventType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SyncEventType.
func (s SyncEventType) IsValid() bool {
	for _, candidate := range validSyncEventTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSyncEventType converts raw input into a SyncEventType.
func ParseSyncEventType(value string) (SyncEventType, error) {
	for _, candidate := range validSyncEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync event type %q", value)
}
