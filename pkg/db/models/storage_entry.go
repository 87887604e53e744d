package models

import "time"

// StorageEntry is one key of the durable cart store.
type StorageEntry struct {
	Key       string    `gorm:"column:storage_key;primaryKey"`
	Value     []byte    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (StorageEntry) TableName() string {
	return "cart_storage_entries"
}
