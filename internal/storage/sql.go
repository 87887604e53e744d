package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/intellisales-pos/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL keeps entries in the cart_storage_entries table. Its change feed only
// covers writes made through this instance.
type SQL struct {
	conn *gorm.DB
	hub  *Hub
}

func NewSQL(conn *gorm.DB) (*SQL, error) {
	if conn == nil {
		return nil, errors.New("sql connection required")
	}
	return &SQL{conn: conn, hub: NewHub(0)}, nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.StorageEntry
	err := s.conn.WithContext(ctx).Where("storage_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	entry := models.StorageEntry{Key: key, Value: append([]byte{}, value...)}
	err := s.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.hub.Publish(Event{Key: key, Value: entry.Value})
	return nil
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	res := s.conn.WithContext(ctx).Where("storage_key = ?", key).Delete(&models.StorageEntry{})
	if res.Error != nil {
		return fmt.Errorf("remove %s: %w", key, res.Error)
	}
	if res.RowsAffected > 0 {
		s.hub.Publish(Event{Key: key})
	}
	return nil
}

// DeleteUpdatedBefore removes entries last written before cutoff and returns
// how many were removed.
func (s *SQL) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var keys []string
	err := s.conn.WithContext(ctx).Model(&models.StorageEntry{}).
		Where("updated_at < ?", cutoff).
		Pluck("storage_key", &keys).Error
	if err != nil {
		return 0, fmt.Errorf("list stale entries: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	res := s.conn.WithContext(ctx).
		Where("storage_key IN ? AND updated_at < ?", keys, cutoff).
		Delete(&models.StorageEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale entries: %w", res.Error)
	}
	for _, key := range keys {
		s.hub.Publish(Event{Key: key})
	}
	return res.RowsAffected, nil
}

func (s *SQL) Watch(ctx context.Context, fn func(Event)) (func(), error) {
	return s.hub.Watch(ctx, fn)
}

func (s *SQL) Close() error {
	return s.hub.Close()
}
