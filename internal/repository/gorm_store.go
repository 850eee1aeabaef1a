package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ally-360/pos-terminal/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps snapshot keys in a SQL table (SQLite on the terminal, or a
// shared Postgres). One row per key, upserted on every write.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var e model.SnapshotEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	e := model.SnapshotEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

func (s *GormStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&model.SnapshotEntry{}).Error
}

var _ KeyValueStore = (*GormStore)(nil)
