package cart

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/revoshop/internal/models"
)

type GormStorage struct {
	DB *gorm.DB
}

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{DB: db}
}

func (s *GormStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.CartEntry
	if err := s.DB.WithContext(ctx).Where("cart_key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(entry.Value), nil
}

func (s *GormStorage) Set(ctx context.Context, key string, value []byte) error {
	entry := models.CartEntry{
		CartKey:   key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now().UTC(),
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *GormStorage) Delete(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).Where("cart_key = ?", key).Delete(&models.CartEntry{}).Error
}
