package auth

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/revoshop/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &user, nil
}

// CreateUserIfNotExists reports whether a new row was inserted.
func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) (bool, error) {
	tx := r.DB.WithContext(ctx).Where("email = ?", u.Email).FirstOrCreate(u)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *GormRepo) SaveSession(ctx context.Context, s *models.Session) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *GormRepo) RevokeSession(ctx context.Context, jti string) error {
	return r.DB.WithContext(ctx).Model(&models.Session{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
}

// SessionActive reports whether jti names a stored, unrevoked, unexpired session.
func (r *GormRepo) SessionActive(ctx context.Context, jti string) (bool, error) {
	var s models.Session
	err := r.DB.WithContext(ctx).Where("jti = ?", jti).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !s.Revoked && time.Now().Before(s.ExpiresAt), nil
}
