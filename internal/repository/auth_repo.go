package repository

import (
	"context"
	"errors"

	"room-relay-backend/internal/models"

	"gorm.io/gorm"
)

type AuthRepository struct {
	db *gorm.DB
}

func NewAuthRepo(db *gorm.DB) *AuthRepository {
	return &AuthRepository{db: db}
}

// GetMasterHash returns the stored owner password hash
func (r *AuthRepository) GetMasterHash(ctx context.Context) (string, error) {
	var cred models.MasterCredential
	err := r.db.WithContext(ctx).Order("id ASC").First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCredentialNotSet
		}
		return "", err
	}
	return cred.PasswordHash, nil
}

// SetMasterHash stores the owner password hash, replacing any existing one
func (r *AuthRepository) SetMasterHash(ctx context.Context, hash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.MasterCredential{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.MasterCredential{PasswordHash: hash}).Error
	})
}
