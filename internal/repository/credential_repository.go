package repository

import (
	"arichat/internal/entity"

	"gorm.io/gorm"
)

type CredentialRepository interface {
	Create(c *entity.Credential) error
	GetByEmail(email string) (*entity.Credential, error)
}

type SQLiteCredentialRepository struct {
	db *gorm.DB
}

func NewSQLiteCredentialRepository(db *gorm.DB) CredentialRepository {
	return &SQLiteCredentialRepository{db}
}

func (r *SQLiteCredentialRepository) Create(c *entity.Credential) error {
	return r.db.Create(c).Error
}

func (r *SQLiteCredentialRepository) GetByEmail(email string) (*entity.Credential, error) {
	var cred entity.Credential
	if err := r.db.Where("email = ?", email).First(&cred).Error; err != nil {
		return nil, err
	}
	return &cred, nil
}
