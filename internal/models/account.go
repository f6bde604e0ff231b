package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthProvider is the sign-in method an account was created with.
type AuthProvider string

const (
	ProviderPassword AuthProvider = "password"
	ProviderGoogle   AuthProvider = "google"
)

// Account is the identity behind a profile. Its ID is the user id used everywhere else.
type Account struct {
	ID            string       `gorm:"primaryKey;size:64"`
	Email         string       `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash  string       `gorm:"size:255"`
	Provider      AuthProvider `gorm:"size:32;not null"`
	GoogleSubject *string      `gorm:"size:255;uniqueIndex"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
