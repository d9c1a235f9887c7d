//go:build !wasm
// +build !wasm

package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	ab "github.com/panyam/authbase"
)

// ProviderMap stores the provider -> provider account id links as JSON.
type ProviderMap map[ab.Provider]string

func (m ProviderMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *ProviderMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// AccountModel is the GORM model for accounts.  Token hashes and their
// expiries are nullable so that "cleared" is distinct from "zero value".
type AccountModel struct {
	ID            string      `gorm:"primaryKey;size:64"`
	Email         string      `gorm:"uniqueIndex;size:255"`
	Name          string      `gorm:"size:255"`
	Image         string      `gorm:"size:1024"`
	PasswordHash  *string     `gorm:"size:128"`
	EmailVerified bool        `gorm:"default:false"`
	Providers     ProviderMap `gorm:"type:jsonb"`

	EmailVerificationToken   *string `gorm:"size:64;index"`
	EmailVerificationExpires *time.Time
	PasswordResetToken       *string `gorm:"size:64;index"`
	PasswordResetExpires     *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *ab.Account {
	account := &ab.Account{
		ID:              m.ID,
		Email:           m.Email,
		Name:            m.Name,
		Image:           m.Image,
		EmailVerified:   m.EmailVerified,
		LinkedProviders: m.Providers,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.PasswordHash != nil {
		account.PasswordHash = *m.PasswordHash
	}
	if m.EmailVerificationToken != nil {
		account.EmailVerificationToken = *m.EmailVerificationToken
	}
	if m.EmailVerificationExpires != nil {
		account.EmailVerificationExpires = *m.EmailVerificationExpires
	}
	if m.PasswordResetToken != nil {
		account.PasswordResetToken = *m.PasswordResetToken
	}
	if m.PasswordResetExpires != nil {
		account.PasswordResetExpires = *m.PasswordResetExpires
	}
	return account
}

func AccountToModel(a *ab.Account) *AccountModel {
	model := &AccountModel{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		Image:         a.Image,
		EmailVerified: a.EmailVerified,
		Providers:     ProviderMap(a.LinkedProviders),
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.PasswordHash != "" {
		model.PasswordHash = &a.PasswordHash
	}
	if a.EmailVerificationToken != "" {
		model.EmailVerificationToken = &a.EmailVerificationToken
		expires := a.EmailVerificationExpires
		model.EmailVerificationExpires = &expires
	}
	if a.PasswordResetToken != "" {
		model.PasswordResetToken = &a.PasswordResetToken
		expires := a.PasswordResetExpires
		model.PasswordResetExpires = &expires
	}
	return model
}
