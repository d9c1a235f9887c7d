//go:build !wasm
// +build !wasm

package gae

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/datastore"
	ab "github.com/panyam/authbase"
)

// AccountEntity is the Datastore entity for accounts, keyed by account ID
type AccountEntity struct {
	Key           *datastore.Key `datastore:"__key__"`
	Email         string         `datastore:"email"`
	Name          string         `datastore:"name,noindex"`
	Image         string         `datastore:"image,noindex"`
	PasswordHash  string         `datastore:"password_hash,noindex"`
	EmailVerified bool           `datastore:"email_verified"`
	Providers     []byte         `datastore:"providers,noindex"` // JSON encoded

	EmailVerificationToken   string    `datastore:"email_verification_token"`
	EmailVerificationExpires time.Time `datastore:"email_verification_expires,noindex"`
	PasswordResetToken       string    `datastore:"password_reset_token"`
	PasswordResetExpires     time.Time `datastore:"password_reset_expires,noindex"`

	CreatedAt time.Time `datastore:"created_at"`
	UpdatedAt time.Time `datastore:"updated_at"`
}

func (e *AccountEntity) ToAccount() *ab.Account {
	account := &ab.Account{
		ID:                       e.Key.Name,
		Email:                    e.Email,
		Name:                     e.Name,
		Image:                    e.Image,
		PasswordHash:             e.PasswordHash,
		EmailVerified:            e.EmailVerified,
		EmailVerificationToken:   e.EmailVerificationToken,
		EmailVerificationExpires: e.EmailVerificationExpires,
		PasswordResetToken:       e.PasswordResetToken,
		PasswordResetExpires:     e.PasswordResetExpires,
		CreatedAt:                e.CreatedAt,
		UpdatedAt:                e.UpdatedAt,
	}
	if e.Providers != nil {
		json.Unmarshal(e.Providers, &account.LinkedProviders)
	}
	return account
}

func AccountToEntity(a *ab.Account, key *datastore.Key) *AccountEntity {
	var providerBytes []byte
	if a.LinkedProviders != nil {
		providerBytes, _ = json.Marshal(a.LinkedProviders)
	}
	return &AccountEntity{
		Key:                      key,
		Email:                    a.Email,
		Name:                     a.Name,
		Image:                    a.Image,
		PasswordHash:             a.PasswordHash,
		EmailVerified:            a.EmailVerified,
		Providers:                providerBytes,
		EmailVerificationToken:   a.EmailVerificationToken,
		EmailVerificationExpires: a.EmailVerificationExpires,
		PasswordResetToken:       a.PasswordResetToken,
		PasswordResetExpires:     a.PasswordResetExpires,
		CreatedAt:                a.CreatedAt,
		UpdatedAt:                a.UpdatedAt,
	}
}

// EmailEntity is the Datastore entity for email -> account ID mapping.
// Key is the normalized email.
type EmailEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}
