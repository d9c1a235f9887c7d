//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	ab "github.com/panyam/authbase"
)

// AutoMigrate runs database migrations for all authbase tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// AccountStore implements ab.AccountStore using GORM
type AccountStore struct {
	db *gorm.DB
}

var _ ab.AccountStore = (*AccountStore)(nil)

// NewAccountStore wraps a gorm handle.  Duplicate-email detection needs
// gorm's dialect error translation, so it is switched on here in case the
// caller opened the handle without it (OpenShared already sets it).
func NewAccountStore(db *gorm.DB) *AccountStore {
	db.Config.TranslateError = true
	return &AccountStore{db: db}
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *ab.Account) error {
	model := AccountToModel(account)
	err := s.db.WithContext(ctx).Create(model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ab.ErrAccountExists
		}
		return ab.NewStoreError("create account", err)
	}
	account.CreatedAt = model.CreatedAt
	account.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string, withSecrets bool) (*ab.Account, error) {
	var model AccountModel
	err := s.db.WithContext(ctx).First(&model, "email = ?", ab.NormalizeEmail(email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ab.ErrAccountNotFound
		}
		return nil, ab.NewStoreError("get account by email", err)
	}
	account := model.ToAccount()
	if !withSecrets {
		blankSecrets(account)
	}
	return account, nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*ab.Account, error) {
	var model AccountModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ab.ErrAccountNotFound
		}
		return nil, ab.NewStoreError("get account by id", err)
	}
	account := model.ToAccount()
	blankSecrets(account)
	return account, nil
}

// UpdateAccount writes only the mutable profile columns.  Callers usually
// hold a secret-blanked read, so a full-row save would null the password
// hash and any outstanding token.
func (s *AccountStore) UpdateAccount(ctx context.Context, account *ab.Account) error {
	result := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"name":           account.Name,
			"image":          account.Image,
			"email_verified": account.EmailVerified,
		})
	if result.Error != nil {
		return ab.NewStoreError("update account", result.Error)
	}
	if result.RowsAffected == 0 {
		return ab.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) SetVerificationToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	result := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"email_verification_token":   tokenHash,
			"email_verification_expires": expires,
		})
	if result.Error != nil {
		return ab.NewStoreError("set verification token", result.Error)
	}
	if result.RowsAffected == 0 {
		return ab.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	result := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_reset_token":   tokenHash,
			"password_reset_expires": expires,
		})
	if result.Error != nil {
		return ab.NewStoreError("set reset token", result.Error)
	}
	if result.RowsAffected == 0 {
		return ab.ErrAccountNotFound
	}
	return nil
}

// ConsumeVerificationToken marks the matching account verified and clears the
// token in a single conditional UPDATE, so a token can only be consumed once
// even under concurrent requests.
func (s *AccountStore) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*ab.Account, error) {
	var account *ab.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model AccountModel
		if err := tx.First(&model, "email_verification_token = ? AND email_verification_expires > ?", tokenHash, now).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ab.ErrTokenInvalid
			}
			return err
		}
		result := tx.Model(&AccountModel{}).
			Where("id = ? AND email_verification_token = ?", model.ID, tokenHash).
			Updates(map[string]any{
				"email_verified":             true,
				"email_verification_token":   nil,
				"email_verification_expires": nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ab.ErrTokenInvalid
		}
		model.EmailVerified = true
		model.EmailVerificationToken = nil
		model.EmailVerificationExpires = nil
		account = model.ToAccount()
		return nil
	})
	if err != nil {
		if errors.Is(err, ab.ErrTokenInvalid) {
			return nil, ab.ErrTokenInvalid
		}
		return nil, ab.NewStoreError("consume verification token", err)
	}
	blankSecrets(account)
	return account, nil
}

func (s *AccountStore) CheckResetToken(ctx context.Context, tokenHash string, now time.Time) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("password_reset_token = ? AND password_reset_expires > ?", tokenHash, now).
		Count(&count).Error
	if err != nil {
		return ab.NewStoreError("check reset token", err)
	}
	if count == 0 {
		return ab.ErrTokenInvalid
	}
	return nil
}

// ConsumeResetToken sets the new password hash and clears the reset token in a
// single conditional UPDATE keyed on the token hash and expiry.
func (s *AccountStore) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string, now time.Time) (*ab.Account, error) {
	var account *ab.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model AccountModel
		if err := tx.First(&model, "password_reset_token = ? AND password_reset_expires > ?", tokenHash, now).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ab.ErrTokenInvalid
			}
			return err
		}
		result := tx.Model(&AccountModel{}).
			Where("id = ? AND password_reset_token = ?", model.ID, tokenHash).
			Updates(map[string]any{
				"password_hash":          newPasswordHash,
				"password_reset_token":   nil,
				"password_reset_expires": nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ab.ErrTokenInvalid
		}
		model.PasswordResetToken = nil
		model.PasswordResetExpires = nil
		account = model.ToAccount()
		return nil
	})
	if err != nil {
		if errors.Is(err, ab.ErrTokenInvalid) {
			return nil, ab.ErrTokenInvalid
		}
		return nil, ab.NewStoreError("consume reset token", err)
	}
	blankSecrets(account)
	return account, nil
}

func (s *AccountStore) LinkProvider(ctx context.Context, id string, provider ab.Provider, providerAccountID, image string) (*ab.Account, error) {
	var account *ab.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model AccountModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ab.ErrAccountNotFound
			}
			return err
		}
		if model.Providers == nil {
			model.Providers = make(ProviderMap)
		}
		if _, linked := model.Providers[provider]; !linked {
			model.Providers[provider] = providerAccountID
		}
		if image != "" {
			model.Image = image
		}
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		account = model.ToAccount()
		return nil
	})
	if err != nil {
		if errors.Is(err, ab.ErrAccountNotFound) {
			return nil, ab.ErrAccountNotFound
		}
		return nil, ab.NewStoreError("link provider", err)
	}
	blankSecrets(account)
	return account, nil
}

func blankSecrets(account *ab.Account) {
	account.PasswordHash = ""
	account.EmailVerificationToken = ""
	account.PasswordResetToken = ""
}
