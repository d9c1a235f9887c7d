package authbase

import (
	"context"
	"strings"
	"time"
)

// Provider identifies an external OAuth identity source.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGithub Provider = "github"
)

// Account is the unified identity record.  An account is created either by
// credentials signup or by a first OAuth sign-in, and carries at most one
// linked provider account id per provider kind.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"` // unique, lowercased, trimmed
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`

	// PasswordHash is empty for OAuth-only accounts.  Store reads omit it
	// unless explicitly requested with withSecrets.
	PasswordHash string `json:"password_hash,omitempty"`

	EmailVerified bool `json:"email_verified"`

	// LinkedProviders maps provider kind to the provider's account id.
	LinkedProviders map[Provider]string `json:"linked_providers,omitempty"`

	// Verification and reset tokens are stored only as SHA-256 hashes.
	// A token hash and its expiry are always set and cleared together.
	EmailVerificationToken   string    `json:"email_verification_token,omitempty"`
	EmailVerificationExpires time.Time `json:"email_verification_expires,omitzero"`
	PasswordResetToken       string    `json:"password_reset_token,omitempty"`
	PasswordResetExpires     time.Time `json:"password_reset_expires,omitzero"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPassword reports whether this account can sign in with credentials.
func (a *Account) HasPassword() bool { return a.PasswordHash != "" }

// ProviderID returns the linked provider account id for a provider kind.
func (a *Account) ProviderID(p Provider) (string, bool) {
	id, ok := a.LinkedProviders[p]
	return id, ok
}

// Claims returns the account's public identity claims.  Secrets (password
// hash, token hashes) never appear here.
func (a *Account) Claims() Claims {
	return Claims{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		Image:         a.Image,
		EmailVerified: a.EmailVerified,
	}
}

// Claims is the identity claim set carried in a session.
type Claims struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// NormalizeEmail canonicalizes an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountStore is the persistence contract for accounts.
//
// Implementations must enforce email uniqueness (a racing duplicate create
// fails with ErrAccountExists rather than overwriting) and must perform the
// Consume* operations as a single conditional mutation: the token condition
// is re-checked as part of the update so two concurrent requests cannot both
// consume the same token.
type AccountStore interface {
	// CreateAccount persists a new account.  Returns ErrAccountExists if an
	// account with the same email already exists.
	CreateAccount(ctx context.Context, account *Account) error

	// GetAccountByEmail looks up an account by normalized email.  The
	// password hash and token hashes are blanked unless withSecrets is set.
	// Returns ErrAccountNotFound if no account exists.
	GetAccountByEmail(ctx context.Context, email string, withSecrets bool) (*Account, error)

	// GetAccountByID looks up an account by id, without secrets.
	GetAccountByID(ctx context.Context, id string) (*Account, error)

	// UpdateAccount saves mutations to name, image and verified state.
	UpdateAccount(ctx context.Context, account *Account) error

	// SetVerificationToken stores a verification token hash and expiry on
	// the account in one write.
	SetVerificationToken(ctx context.Context, id string, tokenHash string, expires time.Time) error

	// SetResetToken stores a password reset token hash and expiry on the
	// account in one write.
	SetResetToken(ctx context.Context, id string, tokenHash string, expires time.Time) error

	// ConsumeVerificationToken finds the account holding an unexpired
	// verification token with the given hash, marks the email verified and
	// clears the token fields, all as one conditional mutation.  Returns
	// ErrTokenInvalid when no such account exists (wrong or expired token,
	// or a concurrent request consumed it first).
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*Account, error)

	// CheckResetToken reports whether an unexpired reset token with the
	// given hash exists, without consuming it.  Returns ErrTokenInvalid
	// when it does not.
	CheckResetToken(ctx context.Context, tokenHash string, now time.Time) error

	// ConsumeResetToken finds the account holding an unexpired reset token
	// with the given hash, replaces its password hash and clears the reset
	// token fields in the same mutation.  Returns ErrTokenInvalid when no
	// such account exists.
	ConsumeResetToken(ctx context.Context, tokenHash string, newPasswordHash string, now time.Time) (*Account, error)

	// LinkProvider records provider -> providerAccountID on the account if
	// that provider kind is not linked yet (an existing link for the same
	// kind is never overwritten) and refreshes the account image.
	LinkProvider(ctx context.Context, id string, provider Provider, providerAccountID string, image string) (*Account, error)
}
