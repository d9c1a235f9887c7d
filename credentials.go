package authbase

import (
	"context"
	"errors"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether value looks like an email address.
func ValidEmail(value string) bool {
	return emailRegex.MatchString(value)
}

// Authenticator validates email+password sign-in against the account store.
type Authenticator struct {
	Accounts AccountStore
}

// Authenticate looks up the account by normalized email (requesting the
// password hash, which default reads exclude) and verifies the password.
//
// Failure modes, in check order:
//   - ErrNoSuchAccount: no account with this email
//   - ErrOAuthOnlyAccount: account exists but has no password set
//   - ErrEmailNotVerified: verification pending; checked before the
//     password so an unverified caller never learns whether the password
//     was correct
//   - ErrInvalidCredentials: password mismatch
//
// On success the account's public claims are returned, never the hash.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (Claims, error) {
	account, err := a.Accounts.GetAccountByEmail(ctx, NormalizeEmail(email), true)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Claims{}, ErrNoSuchAccount
		}
		return Claims{}, err
	}
	if !account.HasPassword() {
		return Claims{}, ErrOAuthOnlyAccount
	}
	if !account.EmailVerified {
		return Claims{}, ErrEmailNotVerified
	}
	if !CheckPassword(account.PasswordHash, password) {
		return Claims{}, ErrInvalidCredentials
	}
	return account.Claims(), nil
}
