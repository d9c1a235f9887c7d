package authbase

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor applied when hashing passwords.
const BcryptCost = 12

// PasswordPolicy is the configurable strength rule applied at signup and
// reset.  The zero value is not usable; use DefaultPasswordPolicy.
type PasswordPolicy struct {
	MinLength     int
	RequireLetter bool
	RequireDigit  bool
}

// DefaultPasswordPolicy requires at least 8 characters with at least one
// letter and one digit.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8, RequireLetter: true, RequireDigit: true}
}

// Validate checks a candidate password against the policy.  The same
// message is returned wherever the policy is enforced.
func (p PasswordPolicy) Validate(password string) *AuthError {
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if len(password) < p.MinLength ||
		(p.RequireLetter && !hasLetter) ||
		(p.RequireDigit && !hasDigit) {
		return NewAuthError(ErrCodeWeakPassword, p.Description(), "password")
	}
	return nil
}

// Description renders the policy as the user-facing validation message.
func (p PasswordPolicy) Description() string {
	msg := fmt.Sprintf("Password must be at least %d characters long", p.MinLength)
	switch {
	case p.RequireLetter && p.RequireDigit:
		msg += " and include at least one letter and one number"
	case p.RequireLetter:
		msg += " and include at least one letter"
	case p.RequireDigit:
		msg += " and include at least one number"
	}
	return msg
}

// HashPassword hashes a plaintext password for storage.  Hashing happens
// once at password-set time; comparison uses CheckPassword.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext candidate against a stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
