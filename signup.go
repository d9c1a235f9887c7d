package authbase

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignupRequest carries parsed signup input.
type SignupRequest struct {
	Name     string
	Email    string
	Password string
}

// HandleSignup processes user registration.
//
// Outcomes follow the account's verification state:
//   - no account: create one (password hashed, unverified), send the
//     verification email, answer 201 with the new account id
//   - unverified account exists: no new account; re-issue the verification
//     token and answer 200
//   - verified account exists: 400 duplicate
//
// A create that loses the uniqueness race gets the same duplicate response
// as a plain duplicate.
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.Accounts == nil {
		http.Error(w, `{"error": "Signup not configured"}`, http.StatusInternalServerError)
		return
	}

	req, parseErr := a.parseSignupForm(r)
	if parseErr != nil {
		a.handleSignupError(parseErr, w, r)
		return
	}

	if authErr := a.validateSignup(req); authErr != nil {
		a.handleSignupError(authErr, w, r)
		return
	}

	existing, err := a.Accounts.GetAccountByEmail(r.Context(), req.Email, false)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		slog.Error("error looking up account for signup", "err", err)
		a.handleSignupError(NewAuthError(ErrCodeInternal, "Internal server error", ""), w, r)
		return
	}

	if existing != nil {
		if existing.EmailVerified {
			a.handleSignupError(NewAuthError(ErrCodeEmailExists, "User with this email already exists", "email"), w, r)
			return
		}
		// Unverified duplicate: resend instead of creating a second account.
		if err := a.sendVerification(r, existing); err != nil {
			slog.Error("error resending verification", "account", existing.ID, "err", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Account already exists but email is not verified. Verification email resent.",
		})
		return
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		slog.Error("error hashing password", "err", err)
		a.handleSignupError(NewAuthError(ErrCodeInternal, "Internal server error", ""), w, r)
		return
	}

	now := time.Now()
	account := &Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Accounts.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			a.handleSignupError(NewAuthError(ErrCodeEmailExists, "User with this email already exists", "email"), w, r)
			return
		}
		slog.Error("error creating account", "err", err)
		a.handleSignupError(NewAuthError(ErrCodeInternal, "Internal server error", ""), w, r)
		return
	}

	// The verification token was generated and saved even if delivery
	// fails; the user can ask for a resend.
	if err := a.sendVerification(r, account); err != nil {
		slog.Error("error sending verification email", "account", account.ID, "err", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created successfully. Please check your email to verify your account.",
		"user_id": account.ID,
	})
}

// validateSignup applies the input validation rules.  These are safe to
// reveal in detail.
func (a *LocalAuth) validateSignup(req *SignupRequest) *AuthError {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return NewAuthError(ErrCodeMissingField, "Name, email, and password are required", "")
	}
	if len(req.Name) < 2 {
		return NewAuthError(ErrCodeInvalidName, "Name must be at least 2 characters long", "name")
	}
	if !ValidEmail(req.Email) {
		return NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email")
	}
	if authErr := a.policy().Validate(req.Password); authErr != nil {
		return authErr
	}
	return nil
}

// parseSignupForm parses signup form data without validation.
func (a *LocalAuth) parseSignupForm(r *http.Request) (*SignupRequest, *AuthError) {
	contentType := r.Header.Get("Content-Type")
	emailField := a.getEmailField()
	passwordField := a.getPasswordField()

	var name, email, password string

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, NewAuthError("parse_error", "Error parsing form", "")
		}
		name = r.FormValue("name")
		email = r.FormValue(emailField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return nil, NewAuthError("parse_error", "Invalid post body", "")
		}
		if n, ok := data["name"].(string); ok {
			name = n
		}
		if e, ok := data[emailField].(string); ok {
			email = e
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	return &SignupRequest{
		Name:     strings.TrimSpace(name),
		Email:    NormalizeEmail(email),
		Password: password,
	}, nil
}
