package authbase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HandleClaimsFunc is called after a successful authentication with the
// identity claims to place into a session.
type HandleClaimsFunc func(claims Claims, w http.ResponseWriter, r *http.Request)

// Uniform responses for enumeration-safe flows.  These read identically
// whether or not an account exists and whether or not delivery succeeded.
const (
	forgotPasswordMessage     = "If an account with that email exists, we have sent a password reset link."
	resendVerificationMessage = "If an account exists, a verification email has been sent."
)

// LocalAuth serves the email/password operation surface: login, signup,
// email verification, resend, forgot/reset password.
type LocalAuth struct {
	// Accounts is the backing store.  Required.
	Accounts AccountStore

	// EmailSender delivers verification and reset messages.  Optional; when
	// nil the flows that need it still answer uniformly.
	EmailSender EmailSender

	// BaseURL prefixes generated verification/reset links.
	BaseURL string

	// Policy is the password strength rule.  Defaults to
	// DefaultPasswordPolicy.
	Policy *PasswordPolicy

	// Handler called after successful authentication.
	HandleClaims HandleClaimsFunc

	// Form field names.  Default to "email" and "password".
	EmailField    string
	PasswordField string

	// OnSignupError is called when signup fails.  If nil, returns JSON.
	OnSignupError AuthErrorHandler

	// OnLoginError is called when login fails.  If nil, returns JSON.
	OnLoginError AuthErrorHandler
}

func (a *LocalAuth) policy() PasswordPolicy {
	if a.Policy != nil {
		return *a.Policy
	}
	return DefaultPasswordPolicy()
}

func (a *LocalAuth) getEmailField() string {
	if a.EmailField != "" {
		return a.EmailField
	}
	return "email"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

// ServeHTTP handles credential login requests.
func (a *LocalAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.Accounts == nil {
		http.Error(w, `{"error": "Login not configured"}`, http.StatusInternalServerError)
		return
	}

	email, password, err := a.parseLoginForm(r)
	if err != nil {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, err.Error(), "email"), w, r)
		return
	}

	auth := &Authenticator{Accounts: a.Accounts}
	claims, err := auth.Authenticate(r.Context(), email, password)
	if err != nil {
		// The unverified state is surfaced explicitly so the user knows to
		// verify first.  Everything else collapses into one response that
		// reveals neither account existence nor password correctness.
		switch {
		case errors.Is(err, ErrEmailNotVerified):
			a.handleLoginError(NewAuthError(ErrCodeNotVerified, "Please verify your email before logging in", "email"), w, r)
		case errors.Is(err, ErrNoSuchAccount), errors.Is(err, ErrOAuthOnlyAccount), errors.Is(err, ErrInvalidCredentials):
			a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password"), w, r)
		default:
			slog.Error("error validating credentials", "err", err)
			a.handleLoginError(NewAuthError(ErrCodeInternal, "Internal server error", ""), w, r)
		}
		return
	}

	a.HandleClaims(claims, w, r)
}

func (a *LocalAuth) parseLoginForm(r *http.Request) (email, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	emailField := a.getEmailField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		email = r.FormValue(emailField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		if e, ok := data[emailField].(string); ok {
			email = e
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password required")
	}

	return email, password, nil
}

// HandleVerifyEmail consumes a verification token from the query string and
// marks the account's email verified.  Tokens are single-use: the store
// clears the hash and expiry in the same mutation that flips the flag.
func (a *LocalAuth) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeAuthError(w, NewAuthError(ErrCodeMissingField, "Verification token is required", "token"))
		return
	}

	_, err := a.Accounts.ConsumeVerificationToken(r.Context(), HashToken(token), time.Now())
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			writeAuthError(w, NewAuthError(ErrCodeInvalidToken, "Invalid or expired verification token", "token"))
			return
		}
		slog.Error("error consuming verification token", "err", err)
		writeAuthError(w, NewAuthError(ErrCodeInternal, "Internal server error", ""))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Email verified successfully. You can now log in.",
	})
}

// HandleResendVerification re-issues a verification token for an unverified
// account.  The response is uniform regardless of whether the account
// exists, is already verified, or delivery failed.
func (a *LocalAuth) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	email, _ := a.parseSingleField(r, a.getEmailField())
	if email != "" {
		account, err := a.Accounts.GetAccountByEmail(r.Context(), NormalizeEmail(email), false)
		if err == nil && !account.EmailVerified {
			if err := a.sendVerification(r, account); err != nil {
				slog.Error("error resending verification", "account", account.ID, "err", err)
			}
		} else if err != nil && !errors.Is(err, ErrAccountNotFound) {
			slog.Error("error looking up account for resend", "err", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": resendVerificationMessage})
}

// HandleForgotPassword issues a reset token for accounts that have a
// password.  Always answers uniformly: OAuth-only and unknown emails get
// the same response as real ones, and delivery failures stay internal.
func (a *LocalAuth) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	email, _ := a.parseSingleField(r, a.getEmailField())
	if email != "" {
		a.startPasswordReset(r, NormalizeEmail(email))
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": forgotPasswordMessage})
}

func (a *LocalAuth) startPasswordReset(r *http.Request, email string) {
	account, err := a.Accounts.GetAccountByEmail(r.Context(), email, true)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			slog.Error("error looking up account for reset", "err", err)
		}
		return
	}
	// OAuth-only accounts have no password to reset.
	if !account.HasPassword() {
		return
	}

	raw, err := IssueToken()
	if err != nil {
		slog.Error("error generating reset token", "err", err)
		return
	}
	expires := time.Now().Add(TokenTTL(TokenPurposePasswordReset))
	if err := a.Accounts.SetResetToken(r.Context(), account.ID, HashToken(raw), expires); err != nil {
		slog.Error("error saving reset token", "account", account.ID, "err", err)
		return
	}

	// A saved token with a failed send is fine: the user asks again and a
	// new token replaces this one.  Nothing is rolled back.
	if a.EmailSender != nil {
		resetLink := fmt.Sprintf("%s/auth/reset-password?token=%s", a.BaseURL, raw)
		if err := a.EmailSender.SendPasswordResetEmail(account.Email, resetLink, account.Name); err != nil {
			log.Printf("Error sending reset email for account %s: %v", account.ID, err)
		}
	}
}

// HandleVerifyResetToken checks a reset token without consuming it, so the
// reset form can reject dead links before asking for a new password.
func (a *LocalAuth) HandleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeAuthError(w, NewAuthError(ErrCodeMissingField, "Reset token is required", "token"))
		return
	}

	if err := a.Accounts.CheckResetToken(r.Context(), HashToken(token), time.Now()); err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			writeAuthError(w, NewAuthError(ErrCodeInvalidToken, "Invalid or expired reset token", "token"))
			return
		}
		slog.Error("error checking reset token", "err", err)
		writeAuthError(w, NewAuthError(ErrCodeInternal, "Internal server error", ""))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Valid reset token"})
}

// HandleResetPassword consumes a reset token and replaces the password.
// The store applies the new hash and clears the token in one conditional
// mutation keyed on the still-valid token, so concurrent submissions cannot
// both succeed.
func (a *LocalAuth) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	token, password, err := a.parseResetForm(r)
	if err != nil {
		writeAuthError(w, NewAuthError(ErrCodeMissingField, "Token and password are required", ""))
		return
	}

	if authErr := a.policy().Validate(password); authErr != nil {
		writeAuthError(w, authErr)
		return
	}

	newHash, err := HashPassword(password)
	if err != nil {
		slog.Error("error hashing password", "err", err)
		writeAuthError(w, NewAuthError(ErrCodeInternal, "Internal server error", ""))
		return
	}

	_, err = a.Accounts.ConsumeResetToken(r.Context(), HashToken(token), newHash, time.Now())
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			writeAuthError(w, NewAuthError(ErrCodeInvalidToken, "Invalid or expired reset token", "token"))
			return
		}
		slog.Error("error consuming reset token", "err", err)
		writeAuthError(w, NewAuthError(ErrCodeInternal, "Internal server error", ""))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password has been reset successfully",
	})
}

func (a *LocalAuth) parseResetForm(r *http.Request) (token, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("invalid form data")
		}
		token = r.FormValue("token")
		password = r.FormValue(a.getPasswordField())
	} else {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		token, _ = data["token"].(string)
		password, _ = data[a.getPasswordField()].(string)
	}
	if token == "" || password == "" {
		return "", "", fmt.Errorf("token and password required")
	}
	return token, password, nil
}

// parseSingleField reads one field from a form or JSON body.
func (a *LocalAuth) parseSingleField(r *http.Request, field string) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("invalid form data")
		}
		return r.FormValue(field), nil
	}
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
		return "", fmt.Errorf("invalid post body")
	}
	value, _ := data[field].(string)
	return value, nil
}

// sendVerification issues a fresh verification token, saves its hash and
// mails the link.  The raw token exists only in the outgoing message.
func (a *LocalAuth) sendVerification(r *http.Request, account *Account) error {
	raw, err := IssueToken()
	if err != nil {
		return err
	}
	expires := time.Now().Add(TokenTTL(TokenPurposeEmailVerification))
	if err := a.Accounts.SetVerificationToken(r.Context(), account.ID, HashToken(raw), expires); err != nil {
		return err
	}

	if a.EmailSender == nil {
		return nil
	}
	verificationLink := fmt.Sprintf("%s/auth/verify-email?token=%s", a.BaseURL, raw)
	return a.EmailSender.SendVerificationEmail(account.Email, verificationLink, account.Name)
}

// handleLoginError handles login errors using the configured handler or
// default JSON.
func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	writeAuthError(w, err)
}

// handleSignupError handles signup errors using the configured handler or
// default JSON.
func (a *LocalAuth) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnSignupError != nil && a.OnSignupError(err, w, r) {
		return
	}
	writeAuthError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeAuthError(w http.ResponseWriter, err *AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Message,
		"code":  err.Code,
		"field": err.Field,
	})
}
