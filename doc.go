// Package authbase provides email/password and OAuth authentication for Go
// applications, built around a single Account record per user.
//
// Authbase covers the full credential lifecycle: signup with email
// verification, password reset, Google/GitHub OAuth sign-in with
// account linking, and signed session claims.
//
// # Architecture
//
// Account: the unified identity record. An account is created by a
// credentials signup or a first OAuth sign-in and holds the email, the
// optional password hash, the verification state, and at most one linked
// provider account id per provider kind.
//
// Token service: single-use, time-bound secrets for verification and reset.
// Only a SHA-256 digest of a token is ever persisted; the raw value exists
// only inside the link mailed to the user.
//
// Resolver: the account-linking state machine run on every OAuth callback.
// It creates, links, or rejects (an unverified account with the same email
// is a takeover target, so linking onto it is refused).
//
// SessionIssuer: projects an authenticated identity into a signed claim set
// and verifies it on later requests without store queries.
//
// # Basic Usage
//
// Set up a store and the local auth surface:
//
//	import (
//	    "github.com/panyam/authbase"
//	    "github.com/panyam/authbase/stores"
//	)
//
//	accounts := stores.NewFSAccountStore("/path/to/storage")
//
//	localAuth := &authbase.LocalAuth{
//	    Accounts:    accounts,
//	    EmailSender: &authbase.ConsoleEmailSender{},
//	    BaseURL:     "https://yourapp.com",
//	}
//
// Wire everything through the Auth mux:
//
//	auth := authbase.New("MyApp")
//	auth.Accounts = accounts
//	auth.AddLocal(localAuth)
//	auth.AddAuth("/google", oauth2.NewGoogleOAuth2("", "", "", auth.SaveUserAndRedirect))
//	http.Handle("/auth/", http.StripPrefix("/auth", auth.Handler()))
//
// # Store Implementations
//
// The stores package has a file-based AccountStore for development and
// tests; stores/gorm and stores/gae provide relational and Datastore
// backends for production. All backends enforce email uniqueness and
// consume tokens with a single conditional mutation, so racing requests
// cannot double-spend a token or create duplicate accounts.
//
// # Security
//
// Passwords are hashed with bcrypt at cost 12. Verification and reset
// tokens are 32-byte random values; stores hold only their SHA-256 digest
// next to an absolute expiry (24 hours for verification, 1 hour for reset)
// and clear both on consumption. Enumeration-sensitive flows
// (forgot-password, resend-verification) answer identically whether or not
// an account exists.
package authbase
