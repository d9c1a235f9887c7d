package authbase

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Auth ties the pieces together: it owns the session manager, the session
// issuer, the resolver and the route mux that host applications mount.
type Auth struct {
	mux        *http.ServeMux
	Session    *scs.SessionManager
	Middleware Middleware

	// Optional name used as a prefix for defaults.
	AppName string

	// Name of the session variable where the session token is stored.
	AuthTokenSessionVar string

	// Must be passed in.
	Accounts AccountStore

	// Issuer signs and verifies session tokens.  Populated by
	// EnsureDefaults when unset.
	Issuer *SessionIssuer

	// All the domains where session cookies are set on login and cleared
	// on logout.
	CookieDomains []string

	// How long a session cookie is valid for.  Defaults to 1 day.
	SessionTimeoutInSeconds int
}

func New(appName string) *Auth {
	return (&Auth{AppName: appName}).EnsureDefaults()
}

func (a *Auth) EnsureDefaults() *Auth {
	if a.AppName == "" {
		a.AppName = "Authbase"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.Issuer == nil {
		a.Issuer = &SessionIssuer{}
	}
	if a.Issuer.Issuer == "" {
		a.Issuer.Issuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.Issuer.SecretKey == "" {
		a.Issuer.SecretKey = strings.TrimSpace(os.Getenv("AUTHBASE_JWT_SECRET_KEY"))
		if a.Issuer.SecretKey == "" {
			a.Issuer.SecretKey = "MyTestJWTSecretKey123456"
		}
	}
	if a.Issuer.TTL <= 0 {
		a.Issuer.TTL = time.Duration(a.SessionTimeoutInSeconds) * time.Second
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.Issuer.VerifySession
	}
	return a
}

func (a *Auth) Handler() http.Handler {
	return a.setupRoutes().mux
}

// AddAuth mounts a provider handler (e.g. an oauth2 Google or Github
// handler) under the given prefix.
func (a *Auth) AddAuth(prefix string, handler http.Handler) *Auth {
	a.setupRoutes()
	a.EnsureDefaults()
	prefix = strings.TrimSuffix(prefix, "/")
	log.Println("Adding Auth for prefix: ", prefix)
	// Register the handler at prefix/ (with trailing slash) for subtree
	// matching, so the handler receives /google/, /google/callback/, etc.
	withSlashPattern := prefix + "/"
	a.mux.Handle(withSlashPattern, http.StripPrefix(prefix, handler))

	// Requests to the bare prefix redirect to the trailing-slash form.
	// r.RequestURI preserves any parent prefixes a parent StripPrefix
	// removed (e.g. /auth/google even though this mux only sees /google).
	a.mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		origPath := r.RequestURI
		if idx := strings.Index(origPath, "?"); idx != -1 {
			origPath = origPath[:idx]
		}
		target := origPath + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		// 308 preserves the HTTP method; 301 would turn POSTs into GETs.
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})

	return a
}

// AddLocal mounts the email/password operation surface.
func (a *Auth) AddLocal(local *LocalAuth) *Auth {
	a.setupRoutes()
	a.EnsureDefaults()
	if local.HandleClaims == nil {
		local.HandleClaims = func(claims Claims, w http.ResponseWriter, r *http.Request) {
			a.setLoggedInClaims(&claims, w, r)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": claims})
		}
	}
	a.mux.Handle("POST /login", local)
	a.mux.HandleFunc("POST /signup", local.HandleSignup)
	a.mux.HandleFunc("GET /verify-email", local.HandleVerifyEmail)
	a.mux.HandleFunc("POST /resend-verification", local.HandleResendVerification)
	a.mux.HandleFunc("POST /forgot-password", local.HandleForgotPassword)
	a.mux.HandleFunc("GET /verify-reset-token", local.HandleVerifyResetToken)
	a.mux.HandleFunc("POST /reset-password", local.HandleResetPassword)
	return a
}

func (a *Auth) setupRoutes() *Auth {
	if a.mux == nil {
		a.mux = http.NewServeMux()
		a.mux.HandleFunc("/logout", a.onLogout)
	}
	return a
}

func (a *Auth) onLogout(w http.ResponseWriter, r *http.Request) {
	a.setLoggedInClaims(nil, w, r)
	toUrl := r.URL.Query()["to"]
	if len(toUrl) == 0 || toUrl[0] == "" {
		fmt.Fprintf(w, "Logged Out")
	} else {
		http.Redirect(w, r, toUrl[0], http.StatusFound)
	}
}

// SaveUserAndRedirect is called by OAuth callback handlers after a
// successful provider flow.  It runs the linking resolver, and on success
// refreshes the claims from the store once (to pick up the link and image
// the resolver just wrote) before issuing the session.
func (a *Auth) SaveUserAndRedirect(profile OAuthProfile, w http.ResponseWriter, r *http.Request) {
	resolver := &Resolver{Accounts: a.Accounts}
	result, err := resolver.ResolveOAuthSignIn(r.Context(), profile)
	if err != nil {
		slog.Error("oauth sign-in failed", "provider", profile.Provider, "err", err)
		http.Error(w, "Sign in failed", http.StatusInternalServerError)
		return
	}
	if result.Outcome == LinkOutcomeRejected {
		// The security gate is explicit and non-uniform: the user must be
		// told to verify first.
		writeAuthError(w, NewAuthError(ErrCodeOAuthConflict, result.Reason.Error(), "email"))
		return
	}

	claims := result.Account.Claims()
	if fresh, err := a.Issuer.RefreshClaims(r.Context(), a.Accounts, claims); err == nil {
		claims = fresh
	} else {
		slog.Warn("error refreshing claims after oauth sign-in", "account", claims.ID, "err", err)
	}

	a.setLoggedInClaims(&claims, w, r)

	// Auth done - go back to where we need to be.
	callbackURL := "/"
	callbackURLCookie, _ := r.Cookie("oauthCallbackURL")
	if callbackURLCookie != nil {
		callbackURL = callbackURLCookie.Value
	}
	if callbackURL == "" {
		callbackURL = "/"
	}
	u, _ := url.Parse(callbackURL)
	if u != nil && u.Scheme == "" {
		callbackURL = os.Getenv("OAUTH2_BASE_URL") + callbackURL
	}
	// Delete it too so it wont be used for subsequent redirects.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthCallbackURL",
		Value:  "",
		Path:   "/",
		MaxAge: -1, Expires: time.Now(),
	})
	http.Redirect(w, r, callbackURL, http.StatusFound)
}

// setLoggedInClaims sets the session token on the configured cookie domains
// or, with nil claims, clears them (logout).
func (a *Auth) setLoggedInClaims(claims *Claims, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()
	domains := a.CookieDomains
	if slices.Index(a.CookieDomains, "") < 0 { // default domain
		domains = append(domains, "")
	}
	for _, cookieDomain := range domains {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			Value:  "",
			MaxAge: -1, Expires: time.Now(),
			Domain: cookieDomain,
			Path:   "/",
		})

		if claims != nil {
			if a.Session != nil {
				a.Session.Put(r.Context(), "loggedInUserId", claims.ID)
			}
			http.SetCookie(w, &http.Cookie{
				Name:    "loggedInUserId",
				Value:   claims.ID,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
			})

			tokenString, err := a.Issuer.IssueSession(*claims)
			if err != nil {
				slog.Info("error signing session token", "err", err)
			}

			if a.Session != nil {
				a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)
			}
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenSessionVar,
				Value:   tokenString,
				Domain:  cookieDomain,
				Path:    "/",
				Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
			})
			return tokenString
		} else {
			// Clear the session and cookie values.
			if a.Session != nil {
				if err := a.Session.Clear(r.Context()); err != nil {
					slog.Warn("error clearing session ", "err", err)
				}
			}
			http.SetCookie(w, &http.Cookie{
				Name:    "loggedInUserId",
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenSessionVar,
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
	}
	return ""
}
