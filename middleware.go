package authbase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type claimsContextKey string

const claimsKey claimsContextKey = "authbaseClaims"

// Middleware extracts the logged-in identity from a request: first from the
// server-side session, then from the session token in a header or cookie.
// The displayed identity comes from the claim set; no store query happens
// per request.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (Claims, error)
}

// EnsureReasonableDefaults fills in unset config values.
func (a *Middleware) EnsureReasonableDefaults() {
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// ClaimsFromContext returns the claims placed on the request by
// ExtractUser/EnsureUser, if any.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

// GetLoggedInClaims resolves the identity claims for the current request.
func (a *Middleware) GetLoggedInClaims(r *http.Request) (Claims, bool) {
	if claims, ok := ClaimsFromContext(r.Context()); ok && claims.ID != "" {
		return claims, true
	}

	if a.VerifyToken == nil {
		slog.Warn("No session token verifier found.  Please set one")
		return Claims{}, false
	}

	authTokens := r.Header.Values(a.AuthTokenHeaderName)
	for i, t := range authTokens {
		authTokens[i] = strings.TrimPrefix(t, "Bearer ")
	}
	if a.SessionGetter != nil {
		if v := a.SessionGetter(r, a.AuthTokenCookieName); v != nil {
			if t, ok := v.(string); ok && t != "" {
				authTokens = append(authTokens, t)
			}
		}
	}
	for _, cookie := range r.Cookies() {
		if cookie.Name == a.AuthTokenCookieName && len(cookie.Value) > 0 {
			authTokens = append(authTokens, cookie.Value)
		}
	}

	for _, authToken := range authTokens {
		claims, err := a.VerifyToken(authToken)
		if err == nil && claims.ID != "" {
			return claims, true
		} else if err != nil {
			slog.Warn("Error verifying session token: ", "error", err)
		}
	}

	return Claims{}, false
}

// ExtractUser loads the claims for the request, if present, and makes them
// available to downstream handlers.  It performs no redirects.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			claims, ok := a.GetLoggedInClaims(r)
			if ok {
				r = a.setClaims(claims, r)
			}
			next.ServeHTTP(w, r)
		},
	)
}

// EnsureUser is ExtractUser plus the requirement that a user is logged in;
// otherwise it redirects to the configured login URL or answers 401.
func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			claims, ok := a.GetLoggedInClaims(r)
			if !ok {
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					originalUrl := r.URL.Path
					encodedUrl := strings.Replace(url.QueryEscape(originalUrl), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					http.Error(w, "Login Required", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, a.setClaims(claims, r))
		},
	)
}

// setClaims makes the claims available as a request-scoped value.
func (a *Middleware) setClaims(claims Claims, r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
}
