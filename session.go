package authbase

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionIssuer projects an authenticated identity into a signed claim set
// and verifies it on subsequent requests without touching the store.
type SessionIssuer struct {
	// Issuer goes into the "iss" claim.
	Issuer string

	// SecretKey signs tokens with HS256.
	SecretKey string

	// TTL is the session lifetime.  Defaults to 24h.
	TTL time.Duration
}

func (s *SessionIssuer) ttl() time.Duration {
	if s.TTL <= 0 {
		return 24 * time.Hour
	}
	return s.TTL
}

// IssueSession signs the claim set into a session token.
func (s *SessionIssuer) IssueSession(claims Claims) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":            s.Issuer,
		"sub":            claims.ID,
		"iat":            now.Unix(),
		"exp":            now.Add(s.ttl()).Unix(),
		"email":          claims.Email,
		"name":           claims.Name,
		"image":          claims.Image,
		"email_verified": claims.EmailVerified,
	})
	signed, err := token.SignedString([]byte(s.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// VerifySession parses and verifies a session token and re-derives the
// identity claims from it.  No store query happens here.
func (s *SessionIssuer) VerifySession(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("invalid session token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || mapClaims == nil {
		return Claims{}, fmt.Errorf("claims is not a map")
	}
	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, fmt.Errorf("subject not found")
	}

	claims := Claims{ID: sub}
	if v, ok := mapClaims["email"].(string); ok {
		claims.Email = v
	}
	if v, ok := mapClaims["name"].(string); ok {
		claims.Name = v
	}
	if v, ok := mapClaims["image"].(string); ok {
		claims.Image = v
	}
	if v, ok := mapClaims["email_verified"].(bool); ok {
		claims.EmailVerified = v
	}
	return claims, nil
}

// RefreshClaims re-reads the account once and returns fresh claims.  This
// runs immediately after an OAuth sign-in so the session captures linking
// and image updates the resolver just made; later requests use the claim
// set as-is.
func (s *SessionIssuer) RefreshClaims(ctx context.Context, store AccountStore, claims Claims) (Claims, error) {
	account, err := store.GetAccountByID(ctx, claims.ID)
	if err != nil {
		return claims, err
	}
	fresh := account.Claims()
	if fresh.Image == "" {
		// Keep the provider-supplied image when the store has none yet.
		fresh.Image = claims.Image
	}
	return fresh, nil
}
