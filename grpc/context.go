// Package grpc provides authentication utilities for carrying session
// tokens between HTTP handlers and gRPC services via metadata, and for
// verifying them on the server side.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	ab "github.com/panyam/authbase"
)

// Default metadata keys for authentication context.
// These can be customized via Config if needed.
const (
	// DefaultMetadataKeyToken is the default gRPC metadata key carrying the session token
	DefaultMetadataKeyToken = "authorization"

	// DefaultMetadataKeyAccountID is the default gRPC metadata key for a pre-verified account ID,
	// set by a trusted gateway that has already verified the session
	DefaultMetadataKeyAccountID = "x-account-id"
)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// MetadataKeyToken is the gRPC metadata key carrying the session token.
	// Defaults to "authorization"; a "Bearer " prefix is stripped if present.
	MetadataKeyToken string

	// MetadataKeyAccountID is the gRPC metadata key for a pre-verified account ID.
	// Only used when TrustGateway is enabled. Defaults to "x-account-id".
	MetadataKeyAccountID string

	// TrustGateway when true accepts the account ID header without verifying a token.
	// Should only be enabled behind a gateway that strips the header from external requests.
	TrustGateway bool

	// VerifyToken validates a session token and returns the embedded claims.
	// Typically authbase.SessionIssuer.VerifySession.
	VerifyToken func(token string) (ab.Claims, error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyToken:     DefaultMetadataKeyToken,
		MetadataKeyAccountID: DefaultMetadataKeyAccountID,
		TrustGateway:         false,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyToken == "" {
		c.MetadataKeyToken = DefaultMetadataKeyToken
	}
	if c.MetadataKeyAccountID == "" {
		c.MetadataKeyAccountID = DefaultMetadataKeyAccountID
	}
}

type claimsKeyType string

const claimsKey = claimsKeyType("AuthbaseClaims")

// ClaimsFromContext returns the claims attached by the auth interceptor.
// Returns false if the request was not authenticated.
func ClaimsFromContext(ctx context.Context) (ab.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(ab.Claims)
	return claims, ok
}

// AccountIDFromContext extracts the authenticated account ID from the context.
// Returns empty string if no account is authenticated.
func AccountIDFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.ID
	}
	return ""
}

// TokenFromIncomingContext extracts the raw session token from the gRPC metadata.
func TokenFromIncomingContext(ctx context.Context, config *Config) string {
	if config == nil {
		config = DefaultConfig()
	}
	config.EnsureDefaults()

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(config.MetadataKeyToken); len(values) > 0 {
		return strings.TrimPrefix(values[0], "Bearer ")
	}
	return ""
}

// TokenToOutgoingContext adds the session token to outgoing gRPC context metadata.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return TokenToOutgoingContextWithKey(ctx, token, DefaultMetadataKeyToken)
}

// TokenToOutgoingContextWithKey adds the session token with a custom metadata key.
func TokenToOutgoingContextWithKey(ctx context.Context, token string, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, key, "Bearer "+token)
}

// AccountIDToOutgoingContext adds a pre-verified account ID to outgoing metadata.
// This is only honored when TrustGateway is set on the server.
func AccountIDToOutgoingContext(ctx context.Context, accountID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAccountID, accountID)
}

// IsAuthenticated returns true if there is an authenticated account in the context.
func IsAuthenticated(ctx context.Context) bool {
	return AccountIDFromContext(ctx) != ""
}
