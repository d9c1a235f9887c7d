package authbase_test

import (
	"context"
	"testing"
	"time"

	ab "github.com/panyam/authbase"
)

func TestIssueAndVerifySession(t *testing.T) {
	issuer := &ab.SessionIssuer{
		Issuer:    "test-issuer",
		SecretKey: "TestSecretKeyForSessions12345678",
		TTL:       time.Hour,
	}

	claims := ab.Claims{
		ID:            "acct-1",
		Email:         "test@example.com",
		Name:          "Test User",
		Image:         "https://example.com/photo.jpg",
		EmailVerified: true,
	}

	token, err := issuer.IssueSession(claims)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	got, err := issuer.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}
	if got != claims {
		t.Errorf("round-tripped claims differ:\ngot  %+v\nwant %+v", got, claims)
	}
}

func TestVerifySessionRejections(t *testing.T) {
	issuer := &ab.SessionIssuer{
		Issuer:    "test-issuer",
		SecretKey: "TestSecretKeyForSessions12345678",
		TTL:       time.Hour,
	}
	claims := ab.Claims{ID: "acct-1", Email: "test@example.com"}

	token, err := issuer.IssueSession(claims)
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	t.Run("garbage token", func(t *testing.T) {
		if _, err := issuer.VerifySession("not.a.token"); err == nil {
			t.Error("expected error for garbage token")
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other := &ab.SessionIssuer{SecretKey: "ADifferentSecretKeyEntirely12345"}
		if _, err := other.VerifySession(token); err == nil {
			t.Error("expected error for token signed with another key")
		}
	})

	t.Run("tampered token", func(t *testing.T) {
		tampered := token[:len(token)-2] + "xx"
		if _, err := issuer.VerifySession(tampered); err == nil {
			t.Error("expected error for tampered token")
		}
	})
}

func TestRefreshClaims(t *testing.T) {
	store, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	account := &ab.Account{
		ID:            "acct-1",
		Email:         "test@example.com",
		Name:          "Stored Name",
		Image:         "https://example.com/stored.jpg",
		EmailVerified: true,
	}
	if err := store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("seeding account: %v", err)
	}

	issuer := &ab.SessionIssuer{SecretKey: "TestSecretKeyForSessions12345678"}

	stale := ab.Claims{ID: "acct-1", Email: "test@example.com", Name: "Old Name"}
	fresh, err := issuer.RefreshClaims(context.Background(), store, stale)
	if err != nil {
		t.Fatalf("RefreshClaims failed: %v", err)
	}
	if fresh.Name != "Stored Name" {
		t.Errorf("expected refreshed name, got %q", fresh.Name)
	}
	if fresh.Image != "https://example.com/stored.jpg" {
		t.Errorf("expected stored image, got %q", fresh.Image)
	}
}

func TestRefreshClaimsKeepsProviderImage(t *testing.T) {
	store, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	// Account with no image stored yet.
	account := &ab.Account{
		ID:            "acct-1",
		Email:         "test@example.com",
		Name:          "Test User",
		EmailVerified: true,
	}
	if err := store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("seeding account: %v", err)
	}

	issuer := &ab.SessionIssuer{SecretKey: "TestSecretKeyForSessions12345678"}

	withImage := ab.Claims{ID: "acct-1", Image: "https://provider.example.com/photo.jpg"}
	fresh, err := issuer.RefreshClaims(context.Background(), store, withImage)
	if err != nil {
		t.Fatalf("RefreshClaims failed: %v", err)
	}
	if fresh.Image != "https://provider.example.com/photo.jpg" {
		t.Errorf("provider image should survive when store has none, got %q", fresh.Image)
	}
}

func TestRefreshClaimsMissingAccount(t *testing.T) {
	store, tmpDir := setupTestStore(t)
	defer cleanup(t, tmpDir)

	issuer := &ab.SessionIssuer{SecretKey: "TestSecretKeyForSessions12345678"}
	stale := ab.Claims{ID: "no-such-account", Email: "ghost@example.com"}

	got, err := issuer.RefreshClaims(context.Background(), store, stale)
	if err == nil {
		t.Fatal("expected error for missing account")
	}
	// The original claims come back so the caller can decide what to do.
	if got.ID != stale.ID {
		t.Errorf("expected original claims back, got %+v", got)
	}
}
