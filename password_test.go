package authbase_test

import (
	"strings"
	"testing"

	ab "github.com/panyam/authbase"
)

func TestPasswordPolicyValidate(t *testing.T) {
	policy := ab.DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"valid password", "password123", true},
		{"exactly 8 chars", "abcdefg1", true},
		{"too short", "pass1", false},
		{"seven chars", "abcdef1", false},
		{"digits only", "12345678", false},
		{"letters only", "abcdefgh", false},
		{"empty", "", false},
		{"unicode letters count", "pàsswörd1", true},
		{"symbols do not satisfy letter or digit", "!@#$%^&*", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.password)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.password, err.Message)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected %q to be rejected", tt.password)
			}
			if err != nil && err.Code != ab.ErrCodeWeakPassword {
				t.Errorf("expected code %q, got %q", ab.ErrCodeWeakPassword, err.Code)
			}
		})
	}
}

func TestPasswordPolicyDescription(t *testing.T) {
	policy := ab.DefaultPasswordPolicy()
	desc := policy.Description()
	if !strings.Contains(desc, "8 characters") {
		t.Errorf("description should mention the minimum length: %q", desc)
	}
	if !strings.Contains(desc, "letter") || !strings.Contains(desc, "number") {
		t.Errorf("description should mention the letter and number rules: %q", desc)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := ab.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "password123" {
		t.Error("hash should not equal the plaintext")
	}

	if !ab.CheckPassword(hash, "password123") {
		t.Error("correct password should verify")
	}
	if ab.CheckPassword(hash, "wrongpassword") {
		t.Error("wrong password should not verify")
	}
	if ab.CheckPassword("", "password123") {
		t.Error("empty hash should not verify")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	h1, err := ab.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	h2, err := ab.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ")
	}
}
