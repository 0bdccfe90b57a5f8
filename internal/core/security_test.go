// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"
)

func TestHashPasswordAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("expected argon2id encoded hash, got %q", hash)
	}

	valid, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !valid {
		t.Error("expected correct password to verify")
	}

	valid, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if valid {
		t.Error("expected wrong password to fail verification")
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if first == second {
		t.Error("two hashes of the same password should not be equal")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	if _, err := VerifyPassword("anything", "not-an-encoded-hash"); err == nil {
		t.Error("expected error for malformed encoded hash")
	}
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	valid, err := VerifyPasswordTimingSafe("secret", &hash)
	if err != nil {
		t.Fatalf("VerifyPasswordTimingSafe: %v", err)
	}
	if !valid {
		t.Error("expected match with real hash")
	}

	// No stored hash: must still return false without error, having burned
	// a verification against the dummy.
	valid, err = VerifyPasswordTimingSafe("secret", nil)
	if err != nil {
		t.Fatalf("VerifyPasswordTimingSafe(nil): %v", err)
	}
	if valid {
		t.Error("expected no match when no hash is stored")
	}

	empty := ""
	valid, err = VerifyPasswordTimingSafe("secret", &empty)
	if err != nil {
		t.Fatalf("VerifyPasswordTimingSafe(empty): %v", err)
	}
	if valid {
		t.Error("expected no match for empty stored hash")
	}
}

func TestGenerateRefreshTokenAndFingerprint(t *testing.T) {
	token, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	other, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if token == other {
		t.Error("two generated tokens should not collide")
	}

	hash := HashToken(token)
	if len(hash) != 64 {
		t.Errorf("expected 64 hex chars of sha256, got %d", len(hash))
	}
	if HashToken(token) != hash {
		t.Error("fingerprints must be deterministic")
	}
	if HashToken(other) == hash {
		t.Error("distinct tokens should not share a fingerprint")
	}
}
