package services

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AanchalYadav15/acciguard/config"
	"github.com/AanchalYadav15/acciguard/models"
)

func newTestAuthService(clock clockwork.Clock) *AuthService {
	return NewAuthService(config.JWTConfig{
		Secret:      "test-secret-key",
		ExpiryHours: 24,
	}, clock)
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestAuthService(nil)

	hash, err := svc.HashPassword("mypassword123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("hash should not be empty")
	}
	if hash == "mypassword123" {
		t.Fatal("hash should not equal plaintext")
	}

	if !svc.CheckPassword(hash, "mypassword123") {
		t.Error("CheckPassword should return true for correct password")
	}
	if svc.CheckPassword(hash, "wrongpassword") {
		t.Error("CheckPassword should return false for wrong password")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestAuthService(nil)
	user := models.User{ID: 42, Email: "ops@acciguard.dev", Role: models.RoleAdmin}

	token, err := svc.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "ops@acciguard.dev" {
		t.Errorf("Email = %q, want %q", claims.Email, "ops@acciguard.dev")
	}
	if claims.Role != models.RoleAdmin {
		t.Errorf("Role = %q, want %q", claims.Role, models.RoleAdmin)
	}
	if claims.Issuer != tokenIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, tokenIssuer)
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	svc := newTestAuthService(nil)

	if _, err := svc.ValidateToken("invalid.token.string"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc1 := NewAuthService(config.JWTConfig{Secret: "secret-1", ExpiryHours: 24}, nil)
	svc2 := NewAuthService(config.JWTConfig{Secret: "secret-2", ExpiryHours: 24}, nil)

	token, _ := svc1.GenerateToken(models.User{ID: 1, Email: "a@b.c", Role: models.RoleOperator})

	if _, err := svc2.ValidateToken(token); err == nil {
		t.Error("expected error when validating with wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC))
	svc := newTestAuthService(clock)

	token, err := svc.GenerateToken(models.User{ID: 7, Email: "night@shift.dev", Role: models.RoleOperator})
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	clock.Advance(23 * time.Hour)
	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("token should still be valid: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestHashPasswordDifferentEachTime(t *testing.T) {
	svc := newTestAuthService(nil)

	hash1, _ := svc.HashPassword("same-password")
	hash2, _ := svc.HashPassword("same-password")

	if hash1 == hash2 {
		t.Error("bcrypt hashes should differ due to random salt")
	}
	if !svc.CheckPassword(hash1, "same-password") || !svc.CheckPassword(hash2, "same-password") {
		t.Error("both hashes should validate")
	}
}
