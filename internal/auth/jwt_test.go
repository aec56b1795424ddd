package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"omnitak.com/support-hub/internal/config"
)

func withSecret(t *testing.T, secret string) {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig.JWTSecret = secret
	t.Cleanup(func() { config.AppConfig = prev })
}

func TestGenerateAndValidate(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateJWT(42)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	userID, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}
	if userID != 42 {
		t.Fatalf("ValidateJWT() = %d, want 42", userID)
	}
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	withSecret(t, "one")
	token, err := GenerateJWT(7)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	config.AppConfig.JWTSecret = "two"
	if _, err := ValidateJWT(token); err == nil {
		t.Fatal("expected signature error with a different secret")
	}
}

func TestValidateJWT_NonNumericSubject(t *testing.T) {
	withSecret(t, "test-secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := ValidateJWT(token); err == nil {
		t.Fatal("expected error for non-numeric subject")
	}
}

func TestGenerateJWT_NoSecret(t *testing.T) {
	withSecret(t, "")
	if _, err := GenerateJWT(1); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	if got := UserIDFromContext(ctx); got != nil {
		t.Fatalf("anonymous context returned %d", *got)
	}
	got := UserIDFromContext(WithUserID(ctx, 7))
	if got == nil || *got != 7 {
		t.Fatalf("UserIDFromContext() = %v, want 7", got)
	}
}
