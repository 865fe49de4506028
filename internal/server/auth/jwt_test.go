package auth

import (
	"testing"
	"time"

	"github.com/tastediary/syncserver/internal/common"
)

func TestGenerateAndVerify_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("user-123", "u@example.com", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	ac, err := VerifyToken(tok, secret)
	if err != nil {
		t.Fatalf("VerifyToken error: %v", err)
	}
	if ac.UID != "user-123" {
		t.Fatalf("uid mismatch: got %q", ac.UID)
	}
	if ac.Email != "u@example.com" {
		t.Fatalf("email mismatch: got %q", ac.Email)
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")

	tok, err := GenerateToken("u1", "", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	_, err = VerifyToken(tok, secret)
	if err != common.ErrTokenExpired {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("u2", "", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := VerifyToken(tok, []byte("wrong-secret")); err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestVerifyToken_MalformedString(t *testing.T) {
	t.Parallel()

	if _, err := VerifyToken("not.a.jwt", []byte("k")); err == nil {
		t.Fatalf("expected error for malformed token, got nil")
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	ac := &Context{UID: "u3"}
	ctx := NewContext(t.Context(), ac)

	got, ok := FromContext(ctx)
	if !ok || got.UID != "u3" {
		t.Fatalf("FromContext mismatch: %v %v", got, ok)
	}
}
