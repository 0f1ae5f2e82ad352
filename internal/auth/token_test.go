package auth

import (
	"errors"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("alice", "test-secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	uid, err := VerifyToken(token, "test-secret")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if uid != "alice" {
		t.Fatalf("subject = %q, want alice", uid)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("alice", "test-secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := VerifyToken(token, "other-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: err = %v", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := VerifyToken(tok, "test-secret"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: err = %v", tok, err)
		}
	}
}
