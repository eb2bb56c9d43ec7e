package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	v, err := NewVerifier("test-secret")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	token, err := v.Sign("user-1", time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v, _ := NewVerifier("test-secret")
	other, _ := NewVerifier("other-secret")

	expired, _ := v.Sign("user-1", -time.Minute)
	wrongKey, _ := other.Sign("user-1", time.Hour)

	for name, token := range map[string]string{
		"garbage":      "not.a.token",
		"empty":        "",
		"expired":      expired,
		"wrong secret": wrongKey,
	} {
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	v, _ := NewVerifier("test-secret")
	if _, err := v.Sign("", time.Hour); err == nil {
		t.Error("signing without a user id should fail")
	}
}

func TestNewVerifierRejectsEmptySecret(t *testing.T) {
	if _, err := NewVerifier(""); err == nil {
		t.Error("empty secret should be rejected")
	}
}
