package identity

import (
	"errors"
	"testing"
	"time"
)

func frozenClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "studyshelf-auth",
		Audience:      "studyshelf-api",
		TokenTTL:      time.Hour,
		Clock:         frozenClock(now),
	})

	token, expiresIn, err := issuer.IssueToken("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expiresIn != 3600 {
		t.Fatalf("expected 3600 seconds, got %d", expiresIn)
	}

	subject, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestValidateTokenReportsExpiryDistinctly(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "studyshelf-auth",
		Audience:      "studyshelf-api",
		TokenTTL:      time.Minute,
		Clock:         frozenClock(issued),
	})
	token, _, err := issuer.IssueToken("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	later := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "studyshelf-auth",
		Audience:      "studyshelf-api",
		TokenTTL:      time.Minute,
		Clock:         frozenClock(issued.Add(time.Hour)),
	})
	if _, err := later.ValidateToken(token); !errors.Is(err, FaultTokenExpired) {
		t.Fatalf("expected FaultTokenExpired, got %v", err)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret-a"),
		Issuer:        "studyshelf-auth",
		Audience:      "studyshelf-api",
		Clock:         frozenClock(now),
	})
	foreign := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret-b"),
		Issuer:        "studyshelf-auth",
		Audience:      "studyshelf-api",
		Clock:         frozenClock(now),
	})

	token, _, err := foreign.IssueToken("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := issuer.ValidateToken(token); !errors.Is(err, FaultInvalidToken) {
		t.Fatalf("expected FaultInvalidToken, got %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("test-secret")})
	if _, err := issuer.ValidateToken("not.a.jwt"); !errors.Is(err, FaultInvalidToken) {
		t.Fatalf("expected FaultInvalidToken, got %v", err)
	}
}

func TestIssueTokenRequiresSecretAndSubject(t *testing.T) {
	if _, _, err := NewTokenIssuer(TokenIssuerConfig{}).IssueToken("user-1"); err == nil {
		t.Fatalf("expected error without signing secret")
	}
	issuer := NewTokenIssuer(TokenIssuerConfig{SigningSecret: []byte("test-secret")})
	if _, _, err := issuer.IssueToken(""); err == nil {
		t.Fatalf("expected error without subject")
	}
}
