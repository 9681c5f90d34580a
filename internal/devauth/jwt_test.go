package devauth

import (
	"strings"
	"testing"
	"time"
)

func TestNewTokenIssuerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenIssuer("too-short", time.Minute, time.Hour); err == nil {
		t.Fatal("expected error for a signing secret under 32 bytes")
	}
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	issuer, err := NewTokenIssuer(strings.Repeat("a", 32), 15*time.Minute, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, err := issuer.IssueAccessToken("user-123", []string{"read"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	claims, err := issuer.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("subject = %q, want user-123", claims.Subject)
	}
	if len(claims.Scopes) != 1 || claims.Scopes[0] != "read" {
		t.Errorf("scopes = %v, want [read]", claims.Scopes)
	}
}

func TestValidateAccessTokenRejectsWrongKey(t *testing.T) {
	issuerA, err := NewTokenIssuer(strings.Repeat("a", 32), time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	issuerB, err := NewTokenIssuer(strings.Repeat("b", 32), time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, err := issuerA.IssueAccessToken("user-123", nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := issuerB.ValidateAccessToken(token); err == nil {
		t.Fatal("expected validation under a different signing key to fail")
	}
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer(strings.Repeat("a", 32), -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, err := issuer.IssueAccessToken("user-123", nil)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := issuer.ValidateAccessToken(token); err == nil {
		t.Fatal("expected an already-expired token to fail validation")
	}
}
