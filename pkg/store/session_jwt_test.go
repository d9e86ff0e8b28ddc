package store

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.NewAccessToken("user-1", "admin")
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	userID, role, ok := issuer.VerifyAccessToken(token)
	if !ok {
		t.Fatal("token should verify")
	}
	if userID != "user-1" || role != "admin" {
		t.Fatalf("claims = %q/%q, want user-1/admin", userID, role)
	}
}

func TestRefreshTokenCarriesSubjectOnly(t *testing.T) {
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.NewRefreshToken("user-2")
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	userID, ok := issuer.VerifyRefreshToken(token)
	if !ok || userID != "user-2" {
		t.Fatalf("refresh verify = %q/%v, want user-2/true", userID, ok)
	}
	// A refresh token must not pass access verification when secrets differ.
	if _, _, ok := issuer.VerifyAccessToken(token); ok {
		t.Fatal("refresh token should not verify as access token")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := NewTokenIssuer("access-secret", "", time.Millisecond, time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.NewAccessToken("user-3", "user")
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, _, ok := issuer.VerifyAccessToken(token); ok {
		t.Fatal("expired token should not verify")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a, _ := NewTokenIssuer("secret-a", "", time.Hour, time.Hour)
	b, _ := NewTokenIssuer("secret-b", "", time.Hour, time.Hour)
	token, err := a.NewAccessToken("user-4", "user")
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if _, _, ok := b.VerifyAccessToken(token); ok {
		t.Fatal("token signed with another secret should not verify")
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("  ", "", time.Hour, time.Hour); err == nil {
		t.Fatal("expected error for blank secret")
	}
}
