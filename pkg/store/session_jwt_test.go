package store

import (
	"context"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func TestNewJWTSessionStoreRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour, nil); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore(testJWTSecret, time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	token, err := s.NewSession(ctx, testSession)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	got, ok, err := s.GetSession(ctx, token)
	if err != nil || !ok {
		t.Fatalf("get session: ok=%v err=%v", ok, err)
	}
	if got != testSession {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestJWTSessionStoreRevokesByJTI(t *testing.T) {
	s, err := NewJWTSessionStore(testJWTSecret, time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	token, err := s.NewSession(ctx, testSession)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	other, err := s.NewSession(ctx, testSession)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(ctx, token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetSession(ctx, token); err != nil || ok {
		t.Fatalf("expected revoked token to fail, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.GetSession(ctx, other); !ok {
		t.Fatalf("other session must stay valid")
	}
}

func TestJWTSessionStoreRejectsForeignSignature(t *testing.T) {
	signer, _ := NewJWTSessionStore(strings.Repeat("x", 32), time.Hour, nil)
	verifier, _ := NewJWTSessionStore(testJWTSecret, time.Hour, nil)
	ctx := context.Background()

	token, err := signer.NewSession(ctx, testSession)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := verifier.GetSession(ctx, token); ok {
		t.Fatalf("expected signature mismatch to fail")
	}
	if _, ok, _ := verifier.GetSession(ctx, "not-a-jwt"); ok {
		t.Fatalf("expected garbage token to fail")
	}
}

func TestJWTSessionStoreRejectsExpiredToken(t *testing.T) {
	s, _ := NewJWTSessionStore(testJWTSecret, time.Hour, nil)
	past := time.Now().Add(-2 * time.Hour)
	claims := sessionClaims{
		Username: testSession.Username,
		Name:     testSession.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testSession.AdminID,
			Issuer:    defaultJWTIssuer,
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(past),
			ID:        "expired-jti",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, ok, _ := s.GetSession(context.Background(), token); ok {
		t.Fatalf("expected expired token to fail")
	}
}
