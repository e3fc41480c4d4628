package auth

import (
	"testing"
	"time"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer(TokenConfig{Secret: []byte("test-secret"), Issuer: "partyline", TTL: time.Hour})

	token, err := issuer.Mint("client-42", "quiz")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ClientID != "client-42" || claims.Room != "quiz" {
		t.Fatalf("claims lost: %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer(TokenConfig{Secret: []byte("secret-a"), Issuer: "partyline"})
	other := NewIssuer(TokenConfig{Secret: []byte("secret-b"), Issuer: "partyline"})

	token, err := issuer.Mint("client-42", "quiz")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Fatal("expected verification failure with a different secret")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer(TokenConfig{Secret: []byte("test-secret"), TTL: -time.Minute})

	token, err := issuer.Mint("client-42", "quiz")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	minted := NewIssuer(TokenConfig{Secret: []byte("test-secret"), Issuer: "other"})
	verifier := NewIssuer(TokenConfig{Secret: []byte("test-secret"), Issuer: "partyline"})

	token, err := minted.Mint("client-42", "quiz")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected issuer mismatch to fail verification")
	}
}
