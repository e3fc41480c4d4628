// Package auth mints and verifies reconnect tokens. The token is opaque
// to clients; the server only cares that it round-trips the stable
// client id.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried inside a reconnect token.
type Claims struct {
	ClientID string `json:"client_id"`
	Room     string `json:"room,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig holds signing parameters for reconnect tokens.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Issuer produces and verifies reconnect tokens for one server instance.
type Issuer struct {
	cfg TokenConfig
}

// NewIssuer builds an issuer; a zero TTL defaults to 24h.
func NewIssuer(cfg TokenConfig) *Issuer {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Issuer{cfg: cfg}
}

// Mint creates a signed token binding the stable client id to a room.
func (i *Issuer) Mint(clientID, room string) (string, error) {
	now := time.Now()
	claims := Claims{
		ClientID: clientID,
		Room:     room,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.cfg.Secret)
}

// Verify parses a token and returns its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if i.cfg.Issuer != "" && claims.Issuer != i.cfg.Issuer {
		return nil, fmt.Errorf("invalid issuer")
	}
	return claims, nil
}
