package devauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the claims embedded in a self-issued access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// TokenIssuer signs and verifies access tokens with HMAC-SHA256, and holds
// the configured access/refresh token lifetimes.
type TokenIssuer struct {
	signingKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// NewTokenIssuer creates a TokenIssuer. secret must be at least 32 bytes long.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("device auth signing secret must be at least 32 bytes, got %d", len(secret))
	}
	return &TokenIssuer{signingKey: []byte(secret), AccessTTL: accessTTL, RefreshTTL: refreshTTL}, nil
}

// IssueAccessToken signs a JWT for subject with the given scopes.
func (ti *TokenIssuer) IssueAccessToken(subject string, scopes []string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "skillnest-registry",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.AccessTTL)),
		},
		Scopes: scopes,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.signingKey)
}

// ValidateAccessToken verifies signature and expiry and returns the claims.
func (ti *TokenIssuer) ValidateAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.signingKey, nil
	}, jwt.WithIssuer("skillnest-registry"))
	if err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("access token is not valid")
	}
	return claims, nil
}
