package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what can be read from an access token without its key.
type TokenInfo struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// InspectToken decodes a JWT without verifying its signature. The caller
// never holds the service's signing key, so the result is informational only.
func InspectToken(tokenString string) (*TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	info := &TokenInfo{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// MaskToken returns the first n runes of token followed by "...".
func MaskToken(token string, n int) string {
	runes := []rune(token)
	if n < 0 {
		n = 0
	}
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes) + "..."
}
