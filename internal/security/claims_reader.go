package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsReader reads access token claims without checking the signature. Clients that do not hold
// the public key use it to learn who they are; the server still validates every call.
type ClaimsReader struct {
	now func() time.Time
}

// NewClaimsReader returns a ClaimsReader.
func NewClaimsReader() *ClaimsReader {
	return &ClaimsReader{now: time.Now}
}

// ValidateAccess decodes tokenString and rejects tokens without subject or past their expiry.
func (r *ClaimsReader) ValidateAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && !r.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
