package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// GenerateCalendarToken returns a new opaque calendar export token (256 random bits, URL-safe).
func GenerateCalendarToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TokensEqual compares two opaque tokens in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
