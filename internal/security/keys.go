package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrInvalidKey is returned when PEM content or the key type cannot be used for access tokens.
var ErrInvalidKey = errors.New("security: invalid key")

// LoadPEM returns PEM bytes for a configured key value. Inline PEM is accepted with real or
// escaped ("\n") line breaks, so keys can live in a single-line environment variable.
// Anything else is read as a file path.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if !strings.HasPrefix(s, "-----BEGIN") {
		b, err := os.ReadFile(s)
		if err != nil {
			return nil, fmt.Errorf("security: read key file: %w", err)
		}
		return b, nil
	}
	return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
}

func decodeBlock(s string) (*pem.Block, error) {
	b, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, ErrInvalidKey
	}
	return block, nil
}

// ParsePrivateKey parses an RSA or ECDSA private key in PKCS#1, PKCS#8 or SEC 1 form.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	block, err := decodeBlock(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if signer, ok := key.(crypto.Signer); ok && KeyAlg(signer.Public()) != "" {
			return signer, nil
		}
	}
	return nil, ErrInvalidKey
}

// ParsePublicKey parses an RSA (PKCS#1 or PKIX) or ECDSA (PKIX) public key.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	block, err := decodeBlock(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	}
	return nil, ErrInvalidKey
}

// KeyAlg returns the JWT signing algorithm for pub: RS256 for RSA, ES256 for ECDSA P-256, "" otherwise.
func KeyAlg(pub crypto.PublicKey) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		if k.Curve == elliptic.P256() {
			return "ES256"
		}
	}
	return ""
}

// NewTokenProviderFromPEM builds a TokenProvider from configured key values.
// An empty privatePEM yields a validate-only provider, which is what the server runs with.
func NewTokenProviderFromPEM(privatePEM, publicPEM, issuer, audience string, accessTTL time.Duration) (*TokenProvider, error) {
	pub, err := ParsePublicKey(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if KeyAlg(pub) == "" {
		return nil, fmt.Errorf("public key: %w", ErrInvalidKey)
	}
	var signer crypto.Signer
	if strings.TrimSpace(privatePEM) != "" {
		if signer, err = ParsePrivateKey(privatePEM); err != nil {
			return nil, fmt.Errorf("private key: %w", err)
		}
		if KeyAlg(signer.Public()) != KeyAlg(pub) {
			return nil, fmt.Errorf("private key: %w", ErrInvalidKey)
		}
	}
	return NewTokenProvider(signer, pub, issuer, audience, accessTTL), nil
}
