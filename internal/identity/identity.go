// Package identity derives the privacy-preserving customer identifier.
//
// Raw emails never leave staging: dimensions and facts key customers by a
// one-way SHA-256 digest of the normalized address. The same normalization
// must be applied on both sides of every join (dimension build and fact
// build), so it lives here rather than in either package.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeEmail lower-cases and trims an email address. This is the
// canonical form used for identity joins; it is NOT stored anywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashEmail returns the lowercase hex SHA-256 of the normalized email.
// A missing email hashes the literal "unknown" so the digest is always
// non-empty and stable.
func HashEmail(email string) string {
	n := NormalizeEmail(email)
	if n == "" {
		n = "unknown"
	}
	sum := sha256.Sum256([]byte(n))
	return hex.EncodeToString(sum[:])
}
