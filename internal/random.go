// Package internal holds shared helpers for authcore subsystems.
package internal

import (
	"crypto/rand"
	"encoding/base64"
)

const verificationTokenBytes = 48

// NewVerificationToken returns a cryptographically random, URL-safe token.
// 48 bytes encode to 64 base64url characters, comfortably above the
// 60-character entropy floor for emailed verification links.
func NewVerificationToken() (string, error) {
	raw := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
