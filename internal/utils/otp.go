package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateSecureOTP generates a cryptographically secure 6-digit OTP
func GenerateSecureOTP() (string, error) {
	// Generate a random number between 0 and 999999
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}

	// Format with leading zeros to ensure 6 digits
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenerateRefreshTokenValue returns a random Base64URL token (32 bytes).
// The plaintext is handed out exactly once; only its hash is persisted.
func GenerateRefreshTokenValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSecret returns the SHA256 hex of an OTP code or refresh token value.
// Both ledgers store hashes only, so neither can act as a plaintext oracle.
func HashSecret(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
