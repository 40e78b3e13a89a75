package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

const (
	// MinSecretLength is the minimum allowed length for webhook signing keys.
	MinSecretLength = 32

	// MinEntropy is the minimum Shannon entropy threshold for signing keys.
	MinEntropy = 3.5

	generatedSecretBytes = 32
)

var forbiddenSecrets = map[string]bool{
	"replace-with-signing-key":     true,
	"your-webhook-signing-key":     true,
	"calendly-webhook-signing-key": true,
	"test-webhook-key":             true,
	"secret":                       true,
	"password":                     true,
	"changeme":                     true,
}

var placeholderFragments = []string{"replace", "changeme", "placeholder", "example", "password"}

// ValidateSecret ensures a webhook signing key meets security requirements.
// Checks:
// - Minimum length (32 characters)
// - Not a placeholder value
// - Sufficient Shannon entropy (minimum 3.5)
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("secret too short (minimum %d characters, got %d)", MinSecretLength, len(secret))
	}

	secretLower := strings.ToLower(secret)
	if forbiddenSecrets[secretLower] {
		return fmt.Errorf("secret appears to be a placeholder value, please use a real secret")
	}

	for _, fragment := range placeholderFragments {
		if strings.Contains(secretLower, fragment) {
			return fmt.Errorf("secret appears to be a placeholder value")
		}
	}

	entropy := calculateEntropy(secret)
	if entropy < MinEntropy {
		return fmt.Errorf("secret has insufficient entropy (%.2f < %.2f) - use a more random secret", entropy, MinEntropy)
	}

	return nil
}

// GenerateSecret creates a cryptographically secure random signing key.
// Returns 32 random bytes as a 43-character unpadded base64url string.
func GenerateSecret() (string, error) {
	bytes := make([]byte, generatedSecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// calculateEntropy computes the Shannon entropy of a string in bits per character.
func calculateEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}

	// H = -Σ(p(x) * log2(p(x)))
	var entropy float64
	length := float64(len(s))

	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}

	return entropy
}
