package server

import (
	"time"

	"bookhook/internal/webhook"
)

// MakeTestSignature signs payload with the current time.
// This is a test helper shared across multiple test files
func MakeTestSignature(payload []byte, secret string) string {
	return webhook.Sign(payload, secret, time.Now().Unix())
}
