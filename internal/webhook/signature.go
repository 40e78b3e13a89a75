package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxSkew is the default tolerance between the signed timestamp and the local clock.
	DefaultMaxSkew = 300 * time.Second

	timestampKey = "t"
	digestKey    = "v1"
)

var (
	ErrMissingSignature   = errors.New("missing signature")
	ErrMalformedSignature = errors.New("malformed signature")
	ErrStaleSignature     = errors.New("stale signature")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// Signature is a parsed "t=<unix>,v1=<hex>" signature header
type Signature struct {
	Timestamp int64
	Digest    string
}

// ParseSignature parses a signature header of the form "t=<unix_ts>,v1=<hex_digest>".
// Part order does not matter and unknown parts are ignored.
func ParseSignature(header string) (Signature, error) {
	var sig Signature
	var rawTimestamp string

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case timestampKey:
			rawTimestamp = value
		case digestKey:
			sig.Digest = value
		}
	}

	if rawTimestamp == "" || sig.Digest == "" {
		return Signature{}, ErrMalformedSignature
	}

	ts, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: timestamp %q is not an integer", ErrMalformedSignature, rawTimestamp)
	}
	sig.Timestamp = ts

	return sig, nil
}

// Verify checks a signed webhook body against the shared secret.
//
// The expected digest is HMAC-SHA256(secret, "<t>." + body), hex encoded.
// A maxSkew of zero or less disables the freshness check.
func Verify(body []byte, header, secret string, maxSkew time.Duration, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	sig, err := ParseSignature(header)
	if err != nil {
		return err
	}

	expected := computeDigest(body, secret, sig.Timestamp)
	if !constantTimeEqual(expected, sig.Digest) {
		return ErrInvalidSignature
	}

	if maxSkew > 0 && !withinSkew(sig.Timestamp, now.Unix(), int64(maxSkew/time.Second)) {
		return fmt.Errorf("%w: timestamp %d is more than %s from now", ErrStaleSignature, sig.Timestamp, maxSkew)
	}

	return nil
}

// withinSkew reports whether |ts - now| <= limit without overflowing
func withinSkew(ts, now, limit int64) bool {
	if ts > now {
		return ts-now >= 0 && ts-now <= limit
	}
	return now-ts >= 0 && now-ts <= limit
}

// Sign builds a signature header for body at the given unix timestamp
func Sign(body []byte, secret string, timestamp int64) string {
	return fmt.Sprintf("%s=%d,%s=%s", timestampKey, timestamp, digestKey, computeDigest(body, secret, timestamp))
}

func computeDigest(body []byte, secret string, timestamp int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// constantTimeEqual compares two digests without short-circuiting on the first mismatch.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	var result byte
	for i := 0; i < len(a); i++ {
		result |= a[i] ^ b[i]
	}

	return result == 0
}
