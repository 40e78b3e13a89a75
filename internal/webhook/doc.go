// Package webhook implements signed webhook intake for scheduling bookings.
//
// This package provides:
//   - Signature verification for "t=<unix>,v1=<hex>" HMAC-SHA256 headers
//   - Parsing of delivery bodies into normalized booking events
//   - Dispatching of events to per-kind handlers backed by a booking store
//
// Unknown event types are accepted and ignored. Downstream failures are
// logged and reported as accepted so the sender does not retry a payload
// that will fail again.
package webhook
