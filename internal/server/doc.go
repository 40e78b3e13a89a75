// Package server implements the HTTP intake endpoint for signed booking webhooks.
//
// This package provides:
//   - A POST endpoint that verifies "t=<unix>,v1=<hex>" HMAC-SHA256 signatures
//   - Parsing and dispatch of booking events to the booking store
//   - A health endpoint that checks the store
//   - Structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/webhook: signature verification, event parsing, dispatch
//   - internal/booking: the delivery log written for every request
//
// Response contract for the webhook endpoint:
//   - 200 {"success":true} once the event is dispatched
//   - 400 for oversized bodies, invalid JSON, or missing booking fields
//   - 401 for missing, malformed, stale, or mismatched signatures
//   - 500 {"error":"Internal server error"} for anything unexpected
//
// Error bodies never include internal details; those are only logged.
package server
