package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"bookhook/internal/booking"
	"bookhook/internal/webhook"

	"github.com/go-chi/chi/v5/middleware"
)

const (
	MaxPayloadBytes = 1_000_000 // 1 MB

	// SignatureHeader carries "t=<unix>,v1=<hex>"
	SignatureHeader = "X-Webhook-Signature"

	// CalendlySignatureHeader is accepted when SignatureHeader is absent
	CalendlySignatureHeader = "Calendly-Webhook-Signature"
)

// Delivery outcomes recorded for requests that never reach the dispatcher
const (
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// HandleWebhook verifies, parses and dispatches one signed delivery.
//
// Responses: 200 once dispatched (including ignored event types and
// downstream failures), 400 for bodies that are too large or do not parse,
// 401 for missing or bad signatures, 500 for anything unexpected.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	receivedAt := s.now()
	record := &booking.DeliveryRecord{
		RequestID:  middleware.GetReqID(r.Context()),
		ReceivedAt: receivedAt,
	}

	defer func() {
		if p := recover(); p != nil {
			s.Logger.Error("webhook_panic",
				"panic", p,
				"request_id", record.RequestID,
				"stack", string(debug.Stack()))
			record.Outcome = OutcomeError
			s.respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		s.recordDelivery(r.Context(), record)
	}()

	// ContentLength can be -1 if not set, so the read below is also capped
	if r.ContentLength > MaxPayloadBytes {
		s.reject(w, record, http.StatusBadRequest, "Payload too large", "payload_too_large")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err, "request_id", record.RequestID)
		record.Outcome = OutcomeError
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(body) > MaxPayloadBytes {
		s.reject(w, record, http.StatusBadRequest, "Payload too large", "payload_too_large")
		return
	}

	header := r.Header.Get(SignatureHeader)
	if header == "" {
		header = r.Header.Get(CalendlySignatureHeader)
	}

	if err := webhook.Verify(body, header, s.Settings.Secret, s.Settings.MaxSkew, receivedAt); err != nil {
		if errors.Is(err, webhook.ErrMissingSignature) {
			s.reject(w, record, http.StatusUnauthorized, "Missing signature", err.Error())
			return
		}
		s.reject(w, record, http.StatusUnauthorized, "Invalid signature", err.Error())
		return
	}

	ev, err := webhook.Parse(body, receivedAt)
	if err != nil {
		var fieldErr *webhook.FieldError
		switch {
		case errors.Is(err, webhook.ErrInvalidJSON):
			s.invalid(w, record, "Invalid JSON", err)
		case errors.As(err, &fieldErr):
			s.invalid(w, record, "Invalid payload", err)
		default:
			s.Logger.Error("webhook_parse_failed", "error", err, "request_id", record.RequestID)
			record.Outcome = OutcomeError
			s.respondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	record.EventType = ev.Type
	record.Kind = ev.Kind.String()
	record.InviteeID = ev.InviteeID

	// Verified deliveries are applied even if the sender hangs up mid-request
	result := s.Dispatcher.Dispatch(context.WithoutCancel(r.Context()), ev)
	record.Outcome = result.Detail

	if !result.Accepted {
		s.Logger.Error("webhook_dispatch_rejected", "detail", result.Detail, "request_id", record.RequestID)
		record.Outcome = OutcomeError
		s.respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "ok",
		"store":  "ok",
	}

	if s.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.Health.Ping(ctx); err != nil {
			s.Logger.Error("health_check_failed", "error", err)
			response["status"] = "degraded"
			response["store"] = "unavailable"
			s.respondJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	s.respondJSON(w, http.StatusOK, response)
}

// reject answers a delivery that failed before parsing
func (s *Server) reject(w http.ResponseWriter, record *booking.DeliveryRecord, status int, message, reason string) {
	s.Logger.Warn("webhook_rejected",
		"reason", reason,
		"status", status,
		"request_id", record.RequestID)
	record.Outcome = OutcomeRejected
	s.respondError(w, status, message)
}

// invalid answers a verified delivery whose body could not be used
func (s *Server) invalid(w http.ResponseWriter, record *booking.DeliveryRecord, message string, err error) {
	s.Logger.Warn("webhook_invalid_payload",
		"error", err,
		"request_id", record.RequestID)
	record.Outcome = OutcomeInvalid
	s.respondError(w, http.StatusBadRequest, message)
}

// recordDelivery writes the audit row; failures are logged and ignored
func (s *Server) recordDelivery(ctx context.Context, record *booking.DeliveryRecord) {
	if s.Deliveries == nil || record.Outcome == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if _, err := s.Deliveries.RecordDelivery(ctx, record); err != nil {
		s.Logger.Error("Failed to record delivery", "error", err, "request_id", record.RequestID)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]string{"error": message})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
