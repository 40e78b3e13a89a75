package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the normalized booking lifecycle event type
type Kind int

const (
	KindUnknown Kind = iota
	KindBookingCreated
	KindBookingCanceled
)

const inviteeResource = "invitee"

var (
	ErrInvalidJSON  = errors.New("invalid JSON")
	ErrMissingField = errors.New("missing field")
	ErrInvalidField = errors.New("invalid field")
)

func (k Kind) String() string {
	switch k {
	case KindBookingCreated:
		return "booking_created"
	case KindBookingCanceled:
		return "booking_canceled"
	default:
		return "unknown"
	}
}

// FieldError reports a required payload field that is missing or unusable
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Event is a verified delivery normalized into a booking event.
// It is passed by value and never modified after Parse returns it.
type Event struct {
	Kind          Kind
	Type          string // raw event type, e.g. "invitee.created"
	InviteeID     string
	InviteeEmail  string
	InviteeName   string
	InviteeStatus string
	EventID       string
	EventName     string
	Location      string
	StartTime     time.Time
	EndTime       time.Time
	UpdatedAt     time.Time // zero when the sender omitted it
	ReceivedAt    time.Time
}

// Version returns the timestamp used to order deliveries for the same invitee
func (e Event) Version() time.Time {
	if !e.UpdatedAt.IsZero() {
		return e.UpdatedAt
	}
	return e.ReceivedAt
}

type rawDelivery struct {
	Event   *string         `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type rawPayload struct {
	Invitee *rawInvitee        `json:"invitee"`
	Event   *rawScheduledEvent `json:"event"`
}

type rawInvitee struct {
	UUID      string `json:"uuid"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

type rawScheduledEvent struct {
	UUID      string          `json:"uuid"`
	Name      string          `json:"name"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Location  json.RawMessage `json:"location"`
}

// Parse decodes a verified webhook body into an Event.
//
// Event types for resources other than "invitee", and invitee actions other
// than "created" and "canceled", yield KindUnknown without checking payload
// fields, so new sender event types are accepted and ignored.
func Parse(body []byte, receivedAt time.Time) (Event, error) {
	var delivery rawDelivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		return Event{}, decodeError("", err)
	}

	if delivery.Event == nil || strings.TrimSpace(*delivery.Event) == "" {
		return Event{}, &FieldError{Field: "event", Err: ErrMissingField}
	}

	eventType := strings.TrimSpace(*delivery.Event)
	resource, action, _ := strings.Cut(eventType, ".")

	ev := Event{
		Kind:       kindFor(resource, action),
		Type:       eventType,
		ReceivedAt: receivedAt,
	}
	if ev.Kind == KindUnknown {
		return ev, nil
	}

	if len(delivery.Payload) == 0 || string(delivery.Payload) == "null" {
		return Event{}, &FieldError{Field: "payload", Err: ErrMissingField}
	}

	var payload rawPayload
	if err := json.Unmarshal(delivery.Payload, &payload); err != nil {
		return Event{}, decodeError("payload", err)
	}

	if payload.Invitee == nil {
		return Event{}, &FieldError{Field: "invitee", Err: ErrMissingField}
	}
	if payload.Event == nil {
		return Event{}, &FieldError{Field: "event", Err: ErrMissingField}
	}

	invitee, scheduled := payload.Invitee, payload.Event
	required := []struct {
		field string
		value string
	}{
		{"invitee.uuid", invitee.UUID},
		{"invitee.email", invitee.Email},
		{"invitee.name", invitee.Name},
		{"event.uuid", scheduled.UUID},
		{"event.name", scheduled.Name},
		{"event.start_time", scheduled.StartTime},
		{"event.end_time", scheduled.EndTime},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return Event{}, &FieldError{Field: r.field, Err: ErrMissingField}
		}
	}

	var err error
	if ev.StartTime, err = parseTimestamp("event.start_time", scheduled.StartTime); err != nil {
		return Event{}, err
	}
	if ev.EndTime, err = parseTimestamp("event.end_time", scheduled.EndTime); err != nil {
		return Event{}, err
	}
	if invitee.UpdatedAt != "" {
		if ev.UpdatedAt, err = parseTimestamp("invitee.updated_at", invitee.UpdatedAt); err != nil {
			return Event{}, err
		}
	}

	ev.InviteeID = invitee.UUID
	ev.InviteeEmail = invitee.Email
	ev.InviteeName = invitee.Name
	ev.InviteeStatus = invitee.Status
	ev.EventID = scheduled.UUID
	ev.EventName = scheduled.Name
	ev.Location = locationText(scheduled.Location)

	return ev, nil
}

func kindFor(resource, action string) Kind {
	if resource != inviteeResource {
		return KindUnknown
	}
	switch action {
	case "created":
		return KindBookingCreated
	case "canceled":
		return KindBookingCanceled
	default:
		return KindUnknown
	}
}

// decodeError separates JSON syntax errors from well-formed JSON of the wrong shape
func decodeError(prefix string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		switch {
		case field == "":
			field = prefix
		case prefix != "":
			field = prefix + "." + field
		}
		if field == "" {
			field = "body"
		}
		return &FieldError{Field: field, Err: fmt.Errorf("%w: expected %s", ErrInvalidField, typeErr.Type)}
	}
	return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
}

func parseTimestamp(field, value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, &FieldError{Field: field, Err: fmt.Errorf("%w: %v", ErrInvalidField, err)}
	}
	return ts.UTC(), nil
}

// locationText accepts either {"location": "..."} or a bare string
func locationText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var obj struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Location
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return ""
}
