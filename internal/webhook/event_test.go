package webhook

import (
	"errors"
	"testing"
	"time"
)

const createdBody = `{
	"event": "invitee.created",
	"payload": {
		"invitee": {
			"uuid": "inv-123",
			"email": "jane@example.com",
			"name": "Jane Doe",
			"status": "active",
			"updated_at": "2025-03-01T09:30:00Z"
		},
		"event": {
			"uuid": "evt-456",
			"name": "30 Minute Discovery Call",
			"start_time": "2025-03-10T15:00:00Z",
			"end_time": "2025-03-10T15:30:00Z",
			"location": {"type": "zoom", "location": "https://zoom.us/j/1"}
		}
	}
}`

func TestParse_InviteeCreated(t *testing.T) {
	receivedAt := time.Date(2025, 3, 1, 9, 31, 0, 0, time.UTC)

	ev, err := Parse([]byte(createdBody), receivedAt)
	if err != nil {
		t.Fatalf("Expected payload to parse, got %v", err)
	}

	if ev.Kind != KindBookingCreated {
		t.Errorf("Expected kind %v, got %v", KindBookingCreated, ev.Kind)
	}
	if ev.Type != "invitee.created" {
		t.Errorf("Expected type 'invitee.created', got %q", ev.Type)
	}
	if ev.InviteeID != "inv-123" || ev.InviteeEmail != "jane@example.com" || ev.InviteeName != "Jane Doe" {
		t.Errorf("Expected invitee fields copied verbatim, got %+v", ev)
	}
	if ev.EventID != "evt-456" || ev.EventName != "30 Minute Discovery Call" {
		t.Errorf("Expected event fields copied verbatim, got %+v", ev)
	}
	if ev.Location != "https://zoom.us/j/1" {
		t.Errorf("Expected location from nested object, got %q", ev.Location)
	}
	if !ev.StartTime.Equal(time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected start time %v", ev.StartTime)
	}
	if !ev.EndTime.Equal(time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)) {
		t.Errorf("Unexpected end time %v", ev.EndTime)
	}
	if !ev.ReceivedAt.Equal(receivedAt) {
		t.Errorf("Expected receivedAt %v, got %v", receivedAt, ev.ReceivedAt)
	}
	if !ev.Version().Equal(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("Expected version to come from updated_at, got %v", ev.Version())
	}
}

func TestParse_InviteeCanceled(t *testing.T) {
	body := `{"event":"invitee.canceled","payload":{
		"invitee":{"uuid":"inv-1","email":"a@example.com","name":"A"},
		"event":{"uuid":"evt-1","name":"Call","start_time":"2025-03-10T15:00:00Z","end_time":"2025-03-10T15:30:00Z","location":"Phone"}}}`
	receivedAt := time.Now().UTC()

	ev, err := Parse([]byte(body), receivedAt)
	if err != nil {
		t.Fatalf("Expected payload to parse, got %v", err)
	}

	if ev.Kind != KindBookingCanceled {
		t.Errorf("Expected kind %v, got %v", KindBookingCanceled, ev.Kind)
	}
	if ev.Location != "Phone" {
		t.Errorf("Expected bare string location, got %q", ev.Location)
	}
	if !ev.Version().Equal(receivedAt) {
		t.Errorf("Expected version to fall back to receivedAt without updated_at")
	}
}

func TestParse_UnknownEventTypes(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"other resource", `{"event":"routing_form_submission.created","payload":{"questions":[]}}`},
		{"unknown invitee action", `{"event":"invitee.no_show_marked","payload":{}}`},
		{"no action", `{"event":"invitee"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Parse([]byte(tc.body), time.Now())
			if err != nil {
				t.Fatalf("Expected unknown event type to be accepted, got %v", err)
			}
			if ev.Kind != KindUnknown {
				t.Errorf("Expected KindUnknown, got %v", ev.Kind)
			}
		})
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	testCases := []string{
		`not json`,
		`{"event": "invitee.created",`,
		``,
	}

	for _, body := range testCases {
		_, err := Parse([]byte(body), time.Now())
		if !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("Expected ErrInvalidJSON for %q, got %v", body, err)
		}
	}
}

func TestParse_MissingFields(t *testing.T) {
	testCases := []struct {
		name  string
		body  string
		field string
	}{
		{"no event type", `{"payload":{}}`, "event"},
		{"empty event type", `{"event":"  "}`, "event"},
		{"no payload", `{"event":"invitee.created"}`, "payload"},
		{"no invitee", `{"event":"invitee.created","payload":{"event":{}}}`, "invitee"},
		{"no scheduled event", `{"event":"invitee.created","payload":{"invitee":{}}}`, "event"},
		{
			"no invitee email",
			`{"event":"invitee.created","payload":{"invitee":{"uuid":"i","name":"n"},"event":{"uuid":"e","name":"c","start_time":"2025-03-10T15:00:00Z","end_time":"2025-03-10T15:30:00Z"}}}`,
			"invitee.email",
		},
		{
			"no end time",
			`{"event":"invitee.canceled","payload":{"invitee":{"uuid":"i","email":"e@x","name":"n"},"event":{"uuid":"e","name":"c","start_time":"2025-03-10T15:00:00Z"}}}`,
			"event.end_time",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body), time.Now())
			if !errors.Is(err, ErrMissingField) {
				t.Fatalf("Expected ErrMissingField, got %v", err)
			}

			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("Expected *FieldError, got %T", err)
			}
			if fieldErr.Field != tc.field {
				t.Errorf("Expected missing field %q, got %q", tc.field, fieldErr.Field)
			}
		})
	}
}

func TestParse_InvalidFields(t *testing.T) {
	testCases := []struct {
		name  string
		body  string
		field string
	}{
		{"event type not a string", `{"event":42}`, "event"},
		{"body is an array", `[1,2,3]`, "body"},
		{
			"bad start time",
			`{"event":"invitee.created","payload":{"invitee":{"uuid":"i","email":"e@x","name":"n"},"event":{"uuid":"e","name":"c","start_time":"tomorrow","end_time":"2025-03-10T15:30:00Z"}}}`,
			"event.start_time",
		},
		{
			"invitee wrong shape",
			`{"event":"invitee.created","payload":{"invitee":"jane"}}`,
			"payload.invitee",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body), time.Now())
			if !errors.Is(err, ErrInvalidField) {
				t.Fatalf("Expected ErrInvalidField, got %v", err)
			}

			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("Expected *FieldError, got %T", err)
			}
			if fieldErr.Field != tc.field {
				t.Errorf("Expected field %q, got %q", tc.field, fieldErr.Field)
			}
		})
	}
}
