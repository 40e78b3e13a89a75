package booking

import (
	"time"

	"bookhook/internal/webhook"
)

// Status is the lifecycle state of a stored booking
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCanceled  Status = "canceled"
)

// Booking is the stored state for one invitee
type Booking struct {
	InviteeID  string    `json:"invitee_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	Location   string    `json:"location,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     Status    `json:"status"`
	Version    time.Time `json:"version"` // sender updated_at, or receipt time when absent
	ReceivedAt time.Time `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeliveryRecord is one inbound webhook delivery in the audit log
type DeliveryRecord struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	EventType  string    `json:"event_type,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	InviteeID  string    `json:"invitee_id,omitempty"`
	Outcome    string    `json:"outcome"` // applied, duplicate, ignored, downstream_failure, rejected, invalid, error
	ReceivedAt time.Time `json:"received_at"`
}

func statusFor(kind webhook.Kind) (Status, bool) {
	switch kind {
	case webhook.KindBookingCreated:
		return StatusScheduled, true
	case webhook.KindBookingCanceled:
		return StatusCanceled, true
	default:
		return "", false
	}
}

// merge applies ev on top of existing (nil when the invitee is new). It
// returns the booking to persist, whether it must be written, and whether the
// stored booking visibly changes.
//
// Deliveries can arrive out of order, so an event older than the stored
// version is dropped. On a version tie a cancellation wins. A newer event
// with identical content only advances the stored version.
func merge(existing *Booking, ev webhook.Event, now time.Time) (next Booking, write, changed bool) {
	status, ok := statusFor(ev.Kind)
	if !ok {
		return Booking{}, false, false
	}

	next = Booking{
		InviteeID:  ev.InviteeID,
		Email:      ev.InviteeEmail,
		Name:       ev.InviteeName,
		EventID:    ev.EventID,
		EventName:  ev.EventName,
		Location:   ev.Location,
		StartTime:  ev.StartTime.UTC(),
		EndTime:    ev.EndTime.UTC(),
		Status:     status,
		Version:    ev.Version().UTC(),
		ReceivedAt: ev.ReceivedAt.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if existing == nil {
		return next, true, true
	}

	if next.Version.Before(existing.Version) {
		return *existing, false, false
	}
	if next.Version.Equal(existing.Version) && existing.Status == StatusCanceled && status == StatusScheduled {
		return *existing, false, false
	}

	next.CreatedAt = existing.CreatedAt
	if sameBooking(*existing, next) {
		if !next.Version.After(existing.Version) {
			return *existing, false, false
		}
		return next, true, false
	}

	return next, true, true
}

func sameBooking(a, b Booking) bool {
	return a.Status == b.Status &&
		a.Email == b.Email &&
		a.Name == b.Name &&
		a.EventID == b.EventID &&
		a.EventName == b.EventName &&
		a.Location == b.Location &&
		a.StartTime.Equal(b.StartTime) &&
		a.EndTime.Equal(b.EndTime)
}
