// Package notify tells the business about booking changes once they are
// stored: by running hook commands, by email, or both.
package notify

import (
	"context"
	"errors"
	"fmt"

	"bookhook/internal/webhook"

	"golang.org/x/time/rate"
)

// Multi fans an event out to every notifier and joins their errors.
// A failing notifier does not stop the ones after it.
type Multi []webhook.Notifier

func (m Multi) Notify(ctx context.Context, ev webhook.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Throttled limits how often the wrapped notifier runs. Notify waits for a
// token, so a burst of bookings is delayed rather than dropped, unless ctx
// expires first.
type Throttled struct {
	Next    webhook.Notifier
	Limiter *rate.Limiter
}

// NewThrottled allows perMinute notifications with the given burst
func NewThrottled(next webhook.Notifier, perMinute, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		Next:    next,
		Limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

func (t *Throttled) Notify(ctx context.Context, ev webhook.Event) error {
	if err := t.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification throttled: %w", err)
	}
	return t.Next.Notify(ctx, ev)
}

// eventEnv exposes the booking to hook commands
func eventEnv(ev webhook.Event) []string {
	return []string{
		"BOOKHOOK_EVENT_KIND=" + ev.Kind.String(),
		"BOOKHOOK_EVENT_TYPE=" + ev.Type,
		"BOOKHOOK_INVITEE_ID=" + ev.InviteeID,
		"BOOKHOOK_INVITEE_EMAIL=" + ev.InviteeEmail,
		"BOOKHOOK_INVITEE_NAME=" + ev.InviteeName,
		"BOOKHOOK_EVENT_NAME=" + ev.EventName,
		"BOOKHOOK_LOCATION=" + ev.Location,
		"BOOKHOOK_START_TIME=" + formatTime(ev.StartTime),
		"BOOKHOOK_END_TIME=" + formatTime(ev.EndTime),
	}
}
