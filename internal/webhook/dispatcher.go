package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultDispatchTimeout bounds downstream work for a single delivery
	DefaultDispatchTimeout = 10 * time.Second

	// DefaultNotifyTimeout bounds the notifiers run for one applied change
	DefaultNotifyTimeout = 2 * time.Minute

	DetailApplied           = "applied"
	DetailDuplicate         = "duplicate"
	DetailIgnored           = "ignored"
	DetailDownstreamFailure = "downstream_failure"
)

var ErrDownstreamFailure = errors.New("downstream failure")

// Store persists booking events. Implementations must upsert by invitee ID so
// repeated deliveries have no additional effect; applied reports whether the
// stored booking changed.
type Store interface {
	UpsertBooking(ctx context.Context, ev Event) (applied bool, err error)
}

// Notifier is told about booking changes after they are stored
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Handler processes one kind of event
type Handler func(ctx context.Context, ev Event) (applied bool, err error)

// HandlerResult is what the intake endpoint learns about a dispatched event
type HandlerResult struct {
	Accepted bool
	Detail   string
}

// Dispatcher routes normalized events to per-kind handlers.
//
// Downstream failures never reach the caller: they are logged and the event
// is still reported as accepted, since sender retries would only replay the
// same payload. Notifiers run in the background after the invitee lock is
// released; Wait blocks until they finish.
type Dispatcher struct {
	Notifier      Notifier
	Timeout       time.Duration
	NotifyTimeout time.Duration
	Logger        *slog.Logger

	handlers map[Kind]Handler
	locks    *keyedLocks
	pending  sync.WaitGroup
}

// NewDispatcher creates a dispatcher that applies created and canceled bookings to store
func NewDispatcher(store Store, notifier Notifier, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		Notifier:      notifier,
		Timeout:       DefaultDispatchTimeout,
		NotifyTimeout: DefaultNotifyTimeout,
		Logger:        logger,
		handlers:      make(map[Kind]Handler),
		locks:         newKeyedLocks(),
	}

	d.Handle(KindBookingCreated, store.UpsertBooking)
	d.Handle(KindBookingCanceled, store.UpsertBooking)

	return d
}

// Handle registers h for kind, replacing any existing handler
func (d *Dispatcher) Handle(kind Kind, h Handler) {
	d.handlers[kind] = h
}

// Dispatch runs the handler registered for ev.Kind
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) HandlerResult {
	handler, ok := d.handlers[ev.Kind]
	if !ok {
		d.Logger.Info("webhook_event_ignored", "type", ev.Type, "kind", ev.Kind.String())
		return HandlerResult{Accepted: true, Detail: DetailIgnored}
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	unlock := d.locks.Lock(ev.InviteeID)
	applied, err := d.invoke(handlerCtx, handler, ev)
	unlock()

	if err != nil {
		d.Logger.Error("booking_dispatch_failed",
			"error", err,
			"kind", ev.Kind.String(),
			"invitee_id", ev.InviteeID)
		return HandlerResult{Accepted: true, Detail: DetailDownstreamFailure}
	}

	if !applied {
		d.Logger.Info("booking_unchanged", "kind", ev.Kind.String(), "invitee_id", ev.InviteeID)
		return HandlerResult{Accepted: true, Detail: DetailDuplicate}
	}

	d.Logger.Info("booking_applied",
		"kind", ev.Kind.String(),
		"invitee_id", ev.InviteeID,
		"event_name", ev.EventName,
		"start_time", ev.StartTime)

	if d.Notifier != nil {
		d.pending.Add(1)
		go d.notify(context.WithoutCancel(ctx), ev)
	}

	return HandlerResult{Accepted: true, Detail: DetailApplied}
}

// Wait blocks until background notifications finish or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) notify(ctx context.Context, ev Event) {
	defer d.pending.Done()

	timeout := d.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error("booking_notification_panic",
				"panic", fmt.Sprint(r),
				"kind", ev.Kind.String(),
				"invitee_id", ev.InviteeID)
		}
	}()

	if err := d.Notifier.Notify(ctx, ev); err != nil {
		d.Logger.Error("booking_notification_failed",
			"error", err,
			"kind", ev.Kind.String(),
			"invitee_id", ev.InviteeID)
	}
}

// invoke calls handler, converting errors and panics into ErrDownstreamFailure
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, ev Event) (applied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			applied = false
			err = fmt.Errorf("%w: handler panic: %v", ErrDownstreamFailure, r)
		}
	}()

	applied, err = handler(ctx, ev)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrDownstreamFailure, err)
	}

	return applied, nil
}
