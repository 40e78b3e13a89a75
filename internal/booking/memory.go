package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookhook/internal/webhook"

	"github.com/google/uuid"
)

// MemoryStore keeps bookings and deliveries in process memory.
// It applies the same merge rules as Store, and like SQLite a negative
// limit means no limit.
type MemoryStore struct {
	mu         sync.RWMutex
	bookings   map[string]Booking
	deliveries []DeliveryRecord
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]Booking),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) UpsertBooking(ctx context.Context, ev webhook.Event) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var existing *Booking
	if b, ok := m.bookings[ev.InviteeID]; ok {
		existing = &b
	}

	next, write, changed := merge(existing, ev, m.now())
	if write {
		m.bookings[next.InviteeID] = next
	}

	return changed, nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, inviteeID string) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[inviteeID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MemoryStore) ListBookings(ctx context.Context, limit int) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bookings := make([]Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		bookings = append(bookings, b)
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartTime.After(bookings[j].StartTime)
	})

	if limit >= 0 && len(bookings) > limit {
		bookings = bookings[:limit]
	}
	return bookings, nil
}

func (m *MemoryStore) RecordDelivery(ctx context.Context, record *DeliveryRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *record
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = m.now()
	}
	m.deliveries = append(m.deliveries, stored)

	return stored.ID, nil
}

func (m *MemoryStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]DeliveryRecord, 0, len(m.deliveries))
	for i := len(m.deliveries) - 1; i >= 0 && (limit < 0 || len(records) < limit); i-- {
		records = append(records, m.deliveries[i])
	}
	return records, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Count returns the number of stored bookings
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bookings)
}

var _ webhook.Store = (*MemoryStore)(nil)
