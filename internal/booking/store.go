package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookhook/internal/webhook"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists bookings and the delivery log in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (creating if needed) the booking database at dbPath
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS bookings (
			invitee_id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_name TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL,
			version TEXT NOT NULL,
			received_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create bookings table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bookings_start
		ON bookings(start_time DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create bookings index: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT '',
			invitee_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			received_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create deliveries table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deliveries_received
		ON deliveries(received_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create deliveries index: %w", err)
	}

	return nil
}

// UpsertBooking stores ev keyed by invitee ID. It reports false when the
// event is a duplicate, older than the stored state, or not a booking event.
// A newer duplicate still advances the stored version.
func (s *Store) UpsertBooking(ctx context.Context, ev webhook.Event) (bool, error) {
	if _, ok := statusFor(ev.Kind); !ok {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanBooking(tx.QueryRowContext(ctx, selectBooking+` WHERE invitee_id = ?`, ev.InviteeID))
	if errors.Is(err, sql.ErrNoRows) {
		existing = nil
	} else if err != nil {
		return false, fmt.Errorf("failed to load booking: %w", err)
	}

	next, write, changed := merge(existing, ev, s.now())
	if !write {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings
		(invitee_id, email, name, event_id, event_name, location, start_time,
		 end_time, status, version, received_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(invitee_id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			event_id = excluded.event_id,
			event_name = excluded.event_name,
			location = excluded.location,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			version = excluded.version,
			received_at = excluded.received_at,
			updated_at = excluded.updated_at
	`,
		next.InviteeID,
		next.Email,
		next.Name,
		next.EventID,
		next.EventName,
		next.Location,
		formatTime(next.StartTime),
		formatTime(next.EndTime),
		string(next.Status),
		formatTime(next.Version),
		formatTime(next.ReceivedAt),
		formatTime(next.CreatedAt),
		formatTime(next.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit booking: %w", err)
	}

	return changed, nil
}

// GetBooking returns the booking for an invitee, or nil if there is none
func (s *Store) GetBooking(ctx context.Context, inviteeID string) (*Booking, error) {
	b, err := scanBooking(s.db.QueryRowContext(ctx, selectBooking+` WHERE invitee_id = ?`, inviteeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query booking: %w", err)
	}

	return b, nil
}

// ListBookings returns bookings ordered by start time, latest first
func (s *Store) ListBookings(ctx context.Context, limit int) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, selectBooking+`
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return bookings, nil
}

// RecordDelivery appends a delivery to the audit log and returns its ID
func (s *Store) RecordDelivery(ctx context.Context, record *DeliveryRecord) (string, error) {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	receivedAt := record.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries
		(id, request_id, event_type, kind, invitee_id, outcome, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		record.RequestID,
		record.EventType,
		record.Kind,
		record.InviteeID,
		record.Outcome,
		formatTime(receivedAt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert delivery record: %w", err)
	}

	return id, nil
}

// RecentDeliveries returns the latest deliveries, newest first
func (s *Store) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, event_type, kind, invitee_id, outcome, received_at
		FROM deliveries
		ORDER BY received_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var records []DeliveryRecord
	for rows.Next() {
		var record DeliveryRecord
		var receivedAt string
		if err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.EventType,
			&record.Kind,
			&record.InviteeID,
			&record.Outcome,
			&receivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		if record.ReceivedAt, err = parseTime(receivedAt); err != nil {
			return nil, fmt.Errorf("failed to parse received_at timestamp: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

const selectBooking = `
	SELECT invitee_id, email, name, event_id, event_name, location, start_time,
	       end_time, status, version, received_at, created_at, updated_at
	FROM bookings`

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(s scanner) (*Booking, error) {
	var b Booking
	var status string
	var times [6]string

	err := s.Scan(
		&b.InviteeID,
		&b.Email,
		&b.Name,
		&b.EventID,
		&b.EventName,
		&b.Location,
		&times[0],
		&times[1],
		&status,
		&times[2],
		&times[3],
		&times[4],
		&times[5],
	)
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)

	targets := []*time.Time{&b.StartTime, &b.EndTime, &b.Version, &b.ReceivedAt, &b.CreatedAt, &b.UpdatedAt}
	for i, target := range targets {
		parsed, err := parseTime(times[i])
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		*target = parsed
	}

	return &b, nil
}

// timeLayout is fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

var _ webhook.Store = (*Store)(nil)
