package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"peregovorka/internal/domain"
	"peregovorka/internal/models"

	"github.com/mattn/go-sqlite3"
)

const bookingColumns = `id, room_name, user_id, username, start_time, end_time, created_at`

// CreateBooking inserts the booking and fills in ID and CreatedAt.
// Overlap checks are the caller's job.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking is nil")
	}
	if booking.EndTime.Unix() <= booking.StartTime.Unix() {
		return fmt.Errorf("invalid booking interval: end %s is not after start %s",
			booking.EndTime.Format(models.StoredTimeLayout), booking.StartTime.Format(models.StoredTimeLayout))
	}

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	res, err := db.ExecContext(ctx, `
        INSERT INTO bookings (room_name, user_id, username, start_time, end_time, start_unix, end_unix, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.RoomName, booking.UserID, booking.Username,
		booking.StartTime.Format(models.StoredTimeLayout), booking.EndTime.Format(models.StoredTimeLayout),
		booking.StartTime.Unix(), booking.EndTime.Unix(), stamp(createdAt),
	)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("room %q: %w", booking.RoomName, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get booking id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = createdAt

	db.logger.Debug().
		Int64("booking_id", id).
		Str("room", booking.RoomName).
		Int64("user_id", booking.UserID).
		Msg("booking created")
	return nil
}

// GetActiveBookings returns the room's bookings that have not ended at the given instant, earliest first.
func (db *DB) GetActiveBookings(ctx context.Context, roomName string, at time.Time) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `
        SELECT `+bookingColumns+` FROM bookings
        WHERE room_name = ? AND end_unix > ?
        ORDER BY start_unix ASC, id ASC`, roomName, at.Unix())
}

func (db *DB) FindBookingByRoomAndUser(ctx context.Context, roomName string, userID int64, at time.Time) (*models.Booking, error) {
	// Bookings on one room never overlap, so the earliest unfinished one is the active one if any.
	bookings, err := db.queryBookings(ctx, `
        SELECT `+bookingColumns+` FROM bookings
        WHERE room_name = ? AND user_id = ? AND end_unix > ?
        ORDER BY start_unix ASC, id ASC
        LIMIT 1`, roomName, userID, at.Unix())
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return bookings[0], nil
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListUserBookings returns the user's unfinished bookings, active ones first, then by start time.
func (db *DB) ListUserBookings(ctx context.Context, userID int64, at time.Time) ([]*models.Booking, error) {
	now := at.Unix()
	return db.queryBookings(ctx, `
        SELECT `+bookingColumns+` FROM bookings
        WHERE user_id = ? AND end_unix > ?
        ORDER BY (start_unix <= ?) DESC, start_unix ASC, id ASC`, userID, now, now)
}

// ListBookings returns every unfinished booking ordered by room and start time.
func (db *DB) ListBookings(ctx context.Context, at time.Time) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `
        SELECT `+bookingColumns+` FROM bookings
        WHERE end_unix > ?
        ORDER BY room_name ASC, start_unix ASC, id ASC`, at.Unix())
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(r rowScanner) (*models.Booking, error) {
	var (
		b                           models.Booking
		startStr, endStr, createdAt string
	)
	if err := r.Scan(&b.ID, &b.RoomName, &b.UserID, &b.Username, &startStr, &endStr, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	var err error
	if b.StartTime, err = time.Parse(models.StoredTimeLayout, startStr); err != nil {
		return nil, fmt.Errorf("failed to parse start_time of booking %d: %w", b.ID, err)
	}
	if b.EndTime, err = time.Parse(models.StoredTimeLayout, endStr); err != nil {
		return nil, fmt.Errorf("failed to parse end_time of booking %d: %w", b.ID, err)
	}
	if b.CreatedAt, err = parseStamp(createdAt); err != nil {
		return nil, errors.Join(fmt.Errorf("booking %d", b.ID), err)
	}
	return &b, nil
}
