package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"peregovorka/internal/domain"
	"peregovorka/internal/models"

	"github.com/mattn/go-sqlite3"
)

func (db *DB) CreateRoom(ctx context.Context, name string, capacity int) (*models.Room, error) {
	_, err := db.ExecContext(ctx, `INSERT INTO rooms (name, capacity) VALUES (?, ?)`, name, capacity)
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique) {
			return nil, fmt.Errorf("room %q: %w", name, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return &models.Room{Name: name, Capacity: capacity}, nil
}

// DeleteRoom removes the room together with all of its bookings.
func (db *DB) DeleteRoom(ctx context.Context, name string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE name = ?`, name).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check room: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE room_name = ?`, name)
		if err != nil {
			return fmt.Errorf("failed to delete room bookings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE name = ?`, name); err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}

		deleted, _ := res.RowsAffected()
		db.logger.Debug().Str("room", name).Int64("bookings_deleted", deleted).Msg("room deleted")
		return nil
	})
}

func (db *DB) GetRoom(ctx context.Context, name string) (*models.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT name, capacity FROM rooms WHERE name = ?`, name)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// ListRooms returns rooms sorted by name.
func (db *DB) ListRooms(ctx context.Context) ([]*models.Room, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, capacity FROM rooms ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []*models.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func scanRoom(r rowScanner) (*models.Room, error) {
	var room models.Room
	if err := r.Scan(&room.Name, &room.Capacity); err != nil {
		return nil, err
	}
	return &room, nil
}
