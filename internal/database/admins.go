package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"peregovorka/internal/domain"
	"peregovorka/internal/models"

	"github.com/mattn/go-sqlite3"
)

// AddAdmin returns the admin as stored, AddedAt at microsecond precision.
func (db *DB) AddAdmin(ctx context.Context, userID, addedBy int64) (*models.Admin, error) {
	admin := &models.Admin{UserID: userID, AddedBy: addedBy, AddedAt: time.Now().UTC().Truncate(time.Microsecond)}
	_, err := db.ExecContext(ctx,
		`INSERT INTO admins (user_id, added_by, added_at) VALUES (?, ?, ?)`,
		userID, addedBy, stamp(admin.AddedAt))
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique) {
			return nil, fmt.Errorf("admin %d: %w", userID, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to add admin: %w", err)
	}
	return admin, nil
}

// RemoveAdmin refuses to delete the only remaining admin.
func (db *DB) RemoveAdmin(ctx context.Context, userID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}

		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE user_id = ?`, userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("admin %d: %w", userID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check admin: %w", err)
		}
		if count <= 1 {
			return domain.ErrLastAdmin
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to remove admin: %w", err)
		}
		return nil
	})
}

// ListAdmins returns admins in the order they were granted.
func (db *DB) ListAdmins(ctx context.Context) ([]*models.Admin, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id, added_by, added_at FROM admins ORDER BY added_at ASC, user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	admins := []*models.Admin{}
	for rows.Next() {
		var (
			a       models.Admin
			addedBy sql.NullInt64
			addedAt string
		)
		if err := rows.Scan(&a.UserID, &addedBy, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		a.AddedBy = addedBy.Int64
		if a.AddedAt, err = parseStamp(addedAt); err != nil {
			return nil, err
		}
		admins = append(admins, &a)
	}
	return admins, rows.Err()
}

func (db *DB) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE user_id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return true, nil
}
