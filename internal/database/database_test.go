package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"peregovorka/internal/domain"
	"peregovorka/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_Reopen(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "nested", "dir", "data.db")

	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	_, err = db.CreateRoom(ctx, "Mars", 4)
	require.NoError(t, err)
	require.NoError(t, db.SetSetting(ctx, models.SettingTimezoneOffset, "+3"))
	require.NoError(t, db.Close())

	db, err = NewDB(path, &logger)
	require.NoError(t, err)
	defer db.Close()

	rooms, err := db.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Mars", rooms[0].Name)

	tz, err := db.GetSetting(ctx, models.SettingTimezoneOffset, models.DefaultTimezoneOffset)
	require.NoError(t, err)
	assert.Equal(t, "+3", tz)
}

func TestBookings_StoredWithOffset(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, err := db.CreateRoom(ctx, "Mars", 4)
	require.NoError(t, err)

	zone := time.FixedZone("UTC+3", 3*3600)
	start := time.Date(2026, 5, 4, 15, 0, 0, 0, zone)
	b := &models.Booking{RoomName: "Mars", UserID: 1, Username: "alice", StartTime: start, EndTime: start.Add(time.Hour)}
	require.NoError(t, db.CreateBooking(ctx, b))

	var startText, endText, createdText string
	var startUnix int64
	err = db.QueryRowContext(ctx, `SELECT start_time, end_time, start_unix, created_at FROM bookings WHERE id = ?`, b.ID).
		Scan(&startText, &endText, &startUnix, &createdText)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-04T15:00:00+03:00", startText)
	assert.Equal(t, "2026-05-04T16:00:00+03:00", endText)
	assert.Equal(t, start.Unix(), startUnix)
	assert.Contains(t, createdText, "Z")

	got, err := db.GetActiveBookings(ctx, "Mars", start)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, offset := got[0].StartTime.Zone()
	assert.Equal(t, 3*3600, offset)
	assert.True(t, got[0].StartTime.Equal(start))
}

func TestBookings_FilterAcrossOffsets(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, err := db.CreateRoom(ctx, "Mars", 4)
	require.NoError(t, err)

	// 10:00+05:00 is 05:00Z; textual comparison against a UTC instant would get this wrong.
	east := time.FixedZone("UTC+5", 5*3600)
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, east)
	require.NoError(t, db.CreateBooking(ctx, &models.Booking{
		RoomName: "Mars", UserID: 1, Username: "alice", StartTime: start, EndTime: start.Add(time.Hour),
	}))

	at := time.Date(2026, 5, 4, 5, 30, 0, 0, time.UTC)
	got, err := db.GetActiveBookings(ctx, "Mars", at)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = db.GetActiveBookings(ctx, "Mars", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateBooking_Rejects(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)

	err := db.CreateBooking(ctx, &models.Booking{
		RoomName: "Ghost", UserID: 1, Username: "alice", StartTime: start, EndTime: start.Add(time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = db.CreateRoom(ctx, "Mars", 4)
	require.NoError(t, err)
	err = db.CreateBooking(ctx, &models.Booking{
		RoomName: "Mars", UserID: 1, Username: "alice", StartTime: start, EndTime: start,
	})
	assert.Error(t, err)
	assert.Error(t, db.CreateBooking(ctx, nil))
}

func TestDeleteRoom_CascadesInTransaction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, err := db.CreateRoom(ctx, "Mars", 4)
	require.NoError(t, err)

	start := time.Now().Add(time.Hour)
	for i := 0; i < 3; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.CreateBooking(ctx, &models.Booking{
			RoomName: "Mars", UserID: 1, Username: "alice", StartTime: s, EndTime: s.Add(time.Hour),
		}))
	}

	require.NoError(t, db.DeleteRoom(ctx, "Mars"))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&count))
	assert.Zero(t, count)
}

func TestAdmins_AddedByBootstrap(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, err := db.AddAdmin(ctx, 42, models.BootstrapAddedBy)
	require.NoError(t, err)

	admins, err := db.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.True(t, admins[0].IsBootstrap())
	assert.WithinDuration(t, time.Now(), admins[0].AddedAt, time.Minute)
}
