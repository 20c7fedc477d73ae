package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"peregovorka/internal/database"
	"peregovorka/internal/domain"
	"peregovorka/internal/events"
	"peregovorka/internal/models"
	"peregovorka/internal/repository"
	"peregovorka/internal/timezone"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bootstrapID int64 = 1

type fixture struct {
	svc   *ReservationService
	repo  domain.Repository
	clock *timezone.Provider
	bus   *events.EventBus
	now   time.Time
	mu    sync.Mutex
}

func newFixture(t *testing.T, repo domain.Repository) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	f := &fixture{
		repo: repo,
		bus:  events.NewEventBus(),
		now:  time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
	f.clock = timezone.NewProvider(repo, &logger)
	f.clock.SetClock(func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	})
	f.svc = NewReservationService(repo, f.clock, f.bus, &logger)
	require.NoError(t, f.svc.Bootstrap(context.Background(), bootstrapID))
	return f
}

func newMemoryFixture(t *testing.T) *fixture {
	return newFixture(t, repository.NewInMemoryRepository())
}

func (f *fixture) setNow(hour, minute int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func (f *fixture) addRoom(t *testing.T, name string, capacity int) {
	t.Helper()
	res, err := f.svc.AddRoom(context.Background(), bootstrapID, name, capacity)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
}

func (f *fixture) book(t *testing.T, room string, userID int64, username, timeRange string) models.Result[*models.Booking] {
	t.Helper()
	res, err := f.svc.BookRoom(context.Background(), room, userID, username, timeRange)
	require.NoError(t, err)
	return res
}

func TestScenario_SimpleBooking(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)

	res := f.book(t, "Mars", 1, "Alice", "15:00-16:00")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, models.KindNone, res.Kind)
	require.NotNil(t, res.Data)
	assert.NotZero(t, res.Data.ID)
	assert.Equal(t, "Mars", res.Data.RoomName)
	assert.Contains(t, res.Message, "15:00-16:00")

	f.setNow(15, 10)
	status, err := f.svc.GetRoomStatus(ctx, "Mars")
	require.NoError(t, err)
	require.True(t, status.Success)
	require.True(t, status.Data.IsOccupied())
	assert.Equal(t, "Alice", status.Data.Booking.Username)
	assert.Equal(t, "16:00", status.Data.Booking.EndTime.Format(models.ClockLayout))
	assert.Contains(t, status.Message, "Alice")
	assert.Contains(t, status.Message, "16:00")
}

func TestScenario_Conflict(t *testing.T) {
	f := newMemoryFixture(t)
	f.addRoom(t, "Mars", 6)
	f.setNow(14, 10)

	require.True(t, f.book(t, "Mars", 1, "Alice", "14:00-15:00").Success)

	res := f.book(t, "Mars", 2, "Bob", "14:30-15:30")
	assert.False(t, res.Success)
	assert.Equal(t, models.KindConflict, res.Kind)
	assert.Contains(t, res.Message, "15:00")
	assert.Nil(t, res.Data)

	// touching intervals do not overlap
	assert.True(t, f.book(t, "Mars", 2, "Bob", "15:00-15:30").Success)
	assert.True(t, f.book(t, "Mars", 2, "Bob", "13:00-14:00").Success)
}

func TestScenario_Release(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)
	f.setNow(14, 10)

	require.True(t, f.book(t, "Mars", 1, "Alice", "14:00-15:00").Success)

	res, err := f.svc.ReleaseRoom(ctx, "Mars", 2)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.KindNotOwner, res.Kind)

	res, err = f.svc.ReleaseRoom(ctx, "Mars", 1)
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	require.NotNil(t, res.Data)
	assert.Equal(t, int64(1), res.Data.UserID)

	assert.True(t, f.book(t, "Mars", 2, "Bob", "14:00-15:00").Success)
}

func TestRelease_Variants(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)
	f.setNow(10, 30)

	t.Run("UnknownRoom", func(t *testing.T) {
		res, err := f.svc.ReleaseRoom(ctx, "Pluto", 1)
		require.NoError(t, err)
		assert.Equal(t, models.KindNotFound, res.Kind)
	})

	t.Run("NothingBooked", func(t *testing.T) {
		res, err := f.svc.ReleaseRoom(ctx, "Mars", 1)
		require.NoError(t, err)
		assert.Equal(t, models.KindNotFound, res.Kind)
	})

	t.Run("ActiveBeforeUpcoming", func(t *testing.T) {
		upcoming := f.book(t, "Mars", 1, "Alice", "12:00-13:00")
		active := f.book(t, "Mars", 1, "Alice", "10:00-11:00")
		require.True(t, upcoming.Success)
		require.True(t, active.Success)

		res, err := f.svc.ReleaseRoom(ctx, "Mars", 1)
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, active.Data.ID, res.Data.ID)

		res, err = f.svc.ReleaseRoom(ctx, "Mars", 1)
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, upcoming.Data.ID, res.Data.ID)
	})

	t.Run("EndedBookingIsNotReleased", func(t *testing.T) {
		require.True(t, f.book(t, "Mars", 1, "Alice", "08:00-09:00").Success)
		res, err := f.svc.ReleaseRoom(ctx, "Mars", 1)
		require.NoError(t, err)
		assert.Equal(t, models.KindNotFound, res.Kind)
	})
}

func TestScenario_ExpiryWithoutDeletion(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)
	f.addRoom(t, "Venus", 4)
	f.setNow(9, 30)

	require.True(t, f.book(t, "Mars", 1, "Alice", "09:00-10:00").Success)

	av, err := f.svc.ListAvailableRooms(ctx)
	require.NoError(t, err)
	require.Len(t, av.Data.Occupied, 1)
	assert.Equal(t, "Mars", av.Data.Occupied[0].Room.Name)
	assert.Equal(t, "10:00", av.Data.Occupied[0].Booking.EndTime.Format(models.ClockLayout))
	require.Len(t, av.Data.Free, 1)
	assert.Equal(t, "Venus", av.Data.Free[0].Name)

	f.setNow(14, 30)
	av, err = f.svc.ListAvailableRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, av.Data.Occupied)
	assert.Len(t, av.Data.Free, 2)

	stored, err := f.repo.ListBookings(ctx, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, stored, 1, "expired booking stays in storage")
}

func TestScenario_Admin(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	added, err := f.svc.AddAdmin(ctx, bootstrapID, 99)
	require.NoError(t, err)
	require.True(t, added.Success)
	assert.Equal(t, int64(99), added.Data.UserID)
	assert.Equal(t, bootstrapID, added.Data.AddedBy)

	res, err := f.svc.AddRoom(ctx, 5, "Venus", 4)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.KindUnauthorized, res.Kind)

	res, err = f.svc.AddRoom(ctx, 99, "Venus", 4)
	require.NoError(t, err)
	assert.True(t, res.Success)

	removed, err := f.svc.RemoveAdmin(ctx, 99, bootstrapID)
	require.NoError(t, err)
	assert.True(t, removed.Success)

	removed, err = f.svc.RemoveAdmin(ctx, 99, 99)
	require.NoError(t, err)
	assert.False(t, removed.Success)
	assert.Equal(t, models.KindLastAdmin, removed.Kind)

	isAdmin, err := f.svc.IsAdmin(ctx, 99)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestAddAdmin_ReturnsStoredAdmin(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "admins.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := newFixture(t, db)
	ctx := context.Background()

	added, err := f.svc.AddAdmin(ctx, bootstrapID, 99)
	require.NoError(t, err)
	require.True(t, added.Success, added.Message)

	listed, err := f.svc.ListAdmins(ctx, bootstrapID)
	require.NoError(t, err)
	require.Len(t, listed.Data, 2)
	stored := listed.Data[1]
	assert.Equal(t, stored.UserID, added.Data.UserID)
	assert.Equal(t, stored.AddedBy, added.Data.AddedBy)
	assert.True(t, stored.AddedAt.Equal(added.Data.AddedAt), "returned %v, stored %v", added.Data.AddedAt, stored.AddedAt)
}

func TestAdmin_Operations(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	dup, err := f.svc.AddAdmin(ctx, bootstrapID, bootstrapID)
	require.NoError(t, err)
	assert.Equal(t, models.KindAlreadyExists, dup.Kind)

	bad, err := f.svc.AddAdmin(ctx, bootstrapID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.KindValidation, bad.Kind)

	missing, err := f.svc.RemoveAdmin(ctx, bootstrapID, 77)
	require.NoError(t, err)
	assert.Equal(t, models.KindNotFound, missing.Kind)

	list, err := f.svc.ListAdmins(ctx, bootstrapID)
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.True(t, list.Data[0].IsBootstrap())

	denied, err := f.svc.ListAdmins(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.KindUnauthorized, denied.Kind)

	deniedAdd, err := f.svc.AddAdmin(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, models.KindUnauthorized, deniedAdd.Kind)

	deniedExport, err := f.svc.ExportBookings(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.KindUnauthorized, deniedExport.Kind)
}

func TestBootstrap(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	f := newFixture(t, repo)
	ctx := context.Background()

	// already bootstrapped: a different configured id does not add a second admin
	require.NoError(t, f.svc.Bootstrap(ctx, 500))
	admins, err := repo.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, bootstrapID, admins[0].UserID)
	assert.Equal(t, models.BootstrapAddedBy, admins[0].AddedBy)

	assert.Error(t, f.svc.Bootstrap(ctx, 0))
}

func TestRooms_Lifecycle(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	res, err := f.svc.AddRoom(ctx, bootstrapID, "  Mars  ", 6)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "Mars", res.Data.Name)

	dup, err := f.svc.AddRoom(ctx, bootstrapID, "Mars", 2)
	require.NoError(t, err)
	assert.Equal(t, models.KindAlreadyExists, dup.Kind)

	for _, tc := range []struct {
		name     string
		capacity int
	}{{"", 4}, {"   ", 4}, {"Venus", 0}, {"Venus", -1}} {
		res, err := f.svc.AddRoom(ctx, bootstrapID, tc.name, tc.capacity)
		require.NoError(t, err)
		assert.Equal(t, models.KindValidation, res.Kind, "%q/%d", tc.name, tc.capacity)
	}

	f.addRoom(t, "Jupiter", 10)
	all, err := f.svc.ListAllRooms(ctx)
	require.NoError(t, err)
	require.Len(t, all.Data, 2)
	assert.Equal(t, "Jupiter", all.Data[0].Name)
	assert.Equal(t, "Mars", all.Data[1].Name)

	f.setNow(10, 0)
	require.True(t, f.book(t, "Mars", 1, "Alice", "10:00-11:00").Success)
	require.True(t, f.book(t, "Mars", 2, "Bob", "12:00-13:00").Success)

	deleted, err := f.svc.DeleteRoom(ctx, bootstrapID, "Mars")
	require.NoError(t, err)
	require.True(t, deleted.Success)
	assert.Equal(t, 6, deleted.Data.Capacity)

	left, err := f.repo.ListBookings(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, left)

	gone, err := f.svc.DeleteRoom(ctx, bootstrapID, "Mars")
	require.NoError(t, err)
	assert.Equal(t, models.KindNotFound, gone.Kind)

	denied, err := f.svc.DeleteRoom(ctx, 2, "Jupiter")
	require.NoError(t, err)
	assert.Equal(t, models.KindUnauthorized, denied.Kind)

	status, err := f.svc.GetRoomStatus(ctx, "Mars")
	require.NoError(t, err)
	assert.Equal(t, models.KindNotFound, status.Kind)
}

func TestBookRoom_Validation(t *testing.T) {
	f := newMemoryFixture(t)
	f.addRoom(t, "Mars", 6)

	res := f.book(t, "Pluto", 1, "Alice", "15:00-16:00")
	assert.Equal(t, models.KindNotFound, res.Kind)

	for _, in := range []string{"15:00", "15.00-16.00", "25:00-26:00", "15:00-16:60", "завтра", ""} {
		res := f.book(t, "Mars", 1, "Alice", in)
		assert.Equal(t, models.KindFormat, res.Kind, in)
	}

	for _, in := range []string{"16:00-15:00", "15:00-15:00"} {
		res := f.book(t, "Mars", 1, "Alice", in)
		assert.Equal(t, models.KindRange, res.Kind, in)
	}

	// the room is checked first
	assert.Equal(t, models.KindNotFound, f.book(t, "Pluto", 1, "Alice", "garbage").Kind)
}

func TestUserBookings(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)
	f.addRoom(t, "Venus", 4)
	f.setNow(10, 30)

	require.True(t, f.book(t, "Mars", 1, "Alice", "12:00-13:00").Success)
	require.True(t, f.book(t, "Venus", 1, "Alice", "10:00-11:00").Success)
	require.True(t, f.book(t, "Venus", 1, "Alice", "08:00-09:00").Success)
	require.True(t, f.book(t, "Mars", 2, "Bob", "10:00-11:00").Success)

	res, err := f.svc.GetUserBookings(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Venus", res.Data[0].Booking.RoomName)
	assert.True(t, res.Data[0].Active)
	assert.Equal(t, "Mars", res.Data[1].Booking.RoomName)
	assert.False(t, res.Data[1].Active)

	none, err := f.svc.GetUserBookings(ctx, 3)
	require.NoError(t, err)
	assert.True(t, none.Success)
	assert.Empty(t, none.Data)
}

func TestTimezone_Idempotence(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	for x := models.MinTimezoneOffset; x <= models.MaxTimezoneOffset; x++ {
		set, err := f.svc.SetTimezone(ctx, bootstrapID, x)
		require.NoError(t, err)
		require.True(t, set.Success)

		got, err := f.svc.GetCurrentTimezone(ctx)
		require.NoError(t, err)
		assert.Equal(t, x, got.Data.Offset)
	}

	_, err := f.svc.SetTimezone(ctx, bootstrapID, 3)
	require.NoError(t, err)
	for _, bad := range []int{15, -13} {
		res, err := f.svc.SetTimezone(ctx, bootstrapID, bad)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, models.KindRange, res.Kind)

		got, err := f.svc.GetCurrentTimezone(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Data.Offset)
		assert.Equal(t, "UTC+3", got.Data.Display)
		assert.Equal(t, "+3", got.Data.Value)
	}

	denied, err := f.svc.SetTimezone(ctx, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, models.KindUnauthorized, denied.Kind)

	// anyone may read it
	got, err := f.svc.GetCurrentTimezone(ctx)
	require.NoError(t, err)
	assert.True(t, got.Success)
}

func TestTimezone_AppliesToBookings(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)
	f.setNow(9, 0)

	_, err := f.svc.SetTimezone(ctx, bootstrapID, 3)
	require.NoError(t, err)

	// 09:00 UTC is 12:00 in UTC+3
	res := f.book(t, "Mars", 1, "Alice", "12:00-13:00")
	require.True(t, res.Success)
	assert.Equal(t, "2026-03-10T12:00:00+03:00", res.Data.StartTime.Format(models.StoredTimeLayout))

	status, err := f.svc.GetRoomStatus(ctx, "Mars")
	require.NoError(t, err)
	assert.True(t, status.Data.IsOccupied())

	// the same instant, seen from another offset, still conflicts
	_, err = f.svc.SetTimezone(ctx, bootstrapID, 0)
	require.NoError(t, err)
	conflict := f.book(t, "Mars", 2, "Bob", "09:30-10:30")
	assert.Equal(t, models.KindConflict, conflict.Kind)
	assert.Contains(t, conflict.Message, "10:00")
}

func TestExportBookings(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)
	f.addRoom(t, "Venus", 4)
	f.setNow(11, 0)

	require.True(t, f.book(t, "Venus", 1, "Alice", "12:00-13:00").Success)
	require.True(t, f.book(t, "Mars", 2, "Bob", "10:30-11:30").Success)
	require.True(t, f.book(t, "Mars", 2, "Bob", "09:00-10:00").Success)

	res, err := f.svc.ExportBookings(ctx, bootstrapID)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Mars", res.Data[0].RoomName)
	assert.Equal(t, "Venus", res.Data[1].RoomName)
}

func TestEventsPublished(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	var got []string
	var created events.BookingEventPayload
	f.bus.Subscribe(func(e *events.Event) error {
		got = append(got, e.Type)
		if e.Type == events.EventBookingCreated {
			return e.Decode(&created)
		}
		return nil
	}, events.AllEvents...)

	f.addRoom(t, "Mars", 6)
	require.True(t, f.book(t, "Mars", 1, "Alice", "15:00-16:00").Success)
	_, err := f.svc.ReleaseRoom(ctx, "Mars", 1)
	require.NoError(t, err)
	_, err = f.svc.AddAdmin(ctx, bootstrapID, 2)
	require.NoError(t, err)
	_, err = f.svc.RemoveAdmin(ctx, bootstrapID, 2)
	require.NoError(t, err)
	_, err = f.svc.SetTimezone(ctx, bootstrapID, 2)
	require.NoError(t, err)
	_, err = f.svc.DeleteRoom(ctx, bootstrapID, "Mars")
	require.NoError(t, err)

	// failures publish nothing
	f.book(t, "Mars", 1, "Alice", "15:00-16:00")

	assert.Equal(t, []string{
		events.EventRoomCreated,
		events.EventBookingCreated,
		events.EventBookingReleased,
		events.EventAdminAdded,
		events.EventAdminRemoved,
		events.EventTimezoneChanged,
		events.EventRoomDeleted,
	}, got)
	assert.Equal(t, "Mars", created.Room)
	assert.Equal(t, "Alice", created.Username)
}

func TestSeedRooms(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)

	created, err := f.svc.SeedRooms(ctx, []models.Room{
		{Name: "Mars", Capacity: 8},
		{Name: "Venus", Capacity: 4},
		{Name: "", Capacity: 4},
		{Name: "Broken", Capacity: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	mars, err := f.repo.GetRoom(ctx, "Mars")
	require.NoError(t, err)
	assert.Equal(t, 6, mars.Capacity)
}

// Random requests on one room never produce two overlapping bookings.
func TestProperty_NoOverlap(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.addRoom(t, "Mars", 6)
	f.setNow(0, 0)

	rng := rand.New(rand.NewSource(42))
	accepted := 0
	for i := 0; i < 400; i++ {
		start := rng.Intn(23*60 + 59)
		end := start + 1 + rng.Intn(180)
		if end > 23*60+59 {
			end = 23*60 + 59
		}
		tr := fmt.Sprintf("%d:%02d-%d:%02d", start/60, start%60, end/60, end%60)
		res := f.book(t, "Mars", int64(rng.Intn(5)+1), "user", tr)
		if res.Success {
			accepted++
		} else {
			require.Contains(t, []models.Kind{models.KindConflict, models.KindRange}, res.Kind, tr)
		}
	}
	require.Positive(t, accepted)

	bookings, err := f.repo.GetActiveBookings(ctx, "Mars", time.Time{})
	require.NoError(t, err)
	require.Len(t, bookings, accepted)
	for i := range bookings {
		for j := i + 1; j < len(bookings); j++ {
			a, b := bookings[i], bookings[j]
			assert.False(t, a.Overlaps(b.StartTime, b.EndTime), "booking %d overlaps %d", a.ID, b.ID)
		}
	}
}

func TestConcurrentBooking_OneWinner(t *testing.T) {
	stores := map[string]func(t *testing.T) domain.Repository{
		"memory": func(*testing.T) domain.Repository { return repository.NewInMemoryRepository() },
		"sqlite": func(t *testing.T) domain.Repository {
			logger := zerolog.Nop()
			db, err := database.NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })
			return db
		},
	}

	for name, newRepo := range stores {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, newRepo(t))
			f.addRoom(t, "Mars", 6)
			f.addRoom(t, "Venus", 6)

			const workers = 32
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes = map[string]int{}
			)
			start := make(chan struct{})
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					room := "Mars"
					if i%2 == 1 {
						room = "Venus"
					}
					// every range contains 15:00-15:15
					tr := fmt.Sprintf("14:%02d-15:%02d", 30+i%15, 15+i%30)
					res, err := f.svc.BookRoom(context.Background(), room, int64(i+1), "user", tr)
					if err != nil {
						t.Error(err)
						return
					}
					if res.Success {
						mu.Lock()
						successes[room]++
						mu.Unlock()
					}
				}(i)
			}
			close(start)
			wg.Wait()

			assert.Equal(t, 1, successes["Mars"])
			assert.Equal(t, 1, successes["Venus"])
			assert.Zero(t, f.svc.locks.size())
		})
	}
}

type failingRepo struct {
	domain.Repository
	err error
}

func (r *failingRepo) GetRoom(context.Context, string) (*models.Room, error) {
	return nil, r.err
}

func (r *failingRepo) ListRooms(context.Context) ([]*models.Room, error) {
	return nil, r.err
}

func TestPersistenceErrors(t *testing.T) {
	f := newMemoryFixture(t)
	cause := errors.New("disk I/O error")
	logger := zerolog.Nop()
	svc := NewReservationService(&failingRepo{Repository: f.repo, err: cause}, f.clock, nil, &logger)
	ctx := context.Background()

	_, err := svc.BookRoom(ctx, "Mars", 1, "Alice", "15:00-16:00")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "book_room", perr.Op)
	assert.ErrorIs(t, err, cause)

	_, err = svc.ListAllRooms(ctx)
	assert.ErrorIs(t, err, cause)

	_, err = svc.ListAvailableRooms(ctx)
	assert.ErrorIs(t, err, cause)

	// unaffected operations keep working
	tz, err := svc.GetCurrentTimezone(ctx)
	require.NoError(t, err)
	assert.True(t, tz.Success)
}

func TestRoomLocks(t *testing.T) {
	l := newRoomLocks()

	unlockMars := l.lock("Mars")
	done := make(chan struct{})
	go func() {
		// a different room is not blocked
		unlock := l.lock("Venus")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on Venus blocked behind Mars")
	}

	acquired := make(chan struct{})
	go func() {
		unlock := l.lock("Mars")
		close(acquired)
		unlock()
	}()
	select {
	case <-acquired:
		t.Fatal("second holder acquired Mars")
	case <-time.After(50 * time.Millisecond):
	}

	unlockMars()
	<-acquired
	assert.Eventually(t, func() bool { return l.size() == 0 }, time.Second, 10*time.Millisecond)
}
