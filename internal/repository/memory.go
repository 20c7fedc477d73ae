package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"peregovorka/internal/domain"
	"peregovorka/internal/models"
)

// InMemoryRepository keeps everything in process memory. It mirrors the SQLite
// store method for method and is used by tests and the dry-run driver.
type InMemoryRepository struct {
	mu       sync.RWMutex
	rooms    map[string]models.Room
	bookings map[int64]models.Booking
	admins   map[int64]models.Admin
	settings map[string]models.Setting
	nextID   int64
	now      func() time.Time
}

var _ domain.Repository = (*InMemoryRepository)(nil)

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rooms:    make(map[string]models.Room),
		bookings: make(map[int64]models.Booking),
		admins:   make(map[int64]models.Admin),
		settings: make(map[string]models.Setting),
		now:      time.Now,
	}
}

func (r *InMemoryRepository) stamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func (r *InMemoryRepository) CreateRoom(_ context.Context, name string, capacity int) (*models.Room, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("failed to create room: capacity must be positive, got %d", capacity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[name]; ok {
		return nil, fmt.Errorf("room %q: %w", name, domain.ErrAlreadyExists)
	}
	room := models.Room{Name: name, Capacity: capacity}
	r.rooms[name] = room
	return &room, nil
}

// DeleteRoom removes the room together with all of its bookings.
func (r *InMemoryRepository) DeleteRoom(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[name]; !ok {
		return fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	for id, b := range r.bookings {
		if b.RoomName == name {
			delete(r.bookings, id)
		}
	}
	delete(r.rooms, name)
	return nil
}

func (r *InMemoryRepository) GetRoom(_ context.Context, name string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[name]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	return &room, nil
}

func (r *InMemoryRepository) ListRooms(_ context.Context) ([]*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*models.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		room := room
		rooms = append(rooms, &room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms, nil
}

func (r *InMemoryRepository) CreateBooking(_ context.Context, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking is nil")
	}
	if booking.EndTime.Unix() <= booking.StartTime.Unix() {
		return fmt.Errorf("invalid booking interval: end %s is not after start %s",
			booking.EndTime.Format(models.StoredTimeLayout), booking.StartTime.Format(models.StoredTimeLayout))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[booking.RoomName]; !ok {
		return fmt.Errorf("room %q: %w", booking.RoomName, domain.ErrNotFound)
	}

	r.nextID++
	booking.ID = r.nextID
	booking.CreatedAt = r.stamp()
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *InMemoryRepository) GetActiveBookings(_ context.Context, roomName string, at time.Time) ([]*models.Booking, error) {
	return r.filterBookings(func(b *models.Booking) bool {
		return b.RoomName == roomName && b.EndTime.Unix() > at.Unix()
	}, byStart), nil
}

func (r *InMemoryRepository) FindBookingByRoomAndUser(_ context.Context, roomName string, userID int64, at time.Time) (*models.Booking, error) {
	found := r.filterBookings(func(b *models.Booking) bool {
		return b.RoomName == roomName && b.UserID == userID && b.EndTime.Unix() > at.Unix()
	}, byStart)
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r *InMemoryRepository) DeleteBooking(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[id]; !ok {
		return fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	delete(r.bookings, id)
	return nil
}

func (r *InMemoryRepository) ListUserBookings(_ context.Context, userID int64, at time.Time) ([]*models.Booking, error) {
	now := at.Unix()
	return r.filterBookings(func(b *models.Booking) bool {
		return b.UserID == userID && b.EndTime.Unix() > now
	}, func(a, b *models.Booking) bool {
		aActive, bActive := a.StartTime.Unix() <= now, b.StartTime.Unix() <= now
		if aActive != bActive {
			return aActive
		}
		return byStart(a, b)
	}), nil
}

func (r *InMemoryRepository) ListBookings(_ context.Context, at time.Time) ([]*models.Booking, error) {
	return r.filterBookings(func(b *models.Booking) bool {
		return b.EndTime.Unix() > at.Unix()
	}, func(a, b *models.Booking) bool {
		if a.RoomName != b.RoomName {
			return a.RoomName < b.RoomName
		}
		return byStart(a, b)
	}), nil
}

func byStart(a, b *models.Booking) bool {
	if a.StartTime.Unix() != b.StartTime.Unix() {
		return a.StartTime.Unix() < b.StartTime.Unix()
	}
	return a.ID < b.ID
}

func (r *InMemoryRepository) filterBookings(keep func(*models.Booking) bool, less func(a, b *models.Booking) bool) []*models.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.Booking{}
	for _, b := range r.bookings {
		b := b
		if keep(&b) {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *InMemoryRepository) AddAdmin(_ context.Context, userID, addedBy int64) (*models.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.admins[userID]; ok {
		return nil, fmt.Errorf("admin %d: %w", userID, domain.ErrAlreadyExists)
	}
	admin := models.Admin{UserID: userID, AddedBy: addedBy, AddedAt: r.stamp()}
	r.admins[userID] = admin
	return &admin, nil
}

func (r *InMemoryRepository) RemoveAdmin(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.admins[userID]; !ok {
		return fmt.Errorf("admin %d: %w", userID, domain.ErrNotFound)
	}
	if len(r.admins) <= 1 {
		return domain.ErrLastAdmin
	}
	delete(r.admins, userID)
	return nil
}

func (r *InMemoryRepository) ListAdmins(_ context.Context) ([]*models.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	admins := make([]*models.Admin, 0, len(r.admins))
	for _, a := range r.admins {
		a := a
		admins = append(admins, &a)
	}
	sort.Slice(admins, func(i, j int) bool {
		if !admins[i].AddedAt.Equal(admins[j].AddedAt) {
			return admins[i].AddedAt.Before(admins[j].AddedAt)
		}
		return admins[i].UserID < admins[j].UserID
	})
	return admins, nil
}

func (r *InMemoryRepository) IsAdmin(_ context.Context, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.admins[userID]
	return ok, nil
}

func (r *InMemoryRepository) SetSetting(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[key] = models.Setting{Key: key, Value: value, UpdatedAt: r.stamp()}
	return nil
}

func (r *InMemoryRepository) GetSetting(_ context.Context, key, def string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[key]
	if !ok {
		return def, nil
	}
	return s.Value, nil
}
