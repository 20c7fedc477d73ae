package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"peregovorka/internal/domain"
	"peregovorka/internal/events"
	"peregovorka/internal/logging"
	"peregovorka/internal/models"
	"peregovorka/internal/timezone"

	"github.com/rs/zerolog"
)

const (
	msgRoomNotFound   = "❌ Переговорка '%s' не найдена"
	msgUnauthorized   = "❌ Эта команда доступна только администраторам"
	msgBadTimeFormat  = "❌ Неверный формат времени. Используйте HH:MM-HH:MM"
	msgBadTimeOrder   = "❌ Время начала должно быть раньше времени окончания"
	msgOffsetRange    = "❌ Смещение должно быть от %d до %+d"
	msgRoomNameEmpty  = "❌ Название переговорки не может быть пустым"
	msgCapacityPos    = "❌ Вместимость должна быть положительным числом"
	msgAdminIDInvalid = "❌ Некорректный ID пользователя"
)

// ReservationService owns every mutation of rooms, bookings, admins and settings.
type ReservationService struct {
	repo   domain.Repository
	clock  domain.TimeProvider
	events domain.EventPublisher
	locks  *roomLocks
	logger *zerolog.Logger
}

var _ domain.ReservationService = (*ReservationService)(nil)

func NewReservationService(repo domain.Repository, clock domain.TimeProvider, events domain.EventPublisher, logger *zerolog.Logger) *ReservationService {
	l := logger.With().Str("component", "reservation").Logger()
	return &ReservationService{
		repo:   repo,
		clock:  clock,
		events: events,
		locks:  newRoomLocks(),
		logger: &l,
	}
}

// Bootstrap seeds the first admin when there is none yet.
func (s *ReservationService) Bootstrap(ctx context.Context, adminID int64) error {
	if adminID <= 0 {
		return fmt.Errorf("invalid bootstrap admin id %d", adminID)
	}

	admins, err := s.repo.ListAdmins(ctx)
	if err != nil {
		return s.persistence(ctx, "bootstrap", err)
	}
	if len(admins) > 0 {
		return nil
	}

	_, err = s.repo.AddAdmin(ctx, adminID, models.BootstrapAddedBy)
	if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return s.persistence(ctx, "bootstrap", err)
	}
	s.logger.Info().Int64("admin_id", adminID).Msg("Bootstrap admin created")
	return nil
}

// SeedRooms creates the rooms that do not exist yet and returns how many were created.
func (s *ReservationService) SeedRooms(ctx context.Context, rooms []models.Room) (int, error) {
	created := 0
	for _, room := range rooms {
		name := strings.TrimSpace(room.Name)
		if name == "" || room.Capacity <= 0 {
			s.logger.Warn().Str("room", room.Name).Int("capacity", room.Capacity).Msg("Skipping invalid seed room")
			continue
		}
		_, err := s.repo.CreateRoom(ctx, name, room.Capacity)
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return created, s.persistence(ctx, "seed_rooms", err)
		}
		created++
	}
	return created, nil
}

func (s *ReservationService) ListAllRooms(ctx context.Context) (models.Result[[]*models.Room], error) {
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return models.Result[[]*models.Room]{}, s.persistence(ctx, "list_rooms", err)
	}
	if len(rooms) == 0 {
		return models.Ok(rooms, "Переговорок пока нет"), nil
	}
	return models.Ok(rooms, "Переговорок: %d", len(rooms)), nil
}

func (s *ReservationService) ListAvailableRooms(ctx context.Context) (models.Result[models.Availability], error) {
	now, err := s.clock.Now(ctx)
	if err != nil {
		return models.Result[models.Availability]{}, s.persistence(ctx, "list_available", err)
	}
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return models.Result[models.Availability]{}, s.persistence(ctx, "list_available", err)
	}

	var av models.Availability
	for _, room := range rooms {
		current, err := s.activeBooking(ctx, room.Name, now)
		if err != nil {
			return models.Result[models.Availability]{}, s.persistence(ctx, "list_available", err)
		}
		if current == nil {
			av.Free = append(av.Free, room)
			continue
		}
		av.Occupied = append(av.Occupied, models.OccupiedRoom{Room: room, Booking: current})
	}
	return models.Ok(av, "Свободно: %d, занято: %d", len(av.Free), len(av.Occupied)), nil
}

// BookRoom checks for overlap and inserts under the room lock, so two callers
// can never both see a free slot and both take it.
func (s *ReservationService) BookRoom(ctx context.Context, roomName string, userID int64, username, timeRange string) (models.Result[*models.Booking], error) {
	roomName = strings.TrimSpace(roomName)
	log := s.log(ctx).With().Str("room", roomName).Int64("user_id", userID).Logger()

	unlock := s.locks.lock(roomName)
	defer unlock()

	if _, err := s.repo.GetRoom(ctx, roomName); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.Fail[*models.Booking](models.KindNotFound, msgRoomNotFound, roomName), nil
		}
		return models.Result[*models.Booking]{}, s.persistence(ctx, "book_room", err)
	}

	start, end, err := s.clock.ParseTimeRange(ctx, timeRange)
	if err != nil {
		if errors.Is(err, timezone.ErrFormat) {
			log.Debug().Str("input", timeRange).Msg("bad time range")
			return models.Fail[*models.Booking](models.KindFormat, msgBadTimeFormat), nil
		}
		return models.Result[*models.Booking]{}, s.persistence(ctx, "book_room", err)
	}
	if !end.After(start) {
		return models.Fail[*models.Booking](models.KindRange, msgBadTimeOrder), nil
	}

	// Anything that ends after the new start may overlap it.
	existing, err := s.repo.GetActiveBookings(ctx, roomName, start)
	if err != nil {
		return models.Result[*models.Booking]{}, s.persistence(ctx, "book_room", err)
	}
	for _, b := range existing {
		if b.Overlaps(start, end) {
			log.Debug().Int64("conflict_id", b.ID).Msg("booking conflict")
			return models.Fail[*models.Booking](models.KindConflict, "❌ %s занят с %s до %s",
				roomName, clock(b.StartTime, start), clock(b.EndTime, start)), nil
		}
	}

	booking := &models.Booking{
		RoomName:  roomName,
		UserID:    userID,
		Username:  username,
		StartTime: start,
		EndTime:   end,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.Fail[*models.Booking](models.KindNotFound, msgRoomNotFound, roomName), nil
		}
		return models.Result[*models.Booking]{}, s.persistence(ctx, "book_room", err)
	}

	log.Info().Int64("booking_id", booking.ID).Msg("room booked")
	s.publish(ctx, events.EventBookingCreated, bookingPayload(booking))
	return models.Ok(booking, "✅ %s забронирован на %s-%s", roomName, clock(start, start), clock(end, start)), nil
}

// ReleaseRoom deletes the caller's booking that has not ended yet, the active one if any.
func (s *ReservationService) ReleaseRoom(ctx context.Context, roomName string, userID int64) (models.Result[*models.Booking], error) {
	roomName = strings.TrimSpace(roomName)

	unlock := s.locks.lock(roomName)
	defer unlock()

	if _, err := s.repo.GetRoom(ctx, roomName); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.Fail[*models.Booking](models.KindNotFound, msgRoomNotFound, roomName), nil
		}
		return models.Result[*models.Booking]{}, s.persistence(ctx, "release_room", err)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return models.Result[*models.Booking]{}, s.persistence(ctx, "release_room", err)
	}

	own, err := s.repo.FindBookingByRoomAndUser(ctx, roomName, userID, now)
	if err != nil {
		return models.Result[*models.Booking]{}, s.persistence(ctx, "release_room", err)
	}
	if own == nil {
		current, err := s.activeBooking(ctx, roomName, now)
		if err != nil {
			return models.Result[*models.Booking]{}, s.persistence(ctx, "release_room", err)
		}
		if current != nil && !current.IsOwner(userID) {
			return models.Fail[*models.Booking](models.KindNotOwner, "❌ %s забронирован не вами", roomName), nil
		}
		return models.Fail[*models.Booking](models.KindNotFound, "❌ У вас нет брони на %s", roomName), nil
	}

	if err := s.repo.DeleteBooking(ctx, own.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.Fail[*models.Booking](models.KindNotFound, "❌ У вас нет брони на %s", roomName), nil
		}
		return models.Result[*models.Booking]{}, s.persistence(ctx, "release_room", err)
	}

	s.log(ctx).Info().Str("room", roomName).Int64("user_id", userID).Int64("booking_id", own.ID).Msg("room released")
	s.publish(ctx, events.EventBookingReleased, bookingPayload(own))
	return models.Ok(own, "✅ %s освобожден", roomName), nil
}

func (s *ReservationService) GetRoomStatus(ctx context.Context, roomName string) (models.Result[models.RoomStatus], error) {
	roomName = strings.TrimSpace(roomName)

	room, err := s.repo.GetRoom(ctx, roomName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.Fail[models.RoomStatus](models.KindNotFound, msgRoomNotFound, roomName), nil
		}
		return models.Result[models.RoomStatus]{}, s.persistence(ctx, "room_status", err)
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return models.Result[models.RoomStatus]{}, s.persistence(ctx, "room_status", err)
	}
	current, err := s.activeBooking(ctx, roomName, now)
	if err != nil {
		return models.Result[models.RoomStatus]{}, s.persistence(ctx, "room_status", err)
	}

	status := models.RoomStatus{Room: room, Booking: current}
	if current == nil {
		return models.Ok(status, "%s свободен", room.Name), nil
	}
	return models.Ok(status, "%s: %s, до %s", room.Name, current.Username, clock(current.EndTime, now)), nil
}

func (s *ReservationService) GetUserBookings(ctx context.Context, userID int64) (models.Result[[]models.UserBooking], error) {
	now, err := s.clock.Now(ctx)
	if err != nil {
		return models.Result[[]models.UserBooking]{}, s.persistence(ctx, "user_bookings", err)
	}
	bookings, err := s.repo.ListUserBookings(ctx, userID, now)
	if err != nil {
		return models.Result[[]models.UserBooking]{}, s.persistence(ctx, "user_bookings", err)
	}

	out := make([]models.UserBooking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, models.UserBooking{Booking: b, Active: b.IsActive(now)})
	}
	if len(out) == 0 {
		return models.Ok(out, "У вас нет активных броней"), nil
	}
	return models.Ok(out, "Ваших броней: %d", len(out)), nil
}

func (s *ReservationService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	ok, err := s.repo.IsAdmin(ctx, userID)
	if err != nil {
		return false, s.persistence(ctx, "is_admin", err)
	}
	return ok, nil
}

func (s *ReservationService) AddRoom(ctx context.Context, callerID int64, name string, capacity int) (models.Result[*models.Room], error) {
	if res, ok, err := requireAdmin[*models.Room](ctx, s, callerID); !ok {
		return res, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return models.Fail[*models.Room](models.KindValidation, msgRoomNameEmpty), nil
	}
	if capacity <= 0 {
		return models.Fail[*models.Room](models.KindValidation, msgCapacityPos), nil
	}

	room, err := s.repo.CreateRoom(ctx, name, capacity)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return models.Fail[*models.Room](models.KindAlreadyExists, "❌ Переговорка '%s' уже существует", name), nil
		}
		return models.Result[*models.Room]{}, s.persistence(ctx, "add_room", err)
	}

	s.log(ctx).Info().Str("room", name).Int("capacity", capacity).Int64("by", callerID).Msg("room created")
	s.publish(ctx, events.EventRoomCreated, events.RoomEventPayload{Room: name, Capacity: capacity, ChangedByID: callerID})
	return models.Ok(room, "✅ Переговорка '%s' (до %d чел.) добавлена", name, capacity), nil
}

// DeleteRoom removes the room and every booking on it.
func (s *ReservationService) DeleteRoom(ctx context.Context, callerID int64, name string) (models.Result[*models.Room], error) {
	if res, ok, err := requireAdmin[*models.Room](ctx, s, callerID); !ok {
		return res, err
	}

	name = strings.TrimSpace(name)
	unlock := s.locks.lock(name)
	defer unlock()

	room, err := s.repo.GetRoom(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.Fail[*models.Room](models.KindNotFound, msgRoomNotFound, name), nil
		}
		return models.Result[*models.Room]{}, s.persistence(ctx, "delete_room", err)
	}
	if err := s.repo.DeleteRoom(ctx, name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return models.Fail[*models.Room](models.KindNotFound, msgRoomNotFound, name), nil
		}
		return models.Result[*models.Room]{}, s.persistence(ctx, "delete_room", err)
	}

	s.log(ctx).Info().Str("room", name).Int64("by", callerID).Msg("room deleted")
	s.publish(ctx, events.EventRoomDeleted, events.RoomEventPayload{Room: room.Name, Capacity: room.Capacity, ChangedByID: callerID})
	return models.Ok(room, "✅ Переговорка '%s' удалена вместе с бронями", name), nil
}

func (s *ReservationService) AddAdmin(ctx context.Context, callerID, targetID int64) (models.Result[*models.Admin], error) {
	if res, ok, err := requireAdmin[*models.Admin](ctx, s, callerID); !ok {
		return res, err
	}
	if targetID <= 0 {
		return models.Fail[*models.Admin](models.KindValidation, msgAdminIDInvalid), nil
	}

	admin, err := s.repo.AddAdmin(ctx, targetID, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return models.Fail[*models.Admin](models.KindAlreadyExists, "❌ Пользователь %d уже администратор", targetID), nil
		}
		return models.Result[*models.Admin]{}, s.persistence(ctx, "add_admin", err)
	}

	s.log(ctx).Info().Int64("admin_id", targetID).Int64("by", callerID).Msg("admin added")
	s.publish(ctx, events.EventAdminAdded, events.AdminEventPayload{UserID: targetID, ChangedByID: callerID})
	return models.Ok(admin, "✅ Пользователь %d назначен администратором", targetID), nil
}

// RemoveAdmin never leaves the admin set empty.
func (s *ReservationService) RemoveAdmin(ctx context.Context, callerID, targetID int64) (models.Result[int64], error) {
	if res, ok, err := requireAdmin[int64](ctx, s, callerID); !ok {
		return res, err
	}

	if err := s.repo.RemoveAdmin(ctx, targetID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return models.Fail[int64](models.KindNotFound, "❌ Пользователь %d не администратор", targetID), nil
		case errors.Is(err, domain.ErrLastAdmin):
			return models.Fail[int64](models.KindLastAdmin, "❌ Нельзя удалить последнего администратора"), nil
		}
		return models.Result[int64]{}, s.persistence(ctx, "remove_admin", err)
	}

	s.log(ctx).Info().Int64("admin_id", targetID).Int64("by", callerID).Msg("admin removed")
	s.publish(ctx, events.EventAdminRemoved, events.AdminEventPayload{UserID: targetID, ChangedByID: callerID})
	return models.Ok(targetID, "✅ Пользователь %d больше не администратор", targetID), nil
}

func (s *ReservationService) ListAdmins(ctx context.Context, callerID int64) (models.Result[[]*models.Admin], error) {
	if res, ok, err := requireAdmin[[]*models.Admin](ctx, s, callerID); !ok {
		return res, err
	}
	admins, err := s.repo.ListAdmins(ctx)
	if err != nil {
		return models.Result[[]*models.Admin]{}, s.persistence(ctx, "list_admins", err)
	}
	return models.Ok(admins, "Администраторов: %d", len(admins)), nil
}

func (s *ReservationService) SetTimezone(ctx context.Context, callerID int64, offset int) (models.Result[models.Timezone], error) {
	if res, ok, err := requireAdmin[models.Timezone](ctx, s, callerID); !ok {
		return res, err
	}

	if err := s.clock.SetOffset(ctx, offset); err != nil {
		if errors.Is(err, timezone.ErrRange) {
			return models.Fail[models.Timezone](models.KindRange, msgOffsetRange, models.MinTimezoneOffset, models.MaxTimezoneOffset), nil
		}
		return models.Result[models.Timezone]{}, s.persistence(ctx, "set_timezone", err)
	}

	tz := timezone.Describe(offset)
	s.publish(ctx, events.EventTimezoneChanged, events.TimezoneEventPayload{Offset: offset, Display: tz.Display, ChangedByID: callerID})
	return models.Ok(tz, "✅ Часовой пояс установлен: %s", tz.Display), nil
}

func (s *ReservationService) GetCurrentTimezone(ctx context.Context) (models.Result[models.Timezone], error) {
	offset, err := s.clock.CurrentOffset(ctx)
	if err != nil {
		return models.Result[models.Timezone]{}, s.persistence(ctx, "get_timezone", err)
	}
	tz := timezone.Describe(offset)
	return models.Ok(tz, "Текущий часовой пояс: %s", tz.Display), nil
}

// ExportBookings returns every booking that has not ended yet.
func (s *ReservationService) ExportBookings(ctx context.Context, callerID int64) (models.Result[[]*models.Booking], error) {
	if res, ok, err := requireAdmin[[]*models.Booking](ctx, s, callerID); !ok {
		return res, err
	}
	now, err := s.clock.Now(ctx)
	if err != nil {
		return models.Result[[]*models.Booking]{}, s.persistence(ctx, "export", err)
	}
	bookings, err := s.repo.ListBookings(ctx, now)
	if err != nil {
		return models.Result[[]*models.Booking]{}, s.persistence(ctx, "export", err)
	}
	return models.Ok(bookings, "Броней для выгрузки: %d", len(bookings)), nil
}

// requireAdmin reports ok=false together with the result to return when the caller may not proceed.
func requireAdmin[T any](ctx context.Context, s *ReservationService, callerID int64) (models.Result[T], bool, error) {
	isAdmin, err := s.repo.IsAdmin(ctx, callerID)
	if err != nil {
		return models.Result[T]{}, false, s.persistence(ctx, "check_admin", err)
	}
	if !isAdmin {
		s.log(ctx).Debug().Int64("user_id", callerID).Msg("admin command rejected")
		return models.Fail[T](models.KindUnauthorized, msgUnauthorized), false, nil
	}
	return models.Result[T]{}, true, nil
}

func (s *ReservationService) activeBooking(ctx context.Context, roomName string, now time.Time) (*models.Booking, error) {
	bookings, err := s.repo.GetActiveBookings(ctx, roomName, now)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if b.IsActive(now) {
			return b, nil
		}
	}
	return nil, nil
}

func (s *ReservationService) persistence(ctx context.Context, op string, err error) error {
	s.log(ctx).Error().Err(err).Str("op", op).Msg("storage failure")
	return &PersistenceError{Op: op, Err: err}
}

func (s *ReservationService) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.log(ctx).Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *ReservationService) log(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func bookingPayload(b *models.Booking) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID: b.ID,
		Room:      b.RoomName,
		UserID:    b.UserID,
		Username:  b.Username,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
	}
}

// clock renders t as HH:MM in the zone of ref.
func clock(t, ref time.Time) string {
	return t.In(ref.Location()).Format(models.ClockLayout)
}
