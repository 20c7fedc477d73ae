package domain

import (
	"context"
	"time"

	"peregovorka/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SettingsStore is the part of the store the time provider needs.
type SettingsStore interface {
	SetSetting(ctx context.Context, key, value string) error
	GetSetting(ctx context.Context, key, def string) (string, error)
}

// Repository is durable CRUD over rooms, bookings, admins and settings.
// It never checks bookings for overlap; that belongs to the service.
type Repository interface {
	SettingsStore

	CreateRoom(ctx context.Context, name string, capacity int) (*models.Room, error)
	DeleteRoom(ctx context.Context, name string) error
	GetRoom(ctx context.Context, name string) (*models.Room, error)
	ListRooms(ctx context.Context) ([]*models.Room, error)

	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetActiveBookings(ctx context.Context, roomName string, at time.Time) ([]*models.Booking, error)
	// FindBookingByRoomAndUser returns nil, nil when the user holds nothing on the room.
	FindBookingByRoomAndUser(ctx context.Context, roomName string, userID int64, at time.Time) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	ListUserBookings(ctx context.Context, userID int64, at time.Time) ([]*models.Booking, error)
	ListBookings(ctx context.Context, at time.Time) ([]*models.Booking, error)

	AddAdmin(ctx context.Context, userID, addedBy int64) (*models.Admin, error)
	RemoveAdmin(ctx context.Context, userID int64) error
	ListAdmins(ctx context.Context) ([]*models.Admin, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// TimeProvider resolves "now" and user-typed clock times in the configured offset.
type TimeProvider interface {
	CurrentOffset(ctx context.Context) (int, error)
	Now(ctx context.Context) (time.Time, error)
	ParseClockTime(ctx context.Context, text string) (time.Time, error)
	ParseTimeRange(ctx context.Context, text string) (time.Time, time.Time, error)
	SetOffset(ctx context.Context, hours int) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type RateLimiter interface {
	Allow(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

// ReservationService is everything the front-ends are allowed to call.
type ReservationService interface {
	ListAllRooms(ctx context.Context) (models.Result[[]*models.Room], error)
	ListAvailableRooms(ctx context.Context) (models.Result[models.Availability], error)
	BookRoom(ctx context.Context, roomName string, userID int64, username, timeRange string) (models.Result[*models.Booking], error)
	ReleaseRoom(ctx context.Context, roomName string, userID int64) (models.Result[*models.Booking], error)
	GetRoomStatus(ctx context.Context, roomName string) (models.Result[models.RoomStatus], error)
	GetUserBookings(ctx context.Context, userID int64) (models.Result[[]models.UserBooking], error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	AddRoom(ctx context.Context, callerID int64, name string, capacity int) (models.Result[*models.Room], error)
	DeleteRoom(ctx context.Context, callerID int64, name string) (models.Result[*models.Room], error)
	AddAdmin(ctx context.Context, callerID, targetID int64) (models.Result[*models.Admin], error)
	RemoveAdmin(ctx context.Context, callerID, targetID int64) (models.Result[int64], error)
	ListAdmins(ctx context.Context, callerID int64) (models.Result[[]*models.Admin], error)
	SetTimezone(ctx context.Context, callerID int64, offset int) (models.Result[models.Timezone], error)
	GetCurrentTimezone(ctx context.Context) (models.Result[models.Timezone], error)
	ExportBookings(ctx context.Context, callerID int64) (models.Result[[]*models.Booking], error)
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
