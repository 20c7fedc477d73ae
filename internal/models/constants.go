package models

const (
	// SettingTimezoneOffset хранит смещение от UTC в часах, например "+3"
	SettingTimezoneOffset = "timezone_offset"

	// DefaultTimezoneOffset используется, пока администратор не задал смещение
	DefaultTimezoneOffset = "+0"

	MinTimezoneOffset = -12
	MaxTimezoneOffset = 14

	// BootstrapAddedBy marks the admin seeded from configuration.
	BootstrapAddedBy int64 = 0
)

const (
	// StoredTimeLayout is used for booking start/end; the offset is kept.
	StoredTimeLayout = "2006-01-02T15:04:05Z07:00"

	// StampLayout is fixed-width so stamps in UTC sort lexically.
	StampLayout = "2006-01-02T15:04:05.000000Z07:00"

	// ClockLayout is the user-facing time of day.
	ClockLayout = "15:04"
)

const (
	ParseModeMarkdown = "Markdown"
)

const (
	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах
)
