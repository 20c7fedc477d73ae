package models

import "fmt"

// Kind classifies an expected business failure.
type Kind string

const (
	KindNone          Kind = ""
	KindValidation    Kind = "validation"
	KindFormat        Kind = "format"
	KindRange         Kind = "range"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindNotOwner      Kind = "not_owner"
	KindUnauthorized  Kind = "unauthorized"
	KindLastAdmin     Kind = "last_admin"
	KindAlreadyExists Kind = "already_exists"
)

// Result is what every service operation hands back to the front-end.
// Expected failures are reported here, never as a Go error.
type Result[T any] struct {
	Success bool   `json:"success"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Ok builds a successful result.
func Ok[T any](data T, format string, args ...any) Result[T] {
	return Result[T]{Success: true, Message: fmt.Sprintf(format, args...), Data: data}
}

// Fail builds a failed result of the given kind.
func Fail[T any](kind Kind, format string, args ...any) Result[T] {
	return Result[T]{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// OccupiedRoom pairs a room with the booking currently holding it.
type OccupiedRoom struct {
	Room    *Room    `json:"room"`
	Booking *Booking `json:"booking"`
}

// Availability partitions rooms at a given instant.
type Availability struct {
	Free     []*Room        `json:"free"`
	Occupied []OccupiedRoom `json:"occupied"`
}

// RoomStatus describes a single room right now. Booking is nil when the room is free.
type RoomStatus struct {
	Room    *Room    `json:"room"`
	Booking *Booking `json:"booking,omitempty"`
}

// IsOccupied reports whether someone holds the room.
func (s RoomStatus) IsOccupied() bool {
	return s.Booking != nil
}

// UserBooking is a booking flagged with its activity at the time of the query.
type UserBooking struct {
	Booking *Booking `json:"booking"`
	Active  bool     `json:"active"`
}

// Timezone is the configured reference zone.
type Timezone struct {
	Offset  int    `json:"offset"`
	Value   string `json:"value"`
	Display string `json:"display"`
}
