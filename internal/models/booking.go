package models

import "time"

// Booking reserves one room for one user over the half-open interval [StartTime, EndTime).
// Activity is derived from the interval, there is no stored status.
type Booking struct {
	ID        int64     `json:"id"`
	RoomName  string    `json:"room_name"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// IsActive reports whether the booking interval contains at.
func (b *Booking) IsActive(at time.Time) bool {
	return !at.Before(b.StartTime) && at.Before(b.EndTime)
}

// HasEnded reports whether the booking is over at the given instant.
func (b *Booking) HasEnded(at time.Time) bool {
	return !b.EndTime.After(at)
}

// Overlaps reports whether [start, end) intersects the booking interval.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}

// IsOwner reports whether userID made the booking.
func (b *Booking) IsOwner(userID int64) bool {
	return b.UserID == userID
}
