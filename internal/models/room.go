package models

// Room is a named bookable meeting room.
type Room struct {
	Name     string `json:"name" yaml:"name"`
	Capacity int    `json:"capacity" yaml:"capacity"`
}
