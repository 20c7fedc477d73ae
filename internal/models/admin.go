package models

import "time"

// Admin is a user allowed to manage rooms, admins and settings.
type Admin struct {
	UserID  int64     `json:"user_id"`
	AddedBy int64     `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// IsBootstrap reports whether the admin was seeded from the configured identity.
func (a *Admin) IsBootstrap() bool {
	return a.AddedBy == BootstrapAddedBy
}

// Setting is a single key/value configuration entry kept in the store.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
