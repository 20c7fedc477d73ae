package domain

import "errors"

// Storage errors shared by every Repository implementation.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLastAdmin     = errors.New("cannot remove the last admin")
)
