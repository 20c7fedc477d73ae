package service

import "fmt"

// PersistenceError is returned when the store fails unexpectedly. Business
// failures never use it; they come back as a failed models.Result.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persistence failure: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
