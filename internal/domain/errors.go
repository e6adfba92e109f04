package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a bookmark does not exist for the owner.
	ErrNotFound = errors.New("bookmark not found")

	// ErrUnauthenticated is returned when a mutation has no current user.
	ErrUnauthenticated = errors.New("You must be logged in to add bookmarks")

	// ErrConfirmationRequired is returned when a delete was not confirmed.
	ErrConfirmationRequired = errors.New("delete requires confirmation")
)

// ValidationError reports bad user input. It never reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StoreError wraps any failure of a record store operation.
type StoreError struct {
	Op  string // fetch | insert | remove | subscribe
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err for op. A nil err stays nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// SubscriptionError is delivered alongside StatusErrored.
// It is a status payload, not something callers return.
type SubscriptionError struct {
	Channel string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Channel, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
