package booking

import (
	"errors"
	"fmt"
	"time"

	"studio-booking-backend/internal/timerange"
)

var (
	// ErrInvalidRange is returned when the requested end is not after its start.
	ErrInvalidRange = timerange.ErrInvalidRange
	// ErrOutsideOperatingHours is returned when the requested start hour is outside [06, 21).
	ErrOutsideOperatingHours = errors.New("booking must start between 06:00 and 21:00")
	// ErrSlotConflict matches every *SlotConflictError.
	ErrSlotConflict = errors.New("slot conflicts with an existing booking")
	ErrUnauthorized = errors.New("not allowed")
	// ErrAlreadyTerminal is returned when cancelling a booking that is no longer confirmed.
	ErrAlreadyTerminal = errors.New("booking is already cancelled or completed")
	ErrNotFound        = errors.New("not found")
	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("storage error")
)

// SlotConflictError rejects a request that overlaps a confirmed booking's buffered window.
type SlotConflictError struct {
	// ConflictEnd is the end of the first conflicting booking. Zero when the
	// conflict was raised by the database constraint.
	ConflictEnd time.Time
	// SuggestedStart is the next start that is free for the same duration, if one was found.
	SuggestedStart *time.Time
}

func (e *SlotConflictError) Error() string {
	if e.SuggestedStart != nil {
		return fmt.Sprintf("slot conflicts with an existing booking, next free start is %s",
			e.SuggestedStart.Format(time.RFC3339))
	}
	return "slot conflicts with an existing booking"
}

func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}

// StorageError wraps a persistence failure. The operation it reports was not applied.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
