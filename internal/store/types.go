package store

import (
	"errors"

	"studio-booking-backend/internal/timerange"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrOverlap is returned when the database rejects a booking that overlaps
	// another confirmed booking of the same unit.
	ErrOverlap = errors.New("booking overlaps a confirmed booking")
)

// StudioFilter narrows ListStudios. Zero values match everything.
type StudioFilter struct {
	City  string // exact, case-insensitive
	Query string // substring of name, area or address
}

// BookingFilter narrows ListBookings. Zero values match everything.
type BookingFilter struct {
	// StudioIDs restricts results to these studios when non-nil.
	// A non-nil empty slice matches nothing.
	StudioIDs []int64

	OwnerQuery  string // substring of owner name or email
	StudioQuery string // substring of studio name, city, area or address

	// Day keeps bookings that start inside it.
	Day *timerange.Range
}
