package booking

import (
	"time"

	"studio-booking-backend/internal/timerange"
)

// Operating window. Only the start hour of a request is checked against it.
const (
	OpeningHour = 6
	ClosingHour = 21
)

// Policy holds the booking rules shared by the index, resolver and manager.
type Policy struct {
	// Padding is the turnover time kept free after, and before, every confirmed booking.
	Padding time.Duration
	// Location is the zone operating hours and calendar days are read in.
	Location *time.Location
	Now      func() time.Time
}

// DefaultPolicy is a 10 minute padding in UTC on the wall clock.
func DefaultPolicy() Policy {
	return Policy{Padding: timerange.DefaultPadding, Location: time.UTC, Now: time.Now}
}

// Zone is the location calendar days are read in.
func (p Policy) Zone() *time.Location {
	return p.location()
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// withinOperatingHours applies the start-hour rule: a request starting at 20:59
// passes even though it ends after closing.
func (p Policy) withinOperatingHours(start time.Time) bool {
	h := start.In(p.location()).Hour()
	return h >= OpeningHour && h < ClosingHour
}
