package timerange

import (
	"errors"
	"time"
)

// DefaultPadding is the idle time kept between two confirmed bookings of the same unit.
const DefaultPadding = 10 * time.Minute

// ErrInvalidRange is returned when a range does not end strictly after it starts.
var ErrInvalidRange = errors.New("invalid time range: end must be after start")

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// New builds a Range, rejecting empty and inverted intervals.
func New(start, end time.Time) (Range, error) {
	if !end.After(start) {
		return Range{}, ErrInvalidRange
	}
	return Range{Start: start, End: end}, nil
}

// Overlaps reports whether a and b share at least one instant.
// Touching endpoints do not overlap.
func Overlaps(a, b Range) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Contains reports whether t lies in [r.Start, r.End).
func Contains(r Range, t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Buffered widens r by padding on both ends. The result is only meant for
// conflict comparison and is never stored.
func Buffered(r Range, padding time.Duration) Range {
	return Range{Start: r.Start.Add(-padding), End: r.End.Add(padding)}
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Shift moves the range so that it starts at start, keeping its length.
func (r Range) Shift(start time.Time) Range {
	return Range{Start: start, End: start.Add(r.Duration())}
}

// Overlaps is the method form of Overlaps.
func (r Range) Overlaps(other Range) bool {
	return Overlaps(r, other)
}

// Contains is the method form of Contains.
func (r Range) Contains(t time.Time) bool {
	return Contains(r, t)
}

// Day returns the [00:00, 24:00) range of the calendar day holding t in loc.
func Day(t time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return Range{Start: start, End: start.AddDate(0, 0, 1)}
}
