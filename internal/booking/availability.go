package booking

import (
	"context"
	"errors"
	"time"

	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/timerange"
)

// maxSuggestionSteps bounds the walk over stacked conflicts in NextFreeStart.
const maxSuggestionSteps = 64

// errNoSuggestion is returned by NextFreeStart when the walk gives up.
var errNoSuggestion = errors.New("no free start found")

// SlotStatus classifies one hourly slot.
type SlotStatus string

const (
	SlotFree   SlotStatus = "free"
	SlotBooked SlotStatus = "booked"
	SlotPast   SlotStatus = "past"
)

// BookingReader is the read side of the booking store the index needs.
type BookingReader interface {
	ConfirmedBookings(ctx context.Context, studioID int64, unit string, window timerange.Range) ([]model.Booking, error)
}

// Index answers availability questions about one unit from its confirmed bookings.
type Index struct {
	reader BookingReader
	policy Policy
}

func NewIndex(reader BookingReader, policy Policy) *Index {
	return &Index{reader: reader, policy: policy}
}

// ConfirmedBookings returns the ranges of confirmed bookings intersecting window,
// ordered by start.
func (x *Index) ConfirmedBookings(ctx context.Context, studioID int64, unit string, window timerange.Range) ([]timerange.Range, error) {
	bookings, err := x.reader.ConfirmedBookings(ctx, studioID, unit, window)
	if err != nil {
		return nil, storageErr("load confirmed bookings", err)
	}
	ranges := make([]timerange.Range, len(bookings))
	for i, b := range bookings {
		ranges[i] = timerange.Range{Start: b.StartAt, End: b.EndAt}
	}
	return ranges, nil
}

// IsFree reports whether no confirmed booking's buffered range overlaps candidate.
func (x *Index) IsFree(ctx context.Context, studioID int64, unit string, candidate timerange.Range) (bool, error) {
	_, found, err := x.firstConflict(ctx, studioID, unit, candidate)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// NextFreeStart proposes a start for a request of candidate's length. It moves
// the candidate to the end of its first conflict plus the padding and repeats
// until the candidate is free. A free candidate returns its own start.
func (x *Index) NextFreeStart(ctx context.Context, studioID int64, unit string, candidate timerange.Range) (time.Time, error) {
	for step := 0; step < maxSuggestionSteps; step++ {
		conflict, found, err := x.firstConflict(ctx, studioID, unit, candidate)
		if err != nil {
			return time.Time{}, err
		}
		if !found {
			return candidate.Start, nil
		}
		candidate = candidate.Shift(conflict.End.Add(x.policy.Padding))
	}
	return time.Time{}, errNoSuggestion
}

// firstConflict returns the earliest-starting confirmed booking whose buffered
// range overlaps candidate.
func (x *Index) firstConflict(ctx context.Context, studioID int64, unit string, candidate timerange.Range) (timerange.Range, bool, error) {
	// Any booking whose buffered range reaches candidate intersects this window.
	window := timerange.Buffered(candidate, x.policy.Padding)
	ranges, err := x.ConfirmedBookings(ctx, studioID, unit, window)
	if err != nil {
		return timerange.Range{}, false, err
	}
	for _, r := range ranges {
		if timerange.Overlaps(timerange.Buffered(r, x.policy.Padding), candidate) {
			return r, true, nil
		}
	}
	return timerange.Range{}, false, nil
}

// HourlySlots returns the one-hour slots starting at 06:00 through 20:00 on the
// calendar day of date.
func (x *Index) HourlySlots(date time.Time) []timerange.Range {
	loc := x.policy.location()
	d := date.In(loc)
	slots := make([]timerange.Range, 0, ClosingHour-OpeningHour)
	for h := OpeningHour; h < ClosingHour; h++ {
		start := time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, loc)
		slots = append(slots, timerange.Range{Start: start, End: start.Add(time.Hour)})
	}
	return slots
}

// HourlySlotStatus classifies each hourly slot of date. A slot overlapping a
// confirmed booking is booked, otherwise a slot that already started is past.
func (x *Index) HourlySlotStatus(ctx context.Context, studioID int64, unit string, date time.Time) (map[int]SlotStatus, error) {
	ranges, err := x.ConfirmedBookings(ctx, studioID, unit, timerange.Day(date, x.policy.location()))
	if err != nil {
		return nil, err
	}

	now := x.policy.now()
	statuses := make(map[int]SlotStatus, ClosingHour-OpeningHour)
	for _, slot := range x.HourlySlots(date) {
		hour := slot.Start.Hour()
		switch {
		case overlapsAny(ranges, slot):
			statuses[hour] = SlotBooked
		case slot.Start.Before(now):
			statuses[hour] = SlotPast
		default:
			statuses[hour] = SlotFree
		}
	}
	return statuses, nil
}

func overlapsAny(ranges []timerange.Range, r timerange.Range) bool {
	for _, other := range ranges {
		if timerange.Overlaps(other, r) {
			return true
		}
	}
	return false
}
