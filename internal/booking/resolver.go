package booking

import (
	"context"
	"errors"
	"time"

	"studio-booking-backend/internal/timerange"
)

// Verdict is the outcome of conflict resolution.
type Verdict string

const (
	Accepted Verdict = "accepted"
	Rejected Verdict = "rejected"
)

// Decision is what the resolver concluded about one request.
type Decision struct {
	Verdict Verdict
	Range   timerange.Range
	// Conflict is the first conflicting booking of a rejected request.
	Conflict *timerange.Range
	// SuggestedStart keeps the requested duration and is free at resolution time.
	SuggestedStart *time.Time
}

// Accepted reports whether the request may be persisted.
func (d Decision) Accepted() bool {
	return d.Verdict == Accepted
}

// Err returns the SlotConflictError for a rejected decision, nil otherwise.
func (d Decision) Err() error {
	if d.Accepted() {
		return nil
	}
	e := &SlotConflictError{SuggestedStart: d.SuggestedStart}
	if d.Conflict != nil {
		e.ConflictEnd = d.Conflict.End
	}
	return e
}

// Resolver decides whether a request for one unit can be accepted.
type Resolver struct {
	index *Index
}

func NewResolver(index *Index) *Resolver {
	return &Resolver{index: index}
}

// Validate checks the request shape before any storage access.
func (r *Resolver) Validate(start, end time.Time) (timerange.Range, error) {
	return r.index.policy.Validate(start, end)
}

// Validate checks that start < end and that start falls within operating hours.
func (p Policy) Validate(start, end time.Time) (timerange.Range, error) {
	rng, err := timerange.New(start, end)
	if err != nil {
		return timerange.Range{}, ErrInvalidRange
	}
	if !p.withinOperatingHours(start) {
		return timerange.Range{}, ErrOutsideOperatingHours
	}
	return rng, nil
}

// Resolve validates the request and checks it against the unit's confirmed
// bookings. Validation failures are returned as errors; conflicts are a
// Rejected decision carrying a suggested start.
func (r *Resolver) Resolve(ctx context.Context, studioID int64, unit string, start, end time.Time) (Decision, error) {
	candidate, err := r.Validate(start, end)
	if err != nil {
		return Decision{}, err
	}

	conflict, found, err := r.index.firstConflict(ctx, studioID, unit, candidate)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		return Decision{Verdict: Accepted, Range: candidate}, nil
	}

	d := Decision{Verdict: Rejected, Range: candidate, Conflict: &conflict}
	next := candidate.Shift(conflict.End.Add(r.index.policy.Padding))
	suggested, err := r.index.NextFreeStart(ctx, studioID, unit, next)
	switch {
	case err == nil:
		d.SuggestedStart = &suggested
	case errors.Is(err, errNoSuggestion):
	default:
		return Decision{}, err
	}
	return d, nil
}
